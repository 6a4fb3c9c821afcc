// Package aemtools declares the MCP tools, resources and prompts that expose
// AEM site provisioning and asset management.
//
// A Toolkit holds configuration only. Server builds a fresh set of
// containers each time it is called so a host can discard the whole server
// after a single exchange.
package aemtools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/credentials"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
	"github.com/ggoodman/aem-mcp-server-go/sites"
)

const instructions = `Tools for Adobe Experience Manager.

Site tools (aem_create_site, aem_create_microsite, aem_create_page, aem_create_component, aem_delete_site, aem_get_site_info, aem_list_sites) work under /content.
Asset tools (aem_search_assets, aem_rename_asset, aem_update_asset_metadata, aem_start_workflow, aem_create_content_fragment) work under /content/dam.

Every tool accepts optional aemUrl, token, username and password arguments that override the server environment for that call.
Search-and-replace in aem_search_assets only previews changes; use aem_update_asset_metadata to persist them.`

// Toolkit builds AEM-backed MCP servers.
type Toolkit struct {
	env         credentials.Env
	policy      credentials.Policy
	log         *slog.Logger
	timeout     time.Duration
	transport   http.RoundTripper
	settleDelay time.Duration
	sleep       sites.SleepFunc
	levels      *slog.LevelVar
}

// Option configures a Toolkit.
type Option func(*Toolkit)

// WithLogger sets the logger used by tools and AEM calls.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toolkit) { t.log = logctx.Wrap(l) }
}

// WithTimeout bounds each AEM call. Zero keeps aem.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Toolkit) { t.timeout = d }
}

// WithTransport sets the round tripper used for AEM calls.
func WithTransport(rt http.RoundTripper) Option {
	return func(t *Toolkit) { t.transport = rt }
}

// WithSettleDelay overrides the pause between an overwrite delete and the
// following create.
func WithSettleDelay(d time.Duration) Option {
	return func(t *Toolkit) { t.settleDelay = d }
}

// WithSleep replaces the settle wait, mostly for tests.
func WithSleep(fn sites.SleepFunc) Option {
	return func(t *Toolkit) { t.sleep = fn }
}

// WithLevelVar exposes lv through the MCP logging/setLevel method.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(t *Toolkit) { t.levels = lv }
}

// New returns a Toolkit that resolves credentials from env under policy.
func New(env credentials.Env, policy credentials.Policy, opts ...Option) *Toolkit {
	t := &Toolkit{
		env:         env,
		policy:      policy,
		log:         logctx.Wrap(nil),
		settleDelay: sites.DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Server assembles a new MCP server around the toolkit.
func (t *Toolkit) Server(info mcp.ImplementationInfo) mcpservice.ServerCapabilities {
	opts := []mcpservice.ServerOption{
		mcpservice.WithServerInfo(info),
		mcpservice.WithInstructions(instructions),
		mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(t.Tools()...)),
		mcpservice.WithResourcesCapability(mcpservice.NewResourcesContainer(Resources())),
		mcpservice.WithPromptsCapability(mcpservice.NewPromptsContainer(Prompts()...)),
	}
	if t.levels != nil {
		opts = append(opts, mcpservice.WithLoggingCapability(mcpservice.NewSlogLevelVarLogging(t.levels)))
	}
	return mcpservice.NewServer(opts...)
}

// Tools lists every AEM tool in a stable order.
func (t *Toolkit) Tools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		t.createSiteTool(),
		t.createMicrositeTool(),
		t.createPageTool(),
		t.createComponentTool(),
		t.deleteSiteTool(),
		t.getSiteInfoTool(),
		t.listSitesTool(),
		t.searchAssetsTool(),
		t.renameAssetTool(),
		t.updateAssetMetadataTool(),
		t.startWorkflowTool(),
		t.createContentFragmentTool(),
	}
}

// Connection carries the per-call overrides every tool accepts.
type Connection struct {
	Endpoint    string `json:"aemUrl,omitempty" jsonschema:"description=AEM base URL. Defaults to AEM_URL."`
	ServerAlias string `json:"server,omitempty" jsonschema:"description=Alias for aemUrl."`
	Token       string `json:"token,omitempty" jsonschema:"description=Bearer access token. Defaults to AEM_TOKEN."`
	Username    string `json:"username,omitempty" jsonschema:"description=Basic auth user. Defaults to AEM_USERNAME."`
	Password    string `json:"password,omitempty" jsonschema:"description=Basic auth password. Defaults to AEM_PASSWORD."`
}

func (c Connection) params() credentials.Params {
	return credentials.Params{
		Endpoint:    c.Endpoint,
		ServerAlias: c.ServerAlias,
		Token:       c.Token,
		Username:    c.Username,
		Password:    c.Password,
	}
}

// call is one authenticated tool invocation.
type call struct {
	tool     string
	resolved *credentials.Resolved
	caller   *aem.Caller
	log      *slog.Logger
	start    time.Time
}

// open resolves credentials for a tool call. When resolution fails the
// error result has already been written and ok is false.
func (t *Toolkit) open(ctx context.Context, w mcpservice.ToolResponseWriter, tool string, conn Connection) (c *call, ok bool, err error) {
	res, rerr := credentials.Resolve(conn.params(), t.env, t.policy)
	if rerr != nil {
		t.log.WarnContext(ctx, "tool.credentials.fail", slog.String("tool", tool), slog.String("err", rerr.Error()))
		return nil, false, writeFailure(w, rerr, "")
	}
	log := t.log.With(slog.Group("aem",
		slog.String("endpoint", res.Endpoint),
		slog.String("auth_scheme", string(res.Credentials.Scheme())),
	))
	caller := aem.NewCaller(res, log)
	if t.timeout > 0 {
		caller.Timeout = t.timeout
	}
	caller.Transport = t.transport
	return &call{tool: tool, resolved: res, caller: caller, log: log, start: time.Now()}, true, nil
}

func (t *Toolkit) sitesClient(c *call) *sites.Client {
	opts := []sites.Option{sites.WithLogger(c.log), sites.WithSettleDelay(t.settleDelay)}
	if t.sleep != nil {
		opts = append(opts, sites.WithSleep(t.sleep))
	}
	return sites.NewClient(c.caller, opts...)
}

func (c *call) scheme() string {
	return string(c.resolved.Credentials.Scheme())
}

func (c *call) decorate(w mcpservice.ToolResponseWriter) {
	w.SetMeta("authScheme", c.scheme())
	w.SetMeta("endpoint", c.resolved.Endpoint)
	if len(c.resolved.Warnings) > 0 {
		w.SetMeta("warnings", c.resolved.Warnings)
	}
}

// ok writes a summary line followed by the JSON rendering of v.
func (c *call) ok(ctx context.Context, w mcpservice.ToolResponseWriter, summary string, v any) error {
	c.decorate(w)
	c.log.InfoContext(ctx, "tool.call.ok", slog.String("tool", c.tool), slog.Int64("dur_ms", time.Since(c.start).Milliseconds()))
	if err := w.AppendText(summary); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return w.AppendJSON(v)
}

// fail turns err into an error result. It returns a Go error only when the
// writer itself fails.
func (c *call) fail(ctx context.Context, w mcpservice.ToolResponseWriter, err error) error {
	c.decorate(w)
	c.log.WarnContext(ctx, "tool.call.fail",
		slog.String("tool", c.tool),
		slog.String("kind", errorKind(err)),
		slog.String("err", err.Error()),
		slog.Int64("dur_ms", time.Since(c.start).Milliseconds()),
	)
	return writeFailure(w, err, c.scheme())
}

func writeFailure(w mcpservice.ToolResponseWriter, err error, scheme string) error {
	w.SetError(true)
	w.SetMeta("errorKind", errorKind(err))
	text := err.Error()
	var cfgErr *credentials.ConfigurationError
	if errors.As(err, &cfgErr) {
		text = cfgErr.Detail()
	}
	if hint := remediation(err, scheme); hint != "" {
		w.SetMeta("remediation", hint)
		text += "\n\n" + hint
	}
	return w.AppendText(text)
}
