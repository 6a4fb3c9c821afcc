// Package sites provisions AEM sites and pages.
//
// Every write is a single Sling create-node call. A caller that asks for an
// overwrite gets one delete chain (structured delete, then a low-level
// delete if that fails), a fixed settle delay and one create attempt. Nothing
// else is retried.
package sites

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
)

// DefaultSettleDelay is the wait between an overwrite delete and the
// following create. The repository's view can lag a delete briefly and an
// immediate create then fails with a stale conflict.
const DefaultSettleDelay = 500 * time.Millisecond

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client provisions sites through one authenticated caller.
type Client struct {
	caller      *aem.Caller
	log         *slog.Logger
	settleDelay time.Duration
	sleep       SleepFunc
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = logctx.Wrap(l) }
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) { c.settleDelay = d }
}

// WithSleep replaces the settle wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient returns a Client over caller.
func NewClient(caller *aem.Caller, opts ...Option) *Client {
	c := &Client{
		caller:      caller,
		log:         logctx.Wrap(nil),
		settleDelay: DefaultSettleDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SiteConfig describes a site to create.
type SiteConfig struct {
	Title        string
	Name         string
	ParentPath   string
	TemplatePath string
	Language     string
	Country      string
	Overwrite    bool
}

// Site is a provisioned site root.
type Site struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	TemplatePath string `json:"templatePath"`
	Language     string `json:"language"`
	Country      string `json:"country"`
	EditorURL    string `json:"editorUrl"`
}

// PageConfig describes a page to create under an existing site.
type PageConfig struct {
	SitePath     string
	Name         string
	Title        string
	TemplatePath string
	Overwrite    bool
}

// Page is a provisioned page.
type Page struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	EditorURL string `json:"editorUrl"`
}

// MicrositeConfig is a site plus the names of its pages, created in order.
type MicrositeConfig struct {
	SiteConfig
	Pages []string
}

// PageFailure records a page that could not be created.
type PageFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// MicrositeResult reports a microsite. Success is true whenever the site
// itself was created; failed pages are listed, not rolled back.
type MicrositeResult struct {
	Success bool          `json:"success"`
	Site    *Site         `json:"site"`
	Pages   []Page        `json:"pages"`
	Failed  []PageFailure `json:"failed,omitempty"`
}

// ComponentConfig describes one component added to a page.
type ComponentConfig struct {
	PagePath     string
	Name         string
	ResourceType string
	// Container is relative to the page's jcr:content. Defaults to
	// DefaultContainer.
	Container  string
	Properties map[string]any
}

// Component is a created component node.
type Component struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	ResourceType string `json:"resourceType"`
}

func (c *Client) editorURL(path string) string {
	return c.caller.URL("/editor.html"+path+".html", nil)
}

// CreateSite creates a site root node.
func (c *Client) CreateSite(ctx context.Context, cfg SiteConfig) (*Site, error) {
	if strings.TrimSpace(cfg.Title) == "" {
		return nil, aem.Errorf(aem.KindConfiguration, "siteTitle is required")
	}
	name := cfg.Name
	if strings.TrimSpace(name) == "" {
		name = deriveName(cfg.Title)
	}
	name = Sanitize(name)
	if name == "" {
		return nil, aem.Errorf(aem.KindConfiguration, "siteName is empty after sanitization")
	}
	parent := strings.TrimRight(cfg.ParentPath, "/")
	if parent == "" {
		parent = DefaultParentPath
	}

	site := &Site{
		Path:         parent + "/" + name,
		Name:         name,
		Title:        cfg.Title,
		TemplatePath: orDefault(cfg.TemplatePath, DefaultTemplatePath),
		Language:     orDefault(cfg.Language, DefaultLanguage),
		Country:      orDefault(cfg.Country, DefaultCountry),
	}
	site.EditorURL = c.editorURL(site.Path)
	log := c.log.With(slog.String("site_path", site.Path))

	if cfg.Overwrite {
		if err := c.clearForOverwrite(ctx, site.Path); err != nil {
			log.ErrorContext(ctx, "site.create.fail", slog.String("err", err.Error()))
			return nil, err
		}
	}

	if err := c.createNode(ctx, site.Path, "site", siteForm(site)); err != nil {
		log.ErrorContext(ctx, "site.create.fail", slog.String("err", err.Error()))
		return nil, err
	}
	log.InfoContext(ctx, "site.create.ok")
	return site, nil
}

// CreatePage creates one page under cfg.SitePath.
func (c *Client) CreatePage(ctx context.Context, cfg PageConfig) (*Page, error) {
	sitePath := strings.TrimRight(cfg.SitePath, "/")
	if sitePath == "" {
		return nil, aem.Errorf(aem.KindConfiguration, "sitePath is required")
	}
	name := Sanitize(cfg.Name)
	if name == "" {
		return nil, aem.Errorf(aem.KindConfiguration, "pageName is required")
	}
	page := &Page{
		Path:  sitePath + "/" + name,
		Name:  name,
		Title: orDefault(cfg.Title, capitalize(cfg.Name)),
	}
	page.EditorURL = c.editorURL(page.Path)
	log := c.log.With(slog.String("page_path", page.Path))

	if cfg.Overwrite {
		if err := c.clearForOverwrite(ctx, page.Path); err != nil {
			return nil, err
		}
	}

	form := pageForm(page, orDefault(cfg.TemplatePath, DefaultTemplatePath))
	if err := c.createNode(ctx, page.Path, "page", form); err != nil {
		log.WarnContext(ctx, "site.create_page.fail", slog.String("err", err.Error()))
		return nil, err
	}
	log.InfoContext(ctx, "site.create_page.ok")
	return page, nil
}

// CreateMicrosite creates a site and then its pages one by one in the given
// order. A page failure is logged and recorded; the remaining pages are
// still attempted and nothing already created is removed.
func (c *Client) CreateMicrosite(ctx context.Context, cfg MicrositeConfig) (*MicrositeResult, error) {
	site, err := c.CreateSite(ctx, cfg.SiteConfig)
	if err != nil {
		return nil, err
	}
	names := cfg.Pages
	if len(names) == 0 {
		names = DefaultPages
	}

	res := &MicrositeResult{Success: true, Site: site, Pages: []Page{}}
	for _, name := range names {
		page, err := c.CreatePage(ctx, PageConfig{
			SitePath:     site.Path,
			Name:         name,
			Title:        capitalize(name),
			TemplatePath: site.TemplatePath,
		})
		if err != nil {
			res.Failed = append(res.Failed, PageFailure{Name: name, Error: err.Error()})
			continue
		}
		res.Pages = append(res.Pages, *page)
	}
	c.log.InfoContext(ctx, "site.create_microsite.ok",
		slog.String("site_path", site.Path),
		slog.Int("pages", len(res.Pages)),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// CreateComponent adds one component node to a page.
func (c *Client) CreateComponent(ctx context.Context, cfg ComponentConfig) (*Component, error) {
	pagePath := strings.TrimRight(cfg.PagePath, "/")
	if pagePath == "" {
		return nil, aem.Errorf(aem.KindConfiguration, "pagePath is required")
	}
	if cfg.ResourceType == "" {
		return nil, aem.Errorf(aem.KindConfiguration, "resourceType is required")
	}
	name := cfg.Name
	if name == "" {
		name = cfg.ResourceType[strings.LastIndex(cfg.ResourceType, "/")+1:]
	}
	name = Sanitize(name)
	container := strings.Trim(orDefault(cfg.Container, DefaultContainer), "/")

	comp := &Component{
		Path:         pagePath + "/jcr:content/" + container + "/" + name,
		Name:         name,
		ResourceType: cfg.ResourceType,
	}
	form := componentForm(cfg.ResourceType, cfg.Properties)
	if err := c.createNode(ctx, comp.Path, "component", form); err != nil {
		c.log.WarnContext(ctx, "site.create_component.fail", slog.String("path", comp.Path), slog.String("err", err.Error()))
		return nil, err
	}
	c.log.InfoContext(ctx, "site.create_component.ok", slog.String("path", comp.Path))
	return comp, nil
}

// createNode posts a create-node payload and classifies failures.
func (c *Client) createNode(ctx context.Context, path, what string, form aem.Encoder) error {
	resp, err := c.caller.PostForm(ctx, path, form)
	if err != nil {
		return aem.Wrap(aem.KindProvisioning, "Failed to create "+what, err)
	}
	if resp.OK() {
		return nil
	}
	msg := aem.ResponseMessage(resp)
	e := &aem.Error{Kind: aem.KindProvisioning, Op: "create " + what, Status: resp.Status}
	if resp.Status == http.StatusConflict || hasConflictMarker(msg) || hasConflictMarker(string(resp.Body)) {
		e.Kind = aem.KindConflict
		e.Message = capitalize(what) + " already exists at " + path + ": " + msg
	} else {
		e.Message = "Failed to create " + what + ": " + msg
	}
	return e
}

// clearForOverwrite runs the delete chain and waits for the settle delay.
func (c *Client) clearForOverwrite(ctx context.Context, path string) error {
	log := c.log.With(slog.String("path", path))
	if err := c.DeleteSite(ctx, path, true); err != nil {
		log.WarnContext(ctx, "site.overwrite.structured_delete.fail", slog.String("err", err.Error()))
		if err := c.deleteNode(ctx, path); err != nil {
			return aem.Wrap(aem.KindProvisioning, "Failed to clear "+path+" before overwrite", err)
		}
	}
	log.DebugContext(ctx, "site.overwrite.settle", slog.Duration("delay", c.settleDelay))
	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return aem.Wrap(aem.KindProvisioning, "Overwrite interrupted", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
