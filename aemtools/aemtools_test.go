package aemtools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/credentials"
	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
)

type fakeAEM struct {
	mu     sync.Mutex
	calls  []string
	auth   []string
	routes map[string]http.HandlerFunc
}

func (f *fakeAEM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	h := f.routes[key]
	f.mu.Unlock()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func status(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(body, "{") {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

func newToolkit(t *testing.T, env credentials.Env, routes map[string]http.HandlerFunc) (*mcpservice.ToolsContainer, *fakeAEM) {
	t.Helper()
	fake := &fakeAEM{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	if env.URL == "" {
		env.URL = srv.URL
	}
	tk := New(env, credentials.DefaultPolicy(),
		WithTimeout(5*time.Second),
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	)
	return mcpservice.NewToolsContainer(tk.Tools()...), fake
}

func callTool(t *testing.T, c *mcpservice.ToolsContainer, name, args string) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), &mcp.CallToolRequestReceived{Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func text(res *mcp.CallToolResult) string {
	var parts []string
	for _, b := range res.Content {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}

func TestToolCatalog(t *testing.T) {
	tk := New(credentials.Env{}, credentials.DefaultPolicy())
	want := []string{
		"aem_create_site", "aem_create_microsite", "aem_create_page", "aem_create_component",
		"aem_delete_site", "aem_get_site_info", "aem_list_sites", "aem_search_assets",
		"aem_rename_asset", "aem_update_asset_metadata", "aem_start_workflow", "aem_create_content_fragment",
	}
	tools := tk.Tools()
	if len(tools) != len(want) {
		t.Fatalf("unexpected tool count: want %d got %d", len(want), len(tools))
	}
	for i, tool := range tools {
		if want, got := want[i], tool.Descriptor.Name; want != got {
			t.Fatalf("tool %d: want %q got %q", i, want, got)
		}
		if tool.Descriptor.Description == "" {
			t.Fatalf("%s has no description", tool.Descriptor.Name)
		}
		if _, ok := tool.Descriptor.InputSchema.Properties["aemUrl"]; !ok {
			t.Fatalf("%s does not accept connection overrides", tool.Descriptor.Name)
		}
	}

	for _, i := range []int{5, 6, 7} {
		out := tools[i].Descriptor.OutputSchema
		if out == nil || len(out.Properties) == 0 {
			t.Fatalf("%s should declare an output schema", tools[i].Descriptor.Name)
		}
	}
	if _, ok := tools[6].Descriptor.OutputSchema.Properties["sites"]; !ok {
		t.Fatalf("list sites output schema lacks sites: %+v", tools[6].Descriptor.OutputSchema)
	}

	schema := tools[0].Descriptor.InputSchema
	if len(schema.Required) != 1 || schema.Required[0] != "siteTitle" {
		t.Fatalf("unexpected required list for create site: %v", schema.Required)
	}
	for _, i := range []int{0, 1, 2} {
		desc := tools[i].Descriptor.InputSchema.Properties["overwrite"].Description
		if !strings.Contains(desc, "below /content/") {
			t.Fatalf("%s overwrite description should state the /content/ limit, got %q", tools[i].Descriptor.Name, desc)
		}
	}
}

func TestMissingCredentials(t *testing.T) {
	c, fake := newToolkit(t, credentials.Env{}, nil)
	res := callTool(t, c, "aem_create_site", `{"siteTitle":"Test Site"}`)
	if !res.IsError {
		t.Fatalf("expected an error result")
	}
	if want, got := "ConfigurationError", res.Meta["errorKind"]; want != got {
		t.Fatalf("unexpected kind: want %v got %v", want, got)
	}
	for _, env := range []string{"AEM_TOKEN", "AEM_USERNAME", "AEM_PASSWORD"} {
		if !strings.Contains(text(res), env) {
			t.Fatalf("expected %s to be named in %q", env, text(res))
		}
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no AEM calls, got %v", fake.calls)
	}
}

func TestCreateSiteTool(t *testing.T) {
	c, fake := newToolkit(t, credentials.Env{Username: "admin", Password: "admin"}, map[string]http.HandlerFunc{
		"POST /content/test-site": status(http.StatusCreated, ""),
	})
	res := callTool(t, c, "aem_create_site", `{"siteTitle":"Test Site"}`)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text(res))
	}
	if !strings.Contains(text(res), `"path": "/content/test-site"`) {
		t.Fatalf("expected the site path in %q", text(res))
	}
	if want, got := "basic", res.Meta["authScheme"]; want != got {
		t.Fatalf("unexpected scheme: want %v got %v", want, got)
	}
	if !strings.HasPrefix(fake.auth[0], "Basic ") {
		t.Fatalf("expected basic auth, got %q", fake.auth[0])
	}
}

func TestConnectionOverrides(t *testing.T) {
	c, fake := newToolkit(t, credentials.Env{Username: "admin", Password: "admin"}, map[string]http.HandlerFunc{
		"GET /content.2.json": status(http.StatusOK, `{"jcr:primaryType":"sling:Folder"}`),
	})
	res := callTool(t, c, "aem_list_sites", `{"token":"per-call"}`)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text(res))
	}
	if want, got := "Bearer per-call", fake.auth[0]; want != got {
		t.Fatalf("per-call token should win on a non-cloud host: want %q got %q", want, got)
	}
	if !strings.Contains(text(res), "Found 0 site(s) under /content") {
		t.Fatalf("unexpected text %q", text(res))
	}
	if want, got := "/content", res.StructuredContent["parentPath"]; want != got {
		t.Fatalf("unexpected structured parentPath: want %v got %v", want, got)
	}
	if listed, ok := res.StructuredContent["sites"].([]any); !ok || len(listed) != 0 {
		t.Fatalf("expected an empty sites array, got %#v", res.StructuredContent["sites"])
	}
}

func TestCreateSiteConflictSuggestsOverwrite(t *testing.T) {
	c, _ := newToolkit(t, credentials.Env{Token: "tok"}, map[string]http.HandlerFunc{
		"POST /content/test-site": status(http.StatusConflict, "already exists"),
	})
	res := callTool(t, c, "aem_create_site", `{"siteTitle":"Test Site"}`)
	if !res.IsError {
		t.Fatalf("expected an error result")
	}
	if want, got := "ProvisioningConflict", res.Meta["errorKind"]; want != got {
		t.Fatalf("unexpected kind: want %v got %v", want, got)
	}
	hint, _ := res.Meta["remediation"].(string)
	if !strings.Contains(hint, "overwrite") {
		t.Fatalf("expected an overwrite hint, got %q", hint)
	}
	if want, got := "bearer", res.Meta["authScheme"]; want != got {
		t.Fatalf("unexpected scheme: want %v got %v", want, got)
	}
}

func TestAuthRejectionRemediation(t *testing.T) {
	c, _ := newToolkit(t, credentials.Env{Token: "tok"}, map[string]http.HandlerFunc{
		"GET /content/site.2.json": status(http.StatusUnauthorized, "nope"),
	})
	res := callTool(t, c, "aem_get_site_info", `{"sitePath":"/content/site"}`)
	if !res.IsError {
		t.Fatalf("expected an error result")
	}
	hint, _ := res.Meta["remediation"].(string)
	if !strings.Contains(hint, "bearer") || !strings.Contains(hint, "AEM_TOKEN") {
		t.Fatalf("unexpected hint %q", hint)
	}
}

func TestDeleteSiteRequiresConfirm(t *testing.T) {
	c, fake := newToolkit(t, credentials.Env{Token: "tok"}, nil)
	res := callTool(t, c, "aem_delete_site", `{"sitePath":"/content/site"}`)
	if !res.IsError {
		t.Fatalf("expected an error result")
	}
	if want, got := "ConfigurationError", res.Meta["errorKind"]; want != got {
		t.Fatalf("unexpected kind: want %v got %v", want, got)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no AEM calls, got %v", fake.calls)
	}
}

func TestSearchAssetsPreview(t *testing.T) {
	c, fake := newToolkit(t, credentials.Env{Token: "tok"}, map[string]http.HandlerFunc{
		"GET /bin/querybuilder.json":                       status(http.StatusOK, `{"success":true,"total":1,"hits":[{"path":"/content/dam/a.jpg","name":"a.jpg"}]}`),
		"GET /content/dam/a.jpg/jcr:content/metadata.json": status(http.StatusOK, `{"dc:title":"Ford Focus"}`),
	})
	res := callTool(t, c, "aem_search_assets", `{"query":"ford","searchValue":"Ford","replaceValue":"Acme"}`)
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text(res))
	}
	out := text(res)
	if !strings.Contains(out, "nothing was written") {
		t.Fatalf("expected a preview note in %q", out)
	}
	if !strings.Contains(out, "/content/dam/a.jpg dc:title: [-Ford-]{+Acme+} Focus") {
		t.Fatalf("expected a diff line in %q", out)
	}
	for _, call := range fake.calls {
		if !strings.HasPrefix(call, "GET ") {
			t.Fatalf("search must not write, saw %s", call)
		}
	}
	if want, got := float64(1), res.StructuredContent["total"]; want != got {
		t.Fatalf("unexpected structured total: want %v got %v", want, got)
	}
}

func TestSearchValidationError(t *testing.T) {
	c, fake := newToolkit(t, credentials.Env{Token: "tok"}, nil)
	res := callTool(t, c, "aem_search_assets", `{"searchValue":"x","replaceValue":"y"}`)
	if !res.IsError {
		t.Fatalf("expected an error result")
	}
	if want, got := "ValidationError", res.Meta["errorKind"]; want != got {
		t.Fatalf("unexpected kind: want %v got %v", want, got)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no AEM calls, got %v", fake.calls)
	}
}

func TestUnknownArgumentRejected(t *testing.T) {
	c, _ := newToolkit(t, credentials.Env{Token: "tok"}, nil)
	res := callTool(t, c, "aem_list_sites", `{"bogus":true}`)
	if !res.IsError {
		t.Fatalf("expected strict argument decoding")
	}
}

func TestResourcesAndPrompts(t *testing.T) {
	rc := mcpservice.NewResourcesContainer(Resources())
	for _, uri := range []string{SitesGuideURI, SearchGuideURI} {
		contents, err := rc.ReadResource(context.Background(), uri)
		if err != nil {
			t.Fatalf("ReadResource(%s): %v", uri, err)
		}
		if len(contents) != 1 || !strings.HasPrefix(contents[0].Text, "# ") {
			t.Fatalf("unexpected contents for %s: %+v", uri, contents)
		}
	}

	pc := mcpservice.NewPromptsContainer(Prompts()...)
	res, err := pc.GetPrompt(context.Background(), &mcp.GetPromptRequestReceived{
		Name:      "provision_microsite",
		Arguments: map[string]string{"siteTitle": "Spring", "pages": "home, news"},
	})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if msg := res.Messages[0].Content.Text; !strings.Contains(msg, "pages home, news") {
		t.Fatalf("unexpected prompt text %q", msg)
	}

	if _, err := pc.GetPrompt(context.Background(), &mcp.GetPromptRequestReceived{Name: "redact_asset_metadata"}); err == nil {
		t.Fatalf("expected missing searchValue to be rejected")
	}
	res, err = pc.GetPrompt(context.Background(), &mcp.GetPromptRequestReceived{
		Name:      "redact_asset_metadata",
		Arguments: map[string]string{"searchValue": "Ford"},
	})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if msg := res.Messages[0].Content.Text; !strings.Contains(msg, `replaceValue "[REDACTED]"`) {
		t.Fatalf("unexpected prompt text %q", msg)
	}
}

func TestSearchFailureSuggestsOtherScheme(t *testing.T) {
	for _, tc := range []struct {
		name    string
		env     credentials.Env
		status  int
		scheme  string
		suggest string
	}{
		{name: "bearer rejected", env: credentials.Env{Token: "tok"}, status: http.StatusUnauthorized, scheme: "bearer", suggest: "AEM_USERNAME"},
		{name: "bearer server error", env: credentials.Env{Token: "tok"}, status: http.StatusInternalServerError, scheme: "bearer", suggest: "basic auth"},
		{name: "basic rejected", env: credentials.Env{Username: "admin", Password: "admin"}, status: http.StatusForbidden, scheme: "basic", suggest: "AEM_TOKEN"},
		{name: "basic server error", env: credentials.Env{Username: "admin", Password: "admin"}, status: http.StatusInternalServerError, scheme: "basic", suggest: "access token"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newToolkit(t, tc.env, map[string]http.HandlerFunc{
				"GET /bin/querybuilder.json": status(tc.status, "denied"),
			})
			res := callTool(t, c, "aem_search_assets", `{"query":"ford"}`)
			if !res.IsError {
				t.Fatalf("expected an error result")
			}
			if want, got := "SearchError", res.Meta["errorKind"]; want != got {
				t.Fatalf("unexpected kind: want %v got %v", want, got)
			}
			if want, got := tc.scheme, res.Meta["authScheme"]; want != got {
				t.Fatalf("unexpected scheme: want %v got %v", want, got)
			}
			hint, _ := res.Meta["remediation"].(string)
			if !strings.Contains(hint, tc.suggest) {
				t.Fatalf("expected %q in hint %q", tc.suggest, hint)
			}
		})
	}
}

func TestSearchRemediationBySchemeDiffers(t *testing.T) {
	err := &aem.Error{Kind: aem.KindSearch, Status: http.StatusInternalServerError}
	bearer, basic := remediation(err, "bearer"), remediation(err, "basic")
	if bearer == basic {
		t.Fatalf("expected scheme-specific advice, got %q for both", bearer)
	}
	if strings.Contains(basic, "only accept basic auth") {
		t.Fatalf("basic users should not be told to switch to basic: %q", basic)
	}
}
