package assets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/credentials"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Body   string
}

type fakeDAM struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]http.HandlerFunc
}

func (f *fakeDAM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
	if r.Header.Get("Content-Type") == "application/json" {
		b, _ := io.ReadAll(r.Body)
		rec.Body = string(b)
	} else {
		_ = r.ParseForm()
		rec.Form = r.PostForm
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	h := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func reply(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(body, "{") {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

func newFakeDAM(t *testing.T, creds credentials.Credentials, routes map[string]http.HandlerFunc) (*Client, *fakeDAM) {
	t.Helper()
	fake := &fakeDAM{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(&aem.Caller{Endpoint: srv.URL, Credentials: creds}), fake
}

func (f *fakeDAM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

const hitsBody = `{"success":true,"results":3,"total":42,"offset":0,"hits":[
	{"path":"/content/dam/cars/focus.jpg","name":"focus.jpg"},
	{"path":"/content/dam/cars/locked.jpg","name":"locked.jpg"},
	{"path":"/content/dam/cars/gone.jpg"}
]}`

func searchRoutes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /bin/querybuilder.json":                                 reply(http.StatusOK, hitsBody),
		"GET /content/dam/cars/focus.jpg/jcr:content/metadata.json":  reply(http.StatusOK, `{"dc:title":"Ford Focus, ford van","dc:subject":["ford"]}`),
		"GET /content/dam/cars/locked.jpg/jcr:content/metadata.json": reply(http.StatusForbidden, "denied"),
	}
}

func TestSearchAssets(t *testing.T) {
	c, fake := newFakeDAM(t, credentials.BearerToken{Token: "t"}, searchRoutes())

	res, err := c.SearchAssets(context.Background(), SearchQuery{GeneralQuery: "ford", Limit: 3})
	if err != nil {
		t.Fatalf("SearchAssets: %v", err)
	}
	if res.Total != 42 || res.Count != 3 || res.Limit != 3 || res.Offset != 0 {
		t.Fatalf("unexpected paging: %+v", res)
	}
	if want, got := "Ford Focus, ford van", res.Results[0].Title; want != got {
		t.Fatalf("unexpected title: want %q got %q", want, got)
	}
	if want, got := "locked.jpg", res.Results[1].Title; want != got {
		t.Fatalf("denied metadata should fall back to name: want %q got %q", want, got)
	}
	if len(res.Results[1].Metadata) != 0 {
		t.Fatalf("expected empty metadata, got %v", res.Results[1].Metadata)
	}
	if want, got := "gone.jpg", res.Results[2].Name; want != got {
		t.Fatalf("name should fall back to basename: want %q got %q", want, got)
	}
	if !strings.HasSuffix(res.Results[0].URL, "/content/dam/cars/focus.jpg") {
		t.Fatalf("unexpected url: %s", res.Results[0].URL)
	}

	q := fake.requests[0].Query
	if want, got := "3", q.Get("p.limit"); want != got {
		t.Fatalf("unexpected limit param: want %q got %q", want, got)
	}
}

func TestSearchAssetsReplace(t *testing.T) {
	c, fake := newFakeDAM(t, credentials.BearerToken{Token: "t"}, searchRoutes())

	res, err := c.SearchAssets(context.Background(), SearchQuery{
		GeneralQuery: "ford",
		SearchValue:  strPtr("ford"),
		ReplaceValue: strPtr("Acme"),
	})
	if err != nil {
		t.Fatalf("SearchAssets: %v", err)
	}
	first := res.Results[0]
	if want, got := "Acme Focus, Acme van", first.Title; want != got {
		t.Fatalf("title should be refreshed from replaced metadata: want %q got %q", want, got)
	}
	if want, got := 2, len(first.Changes); want != got {
		t.Fatalf("unexpected change count: want %d got %d", want, got)
	}
	for _, r := range fake.requests {
		if r.Method != http.MethodGet {
			t.Fatalf("replacement must not write back, saw %s %s", r.Method, r.Path)
		}
	}
}

func TestSearchAssetsQueryFailure(t *testing.T) {
	c, _ := newFakeDAM(t, credentials.BearerToken{Token: "t"}, map[string]http.HandlerFunc{
		"GET /bin/querybuilder.json": reply(http.StatusUnauthorized, "no"),
	})
	_, err := c.SearchAssets(context.Background(), SearchQuery{Title: "x"})
	if !errors.Is(err, aem.ErrSearch) {
		t.Fatalf("expected search error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bearer") {
		t.Fatalf("expected scheme in message: %v", err)
	}
	if want, got := http.StatusUnauthorized, aem.StatusOf(err); want != got {
		t.Fatalf("unexpected status: want %d got %d", want, got)
	}
}

func TestRenameAsset(t *testing.T) {
	c, fake := newFakeDAM(t, nil, map[string]http.HandlerFunc{
		"GET /content/dam/a/old.png.json": reply(http.StatusOK, `{}`),
		"POST /content/dam/a/old.png":     reply(http.StatusCreated, ""),
	})
	res, err := c.RenameAsset(context.Background(), "/content/dam/a/old.png", "../../etc/new.png")
	if err != nil {
		t.Fatalf("RenameAsset: %v", err)
	}
	if want, got := "/content/dam/a/new.png", res.NewPath; want != got {
		t.Fatalf("unexpected destination: want %q got %q", want, got)
	}
	move := fake.requests[len(fake.requests)-1]
	if move.Form.Get(":operation") != "move" || move.Form.Get(":dest") != "/content/dam/a/new.png" {
		t.Fatalf("unexpected move form: %v", move.Form)
	}
}

func TestRenameAssetRejectsOutsideRoot(t *testing.T) {
	c, fake := newFakeDAM(t, nil, nil)
	for _, p := range []string{"/content/site/page", "/content/dam", "/content/dam/../site/x", "relative/x.png"} {
		if _, err := c.RenameAsset(context.Background(), p, "new.png"); !errors.Is(err, aem.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", p, err)
		}
	}
	if n := fake.count(); n != 0 {
		t.Fatalf("expected no network calls, got %d", n)
	}
}

func TestRenameAssetProbes(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		c, _ := newFakeDAM(t, nil, nil)
		if _, err := c.RenameAsset(context.Background(), "/content/dam/a/old.png", "new.png"); !errors.Is(err, aem.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
	t.Run("existing destination", func(t *testing.T) {
		c, _ := newFakeDAM(t, nil, map[string]http.HandlerFunc{
			"GET /content/dam/a/old.png.json": reply(http.StatusOK, `{}`),
			"GET /content/dam/a/new.png.json": reply(http.StatusOK, `{}`),
		})
		if _, err := c.RenameAsset(context.Background(), "/content/dam/a/old.png", "new.png"); !errors.Is(err, aem.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})
	t.Run("ambiguous destination probe", func(t *testing.T) {
		c, fake := newFakeDAM(t, nil, map[string]http.HandlerFunc{
			"GET /content/dam/a/old.png.json": reply(http.StatusOK, `{}`),
			"GET /content/dam/a/new.png.json": reply(http.StatusForbidden, "denied"),
			"POST /content/dam/a/old.png":     reply(http.StatusCreated, ""),
		})
		if _, err := c.RenameAsset(context.Background(), "/content/dam/a/old.png", "new.png"); err != nil {
			t.Fatalf("ambiguous probe should not block the move: %v", err)
		}
		if want, got := 3, fake.count(); want != got {
			t.Fatalf("unexpected request count: want %d got %d", want, got)
		}
	})
}

func TestUpdateAssetMetadata(t *testing.T) {
	const md = "/content/dam/a/x.png/jcr:content/metadata"
	current := `{"jcr:primaryType":"nt:unstructured","dc:title":"Old","dc:subject":["a"],"custom":"drop"}`

	t.Run("merge", func(t *testing.T) {
		c, fake := newFakeDAM(t, nil, map[string]http.HandlerFunc{
			"GET " + md + ".json": reply(http.StatusOK, current),
			"POST " + md:          reply(http.StatusOK, ""),
		})
		res, err := c.UpdateAssetMetadata(context.Background(), UpdateMetadataRequest{
			AssetPath: "/content/dam/a/x.png",
			Metadata:  map[string]any{"dc:subject": []any{"b"}, "dc:title": "New"},
		})
		if err != nil {
			t.Fatalf("UpdateAssetMetadata: %v", err)
		}
		if res.Mode != ModeMerge || len(res.Removed) != 0 {
			t.Fatalf("unexpected result: %+v", res)
		}
		form := fake.requests[1].Form
		if want, got := "a,b", strings.Join(form["dc:subject"], ","); want != got {
			t.Fatalf("unexpected subjects: want %q got %q", want, got)
		}
		if _, ok := form["custom@Delete"]; ok {
			t.Fatalf("merge must not delete properties")
		}
	})

	t.Run("replace", func(t *testing.T) {
		c, fake := newFakeDAM(t, nil, map[string]http.HandlerFunc{
			"GET " + md + ".json": reply(http.StatusOK, current),
			"POST " + md:          reply(http.StatusPreconditionFailed, ""),
		})
		res, err := c.UpdateAssetMetadata(context.Background(), UpdateMetadataRequest{
			AssetPath: "/content/dam/a/x.png",
			Metadata:  map[string]any{"dc:title": "New"},
			Mode:      ModeReplace,
		})
		if err != nil {
			t.Fatalf("412 should be a soft success: %v", err)
		}
		if !res.Unchanged {
			t.Fatalf("expected unchanged flag")
		}
		form := fake.requests[1].Form
		if _, ok := form["custom@Delete"]; !ok {
			t.Fatalf("replace should delete absent user properties: %v", form)
		}
		if _, ok := form["jcr:primaryType@Delete"]; ok {
			t.Fatalf("replace must keep system properties")
		}
	})

	t.Run("failure", func(t *testing.T) {
		c, _ := newFakeDAM(t, nil, map[string]http.HandlerFunc{
			"GET " + md + ".json": reply(http.StatusOK, current),
			"POST " + md:          reply(http.StatusForbidden, "denied"),
		})
		_, err := c.UpdateAssetMetadata(context.Background(), UpdateMetadataRequest{
			AssetPath: "/content/dam/a/x.png",
			Metadata:  map[string]any{"dc:title": "New"},
		})
		if !errors.Is(err, aem.ErrProvisioning) {
			t.Fatalf("expected provisioning error, got %v", err)
		}
	})
}

func TestStartWorkflow(t *testing.T) {
	c, fake := newFakeDAM(t, nil, map[string]http.HandlerFunc{
		"POST /etc/workflow/instances": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "http://aem/etc/workflow/instances/server0/2026-10-19/abc")
			w.WriteHeader(http.StatusCreated)
		},
	})
	inst, err := c.StartWorkflow(context.Background(), "/var/workflow/models/dam/update_asset", "/content/dam/a/x.png")
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if want, got := "/etc/workflow/instances/server0/2026-10-19/abc", inst.Instance; want != got {
		t.Fatalf("unexpected instance: want %q got %q", want, got)
	}
	form := fake.requests[0].Form
	if form.Get("payloadType") != "JCR_PATH" || form.Get("payload") != "/content/dam/a/x.png" {
		t.Fatalf("unexpected form: %v", form)
	}

	if _, err := c.StartWorkflow(context.Background(), "relative", "/content/dam/a"); !errors.Is(err, aem.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateContentFragment(t *testing.T) {
	c, fake := newFakeDAM(t, nil, map[string]http.HandlerFunc{
		"POST /api/assets/site/fragments/spring-launch": reply(http.StatusCreated, `{"class":["assets/asset"]}`),
	})
	cf, err := c.CreateContentFragment(context.Background(), ContentFragmentConfig{
		ParentPath: "/content/dam/site/fragments",
		Title:      "Spring Launch",
		ModelPath:  "/conf/site/settings/dam/cfm/models/article",
		Elements:   map[string]any{"body": "Hello"},
	})
	if err != nil {
		t.Fatalf("CreateContentFragment: %v", err)
	}
	if want, got := "/content/dam/site/fragments/spring-launch", cf.Path; want != got {
		t.Fatalf("unexpected path: want %q got %q", want, got)
	}
	body := fake.requests[0].Body
	if !strings.Contains(body, `"cq:model":"/conf/site/settings/dam/cfm/models/article"`) || !strings.Contains(body, `"body":{"value":"Hello"}`) {
		t.Fatalf("unexpected body: %s", body)
	}
}
