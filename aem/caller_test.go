package aem

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ggoodman/aem-mcp-server-go/credentials"
)

const slingErrorPage = `<html><head><title>Error while processing /content/x</title></head>
<body><h1>Error while processing /content/x</h1>
<table><tbody>
<tr><td>Status</td><td><div id="Status">500</div></td></tr>
<tr><td>Message</td><td><div id="Message">javax.jcr.ItemExistsException: Item already exists</div></td></tr>
</tbody></table></body></html>`

func TestCallerAppliesCredentials(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jcr:primaryType":"cq:Page"}`))
	}))
	defer srv.Close()

	c := &Caller{Endpoint: srv.URL + "/", Credentials: credentials.BearerToken{Token: "tok"}}
	var out map[string]any
	if err := c.GetJSON(context.Background(), "/content/site.json", nil, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if want, got := "Bearer tok", gotAuth; want != got {
		t.Fatalf("unexpected auth header: want %q got %q", want, got)
	}
	if want, got := "cq:Page", out["jcr:primaryType"]; want != got {
		t.Fatalf("unexpected body: want %q got %v", want, got)
	}
}

func TestCallerDoesNotFollowPostRedirects(t *testing.T) {
	var followed bool
	mux := http.NewServeMux()
	mux.HandleFunc("/content/site", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, r *http.Request) {
		followed = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Caller{Endpoint: srv.URL}
	resp, err := c.PostForm(context.Background(), "/content/site", url.Values{"a": {"b"}})
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	if want, got := http.StatusFound, resp.Status; want != got {
		t.Fatalf("unexpected status: want %d got %d", want, got)
	}
	if followed {
		t.Fatalf("redirect should not be followed for POST")
	}
}

func TestCallerExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/content/dam/a.png.json":
			_, _ = w.Write([]byte(`{}`))
		case "/content/dam/forbidden.png.json":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Caller{Endpoint: srv.URL}
	ctx := context.Background()

	if ok, err := c.Exists(ctx, "/content/dam/a.png"); err != nil || !ok {
		t.Fatalf("expected existing asset, got %v %v", ok, err)
	}
	if ok, err := c.Exists(ctx, "/content/dam/b.png"); err != nil || ok {
		t.Fatalf("expected missing asset, got %v %v", ok, err)
	}
	if _, err := c.Exists(ctx, "/content/dam/forbidden.png"); err == nil {
		t.Fatalf("expected error for ambiguous probe")
	}
}

func TestStatusErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusInternalServerError, ErrProvisioning},
	}
	for _, tt := range tests {
		err := StatusError(KindProvisioning, "create", &Response{Status: tt.status})
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got kind %v", tt.status, tt.want, err.Kind)
		}
		if want, got := tt.status, StatusOf(err); want != got {
			t.Fatalf("unexpected status: want %d got %d", want, got)
		}
	}

	wrapped := Wrap(KindProvisioning, "create site", &Error{Kind: KindTransport, Status: 502, Message: "bad gateway"})
	if !errors.Is(wrapped, ErrProvisioning) || !errors.Is(wrapped, ErrTransport) {
		t.Fatalf("wrapped error should match both kinds")
	}
	if want, got := "create site: bad gateway", wrapped.Error(); want != got {
		t.Fatalf("unexpected message: want %q got %q", want, got)
	}
}

func TestResponseMessage(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{
			name: "sling html",
			resp: &Response{Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte(slingErrorPage)},
			want: "javax.jcr.ItemExistsException: Item already exists",
		},
		{
			name: "sling json",
			resp: &Response{Body: []byte(`{"status.code":409,"status.message":"Conflict","error":{"message":"OakState0001: Unresolved conflicts"}}`)},
			want: "OakState0001: Unresolved conflicts",
		},
		{
			name: "plain text",
			resp: &Response{Body: []byte("  nope \n")},
			want: "nope",
		},
		{
			name: "sling html without message",
			resp: &Response{Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte(`<html><head><title>Forbidden</title></head><body><div id="Status">403</div></body></html>`)},
			want: "status 403: Forbidden",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResponseMessage(tt.resp); got != tt.want {
				t.Fatalf("unexpected message: want %q got %q", tt.want, got)
			}
		})
	}
}

func TestResponseMessageTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxMessageLen-1) + "é and more"
	got := ResponseMessage(&Response{Body: []byte(body)})
	if !utf8.ValidString(got) {
		t.Fatalf("truncated message is not valid UTF-8: %q", got[len(got)-8:])
	}
	if want := strings.Repeat("a", maxMessageLen-1) + "..."; got != want {
		t.Fatalf("unexpected truncation: got suffix %q", got[len(got)-8:])
	}
}
