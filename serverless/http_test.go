package serverless_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/aem-mcp-server-go/serverless"
)

func TestFromHTTPRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"a":1}`))
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Accept", "text/event-stream")
	req.Header.Set("Mcp-Session-Id", "s1")

	inv, err := serverless.FromHTTPRequest(req)
	if err != nil {
		t.Fatalf("FromHTTPRequest: %v", err)
	}
	if inv.Method != http.MethodPost || inv.Path != "/mcp" || inv.Body != `{"a":1}` {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if want, got := "application/json, text/event-stream", inv.Headers["Accept"]; want != got {
		t.Fatalf("unexpected accept: want %q got %q", want, got)
	}
	if want, got := "s1", inv.Headers["Mcp-Session-Id"]; want != got {
		t.Fatalf("unexpected session: want %q got %q", want, got)
	}
}

func TestAdapterServeHTTP(t *testing.T) {
	var built int32
	srv := httptest.NewServer(serverless.NewAdapter(mcpFactory(&built), serverless.WithCompletionDelay(0)))
	t.Cleanup(srv.Close)

	res, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(initializeBody))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if want, got := http.StatusOK, res.StatusCode; want != got {
		t.Fatalf("unexpected status: want %d got %d", want, got)
	}
	if want, got := "minted", res.Header.Get("Mcp-Session-Id"); want != got {
		t.Fatalf("unexpected session id: want %q got %q", want, got)
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodDelete, srv.URL+"/mcp", nil)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	res2.Body.Close()
	if want, got := http.StatusMethodNotAllowed, res2.StatusCode; want != got {
		t.Fatalf("unexpected status: want %d got %d", want, got)
	}
}
