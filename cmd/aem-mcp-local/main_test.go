package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/aem-mcp-server-go/internal/app"
	"github.com/ggoodman/aem-mcp-server-go/internal/config"
)

func TestRouter(t *testing.T) {
	a, err := app.New(config.Config{ServerName: "aem-local", LogLevel: "error"}, io.Discard, "test")
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	srv := httptest.NewServer(newRouter(a))
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if want, got := http.StatusOK, res.StatusCode; want != got {
		t.Fatalf("unexpected status: want %d got %d", want, got)
	}
	if !strings.Contains(string(body), `"server":"aem-local"`) {
		t.Fatalf("unexpected health body %s", body)
	}

	res, err = http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	if want, got := http.StatusOK, res.StatusCode; want != got {
		t.Fatalf("unexpected status: want %d got %d (%s)", want, got, body)
	}
	if !strings.Contains(string(body), `"result"`) || strings.Contains(string(body), `"error"`) {
		t.Fatalf("unexpected ping body %s", body)
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	if err := run([]string{"--bogus"}); err == nil {
		t.Fatalf("expected an unknown flag to fail")
	}
}
