package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeDAM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/bin/querybuilder.json":
			if want, got := "/content/dam/cars", r.URL.Query().Get("path"); want != got {
				t.Errorf("unexpected path predicate: want %q got %q", want, got)
			}
			_, _ = w.Write([]byte(`{"success":true,"total":1,"hits":[{"path":"/content/dam/cars/focus.jpg","name":"focus.jpg"}]}`))
		case "/content/dam/cars/focus.jpg/jcr:content/metadata.json":
			_, _ = w.Write([]byte(`{"dc:title":"Ford Focus","dc:description":"Blue hatchback"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunPrintsPreview(t *testing.T) {
	srv := fakeDAM(t)
	t.Setenv("AEM_URL", srv.URL)
	t.Setenv("AEM_TOKEN", "tok")
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--query", "ford", "--damPath", "/content/dam/cars", "--searchValue", "Ford", "--replaceValue", "Acme"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (%s)", err, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"1 asset(s) matched",
		"1. Acme Focus",
		"/content/dam/cars/focus.jpg",
		"Blue hatchback",
		"~ dc:title: [-Ford-]{+Acme+} Focus",
		"nothing was written",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunRequiresReplaceValue(t *testing.T) {
	srv := fakeDAM(t)
	t.Setenv("AEM_URL", srv.URL)
	t.Setenv("AEM_TOKEN", "tok")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--query", "ford", "--searchValue", "Ford"}, &stdout, &stderr)
	if err == nil {
		t.Fatalf("expected searchValue without replaceValue to fail")
	}
}
