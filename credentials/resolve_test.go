package credentials

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestResolve(t *testing.T) {
	policy := DefaultPolicy()
	cloud := "https://author-p1-e2.adobeaemcloud.com"

	tests := []struct {
		name       string
		params     Params
		env        Env
		policy     Policy
		wantScheme Scheme
		wantHost   string
	}{
		{
			name:       "token only",
			env:        Env{Token: "tok"},
			policy:     policy,
			wantScheme: SchemeBearer,
			wantHost:   DefaultEndpoint,
		},
		{
			name:       "basic without token",
			env:        Env{Username: "admin", Password: "admin"},
			policy:     policy,
			wantScheme: SchemeBasic,
			wantHost:   DefaultEndpoint,
		},
		{
			name:       "token preferred on non-cloud host",
			params:     Params{Endpoint: "http://aem.internal:4502"},
			env:        Env{Token: "tok", Username: "u", Password: "p"},
			policy:     policy,
			wantScheme: SchemeBearer,
			wantHost:   "http://aem.internal:4502",
		},
		{
			name:       "basic preferred on managed cloud",
			params:     Params{Endpoint: cloud},
			env:        Env{Token: "tok", Username: "u", Password: "p"},
			policy:     policy,
			wantScheme: SchemeBasic,
			wantHost:   cloud,
		},
		{
			name:       "policy can disable the managed cloud preference",
			params:     Params{Endpoint: cloud},
			env:        Env{Token: "tok", Username: "u", Password: "p"},
			policy:     Policy{ManagedCloudHosts: DefaultManagedCloudHosts},
			wantScheme: SchemeBearer,
			wantHost:   cloud,
		},
		{
			name:       "server alias beats env url",
			params:     Params{ServerAlias: "http://alias:4502/", Token: "tok"},
			env:        Env{URL: "http://env:4502"},
			policy:     policy,
			wantScheme: SchemeBearer,
			wantHost:   "http://alias:4502",
		},
		{
			name:       "params override env",
			params:     Params{Username: "u", Password: "p"},
			env:        Env{URL: "http://env:4502"},
			policy:     policy,
			wantScheme: SchemeBasic,
			wantHost:   "http://env:4502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.params, tt.env, tt.policy)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if want, got := tt.wantScheme, res.Credentials.Scheme(); want != got {
				t.Fatalf("unexpected scheme: want %q got %q", want, got)
			}
			if want, got := tt.wantHost, res.Endpoint; want != got {
				t.Fatalf("unexpected endpoint: want %q got %q", want, got)
			}
		})
	}
}

func TestResolveMissing(t *testing.T) {
	_, err := Resolve(Params{}, Env{Password: "x"}, DefaultPolicy())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if want, got := "AEM_TOKEN,AEM_USERNAME", strings.Join(cfgErr.Missing, ","); want != got {
		t.Fatalf("unexpected missing list: want %q got %q", want, got)
	}
	if !strings.Contains(cfgErr.Detail(), "AEM_PASSWORD") {
		t.Fatalf("expected remediation hints in detail: %s", cfgErr.Detail())
	}
}

func TestApply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://x", nil)
	BearerToken{Token: "abc"}.Apply(req)
	if want, got := "Bearer abc", req.Header.Get("Authorization"); want != got {
		t.Fatalf("unexpected header: want %q got %q", want, got)
	}
	req, _ = http.NewRequest(http.MethodGet, "http://x", nil)
	BasicAuth{Username: "u", Password: "p"}.Apply(req)
	if u, p, ok := req.BasicAuth(); !ok || u != "u" || p != "p" {
		t.Fatalf("unexpected basic auth: %q %q %v", u, p, ok)
	}
	if s := (BasicAuth{Username: "u", Password: "supersecret"}).String(); strings.Contains(s, "supersecret") {
		t.Fatalf("password leaked: %s", s)
	}
}

func TestTokenExpiryWarning(t *testing.T) {
	sign := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	now := time.Now()

	if w := tokenExpiryWarning(sign(now.Add(-time.Hour)), now); !strings.Contains(w, "expired") {
		t.Fatalf("expected expired warning, got %q", w)
	}
	if w := tokenExpiryWarning(sign(now.Add(time.Minute)), now); !strings.Contains(w, "expires") {
		t.Fatalf("expected expiring warning, got %q", w)
	}
	if w := tokenExpiryWarning(sign(now.Add(24*time.Hour)), now); w != "" {
		t.Fatalf("unexpected warning: %q", w)
	}
	if w := tokenExpiryWarning("opaque-token", now); w != "" {
		t.Fatalf("unexpected warning for opaque token: %q", w)
	}

	res, err := Resolve(Params{Token: sign(now.Add(-time.Hour))}, Env{}, DefaultPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected a warning, got %v", res.Warnings)
	}
}

func TestPolicy(t *testing.T) {
	p, err := ParsePolicy([]byte("managed_cloud_hosts:\n  - \"*.example.test\"\nprefer_basic_on_managed_cloud: false\n"))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p.PreferBasicOnManagedCloud {
		t.Fatalf("expected preference disabled")
	}
	if !p.IsManagedCloud("https://author.example.test") {
		t.Fatalf("expected custom pattern to match")
	}
	if p.IsManagedCloud("https://author-p1.adobeaemcloud.com") {
		t.Fatalf("default patterns should be replaced")
	}

	p, err = ParsePolicy([]byte("{}"))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if !p.PreferBasicOnManagedCloud || !p.IsManagedCloud("author-p1-e2.adobeaemcloud.com") {
		t.Fatalf("empty document should keep defaults: %+v", p)
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("prefer_basic_on_managed_cloud: false\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err = LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.PreferBasicOnManagedCloud {
		t.Fatalf("expected preference disabled from file")
	}
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
