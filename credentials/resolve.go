package credentials

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Environment variable names consulted as fallbacks beneath per-call
// parameters.
const (
	EnvURL      = "AEM_URL"
	EnvToken    = "AEM_TOKEN"
	EnvUsername = "AEM_USERNAME"
	EnvPassword = "AEM_PASSWORD"
)

// Params are the per-call overrides a tool invocation may carry.
type Params struct {
	Endpoint    string
	ServerAlias string
	Token       string
	Username    string
	Password    string
}

// Env is a snapshot of the relevant process environment.
type Env struct {
	URL      string
	Token    string
	Username string
	Password string
}

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	Endpoint    string
	Credentials Credentials
	// Warnings are advisory, e.g. an expired bearer token.
	Warnings []string
}

// ConfigurationError reports that no usable credentials were found.
type ConfigurationError struct {
	Missing []string
	Hints   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("AEM authentication is not configured: missing %s", strings.Join(e.Missing, ", "))
}

// Detail renders the message together with remediation hints.
func (e *ConfigurationError) Detail() string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, h := range e.Hints {
		b.WriteString("\n- ")
		b.WriteString(h)
	}
	return b.String()
}

// expiryWindow is how close to expiry a token must be to draw a warning.
const expiryWindow = 5 * time.Minute

// Resolve picks the endpoint and credentials for one call.
//
// Basic auth wins when both username and password are present and either
// the endpoint is a managed-cloud host that policy says to treat that way,
// or no token is available. Otherwise a token yields bearer credentials.
func Resolve(p Params, env Env, policy Policy) (*Resolved, error) {
	endpoint := firstNonEmpty(p.Endpoint, p.ServerAlias, env.URL, DefaultEndpoint)
	endpoint = strings.TrimRight(endpoint, "/")

	username := firstNonEmpty(p.Username, env.Username)
	password := firstNonEmpty(p.Password, env.Password)
	token := firstNonEmpty(p.Token, env.Token)

	hasBasic := username != "" && password != ""
	if hasBasic && (token == "" || (policy.PreferBasicOnManagedCloud && policy.IsManagedCloud(endpoint))) {
		return &Resolved{Endpoint: endpoint, Credentials: BasicAuth{Username: username, Password: password}}, nil
	}

	if token != "" {
		res := &Resolved{Endpoint: endpoint, Credentials: BearerToken{Token: token}}
		if w := tokenExpiryWarning(token, time.Now()); w != "" {
			res.Warnings = append(res.Warnings, w)
		}
		return res, nil
	}

	cfgErr := &ConfigurationError{}
	for _, v := range []struct{ name, val string }{
		{EnvToken, env.Token},
		{EnvUsername, env.Username},
		{EnvPassword, env.Password},
	} {
		if strings.TrimSpace(v.val) == "" {
			cfgErr.Missing = append(cfgErr.Missing, v.name)
		}
	}
	cfgErr.Hints = []string{
		fmt.Sprintf("Set %s to a bearer access token (AEM as a Cloud Service developer console or service credentials).", EnvToken),
		fmt.Sprintf("Or set both %s and %s for basic authentication.", EnvUsername, EnvPassword),
		"Credentials may also be supplied per call with the token, username and password arguments.",
	}
	return nil, cfgErr
}

// tokenExpiryWarning inspects a JWT without verifying it. Opaque tokens and
// tokens without exp produce no warning.
func tokenExpiryWarning(token string, now time.Time) string {
	if strings.Count(token, ".") != 2 {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ""
	}
	switch {
	case !exp.After(now):
		return fmt.Sprintf("bearer token expired at %s; requests will likely be rejected with 401", exp.UTC().Format(time.RFC3339))
	case exp.Sub(now) < expiryWindow:
		return fmt.Sprintf("bearer token expires at %s", exp.UTC().Format(time.RFC3339))
	}
	return ""
}

// hostOf returns the lower-cased host of endpoint, tolerating bare hosts.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + endpoint)
		if err != nil {
			return ""
		}
	}
	return strings.ToLower(u.Hostname())
}

func matchHost(pattern, host string) bool {
	ok, err := path.Match(strings.ToLower(pattern), host)
	return err == nil && ok
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
