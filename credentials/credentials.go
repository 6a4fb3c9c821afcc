// Package credentials decides which endpoint and authentication scheme a
// single AEM call uses. Resolution is a pure function of per-call
// parameters, an environment snapshot and a host policy.
package credentials

import (
	"net/http"
	"strings"
)

// DefaultEndpoint is used when neither the call nor the environment names one.
const DefaultEndpoint = "http://localhost:4502"

// Scheme names an authentication scheme.
type Scheme string

const (
	SchemeBearer Scheme = "bearer"
	SchemeBasic  Scheme = "basic"
)

// Credentials is one of BearerToken or BasicAuth. The unexported method
// keeps the set closed.
type Credentials interface {
	// Apply sets the Authorization header on req.
	Apply(req *http.Request)
	Scheme() Scheme
	sealed()
}

// BearerToken authenticates with an access token.
type BearerToken struct {
	Token string
}

func (b BearerToken) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+b.Token)
}

func (BearerToken) Scheme() Scheme { return SchemeBearer }
func (BearerToken) sealed()        {}

// String redacts the token.
func (b BearerToken) String() string { return "Bearer " + redact(b.Token) }

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}

func (BasicAuth) Scheme() Scheme { return SchemeBasic }
func (BasicAuth) sealed()        {}

// String redacts the password.
func (b BasicAuth) String() string { return "Basic " + b.Username + ":" + redact(b.Password) }

func redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", 6) + s[len(s)-2:]
}

var (
	_ Credentials = BearerToken{}
	_ Credentials = BasicAuth{}
)
