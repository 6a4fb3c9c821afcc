package serverless

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxInvocationBody bounds request bodies converted from net/http.
const maxInvocationBody = 6 << 20

// FromHTTPRequest converts a plain HTTP request into an Invocation so a
// regular server can drive the same Adapter a function host does.
// Multi-valued headers are joined with ", ".
func FromHTTPRequest(r *http.Request) (Invocation, error) {
	inv := Invocation{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: make(map[string]string, len(r.Header)),
	}
	for k, v := range r.Header {
		inv.Headers[k] = strings.Join(v, ", ")
	}
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxInvocationBody))
		if err != nil {
			return inv, fmt.Errorf("read request body: %w", err)
		}
		inv.Body = string(b)
	}
	return inv, nil
}

// WriteResult copies res onto w.
func WriteResult(w http.ResponseWriter, res Result) {
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(res.StatusCode)
	_, _ = io.WriteString(w, res.Body)
}

// ServeHTTP lets an Adapter sit behind any net/http router.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inv, err := FromHTTPRequest(r)
	if err != nil {
		WriteResult(w, a.internalError(err, nil))
		return
	}
	WriteResult(w, a.Handle(r.Context(), inv))
}
