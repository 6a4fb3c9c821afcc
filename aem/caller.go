// Package aem is the authenticated HTTP caller shared by the sites and
// assets clients. It knows how to reach an AEM instance and how to read its
// answers; it knows nothing about sites or assets.
package aem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/credentials"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 16 << 20

// Caller issues authenticated requests against one AEM endpoint.
type Caller struct {
	Endpoint    string
	Credentials credentials.Credentials
	Timeout     time.Duration
	Logger      *slog.Logger

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// NewCaller builds a Caller from a resolution result.
func NewCaller(res *credentials.Resolved, logger *slog.Logger) *Caller {
	return &Caller{
		Endpoint:    res.Endpoint,
		Credentials: res.Credentials,
		Timeout:     DefaultTimeout,
		Logger:      logger,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Request describes one call.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Accept      string
}

func (c *Caller) log() *slog.Logger { return logctx.Wrap(c.Logger) }

// client builds the per-call HTTP client. Only GET follows redirects: the
// Sling POST servlet answers writes with redirects that must not be chased.
func (c *Caller) client() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: c.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 0 && via[0].Method != http.MethodGet {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

// URL joins the endpoint and an absolute repository path.
func (c *Caller) URL(path string, query url.Values) string {
	u := strings.TrimRight(c.Endpoint, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do performs one call and reads the whole body. Non-2xx statuses are not
// errors here; transport failures are returned as KindTransport.
func (c *Caller) Do(ctx context.Context, r Request) (*Response, error) {
	start := time.Now()
	log := c.log().With(slog.String("http_method", r.Method), slog.String("path", r.Path))

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, c.URL(r.Path, r.Query), body)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Op: r.Method + " " + r.Path, Err: err}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	if c.Credentials != nil {
		c.Credentials.Apply(req)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		log.WarnContext(ctx, "aem.call.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return nil, &Error{Kind: KindTransport, Op: r.Method + " " + r.Path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: "read " + r.Path, Status: resp.StatusCode, Err: err}
	}

	log.DebugContext(ctx, "aem.call.ok", slog.Int("status", resp.StatusCode), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// Get issues a GET.
func (c *Caller) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Accept: "application/json"})
}

// GetJSON issues a GET and decodes a 2xx JSON body into out. A 404 maps to
// KindNotFound; any other non-2xx to KindProtocol.
func (c *Caller) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return StatusError(KindProtocol, "GET "+path, resp)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Kind: KindProtocol, Op: "decode " + path, Status: resp.Status, Err: err}
	}
	return nil
}

// Encoder is anything that renders a form body, such as url.Values or a
// slingform.Builder.
type Encoder interface {
	Encode() string
}

// PostForm posts a form-encoded body.
func (c *Caller) PostForm(ctx context.Context, path string, form Encoder) (*Response, error) {
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
		Accept:      "application/json",
	})
}

// PostJSON posts a JSON body.
func (c *Caller) PostJSON(ctx context.Context, path string, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Op: "encode " + path, Err: err}
	}
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: b, ContentType: "application/json", Accept: "application/json"})
}

// Exists probes path with a shallow JSON read. A 404 is a definite no; any
// other non-2xx status is returned as an error because the answer is unknown.
func (c *Caller) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := c.Get(ctx, strings.TrimRight(path, "/")+".json", nil)
	if err != nil {
		return false, err
	}
	switch {
	case resp.OK():
		return true, nil
	case resp.Status == http.StatusNotFound:
		return false, nil
	}
	return false, StatusError(KindProtocol, "probe "+path, resp)
}

// StatusError builds an Error from a non-2xx response. 404 becomes
// KindNotFound and 409 KindConflict regardless of k.
func StatusError(k Kind, op string, resp *Response) *Error {
	switch resp.Status {
	case http.StatusNotFound:
		k = KindNotFound
	case http.StatusConflict:
		k = KindConflict
	}
	msg := ResponseMessage(resp)
	if msg == "" {
		msg = http.StatusText(resp.Status)
	}
	return &Error{Kind: k, Op: op, Status: resp.Status, Message: fmt.Sprintf("%s: %d %s", op, resp.Status, msg)}
}
