// Package serverless runs one MCP exchange per function invocation.
//
// A host such as a function URL delivers a single request object and expects
// a single response object back. Adapter turns that object into an
// *http.Request, lets a freshly built streamable HTTP handler write into a
// BufferedSink, and returns the buffered response. Nothing is kept between
// invocations.
package serverless

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/internal/jsonrpc"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
	"github.com/google/uuid"
)

// DefaultCompletionDelay is the settle time after the transport's terminal
// write before the buffered response is read.
const DefaultCompletionDelay = 10 * time.Millisecond

const sessionIDHeader = "Mcp-Session-Id"

// CORS preflight answer.
const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Content-Type, Accept, Authorization, Mcp-Session-Id, Mcp-Protocol-Version, Last-Event-ID"
	corsExposeHeaders = "Mcp-Session-Id, Mcp-Protocol-Version"
	corsMaxAge        = "86400"
)

// Invocation is one inbound request from the host.
type Invocation struct {
	Method          string            `json:"httpMethod"`
	Path            string            `json:"path"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
	// SessionID, when set, takes precedence over the Mcp-Session-Id header.
	SessionID string `json:"sessionId,omitempty"`
}

// HandlerFactory builds the MCP server and its transport for one
// invocation. The returned handler is discarded afterwards.
type HandlerFactory func(ctx context.Context) (http.Handler, error)

// Info identifies the server in health responses.
type Info struct {
	Name    string
	Version string
}

// Adapter drives exchanges. It holds configuration only.
type Adapter struct {
	factory         HandlerFactory
	info            Info
	debug           bool
	completionDelay time.Duration
	log             *slog.Logger
	now             func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. A nil logger discards.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.log = logctx.Wrap(l) }
}

// WithDebug includes stack traces in internal error responses.
func WithDebug(debug bool) Option {
	return func(a *Adapter) { a.debug = debug }
}

// WithCompletionDelay overrides DefaultCompletionDelay.
func WithCompletionDelay(d time.Duration) Option {
	return func(a *Adapter) { a.completionDelay = d }
}

// WithInfo sets the name and version reported by health checks.
func WithInfo(info Info) Option {
	return func(a *Adapter) { a.info = info }
}

// WithClock overrides the health timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter returns an Adapter that builds a handler per invocation with
// factory.
func NewAdapter(factory HandlerFactory, opts ...Option) *Adapter {
	a := &Adapter{
		factory:         factory,
		info:            Info{Name: "aem-mcp-server", Version: "dev"},
		completionDelay: DefaultCompletionDelay,
		log:             logctx.Wrap(nil),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle answers one invocation. It never returns an error: every failure
// becomes an HTTP status with a JSON-RPC error body.
func (a *Adapter) Handle(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	method := strings.ToUpper(strings.TrimSpace(inv.Method))
	sessionID := inv.SessionID
	if sessionID == "" {
		sessionID = headerValue(inv.Headers, sessionIDHeader)
	}
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
		RequestID: uuid.NewString(),
		Method:    method,
		Path:      inv.Path,
		SessionID: sessionID,
		UserAgent: headerValue(inv.Headers, "User-Agent"),
	})

	var res Result
	switch method {
	case http.MethodGet:
		res = a.health()
	case http.MethodOptions:
		res = Result{StatusCode: http.StatusOK, Headers: map[string]string{}}
	case http.MethodPost:
		res = a.exchange(ctx, inv, sessionID)
	default:
		res = errorResult(http.StatusMethodNotAllowed, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeServerError, "Method not allowed: "+method, nil))
		res.Headers["Allow"] = corsAllowMethods
	}
	addCORS(res.Headers)

	a.log.InfoContext(ctx, "serverless.invocation.done",
		slog.Int("status", res.StatusCode),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return res
}

func (a *Adapter) health() Result {
	body, _ := json.Marshal(map[string]string{
		"status":    "healthy",
		"server":    a.info.Name,
		"version":   a.info.Version,
		"transport": "streamable-http",
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
	return Result{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func (a *Adapter) exchange(ctx context.Context, inv Invocation, sessionID string) Result {
	body, err := DecodeBody(inv.Body, inv.IsBase64Encoded)
	if err != nil {
		a.log.WarnContext(ctx, "serverless.decode_body.fail", slog.String("err", err.Error()))
		return a.internalError(fmt.Errorf("parse request body: %w", err), nil)
	}

	path := inv.Path
	if path == "" {
		path = "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return a.internalError(err, nil)
	}
	for k, v := range inv.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(sessionIDHeader, sessionID)
	}

	h, err := a.factory(ctx)
	if err != nil {
		a.log.ErrorContext(ctx, "serverless.factory.fail", slog.String("err", err.Error()))
		return a.internalError(err, nil)
	}

	sink := NewBufferedSink()
	done := make(chan any, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- panicError{value: p, stack: debug.Stack()}
				return
			}
			done <- nil
		}()
		h.ServeHTTP(sink, req)
	}()

	select {
	case v := <-done:
		if pe, ok := v.(panicError); ok {
			a.log.ErrorContext(ctx, "serverless.exchange.panic", slog.Any("panic", pe.value))
			return a.internalError(fmt.Errorf("panic: %v", pe.value), pe.stack)
		}
	case <-ctx.Done():
		a.log.WarnContext(ctx, "serverless.exchange.cancelled", slog.String("err", ctx.Err().Error()))
		return a.internalError(ctx.Err(), nil)
	}

	if a.completionDelay > 0 {
		t := time.NewTimer(a.completionDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	return sink.Finalize()
}

type panicError struct {
	value any
	stack []byte
}

// internalError renders a -32603 response. The stack is only included in
// debug mode.
func (a *Adapter) internalError(err error, stack []byte) Result {
	var data any
	if a.debug {
		d := map[string]string{"error": err.Error()}
		if stack == nil {
			stack = debug.Stack()
		}
		d["stack"] = string(stack)
		data = d
	}
	return errorResult(http.StatusInternalServerError, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInternalError, "Internal error", data))
}

func errorResult(status int, resp *jsonrpc.Response) Result {
	body, _ := json.Marshal(resp)
	return Result{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// DecodeBody returns the JSON payload of an invocation body. Hosts do not
// always set isBase64Encoded truthfully, so the flagged encoding is tried
// first and the other one is the fallback.
func DecodeBody(body string, isBase64 bool) ([]byte, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, fmt.Errorf("empty body")
	}
	fromBase64 := func() ([]byte, bool) {
		decoded, err := base64.StdEncoding.DecodeString(trimmed)
		return decoded, err == nil && json.Valid(decoded)
	}
	fromPlain := func() ([]byte, bool) {
		return []byte(trimmed), json.Valid([]byte(trimmed))
	}
	order := [2]func() ([]byte, bool){fromPlain, fromBase64}
	if isBase64 {
		order = [2]func() ([]byte, bool){fromBase64, fromPlain}
	}
	for _, try := range order {
		if b, ok := try(); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("body is neither base64-encoded JSON nor JSON")
}

func addCORS(h map[string]string) {
	h["Access-Control-Allow-Origin"] = "*"
	h["Access-Control-Allow-Methods"] = corsAllowMethods
	h["Access-Control-Allow-Headers"] = corsAllowHeaders
	h["Access-Control-Expose-Headers"] = corsExposeHeaders
	h["Access-Control-Max-Age"] = corsMaxAge
}

// headerValue looks a header up case-insensitively.
func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
