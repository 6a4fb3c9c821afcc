package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/aem-mcp-server-go/internal/engine"
	"github.com/ggoodman/aem-mcp-server-go/internal/jsonrpc"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
	"github.com/google/uuid"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	responseMediaTypes   = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
)

const (
	MCPSessionIDHeader       = "Mcp-Session-Id"
	MCPProtocolVersionHeader = "Mcp-Protocol-Version"
)

// maxBodyBytes bounds a single inbound JSON-RPC message.
const maxBodyBytes = 4 << 20

// writeJSONError emits a minimal JSON body for HTTP-layer rejections that
// happen before a JSON-RPC message could be read.
// Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// writeRPCError emits a JSON-RPC error envelope with a null id.
func writeRPCError(w http.ResponseWriter, status int, code jsonrpc.ErrorCode, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorResponse(nil, code, msg, nil))
}

// Option configures the Handler.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	sessionID func() string
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSessionIDGenerator overrides how session ids are minted on initialize.
func WithSessionIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.sessionID = fn
		}
	}
}

// Handler serves the POST side of the streamable HTTP transport without
// keeping sessions. Each request is one complete exchange: the message is
// decoded, dispatched through a fresh engine, and answered on the same
// response.
type Handler struct {
	log       *slog.Logger
	srv       mcpservice.ServerCapabilities
	sessionID func() string
}

// New constructs a Handler around server.
func New(server mcpservice.ServerCapabilities, opts ...Option) (*Handler, error) {
	if server == nil {
		return nil, fmt.Errorf("server is required")
	}
	cfg := config{sessionID: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{log: logctx.Wrap(cfg.logger), srv: server, sessionID: cfg.sessionID}, nil
}

// lockedWriteFlusher serializes writes and flushes to the underlying writer.
// Flushing is a no-op when the writer cannot flush.
type lockedWriteFlusher struct {
	io.Writer
	flusher http.Flusher
	mu      sync.Mutex
	ctx     context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.flusher == nil || l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flusher.Flush()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.handlePost(w, r)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	if _, ok := logctx.RequestDataFrom(ctx); !ok {
		ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
			RequestID:  uuid.NewString(),
			Method:     r.Method,
			Path:       r.URL.Path,
			UserAgent:  r.UserAgent(),
			RemoteAddr: r.RemoteAddr,
			SessionID:  r.Header.Get(MCPSessionIDHeader),
		})
	}
	h.log.DebugContext(ctx, "http.post.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	accepted := jsonMediaType
	if r.Header.Get("Accept") != "" {
		mt, _, err := contenttype.GetAcceptableMediaType(r, responseMediaTypes)
		if err != nil {
			writeJSONError(w, http.StatusNotAcceptable, "client must accept application/json or text/event-stream")
			h.log.WarnContext(ctx, "accept.unsupported", slog.String("accept", r.Header.Get("Accept")))
			return
		}
		accepted = mt
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, jsonrpc.ErrorCodeParseError, "failed to read request body")
		h.log.WarnContext(ctx, "body.read.fail", slog.String("err", err.Error()))
		return
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		if errors.Is(err, jsonrpc.ErrBatchUnsupported) {
			writeRPCError(w, http.StatusBadRequest, jsonrpc.ErrorCodeInvalidRequest, err.Error())
			h.log.WarnContext(ctx, "jsonrpc.batch.forbidden")
			return
		}
		writeRPCError(w, http.StatusBadRequest, jsonrpc.ErrorCodeParseError, "invalid JSON-RPC message: "+err.Error())
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})
	eng := engine.NewEngine(h.srv, engine.WithLogger(h.log))

	sessID := r.Header.Get(MCPSessionIDHeader)

	req := msg.AsRequest()
	if req == nil {
		// Nothing is ever waiting on a client response in a stateless exchange.
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "response.inbound.ignored")
		return
	}

	if req.ID.IsNil() {
		if err := eng.HandleNotification(ctx, req); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			h.log.ErrorContext(ctx, "notification.inbound.fail", slog.String("err", err.Error()))
			return
		}
		if sessID != "" {
			w.Header().Set(MCPSessionIDHeader, sessID)
		}
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "notification.inbound.ok", slog.Duration("dur", time.Since(start)))
		return
	}

	res, err := eng.HandleRequest(ctx, req)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.inbound.fail", slog.String("err", err.Error()))
		res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal server error", nil)
	}

	if req.Method == string(mcp.InitializeMethod) {
		if sessID == "" {
			sessID = h.sessionID()
		}
		if res.Error == nil {
			var init struct {
				ProtocolVersion string `json:"protocolVersion"`
			}
			if json.Unmarshal(res.Result, &init) == nil && init.ProtocolVersion != "" {
				w.Header().Set(MCPProtocolVersionHeader, init.ProtocolVersion)
			}
		}
	} else if pv := r.Header.Get(MCPProtocolVersionHeader); pv != "" {
		w.Header().Set(MCPProtocolVersionHeader, pv)
	}
	if sessID != "" {
		w.Header().Set(MCPSessionIDHeader, sessID)
	}

	payload, err := json.Marshal(res)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.response.marshal.fail", slog.String("err", err.Error()))
		writeRPCError(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, "")
		return
	}

	if accepted.Matches(eventStreamMediaType) {
		f, _ := w.(http.Flusher)
		wf := &lockedWriteFlusher{Writer: w, flusher: f, ctx: ctx}
		w.Header().Set("Content-Type", eventStreamMediaType.String())
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := writeSSEEvent(wf, payload); err != nil {
			h.log.ErrorContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
			return
		}
	} else {
		w.Header().Set("Content-Type", jsonMediaType.String())
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(append(payload, '\n')); err != nil {
			h.log.ErrorContext(ctx, "rpc.response.write.fail", slog.String("err", err.Error()))
			return
		}
	}

	h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
}

// writeSSEEvent writes one Server-Sent Event carrying payload as its data
// field, then flushes.
func writeSSEEvent(wf *lockedWriteFlusher, payload []byte) error {
	if _, err := wf.Write([]byte("event: message\ndata: ")); err != nil {
		return fmt.Errorf("failed to write SSE data prefix: %w", err)
	}
	if _, err := wf.Write(payload); err != nil {
		return fmt.Errorf("failed to write SSE payload: %w", err)
	}
	if _, err := wf.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("failed to write SSE frame terminator: %w", err)
	}
	wf.Flush()
	return nil
}
