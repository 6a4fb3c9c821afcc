// Package logctx decorates slog records with request-scoped attributes that
// were stashed in the context by the transports and the engine.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps an slog.Handler and appends req/rpc/tool groups found in the
// record's context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		attrs := []any{
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("path", rd.Path),
		}
		if rd.UserAgent != "" {
			attrs = append(attrs, slog.String("user_agent", rd.UserAgent))
		}
		if rd.RemoteAddr != "" {
			attrs = append(attrs, slog.String("remote_addr", rd.RemoteAddr))
		}
		if rd.SessionID != "" {
			attrs = append(attrs, slog.String("session_id", rd.SessionID))
		}
		r.AddAttrs(slog.Group("req", attrs...))
	}

	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		r.AddAttrs(slog.Group("tool",
			slog.String("name", td.ToolName),
		))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the decoration when callers derive loggers with With.
func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the decoration when callers derive grouped loggers.
func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

// Wrap returns a logger whose handler is decorated by Handler. A nil logger
// yields a logger that discards everything.
func Wrap(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{Handler: l.Handler()})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
	SessionID  string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

// RequestDataFrom returns the request data stored in ctx, if any.
func RequestDataFrom(ctx context.Context) (*RequestData, bool) {
	rd, ok := ctx.Value(requestDataKey{}).(*RequestData)
	return rd, ok
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}
