package stdio

import (
	"io"
	"log/slog"

	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger. Logs must not go to the output stream.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = logctx.Wrap(l)
		}
	}
}

// WithMaxLineBytes bounds a single inbound message.
func WithMaxLineBytes(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxLine = n
		}
	}
}
