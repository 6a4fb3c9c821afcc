package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/internal/engine"
	"github.com/ggoodman/aem-mcp-server-go/internal/jsonrpc"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
	"github.com/google/uuid"
)

const defaultMaxLineBytes = 4 << 20

// Handler is a single-connection stdio transport.
type Handler struct {
	srv     mcpservice.ServerCapabilities
	r       io.Reader
	w       io.Writer
	log     *slog.Logger
	maxLine int

	mu sync.Mutex
}

// NewHandler constructs a Handler reading os.Stdin and writing os.Stdout
// unless overridden.
func NewHandler(srv mcpservice.ServerCapabilities, opts ...Option) *Handler {
	h := &Handler{
		srv:     srv,
		r:       os.Stdin,
		w:       os.Stdout,
		log:     logctx.Wrap(nil),
		maxLine: defaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs until the reader reaches EOF, which returns nil, or ctx is
// done, which returns ctx.Err().
func (h *Handler) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(h.r)
		sc.Buffer(make([]byte, 0, 64<<10), h.maxLine)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	h.log.InfoContext(ctx, "stdio.serve.start")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				h.log.ErrorContext(ctx, "stdio.read.fail", slog.String("err", err.Error()))
				return fmt.Errorf("read stdin: %w", err)
			}
			h.log.InfoContext(ctx, "stdio.serve.eof")
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			if err := h.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

// handleLine processes one message. Only write failures are returned.
func (h *Handler) handleLine(ctx context.Context, line []byte) error {
	start := time.Now()
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: uuid.NewString(), Method: "STDIO", Path: "stdio"})

	msg, err := jsonrpc.DecodeMessage(line)
	if err != nil {
		code, message := jsonrpc.ErrorCodeParseError, "invalid JSON-RPC message"
		if errors.Is(err, jsonrpc.ErrBatchUnsupported) {
			code, message = jsonrpc.ErrorCodeInvalidRequest, err.Error()
		}
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		return h.write(jsonrpc.NewErrorResponse(nil, code, message, nil))
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})
	req := msg.AsRequest()
	if req == nil {
		h.log.InfoContext(ctx, "response.inbound.ignored")
		return nil
	}

	eng := engine.NewEngine(h.srv, engine.WithLogger(h.log))
	if req.ID.IsNil() {
		if err := eng.HandleNotification(ctx, req); err != nil {
			h.log.ErrorContext(ctx, "notification.inbound.fail", slog.String("err", err.Error()))
		}
		return nil
	}

	res, err := eng.HandleRequest(ctx, req)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.inbound.fail", slog.String("err", err.Error()))
		res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal server error", nil)
	}
	if err := h.write(res); err != nil {
		return err
	}
	h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
	return nil
}

func (h *Handler) write(res *jsonrpc.Response) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}
