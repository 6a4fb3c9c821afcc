package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/internal/jsonrpc"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
)

// Engine dispatches JSON-RPC requests to a ServerCapabilities value. It
// keeps no state between calls: every request is answered from the request
// itself and the capabilities it was constructed with. Transports build one
// Engine per exchange and drop it afterwards.
type Engine struct {
	srv mcpservice.ServerCapabilities
	log *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. A nil logger discards.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = logctx.Wrap(l) }
}

func NewEngine(srv mcpservice.ServerCapabilities, opts ...EngineOption) *Engine {
	e := &Engine{srv: srv, log: logctx.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// HandleRequest answers a single request. The returned error is reserved for
// faults that could not be expressed as a JSON-RPC error response.
func (e *Engine) HandleRequest(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})

	switch req.Method {
	case string(mcp.InitializeMethod):
		return e.handleInitialize(ctx, req)
	case string(mcp.PingMethod):
		return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
	case string(mcp.ToolsListMethod):
		return e.handleToolsList(ctx, req)
	case string(mcp.ToolsCallMethod):
		return e.handleToolCall(ctx, req)
	case string(mcp.ResourcesListMethod):
		return e.handleResourcesList(ctx, req)
	case string(mcp.ResourcesReadMethod):
		return e.handleResourcesRead(ctx, req)
	case string(mcp.ResourcesTemplatesListMethod):
		return e.handleResourcesTemplatesList(ctx, req)
	case string(mcp.PromptsListMethod):
		return e.handlePromptsList(ctx, req)
	case string(mcp.PromptsGetMethod):
		return e.handlePromptsGet(ctx, req)
	case string(mcp.LoggingSetLevelMethod):
		return e.handleSetLoggingLevel(ctx, req)
	}

	e.log.InfoContext(ctx, "engine.handle_request.unknown_method", slog.String("method", req.Method))
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil), nil
}

// HandleNotification accepts a client notification. Nothing outlives the
// exchange, so initialized and cancelled are acknowledged and dropped.
func (e *Engine) HandleNotification(ctx context.Context, note *jsonrpc.Request) error {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: note.Method, Type: "notification"})
	switch note.Method {
	case string(mcp.InitializedNotificationMethod):
		e.log.DebugContext(ctx, "engine.session.initialized")
	case string(mcp.CancelledNotificationMethod):
		var params mcp.CancelledNotification
		if err := json.Unmarshal(note.Params, &params); err != nil {
			e.log.InfoContext(ctx, "engine.handle_notification.invalid", slog.String("err", err.Error()))
			return nil
		}
		e.log.InfoContext(ctx, "engine.handle_notification.cancelled", slog.Any("request_id", params.RequestID), slog.String("reason", params.Reason))
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
	return nil
}

func (e *Engine) handleInitialize(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.InitializeRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
		}
	}

	res, err := e.initializeResult(ctx, &params)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	log.InfoContext(ctx, "engine.handle_request.ok",
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
		slog.String("client", params.ClientInfo.Name),
		slog.String("protocol_version", res.ProtocolVersion),
	)
	return jsonrpc.NewResultResponse(req.ID, res)
}

// initializeResult negotiates the protocol version and advertises whichever
// capabilities the server carries.
func (e *Engine) initializeResult(ctx context.Context, req *mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	version := mcp.LatestProtocolVersion
	if slices.Contains(mcp.SupportedProtocolVersions, req.ProtocolVersion) {
		version = req.ProtocolVersion
	}
	if v, ok, err := e.srv.GetPreferredProtocolVersion(ctx); err != nil {
		return nil, fmt.Errorf("get preferred protocol version: %w", err)
	} else if ok && v != "" {
		version = v
	}

	info, err := e.srv.GetServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}

	res := &mcp.InitializeResult{ProtocolVersion: version, ServerInfo: info}

	if instr, ok, err := e.srv.GetInstructions(ctx); err != nil {
		return nil, fmt.Errorf("get instructions: %w", err)
	} else if ok {
		res.Instructions = instr
	}

	if _, ok, err := e.srv.GetResourcesCapability(ctx); err != nil {
		return nil, fmt.Errorf("get resources capability: %w", err)
	} else if ok {
		res.Capabilities.Resources = &struct {
			ListChanged bool `json:"listChanged"`
			Subscribe   bool `json:"subscribe"`
		}{}
	}
	if _, ok, err := e.srv.GetToolsCapability(ctx); err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	} else if ok {
		res.Capabilities.Tools = &struct {
			ListChanged bool `json:"listChanged"`
		}{}
	}
	if _, ok, err := e.srv.GetPromptsCapability(ctx); err != nil {
		return nil, fmt.Errorf("get prompts capability: %w", err)
	} else if ok {
		res.Capabilities.Prompts = &struct {
			ListChanged bool `json:"listChanged"`
		}{}
	}
	if _, ok, err := e.srv.GetLoggingCapability(ctx); err != nil {
		return nil, fmt.Errorf("get logging capability: %w", err)
	} else if ok {
		res.Capabilities.Logging = &struct{}{}
	}
	return res, nil
}

func (e *Engine) handleSetLoggingLevel(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))
	var params mcp.SetLevelRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetLoggingCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "logging level not supported", nil), nil
	}

	if err := cap.SetLevel(ctx, params.Level); err != nil {
		if errors.Is(err, mcpservice.ErrInvalidLoggingLevel) {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
		}
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.String("level", string(params.Level)))
	return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
}

func (e *Engine) handleToolsList(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.ListToolsRequest
	if err := decodeOptionalParams(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetToolsCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools capability not supported", nil), nil
	}

	page, err := cap.ListTools(ctx, cursorOf(params.Cursor))
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	result := &mcp.ListToolsResult{Tools: page.Items}
	if page.NextCursor != nil {
		result.NextCursor = *page.NextCursor
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(page.Items)))
	return jsonrpc.NewResultResponse(req.ID, result)
}

// handleToolCall runs the tool to completion. Tool-level failures come back
// as results with IsError set and pass through unchanged.
func (e *Engine) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}
	if params.Name == "" {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "missing tool name"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	cap, ok, err := e.srv.GetToolsCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools capability not supported", nil), nil
	}

	res, err := cap.CallTool(ctx, &params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.InfoContext(ctx, "engine.handle_request.cancelled", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "cancelled", nil), nil
		}
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Bool("is_error", res.IsError))
	return jsonrpc.NewResultResponse(req.ID, res)
}

func (e *Engine) handleResourcesList(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.ListResourcesRequest
	if err := decodeOptionalParams(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetResourcesCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "resources capability not supported", nil), nil
	}

	page, err := cap.ListResources(ctx, cursorOf(params.Cursor))
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	result := &mcp.ListResourcesResult{Resources: page.Items}
	if page.NextCursor != nil {
		result.NextCursor = *page.NextCursor
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("resource_count", len(page.Items)))
	return jsonrpc.NewResultResponse(req.ID, result)
}

func (e *Engine) handleResourcesTemplatesList(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.ListResourceTemplatesRequest
	if err := decodeOptionalParams(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetResourcesCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "resources capability not supported", nil), nil
	}

	page, err := cap.ListResourceTemplates(ctx, cursorOf(params.Cursor))
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	result := &mcp.ListResourceTemplatesResult{ResourceTemplates: page.Items}
	if page.NextCursor != nil {
		result.NextCursor = *page.NextCursor
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("template_count", len(page.Items)))
	return jsonrpc.NewResultResponse(req.ID, result)
}

func (e *Engine) handleResourcesRead(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.ReadResourceRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}
	if params.URI == "" {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "missing uri"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetResourcesCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "resources capability not supported", nil), nil
	}

	contents, err := cap.ReadResource(ctx, params.URI)
	if err != nil {
		if errors.Is(err, mcpservice.ErrResourceNotFound) {
			log.InfoContext(ctx, "engine.handle_request.not_found", slog.String("uri", params.URI))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), map[string]string{"uri": params.URI}), nil
		}
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("content_count", len(contents)))
	return jsonrpc.NewResultResponse(req.ID, &mcp.ReadResourceResult{Contents: contents})
}

func (e *Engine) handlePromptsList(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.ListPromptsRequest
	if err := decodeOptionalParams(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetPromptsCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "prompts capability not supported", nil), nil
	}

	page, err := cap.ListPrompts(ctx, cursorOf(params.Cursor))
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}

	result := &mcp.ListPromptsResult{Prompts: page.Items}
	if page.NextCursor != nil {
		result.NextCursor = *page.NextCursor
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("prompt_count", len(page.Items)))
	return jsonrpc.NewResultResponse(req.ID, result)
}

func (e *Engine) handlePromptsGet(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	var params mcp.GetPromptRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}
	if params.Name == "" {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "missing name"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	cap, ok, err := e.srv.GetPromptsCapability(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), nil
	}
	if !ok || cap == nil {
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "prompts capability not supported", nil), nil
	}

	res, err := cap.GetPrompt(ctx, &params)
	if err != nil {
		// Unknown prompts and missing arguments are caller mistakes.
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewResultResponse(req.ID, res)
}

func decodeOptionalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func cursorOf(c string) *string {
	if c == "" {
		return nil
	}
	return &c
}
