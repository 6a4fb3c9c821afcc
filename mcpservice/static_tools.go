package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/invopop/jsonschema"
)

// ToolHandler is the function signature used to handle a tool invocation.
type ToolHandler func(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)

// StaticTool pairs an MCP tool descriptor with its handler.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// ToolRequest is the container for tool call input. It is generic over the
// typed argument struct A.
type ToolRequest[A any] struct {
	name string
	raw  json.RawMessage
	args A
}

func (r *ToolRequest[A]) Name() string                  { return r.name }
func (r *ToolRequest[A]) RawArguments() json.RawMessage { return r.raw }
func (r *ToolRequest[A]) Args() A                       { return r.args }

// ToolOption configures NewTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	title                     string
	description               string
	annotations               *mcp.ToolAnnotations
	allowAdditionalProperties bool // default false (strict)
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolTitle sets the human-friendly tool title.
func WithToolTitle(title string) ToolOption {
	return func(c *toolConfig) { c.title = title }
}

// WithToolAnnotations attaches behavioral hints (read-only, destructive, ...).
func WithToolAnnotations(a mcp.ToolAnnotations) ToolOption {
	return func(c *toolConfig) { c.annotations = &a }
}

// WithToolAllowAdditionalProperties controls whether unknown fields are allowed.
// When false (default), the generated schema sets additionalProperties=false and
// runtime decoding rejects unknown fields.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// NewTool constructs a StaticTool from a typed args struct A. The input
// schema is reflected from A, and arguments are decoded into A before fn runs.
// Decoding failures become an error result rather than a Go error.
func NewTool[A any](name string, fn func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Title:       cfg.title,
		Description: cfg.description,
		InputSchema: reflectToMCPInputSchema[A](cfg.allowAdditionalProperties),
		Annotations: cfg.annotations,
	}

	handler := func(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
		a, err := decodeArgs[A](req.Arguments, cfg.allowAdditionalProperties)
		if err != nil {
			return Errorf("invalid arguments: %v", err), nil
		}
		w := newToolResponseWriter(ctx)
		r := &ToolRequest[A]{name: req.Name, raw: req.Arguments, args: a}
		if err := fn(ctx, w, r); err != nil {
			return nil, err
		}
		return w.Result(), nil
	}

	return StaticTool{Descriptor: desc, Handler: handler}
}

// ToolResponseWriterTyped extends ToolResponseWriter for typed output tools.
type ToolResponseWriterTyped[O any] interface {
	ToolResponseWriter
	SetStructured(v O)
}

type toolResponseWriterTyped[O any] struct {
	ToolResponseWriter
	structured any
}

func (tw *toolResponseWriterTyped[O]) SetStructured(v O) { tw.structured = v }

// NewToolWithOutput constructs a typed-input, typed-output tool. The value
// passed to SetStructured is emitted as structuredContent.
func NewToolWithOutput[A, O any](name string, fn func(ctx context.Context, w ToolResponseWriterTyped[O], r *ToolRequest[A]) error, opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	outSchema := reflectToMCPOutputSchema[O]()
	desc := mcp.Tool{
		Name:         name,
		Title:        cfg.title,
		Description:  cfg.description,
		InputSchema:  reflectToMCPInputSchema[A](cfg.allowAdditionalProperties),
		OutputSchema: &outSchema,
		Annotations:  cfg.annotations,
	}
	handler := func(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
		a, err := decodeArgs[A](req.Arguments, cfg.allowAdditionalProperties)
		if err != nil {
			return Errorf("invalid arguments: %v", err), nil
		}
		baseWriter := newToolResponseWriter(ctx)
		tw := &toolResponseWriterTyped[O]{ToolResponseWriter: baseWriter}
		r := &ToolRequest[A]{name: req.Name, raw: req.Arguments, args: a}
		if err := fn(ctx, tw, r); err != nil {
			return nil, err
		}
		res := baseWriter.Result()
		if tw.structured != nil {
			m, err := toObject(tw.structured)
			if err != nil {
				return nil, fmt.Errorf("encode structured content: %w", err)
			}
			res.StructuredContent = m
		}
		return res, nil
	}
	return StaticTool{Descriptor: desc, Handler: handler}
}

func decodeArgs[A any](raw json.RawMessage, allowAdditional bool) (A, error) {
	var a A
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return a, nil
	}
	if allowAdditional {
		err := json.Unmarshal(raw, &a)
		return a, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	err := dec.Decode(&a)
	return a, err
}

func toObject(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// reflectObject reflects T with invopop/jsonschema. It returns nil when T
// is not a struct. Unnamed structs such as struct{} are reflected without
// ExpandedStruct because the reflector keys expanded definitions by type name
// and has none to look up for them.
func reflectObject[T any](allowAdditional bool) *jsonschema.Schema {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if t.NumField() == 0 {
		return nil
	}
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            t.Name() != "",
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.ReflectFromType(t)
	if s == nil || s.Type != "object" {
		return nil
	}
	return s
}

// reflectToMCPInputSchema converts the reflected A to the simplified
// mcp.ToolInputSchema. Types without fields yield an empty object schema.
func reflectToMCPInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	out := mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           map[string]mcp.SchemaProperty{},
		AdditionalProperties: allowAdditional,
	}
	if s := reflectObject[A](allowAdditional); s != nil {
		out.Properties = toMCPProperties(s)
		out.Required = append([]string(nil), s.Required...)
	}
	return out
}

func reflectToMCPOutputSchema[O any]() mcp.ToolOutputSchema {
	out := mcp.ToolOutputSchema{Type: "object", Properties: map[string]mcp.SchemaProperty{}}
	if s := reflectObject[O](false); s != nil {
		out.Properties = toMCPProperties(s)
		out.Required = append([]string(nil), s.Required...)
	}
	return out
}

func toMCPProperties(s *jsonschema.Schema) map[string]mcp.SchemaProperty {
	props := make(map[string]mcp.SchemaProperty)
	if s.Properties == nil {
		return props
	}
	for el := s.Properties.Oldest(); el != nil; el = el.Next() {
		props[el.Key] = toMCPProperty(el.Value)
	}
	return props
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		Default:     s.Default,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" {
		if s.Properties != nil && s.Properties.Len() > 0 {
			p.Properties = toMCPProperties(s)
		} else {
			// free-form maps such as metadata bags
			p.AdditionalProperties = true
		}
	}
	return p
}

// ToolsContainer owns an immutable set of tool descriptors and handlers.
type ToolsContainer struct {
	tools    []mcp.Tool
	handlers map[string]ToolHandler
	pageSize int
}

// NewToolsContainer constructs a ToolsContainer. On duplicate names the
// first definition wins.
func NewToolsContainer(defs ...StaticTool) *ToolsContainer {
	tc := &ToolsContainer{
		tools:    make([]mcp.Tool, 0, len(defs)),
		handlers: make(map[string]ToolHandler, len(defs)),
		pageSize: 50,
	}
	for _, d := range defs {
		if _, exists := tc.handlers[d.Descriptor.Name]; exists {
			continue
		}
		tc.tools = append(tc.tools, d.Descriptor)
		tc.handlers[d.Descriptor.Name] = d.Handler
	}
	return tc
}

// SetPageSize sets the pagination size used by ListTools. A non-positive
// value is ignored.
func (tc *ToolsContainer) SetPageSize(n int) {
	if n > 0 {
		tc.pageSize = n
	}
}

// Snapshot returns a copy of the tool descriptors.
func (tc *ToolsContainer) Snapshot() []mcp.Tool {
	out := make([]mcp.Tool, len(tc.tools))
	copy(out, tc.tools)
	return out
}

// ListTools implements ToolsCapability.
func (tc *ToolsContainer) ListTools(ctx context.Context, cursor *string) (Page[mcp.Tool], error) {
	return paginate(tc.tools, cursor, tc.pageSize), nil
}

// CallTool implements ToolsCapability. An unknown tool name is reported as an
// error result so the client sees a normal tools/call response.
func (tc *ToolsContainer) CallTool(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
	if req == nil || req.Name == "" {
		return nil, fmt.Errorf("invalid tool request: missing name")
	}
	h := tc.handlers[req.Name]
	if h == nil {
		return Errorf("Unknown tool: %s", req.Name), nil
	}
	return h(ctx, req)
}

// TextResult is a small helper to build a text CallToolResult.
func TextResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: s}}}
}

// Errorf returns an error CallToolResult with a single text block and IsError=true.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, a...)
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: msg}}, IsError: true}
}
