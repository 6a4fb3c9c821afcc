package mcpservice

import (
	"context"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
)

// ServerOption configures a concrete ServerCapabilities implementation.
type ServerOption func(*server)

type server struct {
	info                  mcp.ImplementationInfo
	staticProtocolVersion string
	staticInstructions    *string

	resources ResourcesCapability
	tools     ToolsCapability
	prompts   PromptsCapability
	logging   LoggingCapability
}

// NewServer builds a ServerCapabilities using functional options.
func NewServer(opts ...ServerOption) ServerCapabilities {
	s := &server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServerInfo sets the server info value.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *server) { s.info = info }
}

// WithPreferredProtocolVersion pins the protocol version returned from
// initialize regardless of what the client asked for.
func WithPreferredProtocolVersion(version string) ServerOption {
	return func(s *server) { s.staticProtocolVersion = version }
}

// WithInstructions sets human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *server) { s.staticInstructions = &instr }
}

// WithResourcesCapability wires a ResourcesCapability.
func WithResourcesCapability(cap ResourcesCapability) ServerOption {
	return func(s *server) { s.resources = cap }
}

// WithToolsCapability wires a ToolsCapability.
func WithToolsCapability(cap ToolsCapability) ServerOption {
	return func(s *server) { s.tools = cap }
}

// WithPromptsCapability wires a PromptsCapability.
func WithPromptsCapability(cap PromptsCapability) ServerOption {
	return func(s *server) { s.prompts = cap }
}

// WithLoggingCapability wires a LoggingCapability.
func WithLoggingCapability(cap LoggingCapability) ServerOption {
	return func(s *server) { s.logging = cap }
}

func (s *server) GetServerInfo(ctx context.Context) (mcp.ImplementationInfo, error) {
	return s.info, nil
}

func (s *server) GetPreferredProtocolVersion(ctx context.Context) (string, bool, error) {
	if s.staticProtocolVersion != "" {
		return s.staticProtocolVersion, true, nil
	}
	return "", false, nil
}

func (s *server) GetInstructions(ctx context.Context) (string, bool, error) {
	if s.staticInstructions != nil {
		return *s.staticInstructions, true, nil
	}
	return "", false, nil
}

func (s *server) GetResourcesCapability(ctx context.Context) (ResourcesCapability, bool, error) {
	return s.resources, s.resources != nil, nil
}

func (s *server) GetToolsCapability(ctx context.Context) (ToolsCapability, bool, error) {
	return s.tools, s.tools != nil, nil
}

func (s *server) GetPromptsCapability(ctx context.Context) (PromptsCapability, bool, error) {
	return s.prompts, s.prompts != nil, nil
}

func (s *server) GetLoggingCapability(ctx context.Context) (LoggingCapability, bool, error) {
	return s.logging, s.logging != nil, nil
}
