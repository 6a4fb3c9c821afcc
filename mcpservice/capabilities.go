package mcpservice

import (
	"context"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
)

// ServerCapabilities is the surface the engine consults while answering a
// request. Capability getters return (cap, ok, err); ok == false means the
// capability is absent and will not be advertised.
type ServerCapabilities interface {
	// GetServerInfo returns implementation information surfaced in initialize.
	GetServerInfo(ctx context.Context) (mcp.ImplementationInfo, error)

	// GetPreferredProtocolVersion returns the server's preferred protocol
	// version. If ok is false, the client's requested version is echoed.
	GetPreferredProtocolVersion(ctx context.Context) (version string, ok bool, err error)

	// GetInstructions returns optional human-readable instructions for initialize.
	GetInstructions(ctx context.Context) (instructions string, ok bool, err error)

	GetResourcesCapability(ctx context.Context) (cap ResourcesCapability, ok bool, err error)
	GetToolsCapability(ctx context.Context) (cap ToolsCapability, ok bool, err error)
	GetPromptsCapability(ctx context.Context) (cap PromptsCapability, ok bool, err error)
	GetLoggingCapability(ctx context.Context) (cap LoggingCapability, ok bool, err error)
}

// ToolsCapability lists and invokes tools.
type ToolsCapability interface {
	// ListTools returns a page of tools. A nil cursor requests the first page.
	ListTools(ctx context.Context, cursor *string) (Page[mcp.Tool], error)

	// CallTool invokes a named tool. Tool-level failures are reported through
	// CallToolResult.IsError; a returned error is reserved for faults the tool
	// could not express as a result.
	CallTool(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)
}

// ResourcesCapability lists and reads resources.
type ResourcesCapability interface {
	ListResources(ctx context.Context, cursor *string) (Page[mcp.Resource], error)
	ListResourceTemplates(ctx context.Context, cursor *string) (Page[mcp.ResourceTemplate], error)
	ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error)
}

// PromptsCapability lists and renders prompts.
type PromptsCapability interface {
	ListPrompts(ctx context.Context, cursor *string) (Page[mcp.Prompt], error)
	GetPrompt(ctx context.Context, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error)
}

// LoggingCapability lets the client adjust the server's log level.
type LoggingCapability interface {
	SetLevel(ctx context.Context, level mcp.LoggingLevel) error
}
