package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

const (
	// Initialization
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"

	// Tools
	ToolsListMethod Method = "tools/list"
	ToolsCallMethod Method = "tools/call"

	// Resources
	ResourcesListMethod          Method = "resources/list"
	ResourcesReadMethod          Method = "resources/read"
	ResourcesTemplatesListMethod Method = "resources/templates/list"

	// Prompts
	PromptsListMethod Method = "prompts/list"
	PromptsGetMethod  Method = "prompts/get"

	// Logging
	LoggingSetLevelMethod Method = "logging/setLevel"

	// General
	PingMethod                  Method = "ping"
	CancelledNotificationMethod Method = "notifications/cancelled"
)

// PaginatedRequest carries a cursor for paginated list requests.
type PaginatedRequest struct {
	Cursor string `json:"cursor,omitzero"`
}

// PaginatedResult carries a cursor for continuing pagination.
type PaginatedResult struct {
	NextCursor string `json:"nextCursor,omitzero"`
}

// BaseMetadata carries optional metadata for responses.
type BaseMetadata struct {
	Meta map[string]any `json:"_meta,omitempty"`
}

// CancelledNotification informs the peer that a request was canceled.
type CancelledNotification struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitzero"`
}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns negotiated capabilities and server info.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
	BaseMetadata
}

// ListToolsRequest requests the set of available tools.
type ListToolsRequest struct {
	PaginatedRequest
}

// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
	BaseMetadata
}

// CallToolRequestReceived is the server-received representation for a tool call.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult represents a tool invocation result. Metadata the tool
// wants to expose in a machine-readable form travels in _meta.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitzero"`
	// StructuredContent contains a typed object that conforms to the tool's
	// OutputSchema when provided.
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	BaseMetadata
}

// ListResourcesRequest requests a paginated list of resources.
type ListResourcesRequest struct {
	PaginatedRequest
}

// ListResourcesResult returns a page of resources.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
	PaginatedResult
	BaseMetadata
}

// ListResourceTemplatesRequest requests resource templates.
type ListResourceTemplatesRequest struct {
	PaginatedRequest
}

// ListResourceTemplatesResult returns resource templates.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	PaginatedResult
	BaseMetadata
}

// ReadResourceRequest requests the contents of a resource by URI.
type ReadResourceRequest struct {
	URI string `json:"uri"`
}

// ReadResourceResult returns resource contents.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
	BaseMetadata
}

// ListPromptsRequest requests available prompts.
type ListPromptsRequest struct {
	PaginatedRequest
}

// ListPromptsResult returns available prompts.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
	PaginatedResult
	BaseMetadata
}

// GetPromptRequestReceived is the server-received representation for prompt retrieval.
type GetPromptRequestReceived struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// GetPromptResult returns a prompt definition and messages.
type GetPromptResult struct {
	Description string          `json:"description,omitzero"`
	Messages    []PromptMessage `json:"messages"`
	BaseMetadata
}

// SetLevelRequest sets the server logging level.
type SetLevelRequest struct {
	Level LoggingLevel `json:"level"`
}

// EmptyResult is returned for operations that do not return data.
type EmptyResult struct {
	BaseMetadata
}
