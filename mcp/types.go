package mcp

// Role indicates the role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LoggingLevel represents structured log severity.
type LoggingLevel string

const (
	LoggingLevelDebug     LoggingLevel = "debug"
	LoggingLevelInfo      LoggingLevel = "info"
	LoggingLevelNotice    LoggingLevel = "notice"
	LoggingLevelWarning   LoggingLevel = "warning"
	LoggingLevelError     LoggingLevel = "error"
	LoggingLevelCritical  LoggingLevel = "critical"
	LoggingLevelAlert     LoggingLevel = "alert"
	LoggingLevelEmergency LoggingLevel = "emergency"
)

// IsValidLoggingLevel reports whether the provided level is one of the
// protocol-defined syslog severities.
func IsValidLoggingLevel(level LoggingLevel) bool {
	switch level {
	case LoggingLevelDebug,
		LoggingLevelInfo,
		LoggingLevelNotice,
		LoggingLevelWarning,
		LoggingLevelError,
		LoggingLevelCritical,
		LoggingLevelAlert,
		LoggingLevelEmergency:
		return true
	default:
		return false
	}
}

// ClientCapabilities advertises client features. A stateless server only
// records them for logging.
type ClientCapabilities struct {
	Roots *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"roots,omitempty"`
	Sampling    *struct{} `json:"sampling,omitempty"`
	Elicitation *struct{} `json:"elicitation,omitempty"`
}

// ServerCapabilities advertises server features.
type ServerCapabilities struct {
	Logging *struct{} `json:"logging,omitempty"`
	Prompts *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"prompts,omitempty"`
	Resources *struct {
		ListChanged bool `json:"listChanged"`
		Subscribe   bool `json:"subscribe"`
	} `json:"resources,omitempty"`
	Tools *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools,omitempty"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// Content block types.
const (
	ContentTypeText     = "text"
	ContentTypeResource = "resource"
)

// ContentBlock is a typed content part of a message or tool result.
type ContentBlock struct {
	Type string `json:"type"`
	// For TextContent
	Text string `json:"text,omitzero"`
	// For ImageContent and AudioContent
	Data     string `json:"data,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
	// For EmbeddedResource
	Resource *ResourceContents `json:"resource,omitempty"`
}

// Tool describes a callable tool and its input schema.
type Tool struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitzero"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
	// OutputSchema optionally declares the structure of structuredContent
	// in CallToolResult for this tool.
	OutputSchema *ToolOutputSchema `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations  `json:"annotations,omitempty"`
}

// ToolInputSchema is a JSON-schema-like description of tool input.
type ToolInputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// ToolOutputSchema mirrors ToolInputSchema but omits additionalProperties.
type ToolOutputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty is a simplified schema node used in tool schemas.
type SchemaProperty struct {
	Type                 string                    `json:"type,omitempty"`
	Description          string                    `json:"description,omitzero"`
	Items                *SchemaProperty           `json:"items,omitempty"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	AdditionalProperties any                       `json:"additionalProperties,omitempty"`
	Enum                 []any                     `json:"enum,omitempty"`
	Default              any                       `json:"default,omitempty"`
}

// ToolAnnotations carry behavioral hints for clients.
type ToolAnnotations struct {
	ReadOnlyHint    bool `json:"readOnlyHint,omitzero"`
	DestructiveHint bool `json:"destructiveHint,omitzero"`
	IdempotentHint  bool `json:"idempotentHint,omitzero"`
}

// Resource represents an addressable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	MimeType    string `json:"mimeType,omitzero"`
}

// ResourceTemplate describes a template for resource URIs.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	MimeType    string `json:"mimeType,omitzero"`
}

// ResourceContents is the value of a resource read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitzero"`
	Text     string `json:"text,omitzero"`
	Blob     string `json:"blob,omitzero"`
}

// Prompt describes a named prompt the server can provide.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitzero"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes a single prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	Required    bool   `json:"required,omitzero"`
}

// PromptMessage is a message used in a prompt.
type PromptMessage struct {
	Role    Role         `json:"role"`
	Content ContentBlock `json:"content"`
}

// LatestProtocolVersion is the latest version of the protocol.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists versions the server will echo back when a
// client requests them during initialize.
var SupportedProtocolVersions = []string{"2024-11-05", "2025-03-26", LatestProtocolVersion}
