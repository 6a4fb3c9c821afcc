package mcpservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
)

// ErrPromptNotFound is returned by GetPrompt for unknown prompt names.
var ErrPromptNotFound = errors.New("prompt not found")

// PromptHandler materializes a prompt from its arguments.
type PromptHandler func(ctx context.Context, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error)

// StaticPrompt pairs a prompt descriptor with its handler.
type StaticPrompt struct {
	Descriptor mcp.Prompt
	Handler    PromptHandler
}

// PromptsContainer serves a fixed set of prompts.
type PromptsContainer struct {
	prompts  []mcp.Prompt
	handlers map[string]PromptHandler
	pageSize int
}

var _ PromptsCapability = (*PromptsContainer)(nil)

// NewPromptsContainer constructs a container. On duplicate names the first
// definition wins.
func NewPromptsContainer(defs ...StaticPrompt) *PromptsContainer {
	pc := &PromptsContainer{handlers: make(map[string]PromptHandler, len(defs)), pageSize: 50}
	for _, d := range defs {
		name := d.Descriptor.Name
		if name == "" || d.Handler == nil {
			continue
		}
		if _, exists := pc.handlers[name]; exists {
			continue
		}
		pc.prompts = append(pc.prompts, d.Descriptor)
		pc.handlers[name] = d.Handler
	}
	return pc
}

func (pc *PromptsContainer) ListPrompts(ctx context.Context, cursor *string) (Page[mcp.Prompt], error) {
	return paginate(pc.prompts, cursor, pc.pageSize), nil
}

// GetPrompt validates required arguments before dispatching to the handler.
func (pc *PromptsContainer) GetPrompt(ctx context.Context, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
	if req == nil || req.Name == "" {
		return nil, fmt.Errorf("invalid prompt request: missing name")
	}
	h := pc.handlers[req.Name]
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, req.Name)
	}
	for _, p := range pc.prompts {
		if p.Name != req.Name {
			continue
		}
		for _, arg := range p.Arguments {
			if arg.Required && req.Arguments[arg.Name] == "" {
				return nil, fmt.Errorf("prompt %s: missing required argument %q", req.Name, arg.Name)
			}
		}
	}
	return h(ctx, req)
}

// UserText builds a single user-role text message.
func UserText(text string) mcp.PromptMessage {
	return mcp.PromptMessage{Role: mcp.RoleUser, Content: mcp.ContentBlock{Type: mcp.ContentTypeText, Text: text}}
}
