package mcpservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
)

// ErrResourceNotFound is returned by ReadResource for unknown URIs.
var ErrResourceNotFound = errors.New("resource not found")

// StaticResource pairs a resource descriptor with its fixed contents.
type StaticResource struct {
	Descriptor mcp.Resource
	Contents   []mcp.ResourceContents
}

// TextResource builds a StaticResource whose single content entry is text.
func TextResource(uri, name, description, mimeType, text string) StaticResource {
	return StaticResource{
		Descriptor: mcp.Resource{URI: uri, Name: name, Description: description, MimeType: mimeType},
		Contents:   []mcp.ResourceContents{{URI: uri, MimeType: mimeType, Text: text}},
	}
}

// ResourcesContainer serves an immutable set of resources and templates.
// It is built once per server instance and never mutated afterwards.
type ResourcesContainer struct {
	resources []mcp.Resource
	templates []mcp.ResourceTemplate
	contents  map[string][]mcp.ResourceContents
	pageSize  int
}

var _ ResourcesCapability = (*ResourcesContainer)(nil)

// NewResourcesContainer constructs a container. Later definitions with a URI
// already present are ignored.
func NewResourcesContainer(defs []StaticResource, templates ...mcp.ResourceTemplate) *ResourcesContainer {
	rc := &ResourcesContainer{
		contents: make(map[string][]mcp.ResourceContents, len(defs)),
		pageSize: 50,
	}
	for _, d := range defs {
		if _, ok := rc.contents[d.Descriptor.URI]; ok {
			continue
		}
		rc.resources = append(rc.resources, d.Descriptor)
		rc.contents[d.Descriptor.URI] = append([]mcp.ResourceContents{}, d.Contents...)
	}
	rc.templates = append(rc.templates, templates...)
	return rc
}

// SetPageSize configures the listing page size. Values < 1 are ignored.
func (rc *ResourcesContainer) SetPageSize(n int) {
	if n > 0 {
		rc.pageSize = n
	}
}

// HasResource reports whether uri is served by this container.
func (rc *ResourcesContainer) HasResource(uri string) bool {
	_, ok := rc.contents[uri]
	return ok
}

func (rc *ResourcesContainer) ListResources(ctx context.Context, cursor *string) (Page[mcp.Resource], error) {
	return paginate(rc.resources, cursor, rc.pageSize), nil
}

func (rc *ResourcesContainer) ListResourceTemplates(ctx context.Context, cursor *string) (Page[mcp.ResourceTemplate], error) {
	return paginate(rc.templates, cursor, rc.pageSize), nil
}

func (rc *ResourcesContainer) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	c, ok := rc.contents[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
	}
	return append([]mcp.ResourceContents{}, c...), nil
}
