package assets

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/slingform"
)

const (
	workflowInstancesPath = "/etc/workflow/instances"
	assetsAPIPrefix       = "/api/assets"
)

// WorkflowInstance identifies a started workflow.
type WorkflowInstance struct {
	Model    string `json:"model"`
	Payload  string `json:"payload"`
	Instance string `json:"instance,omitempty"`
}

// StartWorkflow starts modelPath on payloadPath. The workflow runs
// asynchronously; only its start is reported.
func (c *Client) StartWorkflow(ctx context.Context, modelPath, payloadPath string) (*WorkflowInstance, error) {
	modelPath = strings.TrimSpace(modelPath)
	payloadPath = strings.TrimRight(strings.TrimSpace(payloadPath), "/")
	if !strings.HasPrefix(modelPath, "/") {
		return nil, aem.Errorf(aem.KindValidation, "modelPath must be an absolute repository path, got %q", modelPath)
	}
	if !strings.HasPrefix(payloadPath, "/content/") {
		return nil, aem.Errorf(aem.KindValidation, "payloadPath must be under /content, got %q", payloadPath)
	}

	form := slingform.New().
		Set("model", modelPath).
		Set("payloadType", "JCR_PATH").
		Set("payload", payloadPath)
	resp, err := c.caller.PostForm(ctx, workflowInstancesPath, form)
	if err != nil {
		return nil, aem.Wrap(aem.KindProvisioning, "Failed to start workflow", err)
	}
	if !resp.OK() {
		e := aem.StatusError(aem.KindProvisioning, "start workflow", resp)
		c.log.WarnContext(ctx, "asset.workflow.fail", slog.String("model", modelPath), slog.String("err", e.Error()))
		return nil, e
	}

	inst := &WorkflowInstance{Model: modelPath, Payload: payloadPath, Instance: resp.Header.Get("Location")}
	if inst.Instance != "" {
		if i := strings.Index(inst.Instance, workflowInstancesPath); i > 0 {
			inst.Instance = inst.Instance[i:]
		}
	}
	c.log.InfoContext(ctx, "asset.workflow.ok", slog.String("model", modelPath), slog.String("instance", inst.Instance))
	return inst, nil
}

// ContentFragmentConfig describes a fragment created through the Assets
// HTTP API.
type ContentFragmentConfig struct {
	// ParentPath is a DAM folder.
	ParentPath  string
	Name        string
	Title       string
	Description string
	// ModelPath is the fragment model, e.g.
	// /conf/site/settings/dam/cfm/models/article.
	ModelPath string
	Elements  map[string]any
}

// ContentFragment is a created fragment.
type ContentFragment struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Model string `json:"model"`
}

// CreateContentFragment creates a fragment from a model.
func (c *Client) CreateContentFragment(ctx context.Context, cfg ContentFragmentConfig) (*ContentFragment, error) {
	parent := strings.TrimRight(cfg.ParentPath, "/")
	if err := checkDAMPath("parentPath", parent); err != nil && parent != DefaultDAMPath {
		return nil, err
	}
	if cfg.Title == "" {
		return nil, aem.Errorf(aem.KindValidation, "title is required")
	}
	if cfg.ModelPath == "" {
		return nil, aem.Errorf(aem.KindValidation, "modelPath is required")
	}
	name := bareName(cfg.Name)
	if name == "" {
		name = strings.Join(strings.Fields(strings.ToLower(cfg.Title)), "-")
	}

	elements := make(map[string]any, len(cfg.Elements))
	for k, v := range cfg.Elements {
		elements[k] = map[string]any{"value": v}
	}
	body := map[string]any{
		"class": "contentFragment",
		"properties": map[string]any{
			"cq:model":    cfg.ModelPath,
			"title":       cfg.Title,
			"description": cfg.Description,
			"elements":    elements,
		},
	}

	fragPath := parent + "/" + name
	apiPath := assetsAPIPrefix + strings.TrimPrefix(fragPath, DefaultDAMPath)
	resp, err := c.caller.PostJSON(ctx, apiPath, body)
	if err != nil {
		return nil, aem.Wrap(aem.KindProvisioning, "Failed to create content fragment", err)
	}
	if !resp.OK() {
		e := aem.StatusError(aem.KindProvisioning, "create content fragment", resp)
		if resp.Status == http.StatusConflict || strings.Contains(aem.ResponseMessage(resp), "already exists") {
			e.Kind = aem.KindConflict
		}
		c.log.WarnContext(ctx, "asset.fragment.fail", slog.String("path", fragPath), slog.String("err", e.Error()))
		return nil, e
	}
	c.log.InfoContext(ctx, "asset.fragment.ok", slog.String("path", fragPath))
	return &ContentFragment{Path: fragPath, Name: name, Title: cfg.Title, Model: cfg.ModelPath}, nil
}
