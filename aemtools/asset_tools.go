package aemtools

import (
	"context"
	"fmt"

	"github.com/ggoodman/aem-mcp-server-go/assets"
	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
)

func (t *Toolkit) assetsClient(c *call) *assets.Client {
	return assets.NewClient(c.caller, assets.WithLogger(c.log))
}

type searchAssetsArgs struct {
	Connection
	Query        string  `json:"query,omitempty" jsonschema:"description=Matches file names and title and description and subject and SKU metadata."`
	Filename     string  `json:"filename,omitempty" jsonschema:"description=Substring of the asset file name."`
	Title        string  `json:"title,omitempty" jsonschema:"description=Substring of dc:title."`
	DamPath      string  `json:"damPath,omitempty" jsonschema:"description=Folder to search. Defaults to /content/dam."`
	Limit        int     `json:"limit,omitempty" jsonschema:"description=Page size. Defaults to 50."`
	Offset       int     `json:"offset,omitempty"`
	SearchValue  *string `json:"searchValue,omitempty" jsonschema:"description=Text to replace in the returned metadata. Requires replaceValue."`
	ReplaceValue *string `json:"replaceValue,omitempty" jsonschema:"description=Replacement text. May be empty."`
}

func (a searchAssetsArgs) query() assets.SearchQuery {
	return assets.SearchQuery{
		GeneralQuery: a.Query,
		Filename:     a.Filename,
		Title:        a.Title,
		BasePath:     a.DamPath,
		Limit:        a.Limit,
		Offset:       a.Offset,
		SearchValue:  a.SearchValue,
		ReplaceValue: a.ReplaceValue,
	}
}

func (t *Toolkit) searchAssetsTool() mcpservice.StaticTool {
	const name = "aem_search_assets"
	return mcpservice.NewToolWithOutput[searchAssetsArgs, assets.SearchResult](name, func(ctx context.Context, w mcpservice.ToolResponseWriterTyped[assets.SearchResult], r *mcpservice.ToolRequest[searchAssetsArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		res, err := t.assetsClient(c).SearchAssets(ctx, a.query())
		if err != nil {
			return c.fail(ctx, w, err)
		}
		w.SetStructured(*res)
		summary := fmt.Sprintf("Found %d asset(s), showing %d from offset %d", res.Total, res.Count, res.Offset)
		if a.SearchValue != nil {
			changed := 0
			for _, hit := range res.Results {
				if len(hit.Changes) > 0 {
					changed++
				}
			}
			summary += fmt.Sprintf("; replacement preview changes %d asset(s) and nothing was written", changed)
			if err := c.ok(ctx, w, summary, res); err != nil {
				return err
			}
			return appendDiffs(w, res)
		}
		return c.ok(ctx, w, summary, res)
	},
		mcpservice.WithToolTitle("Search assets"),
		mcpservice.WithToolDescription("Search DAM assets by text, file name or title. Optionally preview a search-and-replace over the returned metadata."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{ReadOnlyHint: true}),
	)
}

func appendDiffs(w mcpservice.ToolResponseWriter, res *assets.SearchResult) error {
	for _, hit := range res.Results {
		for _, ch := range hit.Changes {
			if err := w.AppendText(fmt.Sprintf("%s %s: %s", hit.Path, ch.Field, ch.Diff)); err != nil {
				return err
			}
		}
	}
	return nil
}

type renameAssetArgs struct {
	Connection
	AssetPath string `json:"assetPath" jsonschema:"description=Asset to rename. Must be under /content/dam."`
	NewName   string `json:"newName" jsonschema:"description=New file name. Any folder part is dropped."`
}

func (t *Toolkit) renameAssetTool() mcpservice.StaticTool {
	const name = "aem_rename_asset"
	return mcpservice.NewTool[renameAssetArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[renameAssetArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		res, err := t.assetsClient(c).RenameAsset(ctx, a.AssetPath, a.NewName)
		if err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, fmt.Sprintf("Renamed %s to %s", res.OldPath, res.NewPath), res)
	},
		mcpservice.WithToolTitle("Rename asset"),
		mcpservice.WithToolDescription("Rename a DAM asset in place. Fails if the target name is taken."),
	)
}

type updateAssetMetadataArgs struct {
	Connection
	AssetPath string         `json:"assetPath" jsonschema:"description=Asset whose metadata is written."`
	Metadata  map[string]any `json:"metadata" jsonschema:"description=Properties to write such as dc:title."`
	Mode      string         `json:"mode,omitempty" jsonschema:"enum=merge,enum=replace,description=merge (default) or replace."`
}

func (t *Toolkit) updateAssetMetadataTool() mcpservice.StaticTool {
	const name = "aem_update_asset_metadata"
	return mcpservice.NewTool[updateAssetMetadataArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[updateAssetMetadataArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		res, err := t.assetsClient(c).UpdateAssetMetadata(ctx, assets.UpdateMetadataRequest{
			AssetPath: a.AssetPath,
			Metadata:  a.Metadata,
			Mode:      a.Mode,
		})
		if err != nil {
			return c.fail(ctx, w, err)
		}
		summary := fmt.Sprintf("Updated %d field(s) on %s (%s)", len(res.Updated), res.AssetPath, res.Mode)
		if res.Unchanged {
			summary = fmt.Sprintf("Metadata on %s already matched; nothing changed", res.AssetPath)
		}
		return c.ok(ctx, w, summary, res)
	},
		mcpservice.WithToolTitle("Update asset metadata"),
		mcpservice.WithToolDescription("Write asset metadata. merge overlays and unions arrays; replace also removes properties that are not supplied."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{IdempotentHint: true}),
	)
}

type startWorkflowArgs struct {
	Connection
	ModelPath   string `json:"modelPath" jsonschema:"description=Workflow model such as /var/workflow/models/dam/update_asset."`
	PayloadPath string `json:"payloadPath" jsonschema:"description=Content path the workflow runs on."`
}

func (t *Toolkit) startWorkflowTool() mcpservice.StaticTool {
	const name = "aem_start_workflow"
	return mcpservice.NewTool[startWorkflowArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[startWorkflowArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		inst, err := t.assetsClient(c).StartWorkflow(ctx, a.ModelPath, a.PayloadPath)
		if err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, fmt.Sprintf("Started %s on %s", inst.Model, inst.Payload), inst)
	},
		mcpservice.WithToolTitle("Start workflow"),
		mcpservice.WithToolDescription("Start a workflow on a content path. Only the start is reported; the workflow runs asynchronously."),
	)
}

type createContentFragmentArgs struct {
	Connection
	ParentPath  string         `json:"parentPath" jsonschema:"description=DAM folder for the fragment."`
	Name        string         `json:"name" jsonschema:"description=Fragment node name."`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	ModelPath   string         `json:"modelPath" jsonschema:"description=Content fragment model path."`
	Elements    map[string]any `json:"elements,omitempty" jsonschema:"description=Initial element values keyed by element name."`
}

func (t *Toolkit) createContentFragmentTool() mcpservice.StaticTool {
	const name = "aem_create_content_fragment"
	return mcpservice.NewTool[createContentFragmentArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createContentFragmentArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		frag, err := t.assetsClient(c).CreateContentFragment(ctx, assets.ContentFragmentConfig{
			ParentPath:  a.ParentPath,
			Name:        a.Name,
			Title:       a.Title,
			Description: a.Description,
			ModelPath:   a.ModelPath,
			Elements:    a.Elements,
		})
		if err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, fmt.Sprintf("Created content fragment %s", frag.Path), frag)
	},
		mcpservice.WithToolTitle("Create content fragment"),
		mcpservice.WithToolDescription("Create a content fragment from a model through the Assets HTTP API."),
	)
}
