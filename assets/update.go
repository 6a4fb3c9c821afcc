package assets

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/slingform"
)

// Update modes.
const (
	ModeMerge   = "merge"
	ModeReplace = "replace"
)

// UpdateMetadataRequest describes a metadata write.
type UpdateMetadataRequest struct {
	AssetPath string
	Metadata  map[string]any
	// Mode is ModeMerge (default) or ModeReplace.
	Mode string
}

// UpdateMetadataResult reports a metadata write.
type UpdateMetadataResult struct {
	AssetPath string   `json:"assetPath"`
	Mode      string   `json:"mode"`
	Updated   []string `json:"updated"`
	Removed   []string `json:"removed,omitempty"`
	// Unchanged is set when the repository answered 412, meaning the node
	// already carried the submitted properties.
	Unchanged bool `json:"unchanged,omitempty"`
}

// UpdateAssetMetadata writes metadata to <asset>/jcr:content/metadata.
//
// Merge reads the current properties and overlays the request; array values
// are unioned, keeping existing order first. Replace also removes every
// current property that is not system-owned and absent from the request.
func (c *Client) UpdateAssetMetadata(ctx context.Context, req UpdateMetadataRequest) (*UpdateMetadataResult, error) {
	assetPath := strings.TrimRight(req.AssetPath, "/")
	if err := checkDAMPath("assetPath", assetPath); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeMerge
	}
	if mode != ModeMerge && mode != ModeReplace {
		return nil, aem.Errorf(aem.KindValidation, "mode must be %q or %q, got %q", ModeMerge, ModeReplace, req.Mode)
	}
	if len(req.Metadata) == 0 {
		return nil, aem.Errorf(aem.KindValidation, "metadata must not be empty")
	}
	log := c.log.With(slog.String("asset_path", assetPath), slog.String("mode", mode))

	current, err := c.fetchMetadata(ctx, assetPath)
	if err != nil {
		if aem.StatusOf(err) == http.StatusNotFound {
			return nil, &aem.Error{Kind: aem.KindNotFound, Status: http.StatusNotFound, Message: "Asset not found: " + assetPath}
		}
		return nil, aem.Wrap(aem.KindProvisioning, "Failed to read current metadata", err)
	}

	next := req.Metadata
	if mode == ModeMerge {
		next = MergeMetadata(current, req.Metadata)
	}

	res := &UpdateMetadataResult{AssetPath: assetPath, Mode: mode, Updated: sortedKeys(req.Metadata)}
	form := slingform.New().Set("_charset_", "utf-8")
	for _, k := range sortedKeys(req.Metadata) {
		form.SetValue(k, next[k])
	}
	if mode == ModeReplace {
		for _, k := range sortedKeys(current) {
			if _, keep := req.Metadata[k]; keep || systemProperty(k) {
				continue
			}
			form.Delete(k)
			res.Removed = append(res.Removed, k)
		}
	}

	resp, err := c.caller.PostForm(ctx, metadataNode(assetPath), form)
	if err != nil {
		return nil, aem.Wrap(aem.KindProvisioning, "Failed to update metadata", err)
	}
	switch {
	case resp.OK(), resp.Status >= 300 && resp.Status < 400:
	case resp.Status == http.StatusPreconditionFailed:
		res.Unchanged = true
		log.InfoContext(ctx, "asset.update_metadata.unchanged")
	default:
		e := aem.StatusError(aem.KindProvisioning, "update metadata", resp)
		log.WarnContext(ctx, "asset.update_metadata.fail", slog.String("err", e.Error()))
		return nil, e
	}
	log.InfoContext(ctx, "asset.update_metadata.ok", slog.Int("updated", len(res.Updated)), slog.Int("removed", len(res.Removed)))
	return res, nil
}

// MergeMetadata overlays update on current without modifying either. When
// both sides hold arrays the result is their union.
func MergeMetadata(current, update map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(update))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range update {
		cur, curOK := current[k].([]any)
		add, addOK := v.([]any)
		if curOK && addOK {
			out[k] = union(cur, add)
			continue
		}
		out[k] = v
	}
	return out
}

func union(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := func(v any) bool {
		for _, e := range out {
			if reflect.DeepEqual(e, v) {
				return true
			}
		}
		return false
	}
	for _, v := range append(append([]any{}, a...), b...) {
		if !seen(v) {
			out = append(out, v)
		}
	}
	return out
}

// systemProperty reports properties owned by the repository or by asset
// processing, which a replace must not remove.
func systemProperty(k string) bool {
	for _, p := range []string{"jcr:", "dam:", "tiff:", "exif:", "xmp:", "cq:", "sling:"} {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
