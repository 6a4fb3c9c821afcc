package assets

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/slingform"
)

// RenameResult reports a completed move.
type RenameResult struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
	Name    string `json:"name"`
}

// RenameAsset moves assetPath to a sibling named newName. The path is
// validated before any remote call. The destination probe is advisory: if it
// cannot answer, the move itself decides.
func (c *Client) RenameAsset(ctx context.Context, assetPath, newName string) (*RenameResult, error) {
	assetPath = strings.TrimRight(assetPath, "/")
	if err := checkDAMPath("assetPath", assetPath); err != nil {
		return nil, err
	}
	name := bareName(newName)
	if name == "" {
		return nil, aem.Errorf(aem.KindValidation, "newName must be a file name, got %q", newName)
	}
	dest := path.Dir(assetPath) + "/" + name
	if dest == assetPath {
		return nil, aem.Errorf(aem.KindValidation, "%s is already named %q", assetPath, name)
	}
	log := c.log.With(slog.String("asset_path", assetPath), slog.String("dest", dest))

	ok, err := c.caller.Exists(ctx, assetPath)
	if err != nil {
		return nil, aem.Wrap(aem.KindProvisioning, "Failed to check source asset", err)
	}
	if !ok {
		return nil, &aem.Error{Kind: aem.KindNotFound, Status: http.StatusNotFound, Message: "Asset not found: " + assetPath}
	}

	switch exists, err := c.caller.Exists(ctx, dest); {
	case err != nil:
		log.WarnContext(ctx, "asset.rename.probe_fail", slog.String("err", err.Error()))
	case exists:
		return nil, aem.Errorf(aem.KindConflict, "An asset named %q already exists in %s", name, path.Dir(assetPath))
	}

	form := slingform.New().
		Operation("move").
		Set(":dest", dest)
	resp, err := c.caller.PostForm(ctx, assetPath, form)
	if err != nil {
		return nil, aem.Wrap(aem.KindProvisioning, "Failed to rename asset", err)
	}
	if !resp.OK() {
		e := aem.StatusError(aem.KindProvisioning, "rename asset", resp)
		if strings.Contains(aem.ResponseMessage(resp), "already exists") {
			e.Kind = aem.KindConflict
		}
		log.WarnContext(ctx, "asset.rename.fail", slog.String("err", e.Error()))
		return nil, e
	}
	log.InfoContext(ctx, "asset.rename.ok")
	return &RenameResult{OldPath: assetPath, NewPath: dest, Name: name}, nil
}

// bareName strips any directory component from a user supplied name.
func bareName(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\`, "/"))
	s = strings.TrimRight(s, "/")
	if s == "" {
		return ""
	}
	base := path.Base(s)
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return base
}
