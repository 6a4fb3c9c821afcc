package sites

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/slingform"
)

// wcmCommandPath is the page-management servlet used for structured deletes.
const wcmCommandPath = "/bin/wcmcommand"

// SiteSummary is one entry of ListSites.
type SiteSummary struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

// SiteInfo is the read-only view returned by GetSiteInfo.
type SiteInfo struct {
	Path         string        `json:"path"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	TemplatePath string        `json:"templatePath,omitempty"`
	Language     string        `json:"language,omitempty"`
	LastModified string        `json:"lastModified,omitempty"`
	Pages        []SiteSummary `json:"pages"`
}

// DeleteSite removes the page tree at path. It refuses to act without
// confirm.
func (c *Client) DeleteSite(ctx context.Context, path string, confirm bool) error {
	path = strings.TrimRight(path, "/")
	if !confirm {
		return aem.Errorf(aem.KindConfiguration, "Refusing to delete %s without confirm=true", path)
	}
	if err := checkDeletable(path); err != nil {
		return err
	}

	form := slingform.New().
		Set("_charset_", "utf-8").
		Set("cmd", "deletePage").
		Set("path", path).
		Set("force", "true")
	resp, err := c.caller.PostForm(ctx, wcmCommandPath, form)
	if err != nil {
		return aem.Wrap(aem.KindProvisioning, "Failed to delete site", err)
	}
	if !resp.OK() {
		kind := aem.KindProvisioning
		if resp.Status == http.StatusNotFound {
			kind = aem.KindNotFound
		}
		return &aem.Error{
			Kind:    kind,
			Op:      "delete site",
			Status:  resp.Status,
			Message: "Failed to delete site: " + orDefault(aem.ResponseMessage(resp), http.StatusText(resp.Status)),
		}
	}
	c.log.InfoContext(ctx, "site.delete.ok", slog.String("path", path))
	return nil
}

// deleteNode is the low-level Sling delete. A missing node counts as
// deleted.
func (c *Client) deleteNode(ctx context.Context, path string) error {
	if err := checkDeletable(path); err != nil {
		return err
	}
	resp, err := c.caller.PostForm(ctx, path, slingform.New().Operation("delete"))
	if err != nil {
		return err
	}
	if resp.OK() || resp.Status == http.StatusNotFound {
		return nil
	}
	return aem.StatusError(aem.KindProvisioning, "delete "+path, resp)
}

// checkDeletable rejects paths that would remove a repository root.
func checkDeletable(path string) error {
	if !strings.HasPrefix(path, "/content/") || strings.Count(path, "/") < 2 {
		return aem.Errorf(aem.KindConfiguration, "Refusing to delete %q: path must be below /content", path)
	}
	return nil
}

// GetSiteInfo reads a site root and its immediate pages.
func (c *Client) GetSiteInfo(ctx context.Context, path string) (*SiteInfo, error) {
	path = strings.TrimRight(path, "/")
	resp, err := c.caller.Get(ctx, path+".2.json", nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, &aem.Error{Kind: aem.KindNotFound, Status: resp.Status, Message: "Site not found: " + path}
	}
	if !resp.OK() {
		return nil, aem.StatusError(aem.KindProtocol, "read site", resp)
	}

	tree, err := decodeTree(resp.Body)
	if err != nil {
		return nil, &aem.Error{Kind: aem.KindProtocol, Op: "decode " + path, Err: err}
	}
	var content struct {
		Title        string `json:"jcr:title"`
		Template     string `json:"cq:template"`
		Language     string `json:"jcr:language"`
		LastModified string `json:"cq:lastModified"`
	}
	if raw, ok := tree.Get("jcr:content"); ok {
		if err := json.Unmarshal(raw, &content); err != nil {
			c.log.DebugContext(ctx, "site.info.content_unreadable", slog.String("path", path), slog.String("err", err.Error()))
		}
	}
	info := &SiteInfo{
		Path:         path,
		Name:         path[strings.LastIndex(path, "/")+1:],
		Title:        content.Title,
		TemplatePath: content.Template,
		Language:     content.Language,
		LastModified: content.LastModified,
		Pages:        childPages(path, tree),
	}
	return info, nil
}

// ListSites returns the cq:Page children of parentPath in repository order.
// An absent or empty parent yields an empty slice.
func (c *Client) ListSites(ctx context.Context, parentPath string) ([]SiteSummary, error) {
	parent := strings.TrimRight(parentPath, "/")
	if parent == "" {
		parent = DefaultParentPath
	}
	resp, err := c.caller.Get(ctx, parent+".2.json", nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return []SiteSummary{}, nil
	}
	if !resp.OK() {
		return nil, aem.StatusError(aem.KindProtocol, "list sites", resp)
	}
	tree, err := decodeTree(resp.Body)
	if err != nil {
		return nil, &aem.Error{Kind: aem.KindProtocol, Op: "decode " + parent, Err: err}
	}
	return childPages(parent, tree), nil
}

type nodeTree = orderedmap.OrderedMap[string, json.RawMessage]

// decodeTree keeps the child order Sling returns, which a plain map loses.
func decodeTree(body []byte) (*nodeTree, error) {
	tree := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(body, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func childPages(parent string, tree *nodeTree) []SiteSummary {
	out := []SiteSummary{}
	for pair := tree.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "jcr:content" || len(pair.Value) == 0 || pair.Value[0] != '{' {
			continue
		}
		var child struct {
			PrimaryType string `json:"jcr:primaryType"`
			Content     struct {
				Title string `json:"jcr:title"`
			} `json:"jcr:content"`
		}
		if err := json.Unmarshal(pair.Value, &child); err != nil || child.PrimaryType != "cq:Page" {
			continue
		}
		out = append(out, SiteSummary{
			Name:  pair.Key,
			Path:  parent + "/" + pair.Key,
			Title: orDefault(child.Content.Title, pair.Key),
		})
	}
	return out
}
