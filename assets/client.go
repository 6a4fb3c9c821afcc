// Package assets searches, renames and annotates DAM assets.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
)

const queryBuilderPath = "/bin/querybuilder.json"

// Client talks to the DAM through one authenticated caller.
type Client struct {
	caller *aem.Caller
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = logctx.Wrap(l) }
}

// NewClient returns a Client over caller.
func NewClient(caller *aem.Caller, opts ...Option) *Client {
	c := &Client{caller: caller, log: logctx.Wrap(nil)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssetResult is one search hit.
type AssetResult struct {
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
	URL      string         `json:"url"`
	Changes  []Change       `json:"changes,omitempty"`
}

// SearchResult is a page of hits.
type SearchResult struct {
	Total   int           `json:"total"`
	Results []AssetResult `json:"results"`
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

type queryResponse struct {
	Success bool `json:"success"`
	Results int  `json:"results"`
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Hits    []struct {
		Path string `json:"path"`
		Name string `json:"name"`
	} `json:"hits"`
}

// SearchAssets runs q, fetches metadata for every hit and, when
// q.SearchValue is set, applies the replacement to the fetched metadata.
// Replacement never writes back.
func (c *Client) SearchAssets(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	params, err := BuildQuery(q)
	if err != nil {
		return nil, err
	}
	log := c.log.With(slog.String("base_path", q.basePath()))

	resp, err := c.caller.Get(ctx, queryBuilderPath, params)
	if err != nil {
		return nil, c.searchError(err.Error(), 0, err)
	}
	if !resp.OK() {
		log.WarnContext(ctx, "asset.search.fail", slog.Int("status", resp.Status))
		return nil, c.searchError(fmt.Sprintf("%d %s", resp.Status, orText(aem.ResponseMessage(resp), resp.Status)), resp.Status, nil)
	}
	var qr queryResponse
	if err := json.Unmarshal(resp.Body, &qr); err != nil {
		return nil, c.searchError("unreadable query response: "+err.Error(), resp.Status, err)
	}

	out := &SearchResult{
		Total:   qr.Total,
		Results: make([]AssetResult, 0, len(qr.Hits)),
		Limit:   q.limit(),
		Offset:  q.Offset,
	}
	for _, hit := range qr.Hits {
		name := hit.Name
		if name == "" {
			name = path.Base(hit.Path)
		}
		res := AssetResult{
			Path:     hit.Path,
			Name:     name,
			Title:    name,
			Metadata: map[string]any{},
			URL:      c.caller.URL(hit.Path, nil),
		}
		if md, err := c.fetchMetadata(ctx, hit.Path); err == nil {
			res.Metadata = md
			if t := titleOf(md); t != "" {
				res.Title = t
			}
		}
		if q.SearchValue != nil {
			res.Metadata, res.Changes = ReplaceInMetadata(res.Metadata, *q.SearchValue, *q.ReplaceValue)
			if t := titleOf(res.Metadata); t != "" {
				res.Title = t
			}
		}
		out.Results = append(out.Results, res)
	}
	out.Count = len(out.Results)
	log.InfoContext(ctx, "asset.search.ok", slog.Int("total", out.Total), slog.Int("count", out.Count))
	return out, nil
}

// searchError tags a query failure with the scheme in use so the caller can
// suggest switching.
func (c *Client) searchError(msg string, status int, cause error) error {
	scheme := "unknown"
	if c.caller.Credentials != nil {
		scheme = string(c.caller.Credentials.Scheme())
	}
	return &aem.Error{
		Kind:    aem.KindSearch,
		Op:      "search assets",
		Status:  status,
		Message: fmt.Sprintf("Asset search failed using %s authentication: %s", scheme, msg),
		Err:     cause,
	}
}

// fetchMetadata reads <asset>/jcr:content/metadata. Failures are logged and
// returned; callers treat them as non-fatal.
func (c *Client) fetchMetadata(ctx context.Context, assetPath string) (map[string]any, error) {
	log := c.log.With(slog.String("asset_path", assetPath))
	var md map[string]any
	err := c.caller.GetJSON(ctx, metadataNode(assetPath)+".json", nil, &md)
	if err != nil {
		switch aem.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			log.WarnContext(ctx, "asset.metadata.denied", slog.String("err", err.Error()))
		case http.StatusNotFound:
			log.DebugContext(ctx, "asset.metadata.missing")
		default:
			log.WarnContext(ctx, "asset.metadata.fail", slog.String("err", err.Error()))
		}
		return nil, err
	}
	if md == nil {
		md = map[string]any{}
	}
	return md, nil
}

func metadataNode(assetPath string) string {
	return strings.TrimRight(assetPath, "/") + "/jcr:content/metadata"
}

// checkDAMPath rejects paths outside the DAM root.
func checkDAMPath(field, p string) error {
	if !strings.HasPrefix(p, DefaultDAMPath+"/") || path.Clean(p) != p {
		return aem.Errorf(aem.KindValidation, "%s must be a path under %s, got %q", field, DefaultDAMPath, p)
	}
	return nil
}

func orText(msg string, status int) string {
	if msg != "" {
		return msg
	}
	return http.StatusText(status)
}
