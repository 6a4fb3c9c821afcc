package aemtools

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
)

//go:embed docs/*.md
var docsFS embed.FS

const markdown = "text/markdown"

// Resource URIs.
const (
	SitesGuideURI  = "aem://docs/sites"
	SearchGuideURI = "aem://docs/search"
)

// Resources returns the static guides.
func Resources() []mcpservice.StaticResource {
	return []mcpservice.StaticResource{
		mcpservice.TextResource(SitesGuideURI, "sites", "Site provisioning guide", markdown, doc("sites.md")),
		mcpservice.TextResource(SearchGuideURI, "search", "Asset search and redaction guide", markdown, doc("search.md")),
	}
}

func doc(name string) string {
	b, err := docsFS.ReadFile("docs/" + name)
	if err != nil {
		panic(fmt.Sprintf("aemtools: missing embedded doc %s: %v", name, err))
	}
	return string(b)
}

// Prompts returns the workflow prompts.
func Prompts() []mcpservice.StaticPrompt {
	return []mcpservice.StaticPrompt{
		{
			Descriptor: mcp.Prompt{
				Name:        "provision_microsite",
				Description: "Plan and create a microsite with its pages",
				Arguments: []mcp.PromptArgument{
					{Name: "siteTitle", Description: "Title of the new site", Required: true},
					{Name: "pages", Description: "Comma separated page names"},
				},
			},
			Handler: provisionMicrositePrompt,
		},
		{
			Descriptor: mcp.Prompt{
				Name:        "redact_asset_metadata",
				Description: "Find assets mentioning a value and redact it from their metadata",
				Arguments: []mcp.PromptArgument{
					{Name: "searchValue", Description: "Text to remove", Required: true},
					{Name: "replaceValue", Description: "Replacement text. Defaults to [REDACTED]"},
					{Name: "damPath", Description: "Folder to search"},
				},
			},
			Handler: redactAssetMetadataPrompt,
		},
	}
}

func provisionMicrositePrompt(_ context.Context, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
	title := req.Arguments["siteTitle"]
	var b strings.Builder
	fmt.Fprintf(&b, "Create a microsite titled %q in AEM.\n\n", title)
	b.WriteString("1. Call aem_list_sites to check whether a site with the same name already exists under /content.\n")
	if pages := splitList(req.Arguments["pages"]); len(pages) > 0 {
		fmt.Fprintf(&b, "2. Call aem_create_microsite with siteTitle %q and pages %s.\n", title, strings.Join(pages, ", "))
	} else {
		fmt.Fprintf(&b, "2. Call aem_create_microsite with siteTitle %q and the default pages.\n", title)
	}
	b.WriteString("3. If it fails with ProvisioningConflict, ask me before retrying with overwrite set to true.\n")
	b.WriteString("4. Report the site path, the editor URL and any pages listed under failed.\n")
	b.WriteString("\nSee " + SitesGuideURI + " for naming rules.")
	return &mcp.GetPromptResult{
		Description: "Provision " + title,
		Messages:    []mcp.PromptMessage{mcpservice.UserText(b.String())},
	}, nil
}

func redactAssetMetadataPrompt(_ context.Context, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
	search := req.Arguments["searchValue"]
	replace := req.Arguments["replaceValue"]
	if replace == "" {
		replace = "[REDACTED]"
	}
	scope := "the DAM"
	if p := req.Arguments["damPath"]; p != "" {
		scope = p
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Redact %q from asset metadata in %s.\n\n", search, scope)
	fmt.Fprintf(&b, "1. Call aem_search_assets with query %q, searchValue %q and replaceValue %q", search, search, replace)
	if scope != "the DAM" {
		fmt.Fprintf(&b, " and damPath %q", scope)
	}
	b.WriteString(". This only previews the change.\n")
	b.WriteString("2. Show me the diffs and wait for my approval.\n")
	b.WriteString("3. For each approved asset call aem_update_asset_metadata in merge mode with only the changed fields.\n")
	b.WriteString("\nSee " + SearchGuideURI + " for query semantics.")
	return &mcp.GetPromptResult{
		Description: "Redact " + search,
		Messages:    []mcp.PromptMessage{mcpservice.UserText(b.String())},
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
