package aemtools

import (
	"context"
	"fmt"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/mcpservice"
	"github.com/ggoodman/aem-mcp-server-go/sites"
)

type siteArgs struct {
	SiteTitle    string `json:"siteTitle" jsonschema:"description=Human readable site title."`
	SiteName     string `json:"siteName,omitempty" jsonschema:"description=Node name. Derived from siteTitle when omitted and always sanitized."`
	ParentPath   string `json:"parentPath,omitempty" jsonschema:"description=Parent path. Defaults to /content."`
	TemplatePath string `json:"templatePath,omitempty" jsonschema:"description=Page template for the site root."`
	Language     string `json:"language,omitempty" jsonschema:"description=Language code. Defaults to en."`
	Country      string `json:"country,omitempty" jsonschema:"description=Country code. Defaults to us."`
	Overwrite    bool   `json:"overwrite,omitempty" jsonschema:"description=Delete any existing content at the target path first. Only paths below /content/ can be overwritten."`
}

func (a siteArgs) config() sites.SiteConfig {
	return sites.SiteConfig{
		Title:        a.SiteTitle,
		Name:         a.SiteName,
		ParentPath:   a.ParentPath,
		TemplatePath: a.TemplatePath,
		Language:     a.Language,
		Country:      a.Country,
		Overwrite:    a.Overwrite,
	}
}

type createSiteArgs struct {
	Connection
	siteArgs
}

func (t *Toolkit) createSiteTool() mcpservice.StaticTool {
	const name = "aem_create_site"
	return mcpservice.NewTool[createSiteArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createSiteArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		site, err := t.sitesClient(c).CreateSite(ctx, a.config())
		if err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, fmt.Sprintf("Created site %q at %s", site.Title, site.Path), site)
	},
		mcpservice.WithToolTitle("Create site"),
		mcpservice.WithToolDescription("Create a site root page. Set overwrite to replace existing content at the same path below /content/."),
	)
}

type createMicrositeArgs struct {
	Connection
	siteArgs
	Pages []string `json:"pages,omitempty" jsonschema:"description=Page names to create under the site. Defaults to home about and contact."`
}

func (t *Toolkit) createMicrositeTool() mcpservice.StaticTool {
	const name = "aem_create_microsite"
	return mcpservice.NewTool[createMicrositeArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createMicrositeArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		res, err := t.sitesClient(c).CreateMicrosite(ctx, sites.MicrositeConfig{SiteConfig: a.config(), Pages: a.Pages})
		if err != nil {
			return c.fail(ctx, w, err)
		}
		summary := fmt.Sprintf("Created microsite %q at %s with %d page(s)", res.Site.Title, res.Site.Path, len(res.Pages))
		if len(res.Failed) > 0 {
			summary += fmt.Sprintf("; %d page(s) failed", len(res.Failed))
			w.SetMeta("failedPages", len(res.Failed))
		}
		return c.ok(ctx, w, summary, res)
	},
		mcpservice.WithToolTitle("Create microsite"),
		mcpservice.WithToolDescription("Create a site and a set of child pages in one call. Page failures are reported without undoing the site."),
	)
}

type createPageArgs struct {
	Connection
	SitePath     string `json:"sitePath" jsonschema:"description=Path of the parent site or page."`
	PageName     string `json:"pageName" jsonschema:"description=Page node name. Sanitized."`
	PageTitle    string `json:"pageTitle,omitempty" jsonschema:"description=Page title. Defaults to the capitalized name."`
	TemplatePath string `json:"templatePath,omitempty"`
	Overwrite    bool   `json:"overwrite,omitempty" jsonschema:"description=Delete an existing page at the target path first. Only paths below /content/ can be overwritten."`
}

func (t *Toolkit) createPageTool() mcpservice.StaticTool {
	const name = "aem_create_page"
	return mcpservice.NewTool[createPageArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createPageArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		page, err := t.sitesClient(c).CreatePage(ctx, sites.PageConfig{
			SitePath:     a.SitePath,
			Name:         a.PageName,
			Title:        a.PageTitle,
			TemplatePath: a.TemplatePath,
			Overwrite:    a.Overwrite,
		})
		if err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, fmt.Sprintf("Created page %q at %s", page.Title, page.Path), page)
	},
		mcpservice.WithToolTitle("Create page"),
		mcpservice.WithToolDescription("Create a page with a layout container and title and teaser placeholders."),
	)
}

type createComponentArgs struct {
	Connection
	PagePath     string         `json:"pagePath" jsonschema:"description=Page that receives the component."`
	ResourceType string         `json:"resourceType" jsonschema:"description=Sling resource type such as core/wcm/components/text/v2/text."`
	Name         string         `json:"name,omitempty" jsonschema:"description=Node name. Defaults to the last segment of resourceType."`
	Container    string         `json:"container,omitempty" jsonschema:"description=Container path relative to jcr:content. Defaults to root/container."`
	Properties   map[string]any `json:"properties,omitempty" jsonschema:"description=Component properties."`
}

func (t *Toolkit) createComponentTool() mcpservice.StaticTool {
	const name = "aem_create_component"
	return mcpservice.NewTool[createComponentArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createComponentArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		comp, err := t.sitesClient(c).CreateComponent(ctx, sites.ComponentConfig{
			PagePath:     a.PagePath,
			Name:         a.Name,
			ResourceType: a.ResourceType,
			Container:    a.Container,
			Properties:   a.Properties,
		})
		if err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, fmt.Sprintf("Added %s at %s", comp.ResourceType, comp.Path), comp)
	},
		mcpservice.WithToolTitle("Create component"),
		mcpservice.WithToolDescription("Add a component node to a page's layout container."),
	)
}

type deleteSiteArgs struct {
	Connection
	SitePath string `json:"sitePath" jsonschema:"description=Site root to delete. Must be under /content."`
	Confirm  bool   `json:"confirm,omitempty" jsonschema:"description=Must be true for the delete to run."`
}

func (t *Toolkit) deleteSiteTool() mcpservice.StaticTool {
	const name = "aem_delete_site"
	return mcpservice.NewTool[deleteSiteArgs](name, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[deleteSiteArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		if err := t.sitesClient(c).DeleteSite(ctx, a.SitePath, a.Confirm); err != nil {
			return c.fail(ctx, w, err)
		}
		return c.ok(ctx, w, "Deleted site "+a.SitePath, nil)
	},
		mcpservice.WithToolTitle("Delete site"),
		mcpservice.WithToolDescription("Delete a site and all of its pages. Requires confirm set to true."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{DestructiveHint: true, IdempotentHint: true}),
	)
}

type getSiteInfoArgs struct {
	Connection
	SitePath string `json:"sitePath" jsonschema:"description=Site root path."`
}

func (t *Toolkit) getSiteInfoTool() mcpservice.StaticTool {
	const name = "aem_get_site_info"
	return mcpservice.NewToolWithOutput[getSiteInfoArgs, sites.SiteInfo](name, func(ctx context.Context, w mcpservice.ToolResponseWriterTyped[sites.SiteInfo], r *mcpservice.ToolRequest[getSiteInfoArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		info, err := t.sitesClient(c).GetSiteInfo(ctx, a.SitePath)
		if err != nil {
			return c.fail(ctx, w, err)
		}
		w.SetStructured(*info)
		return c.ok(ctx, w, fmt.Sprintf("Site %q at %s has %d page(s)", info.Title, info.Path, len(info.Pages)), info)
	},
		mcpservice.WithToolTitle("Get site info"),
		mcpservice.WithToolDescription("Read a site's title, template, language and child pages."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{ReadOnlyHint: true}),
	)
}

// siteListing is the structured result of aem_list_sites.
type siteListing struct {
	ParentPath string              `json:"parentPath"`
	Sites      []sites.SiteSummary `json:"sites"`
}

type listSitesArgs struct {
	Connection
	ParentPath string `json:"parentPath,omitempty" jsonschema:"description=Parent path. Defaults to /content."`
}

func (t *Toolkit) listSitesTool() mcpservice.StaticTool {
	const name = "aem_list_sites"
	return mcpservice.NewToolWithOutput[listSitesArgs, siteListing](name, func(ctx context.Context, w mcpservice.ToolResponseWriterTyped[siteListing], r *mcpservice.ToolRequest[listSitesArgs]) error {
		a := r.Args()
		c, ok, err := t.open(ctx, w, name, a.Connection)
		if !ok {
			return err
		}
		parent := a.ParentPath
		if parent == "" {
			parent = sites.DefaultParentPath
		}
		list, err := t.sitesClient(c).ListSites(ctx, parent)
		if err != nil {
			return c.fail(ctx, w, err)
		}
		w.SetStructured(siteListing{ParentPath: parent, Sites: list})
		return c.ok(ctx, w, fmt.Sprintf("Found %d site(s) under %s", len(list), parent), list)
	},
		mcpservice.WithToolTitle("List sites"),
		mcpservice.WithToolDescription("List the pages directly under a parent path."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{ReadOnlyHint: true}),
	)
}
