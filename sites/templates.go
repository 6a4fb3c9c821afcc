package sites

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/slingform"
)

// Defaults applied when a config leaves a field empty.
const (
	DefaultParentPath       = "/content"
	DefaultTemplatePath     = "/libs/wcm/foundation/templates/page"
	DefaultPageResourceType = "wcm/foundation/components/basicpage/v1/basicpage"
	DefaultLanguage         = "en"
	DefaultCountry          = "us"

	responsiveGridType = "wcm/foundation/components/responsivegrid"
	titleType          = "core/wcm/components/title/v2/title"
	teaserType         = "core/wcm/components/teaser/v1/teaser"

	// DefaultContainer is the page-relative path components are added to.
	DefaultContainer = "root/container"
)

// DefaultPages are created by CreateMicrosite when no page list is given.
var DefaultPages = []string{"home", "about", "contact"}

// siteForm is the create-node payload for a site root.
func siteForm(s *Site) *slingform.Builder {
	b := slingform.New()
	b.Set("jcr:primaryType", "cq:Page")
	b.Node("jcr:content").
		PrimaryType("cq:PageContent").
		Set("jcr:title", s.Title).
		Set("cq:template", s.TemplatePath).
		ResourceType(DefaultPageResourceType).
		Set("jcr:language", locale(s.Language, s.Country))
	return b
}

// pageForm is the create-node payload for a page: a root layout container,
// a nested responsive grid and placeholder title and teaser components.
func pageForm(p *Page, templatePath string) *slingform.Builder {
	b := slingform.New()
	b.Set("jcr:primaryType", "cq:Page")
	content := b.Node("jcr:content").
		PrimaryType("cq:PageContent").
		Set("jcr:title", p.Title).
		Set("cq:template", templatePath).
		ResourceType(DefaultPageResourceType)

	root := content.Child("root").
		PrimaryType("nt:unstructured").
		ResourceType(responsiveGridType)
	container := root.Child("container").
		PrimaryType("nt:unstructured").
		ResourceType(responsiveGridType)
	container.Child("title").
		PrimaryType("nt:unstructured").
		ResourceType(titleType).
		Set("jcr:title", p.Title).
		Set("type", "h1")
	container.Child("teaser").
		PrimaryType("nt:unstructured").
		ResourceType(teaserType).
		Set("jcr:title", p.Title).
		Set("jcr:description", fmt.Sprintf("Welcome to the %s page.", p.Title))
	return b
}

// componentForm is the create-node payload for a single component.
// Properties are written in key order so the payload is stable.
func componentForm(resourceType string, props map[string]any) *slingform.Builder {
	b := slingform.New()
	b.Set("jcr:primaryType", "nt:unstructured")
	b.Set("sling:resourceType", resourceType)

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.SetValue(k, props[k])
	}
	return b
}

func locale(language, country string) string {
	if country == "" {
		return language
	}
	return language + "_" + strings.ToUpper(country)
}
