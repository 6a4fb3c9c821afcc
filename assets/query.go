package assets

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ggoodman/aem-mcp-server-go/aem"
)

// Defaults for SearchQuery.
const (
	DefaultDAMPath = "/content/dam"
	DefaultLimit   = 50
)

const (
	metadataPrefix = "jcr:content/metadata/"
	orderByField   = "@jcr:content/jcr:lastModified"
)

// generalFields are the metadata properties a free-text query matches.
var generalFields = []string{
	metadataPrefix + "dc:title",
	metadataPrefix + "dc:description",
	metadataPrefix + "dc:subject",
	metadataPrefix + "sku",
}

// SearchQuery selects assets. At least one of GeneralQuery, Filename and
// Title is required. SearchValue requires ReplaceValue, which may be "".
type SearchQuery struct {
	GeneralQuery string
	Filename     string
	Title        string
	BasePath     string
	Limit        int
	Offset       int
	SearchValue  *string
	ReplaceValue *string
}

// Validate checks the field combination rules.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.GeneralQuery) == "" && strings.TrimSpace(q.Filename) == "" && strings.TrimSpace(q.Title) == "" {
		return aem.Errorf(aem.KindValidation, "at least one of query, filename or title is required")
	}
	if q.SearchValue != nil && q.ReplaceValue == nil {
		return aem.Errorf(aem.KindValidation, "replaceValue is required when searchValue is set (an empty string is allowed)")
	}
	if q.SearchValue != nil && *q.SearchValue == "" {
		return aem.Errorf(aem.KindValidation, "searchValue must not be empty")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return aem.Errorf(aem.KindValidation, "limit and offset must not be negative")
	}
	return nil
}

func (q SearchQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q SearchQuery) basePath() string {
	if p := strings.TrimRight(q.BasePath, "/"); p != "" {
		return p
	}
	return DefaultDAMPath
}

// BuildQuery renders q as QueryBuilder parameters. Each input becomes its own
// numbered predicate group; groups are ANDed, and the free-text group is an
// OR across the node name and generalFields.
func BuildQuery(q SearchQuery) (url.Values, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("path", q.basePath())
	v.Set("type", "dam:Asset")

	group := 0
	next := func() string {
		group++
		return strconv.Itoa(group) + "_group."
	}

	if s := strings.TrimSpace(q.GeneralQuery); s != "" {
		g := next()
		v.Set(g+"p.or", "true")
		v.Set(g+"1_nodename", "*"+EscapeGlob(s)+"*")
		for i, field := range generalFields {
			p := g + strconv.Itoa(i+2) + "_property"
			v.Set(p, field)
			v.Set(p+".value", "%"+EscapeLike(s)+"%")
			v.Set(p+".operation", "like")
		}
	}
	if s := strings.TrimSpace(q.Filename); s != "" {
		v.Set(next()+"nodename", "*"+EscapeGlob(s)+"*")
	}
	if s := strings.TrimSpace(q.Title); s != "" {
		g := next()
		v.Set(g+"property", metadataPrefix+"dc:title")
		v.Set(g+"property.value", "%"+EscapeLike(s)+"%")
		v.Set(g+"property.operation", "like")
	}

	v.Set("orderby", orderByField)
	v.Set("orderby.sort", "desc")
	v.Set("p.limit", strconv.Itoa(q.limit()))
	v.Set("p.offset", strconv.Itoa(q.Offset))
	return v, nil
}

// EscapeGlob escapes the node-name glob metacharacters \ * ? [ ] { }.
func EscapeGlob(s string) string {
	return escape(s, `\*?[]{}`)
}

// EscapeLike escapes the LIKE metacharacters \ % _.
func EscapeLike(s string) string {
	return escape(s, `\%_`)
}

func escape(s, special string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
