package assets

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change is one string leaf rewritten by ReplaceInMetadata.
type Change struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
	Diff   string `json:"diff"`
}

// ReplaceInMetadata returns a copy of md in which every string leaf, at any
// depth, has all case-insensitive occurrences of search replaced. md is not
// modified. Changes are reported in field order.
func ReplaceInMetadata(md map[string]any, search, replace string) (map[string]any, []Change) {
	if md == nil {
		return nil, nil
	}
	if search == "" {
		out, _ := copyValue(md, "", nil, nil).(map[string]any)
		return out, nil
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(search))
	var changes []Change
	out, _ := copyValue(md, "", func(s string) string {
		return re.ReplaceAllLiteralString(s, replace)
	}, &changes).(map[string]any)
	return out, changes
}

// copyValue deep-copies v, applying fn to string leaves when fn is set.
func copyValue(v any, field string, fn func(string) string, changes *[]Change) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = copyValue(val[k], joinField(field, k), fn, changes)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e, field+"["+strconv.Itoa(i)+"]", fn, changes)
		}
		return out
	case string:
		if fn == nil {
			return val
		}
		after := fn(val)
		if after != val {
			*changes = append(*changes, Change{Field: field, Before: val, After: after, Diff: renderDiff(val, after)})
		}
		return after
	}
	return v
}

func joinField(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// renderDiff shows a replacement inline as [-removed-]{+added+}.
func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

// titleOf returns dc:title as a string. Multi-valued titles use the first
// value.
func titleOf(md map[string]any) string {
	switch t := md["dc:title"].(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
