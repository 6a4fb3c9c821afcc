package sites

import (
	"strings"
	"unicode"
)

// Sanitize maps a display name to a path-safe node name: lower-cased,
// whitespace runs become a single hyphen, and every other rune outside
// [a-z0-9-] becomes a hyphen. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// deriveName turns a title into a node name before sanitization.
func deriveName(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "-")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
