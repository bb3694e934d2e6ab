package content

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Case folding rather than plain lowercasing so that characters like ß
// expand to their ASCII-representable forms.
var folder = cases.Fold()

// Slugify normalizes a string into a URL-safe path segment: Unicode
// decomposition with combining marks stripped, case-folded, non-alphanumeric
// runs collapsed to single hyphens.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(s)
	lowered := folder.String(decomposed)

	var b strings.Builder
	b.Grow(len(lowered))
	pendingHyphen := false
	for _, r := range lowered {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
