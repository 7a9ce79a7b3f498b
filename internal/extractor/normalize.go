package extractor

import (
	"strings"
	"unicode"
)

// normalize drops control characters and collapses whitespace runs to a
// single space.
func normalize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == unicode.ReplacementChar:
			return -1
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		default:
			return r
		}
	}, s)

	return strings.Join(strings.Fields(cleaned), " ")
}
