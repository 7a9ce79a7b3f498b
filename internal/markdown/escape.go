package markdown

import "strings"

// Characters with inline meaning in CommonMark.
const specialChars = "\\`*_[]<>#|!"

//nolint:gochecknoglobals // Lookup tables meant to be immutable.
var (
	commonMarkEscaper = newEscaper(specialChars)
	mdV2Escaper       = newEscaper(mdV2SpecialChars)
)

// Escape backslash-escapes the characters of input that would otherwise be
// read as markup.
func Escape(input string) string {
	return commonMarkEscaper.escape(input)
}

// escaper backslash-escapes every byte marked in its lookup table. All marked
// characters are ASCII, so multi-byte runes pass through untouched.
type escaper [256]bool

func newEscaper(chars string) *escaper {
	var e escaper
	for i := range len(chars) {
		e[chars[i]] = true
	}
	return &e
}

func (e *escaper) escape(input string) string {
	charsToEscape := 0

	for i := range len(input) {
		if e[input[i]] {
			charsToEscape++
		}
	}

	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if e[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}
