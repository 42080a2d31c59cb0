package sanitizer

import (
	"strings"
	"unicode"
)

// SanitizeLabel cleans short display strings (turf names, locations): control
// characters removed, internal whitespace collapsed to single spaces, ends
// trimmed.
func SanitizeLabel(s string) string {
	return strings.Join(strings.Fields(stripControl(s)), " ")
}

// SanitizeFreeText cleans longer text (descriptions, booking notes). Newlines
// survive; other control characters do not.
func SanitizeFreeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
