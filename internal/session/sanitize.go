package session

import (
	"strings"
	"unicode"
)

// maxUserTextLen caps sanitized user input in runes.
const maxUserTextLen = 2000

// SanitizeUserText removes NUL and other control characters, collapses runs
// of whitespace, trims, and caps the length. User text reaches prompts and
// logs verbatim afterwards, so it must be clean first.
func SanitizeUserText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(cleaned)
	if len(runes) > maxUserTextLen {
		runes = runes[:maxUserTextLen]
	}
	return string(runes)
}
