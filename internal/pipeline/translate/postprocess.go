package translate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PostProcess cleans up raw sign→text model output: trims surrounding
// whitespace, upper-cases the first letter, and appends a terminal '.' unless
// the text already ends in '.', '!', or '?'.
//
// The function is deterministic, locale-independent, and idempotent:
// PostProcess(PostProcess(x)) == PostProcess(x).
func PostProcess(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(text)
	if up := unicode.ToUpper(r); up != r {
		text = string(up) + text[size:]
	}

	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	return text
}

// Normalize prepares spoken-language input for the text→sign model: trims
// surrounding whitespace, lower-cases, and collapses runs of repeated
// terminal punctuation ("..." → ".", "!!" → "!", "??" → "?").
//
// Like [PostProcess], Normalize is idempotent.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ToLower(text)
	for _, p := range []string{"..", "!!", "??"} {
		single := p[:1]
		for strings.Contains(text, p) {
			text = strings.ReplaceAll(text, p, single)
		}
	}
	return text
}
