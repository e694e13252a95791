package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeText strips all markup from user-supplied text and returns plain
// text: null bytes removed, whitespace runs collapsed, ends trimmed.
func SanitizeText(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = html.UnescapeString(htmlPolicy.Sanitize(input))
	return strings.Join(strings.Fields(input), " ")
}

// SanitizeMessage cleans an optional request message. It returns nil for a
// missing or blank message and ok=false when the cleaned text exceeds
// maxRunes.
func SanitizeMessage(input *string, maxRunes int) (out *string, ok bool) {
	if input == nil {
		return nil, true
	}
	cleaned := SanitizeText(*input)
	if cleaned == "" {
		return nil, true
	}
	if utf8.RuneCountInString(cleaned) > maxRunes {
		return nil, false
	}
	return &cleaned, true
}
