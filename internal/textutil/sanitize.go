// Package textutil provides filename and label sanitization for the
// artifact tree.
package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// StripBrackets removes bracket and slash characters from a label fragment.
// Subtitle track labels embed their language in parentheses, so a title
// carrying its own brackets would corrupt the label syntax.
func StripBrackets(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '[', ']', '{', '}', '/', '\\':
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(cleaned)
}
