// Package textnorm canonicalizes free text before matching.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRe   = regexp.MustCompile(`\s+`)
	nonClosureRe   = regexp.MustCompile(`[^a-z0-9 ]`)
	namePunctRe    = regexp.MustCompile(`[-.,]`)
	nonNameCharsRe = regexp.MustCompile(`[^A-Z ]`)
)

// blankValues are spreadsheet placeholders that mean "no value".
var blankValues = map[string]bool{
	"":         true,
	"-":        true,
	"n/a":      true,
	"(vacio)":  true,
	"sin dato": true,
	"nan":      true,
	"none":     true,
}

// StripAccents removes combining marks (á -> a, ñ -> n).
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases, strips accents and trims s.
func Fold(s string) string {
	return strings.TrimSpace(StripAccents(strings.ToLower(s)))
}

// IsBlank reports whether s is empty or one of the spreadsheet placeholders.
func IsBlank(s string) bool {
	return blankValues[Fold(s)]
}

// Closure normalizes an outcome description for the categorizer:
// folded, underscores and dashes turned into spaces, anything outside
// [a-z0-9 ] replaced by a space and whitespace collapsed.
func Closure(s string) string {
	s = Fold(s)
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = nonClosureRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// PersonName upper-cases a first or last name and keeps only letters and
// single spaces. Returns "" when nothing is left.
func PersonName(s string) string {
	s = StripAccents(strings.ToUpper(strings.TrimSpace(s)))
	if s == "" {
		return ""
	}
	s = namePunctRe.ReplaceAllString(s, " ")
	s = nonNameCharsRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
