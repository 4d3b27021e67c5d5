package evaluator

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize splits text into case-folded, accent-free words.
// Any rune that is neither a letter nor a digit separates words.
func Tokenize(text string) []string {
	folded := cases.Fold().String(stripAccents(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizeFeature maps a feature name onto the token space.
func normalizeFeature(feature string) string {
	return strings.Join(Tokenize(feature), " ")
}

// stripAccents removes combining marks after NFD normalization.
func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
