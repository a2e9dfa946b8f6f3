package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a query or title into its search form: lowercase, accents
// stripped, whitespace collapsed. "Programación" and "programacion" normalize
// to the same text so Spanish searches match regardless of diacritics.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Document builds the searchable text for a resource from its visible
// metadata fields.
func Document(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if n := Normalize(f); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}
