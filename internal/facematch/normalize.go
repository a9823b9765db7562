package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks returns a fresh transformer; transformers carry state and must
// not be shared between goroutines.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// RemoveDiacritics removes combining marks ("José" becomes "Jose").
func RemoveDiacritics(s string) string {
	out, _, err := transform.String(stripMarks(), s)
	if err != nil {
		return s
	}
	return out
}

func isNameSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.'
}

// NormalizePersonName returns the uniqueness key for a person's name:
// case folded, without diacritics, with dashes, underscores and dots read as
// spaces and whitespace collapsed. Students sharing a key are the same student.
func NormalizePersonName(name string) string {
	folded := cases.Fold().String(RemoveDiacritics(name))
	return strings.Join(strings.FieldsFunc(folded, isNameSeparator), " ")
}
