package bible

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the lookup key for a book token. Keys are compared exactly, so
// Fold is the only normalisation applied to names, aliases and source tokens:
//
//   - Unicode case folding ("JOHN" -> "john")
//   - combining marks removed ("Génesis" -> "genesis")
//   - whitespace runs collapsed to one space
//   - a space between a leading numeral and the name ("1Timothy" -> "1 timothy")
//   - one trailing period dropped ("Gen." -> "gen")
func Fold(token string) string {
	// Casers carry state, so each call builds its own.
	folded := cases.Fold().String(stripMarks(token))
	folded = strings.Join(strings.Fields(folded), " ")
	folded = strings.TrimSuffix(folded, ".")

	if len(folded) > 1 && isNumeral(folded[0]) {
		next, _ := utf8.DecodeRuneInString(folded[1:])
		if unicode.IsLetter(next) {
			folded = folded[:1] + " " + folded[1:]
		}
	}

	return folded
}

// stripMarks removes combining marks: "génesis" becomes "genesis".
func stripMarks(s string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, s)
	if err != nil {
		return s
	}
	return stripped
}

// isNumeral reports whether c is a valid book-number prefix (1 John .. 4 is
// accepted lexically, no canon book uses it).
func isNumeral(c byte) bool {
	return c >= '1' && c <= '4'
}

// wordCount returns the number of space-separated words in a folded key.
func wordCount(key string) int {
	return len(strings.Fields(key))
}
