// Package matching implements the identity match engine: name/email
// normalization, fuzzy name similarity, and the confidence decision policy.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentStripper decomposes characters and drops combining marks,
// so "José" compares equal to "Jose".
var accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes a display name for comparison: accents are
// stripped to base Latin characters, the result is lowercased, internal
// whitespace is collapsed to single spaces, and anything outside
// letters/digits/whitespace/hyphen is dropped. Unparseable input
// normalizes to the empty string.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}

	stripped, _, err := transform.String(accentStripper, name)
	if err != nil {
		stripped = name
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	for _, r := range stripped {
		switch {
		case r > unicode.MaxASCII:
			// Non-Latin leftovers after decomposition are dropped entirely
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeEmail normalizes an email address by lowercasing and trimming whitespace.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
