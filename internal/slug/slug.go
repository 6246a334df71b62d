// Package slug derives URL-safe identifiers from display names and hands out
// unique ones within a run.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback bases used when a name slugifies to nothing.
const (
	FallbackBusiness = "business"
	FallbackCategory = "category"
)

// Slugify lowercases s, strips diacritics and apostrophes, and collapses every
// other run of characters outside [a-z0-9] into a single hyphen. Leading and
// trailing hyphens are trimmed. The result may be empty.
//
//	Slugify("Joe's Café")  == "joes-cafe"
//	Slugify("  Hair & Nails ") == "hair-nails"
func Slugify(s string) string {
	s = strings.ToLower(s)

	// Decompose → remove nonspacing marks (accents).
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	b.Grow(len(ascii))
	pendingHyphen := false
	for _, r := range ascii {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case isApostrophe(r):
			// dropped: "joe's" reads as "joes"
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '’', '‘', '`', '´':
		return true
	}
	return false
}

// stripNonAlnum keeps ASCII letters and digits only, lowercased.
func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
