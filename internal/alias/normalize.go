package alias

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, removes combining marks (diacritics), and
// recomposes to NFC. Built once; transform.String is safe for concurrent use.
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize produces the canonical lookup form of an alias or hypothesis:
// lowercase, diacritics stripped, punctuation folded to spaces, and
// whitespace collapsed to single spaces.
//
// Normalize is used both when building records and when matching, so the two
// sides can never disagree on the form.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// The chain cannot fail on valid UTF-8; fall back to the raw input
		// for anything else rather than dropping the alias.
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits a normalized string into its whitespace-separated tokens.
func Tokens(norm string) []string {
	return strings.Fields(norm)
}

// QGrams returns the ordered q-gram substrings of norm (spaces included, so
// word boundaries contribute shingles). Strings shorter than q yield the
// whole string as the only shingle.
func QGrams(norm string, q int) []string {
	if norm == "" {
		return nil
	}
	r := []rune(norm)
	if len(r) <= q {
		return []string{norm}
	}
	grams := make([]string, 0, len(r)-q+1)
	for i := 0; i+q <= len(r); i++ {
		grams = append(grams, string(r[i:i+q]))
	}
	return grams
}
