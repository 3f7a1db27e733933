// Package phonetic computes the phonetic codes used to bucket alias records
// before expensive similarity scoring. Three independent encodings are
// produced per input so the matcher can test equality on any of them; no
// single encoding is authoritative:
//
//   - A Kölner Phonetik code ([Cologne]), strong on Dutch/German vowel
//     confusion.
//   - The Double Metaphone primary and secondary codes.
//   - A language-tolerant set built from the NYSIIS and Phonex codes, which
//     bucket more aggressively across spelling traditions.
//
// All functions are pure and deterministic: same input, same codes. Empty
// input yields empty output, never an error, and non-letter characters are
// stripped rather than rejected.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Algorithm names the encoding an index bucket key belongs to. These values
// appear as the prefix of phonetic-map keys ("cologne:4568").
const (
	AlgoCologne   = "cologne"
	AlgoMetaphone = "metaphone"
	AlgoTolerant  = "tolerant"
)

// Codes holds the phonetic encodings of one normalized token or phrase.
type Codes struct {
	// Cologne is the Kölner Phonetik code. For multi-word input the
	// per-word codes are joined with '-' so word boundaries stay
	// significant. Empty when the input has no letters.
	Cologne string

	// Metaphone holds the distinct non-empty Double Metaphone codes of all
	// words in the input.
	Metaphone []string

	// Tolerant holds the distinct non-empty NYSIIS and Phonex codes of all
	// words in the input.
	Tolerant []string
}

// Empty reports whether no encoding produced a code.
func (c Codes) Empty() bool {
	return c.Cologne == "" && len(c.Metaphone) == 0 && len(c.Tolerant) == 0
}

// Keys returns the phonetic-map bucket keys ("<algorithm>:<code>") for all
// codes, suitable for index lookup and construction.
func (c Codes) Keys() []string {
	keys := make([]string, 0, 1+len(c.Metaphone)+len(c.Tolerant))
	if c.Cologne != "" {
		keys = append(keys, AlgoCologne+":"+c.Cologne)
	}
	for _, m := range c.Metaphone {
		keys = append(keys, AlgoMetaphone+":"+m)
	}
	for _, t := range c.Tolerant {
		keys = append(keys, AlgoTolerant+":"+t)
	}
	return keys
}

// Encode computes all three encodings for text. text is expected to be
// normalized (lowercase, diacritics stripped) but Encode tolerates anything.
func Encode(text string) Codes {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Codes{}
	}

	var c Codes
	cologneParts := make([]string, 0, len(tokens))
	seenM := make(map[string]struct{}, len(tokens)*2)
	seenT := make(map[string]struct{}, len(tokens)*2)

	for _, tok := range tokens {
		if code := Cologne(tok); code != "" {
			cologneParts = append(cologneParts, code)
		}

		p, s := matchr.DoubleMetaphone(tok)
		for _, code := range []string{p, s} {
			if code == "" {
				continue
			}
			if _, ok := seenM[code]; !ok {
				seenM[code] = struct{}{}
				c.Metaphone = append(c.Metaphone, code)
			}
		}

		for _, code := range []string{matchr.NYSIIS(tok), matchr.Phonex(tok)} {
			if code == "" {
				continue
			}
			if _, ok := seenT[code]; !ok {
				seenT[code] = struct{}{}
				c.Tolerant = append(c.Tolerant, code)
			}
		}
	}

	c.Cologne = strings.Join(cologneParts, "-")
	return c
}
