package phonetic

import "strings"

// Cologne computes the Kölner Phonetik code of word. The code is a digit
// string in which letters that sound alike share a digit, which makes it a
// good bucketing key for Dutch and German bird names where vowel quality is
// what speech recognizers get wrong most often.
//
// Non-letter runes are skipped. The empty string (or a string without
// letters) encodes to "".
//
// The encoding is the standard one: each letter maps to a digit depending on
// its neighbours, consecutive duplicate digits collapse, and '0' (vowels) is
// dropped everywhere except at the start of the code.
func Cologne(word string) string {
	letters := colognePrepare(word)
	if len(letters) == 0 {
		return ""
	}

	raw := make([]byte, 0, len(letters))
	for i, c := range letters {
		var prev, next byte
		if i > 0 {
			prev = letters[i-1]
		}
		if i < len(letters)-1 {
			next = letters[i+1]
		}

		switch c {
		case 'a', 'e', 'i', 'j', 'o', 'u', 'y':
			raw = append(raw, '0')
		case 'h':
			// silent
		case 'b':
			raw = append(raw, '1')
		case 'p':
			if next == 'h' {
				raw = append(raw, '3')
			} else {
				raw = append(raw, '1')
			}
		case 'd', 't':
			if next == 'c' || next == 's' || next == 'z' {
				raw = append(raw, '8')
			} else {
				raw = append(raw, '2')
			}
		case 'f', 'v', 'w':
			raw = append(raw, '3')
		case 'g', 'k', 'q':
			raw = append(raw, '4')
		case 'c':
			switch {
			case prev == 's' || prev == 'z':
				raw = append(raw, '8')
			case i == 0 && strings.ContainsRune("ahkloqrux", rune(next)):
				raw = append(raw, '4')
			case strings.ContainsRune("ahkoqux", rune(next)):
				raw = append(raw, '4')
			default:
				raw = append(raw, '8')
			}
		case 'x':
			if prev == 'c' || prev == 'k' || prev == 'q' {
				raw = append(raw, '8')
			} else {
				raw = append(raw, '4', '8')
			}
		case 'l':
			raw = append(raw, '5')
		case 'm', 'n':
			raw = append(raw, '6')
		case 'r':
			raw = append(raw, '7')
		case 's', 'z':
			raw = append(raw, '8')
		}
	}

	// Collapse consecutive duplicates, then drop non-leading zeros.
	out := make([]byte, 0, len(raw))
	for i, d := range raw {
		if i > 0 && raw[i-1] == d {
			continue
		}
		if d == '0' && len(out) > 0 {
			continue
		}
		out = append(out, d)
	}
	return string(out)
}

// colognePrepare lowercases word, folds the German umlauts and eszett onto
// their base letters, and strips everything that is not a-z.
func colognePrepare(word string) []byte {
	lower := strings.ToLower(word)
	out := make([]byte, 0, len(lower))
	for _, r := range lower {
		switch r {
		case 'ä':
			r = 'a'
		case 'ö':
			r = 'o'
		case 'ü':
			r = 'u'
		case 'ß':
			out = append(out, 's', 's')
			continue
		}
		if r >= 'a' && r <= 'z' {
			out = append(out, byte(r))
		}
	}
	return out
}
