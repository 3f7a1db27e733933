package match

import (
	"strconv"
	"strings"
)

// numberWords maps Dutch and English number words to their value. Counters
// rarely speak counts above twelve; larger counts come through as digits.
var numberWords = map[string]int{
	"een": 1, "twee": 2, "drie": 3, "vier": 4, "vijf": 5, "zes": 6,
	"zeven": 7, "acht": 8, "negen": 9, "tien": 10, "elf": 11, "twaalf": 12,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// ExtractAmount splits a trailing count off a normalized hypothesis:
// "buizerd 5" yields ("buizerd", 5) and "koolmees twee" yields
// ("koolmees", 2). When no trailing integer or number word is present the
// amount defaults to 1 and the input is returned unchanged.
//
// A count is only split off when at least one token remains for the species
// text, so a bare "5" stays "5".
func ExtractAmount(norm string) (species string, amount int) {
	tokens := strings.Fields(norm)
	if len(tokens) < 2 {
		return norm, 1
	}

	last := tokens[len(tokens)-1]
	if n, err := strconv.Atoi(last); err == nil && n > 0 {
		return strings.Join(tokens[:len(tokens)-1], " "), n
	}
	if n, ok := numberWords[last]; ok {
		return strings.Join(tokens[:len(tokens)-1], " "), n
	}
	return norm, 1
}
