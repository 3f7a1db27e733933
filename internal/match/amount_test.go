package match_test

import (
	"testing"

	"github.com/mboersen/telwerk/internal/match"
)

func TestExtractAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		species string
		amount  int
	}{
		{"buizerd 5", "buizerd", 5},
		{"koolmees twee", "koolmees", 2},
		{"grote bonte specht tien", "grote bonte specht", 10},
		{"blue tit three", "blue tit", 3},
		{"buizerd", "buizerd", 1},
		{"5", "5", 1},
		{"twaalf", "twaalf", 1},
		{"buizerd 0", "buizerd 0", 1},
		{"", "", 1},
	}
	for _, tc := range cases {
		species, amount := match.ExtractAmount(tc.in)
		if species != tc.species || amount != tc.amount {
			t.Errorf("ExtractAmount(%q) = (%q, %d), want (%q, %d)",
				tc.in, species, amount, tc.species, tc.amount)
		}
	}
}
