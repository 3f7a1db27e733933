package alias

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/mboersen/telwerk/internal/phonetic"
)

// Record weights by provenance. Canonical names outrank tile labels, seeded
// aliases, and user-entered shorthand in that order when scores tie.
const (
	WeightCanonical = 1.0
	WeightTileName  = 0.9
	WeightSeeded    = 0.8
	WeightUserAdded = 0.7
)

// NewRecord precomputes a full Record for aliasText resolving to the given
// species. q is the shingle size; pass [DefaultQGramSize] unless the index
// is configured otherwise. meta may be nil.
func NewRecord(aliasID, speciesID, canonical, tileName, aliasText string, weight float64, flags Flags, q int, meta map[string]string) *Record {
	norm := Normalize(aliasText)
	tokens := Tokens(norm)
	codes := phonetic.Encode(norm)
	grams := QGrams(norm, q)
	flags.Compound = len(tokens) > 1

	return &Record{
		AliasID:         aliasID,
		SpeciesID:       speciesID,
		Canonical:       canonical,
		TileName:        tileName,
		Alias:           aliasText,
		Norm:            norm,
		Tokens:          tokens,
		Cologne:         codes.Cologne,
		DoubleMetaphone: codes.Metaphone,
		BeiderMorse:     codes.Tolerant,
		NgramQ:          q,
		Ngrams:          grams,
		MinHash64:       MinHash(grams),
		SimHash64:       SimHash(grams),
		Weight:          weight,
		Flags:           flags,
		Meta:            meta,
	}
}

// NewUserRecord builds a user-added alias record with a fresh random alias
// ID and user-alias weight.
func NewUserRecord(speciesID, canonical, tileName, aliasText string, q int) *Record {
	return NewRecord(
		"user-"+uuid.NewString(),
		speciesID, canonical, tileName, aliasText,
		WeightUserAdded,
		Flags{UserAdded: true},
		q,
		map[string]string{"source": "user"},
	)
}

// BuildIndex seeds an Index from the raw species list: one canonical record
// per species, one tile-name record when the label differs from the
// canonical name, and one record per seeded alias. Provenance (list position)
// is recorded in each record's Meta.
//
// Aliases that normalize to a form the species already answers to are
// dropped silently — the (speciesID, norm) invariant, not an error.
func BuildIndex(species []Species, q int) (*Index, error) {
	if q <= 0 {
		q = DefaultQGramSize
	}

	var records []*Record
	seen := make(map[[2]string]struct{})

	add := func(r *Record) {
		pair := [2]string{r.SpeciesID, r.Norm}
		if _, dup := seen[pair]; dup || r.Norm == "" {
			return
		}
		seen[pair] = struct{}{}
		records = append(records, r)
	}

	for i, sp := range species {
		if sp.ID == "" || sp.Canonical == "" {
			return nil, fmt.Errorf("alias: species entry %d is missing id or canonical name", i)
		}
		meta := map[string]string{
			"source": "species-list",
			"line":   strconv.Itoa(i + 1),
		}

		add(NewRecord(sp.ID+":canonical", sp.ID, sp.Canonical, sp.TileName, sp.Canonical,
			WeightCanonical, Flags{Canonical: true}, q, meta))

		if sp.TileName != "" {
			add(NewRecord(sp.ID+":tile", sp.ID, sp.Canonical, sp.TileName, sp.TileName,
				WeightTileName, Flags{TileName: true}, q, meta))
		}

		for j, a := range sp.Aliases {
			add(NewRecord(fmt.Sprintf("%s:alias:%d", sp.ID, j), sp.ID, sp.Canonical, sp.TileName, a,
				WeightSeeded, Flags{}, q, meta))
		}
	}

	return NewIndex(records)
}
