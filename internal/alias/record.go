// Package alias defines the species alias index: one record per known way of
// saying a species name, plus the derived lookup structures the matchers
// need. An Index is immutable once built; updates go through copy-on-write
// (see [Index.WithRecord]) so readers never observe a partially-updated
// index.
package alias

// DefaultQGramSize is the shingle size used for q-gram and MinHash
// similarity unless configured otherwise.
const DefaultQGramSize = 3

// SignatureSize is the fixed number of 64-bit MinHash slots per record.
const SignatureSize = 64

// Flags are the named booleans describing how a record came to exist.
type Flags struct {
	// Canonical marks the species' primary name record.
	Canonical bool `msgpack:"c" json:"canonical"`

	// TileName marks the short display-label record.
	TileName bool `msgpack:"t" json:"tileName"`

	// Compound marks aliases whose normalized form has multiple words.
	Compound bool `msgpack:"p" json:"compound"`

	// UserAdded marks aliases entered by the user rather than seeded from
	// the species list.
	UserAdded bool `msgpack:"u" json:"userAdded"`
}

// Record maps one alias string to a species, together with everything the
// matchers need precomputed: the normalized form, tokens, phonetic codes,
// q-gram shingles, and similarity signatures.
//
// The MinHash and SimHash fields exist only in the binary index form; the
// human-readable export omits them (see codec.ExportLight).
type Record struct {
	// AliasID uniquely identifies this record within an index.
	AliasID string `msgpack:"id" json:"aliasId"`

	// SpeciesID is the species catalog key this alias resolves to. Many
	// records may share one SpeciesID.
	SpeciesID string `msgpack:"sp" json:"speciesId"`

	// Canonical is the species' primary display name.
	Canonical string `msgpack:"cn" json:"canonical"`

	// TileName is the optional short display label. Empty when the species
	// has none.
	TileName string `msgpack:"tn" json:"tileName,omitempty"`

	// Alias is the raw alias text as entered or seeded.
	Alias string `msgpack:"al" json:"alias"`

	// Norm is the normalized form of Alias (see [Normalize]).
	Norm string `msgpack:"no" json:"norm"`

	// Tokens is the ordered whitespace split of Norm.
	Tokens []string `msgpack:"tk" json:"tokens"`

	// Cologne is the Kölner Phonetik code of Norm. Empty when Norm has no
	// letters.
	Cologne string `msgpack:"co" json:"cologne,omitempty"`

	// DoubleMetaphone holds the Double Metaphone codes of Norm. May be nil.
	DoubleMetaphone []string `msgpack:"dm" json:"doubleMetaphone,omitempty"`

	// BeiderMorse holds the language-tolerant codes of Norm. May be nil.
	BeiderMorse []string `msgpack:"bm" json:"beiderMorse,omitempty"`

	// Phonemes is an optional grapheme-to-phoneme rendering. Unused by the
	// matchers; carried for offline analysis.
	Phonemes string `msgpack:"ph" json:"phonemes,omitempty"`

	// NgramQ is the shingle size the Ngrams and MinHash were computed with.
	NgramQ int `msgpack:"nq" json:"ngramQ"`

	// Ngrams is the ordered q-gram shingle sequence of Norm.
	Ngrams []string `msgpack:"ng" json:"ngrams"`

	// MinHash64 is the fixed-length MinHash signature over the shingle set.
	// Binary form only.
	MinHash64 []uint64 `msgpack:"mh" json:"-"`

	// SimHash64 is the 64-bit SimHash over the shingle set. Binary form
	// only.
	SimHash64 uint64 `msgpack:"sh" json:"-"`

	// Weight is a prior boosting this alias's rank. Canonical names weigh
	// more than user aliases.
	Weight float64 `msgpack:"w" json:"weight"`

	// Flags classify the record.
	Flags Flags `msgpack:"f" json:"flags"`

	// Meta carries free-form provenance (source file, line number).
	Meta map[string]string `msgpack:"m" json:"meta,omitempty"`
}

// DisplayName returns the name shown to the user for this record: the tile
// name when present, the canonical name otherwise.
func (r *Record) DisplayName() string {
	if r.TileName != "" {
		return r.TileName
	}
	return r.Canonical
}

// Species is one entry of the raw species list the download collaborator
// delivers. It is the input to [BuildIndex].
type Species struct {
	// ID is the catalog identifier. Not assumed numeric.
	ID string `json:"id" yaml:"id"`

	// Canonical is the primary display name.
	Canonical string `json:"canonical" yaml:"canonical"`

	// TileName is the optional short display label.
	TileName string `json:"tileName,omitempty" yaml:"tile_name"`

	// Aliases lists seeded alternative names.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}
