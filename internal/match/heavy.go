package match

import (
	"context"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/phonetic"
	"github.com/mboersen/telwerk/pkg/speech"
)

// Heavy-path scoring constants. The sub-score weights were tuned on field
// recordings; treat them as configuration, not law.
const (
	// DefaultASRWeight blends recognizer confidence with the matcher score:
	// combined = asrWeight*confidence + (1-asrWeight)*quality.
	DefaultASRWeight = 0.4

	// DefaultMaxHypotheses bounds how many ranked hypotheses are scored.
	DefaultMaxHypotheses = 3

	editWeight    = 0.4
	tokenWeight   = 0.3
	shingleWeight = 0.3

	// fuzzyTokenFloor is the Jaro-Winkler score at which two tokens count
	// as overlapping for the token-set ratio.
	fuzzyTokenFloor = 0.90

	// weightPriorScale converts the record weight prior into a small score
	// adjustment so canonical names outrank user shorthand on ties.
	weightPriorScale = 0.05
)

// Runner is the heavy-match contract shared by the inline path and the
// pending buffer worker. [HeavyPath] is the production implementation.
type Runner interface {
	// Match scores hyps against ix and returns the best candidate plus the
	// full ranked list. It returns ctx.Err() when the budget expires before
	// scoring completes. asrWeight <= 0 selects the configured default.
	Match(ctx context.Context, ix *alias.Index, hyps []speech.Hypothesis, mctx *Context, asrWeight float64) (Candidate, []Candidate, error)
}

// HeavyPath is the fuzzy cascade: phonetic-bucket candidate collection
// followed by a combined edit-distance, token-overlap, and MinHash score.
// It is stateless apart from configuration and safe for concurrent use.
type HeavyPath struct {
	asrWeight     float64
	maxHypotheses int
	qgramSize     int
}

var _ Runner = (*HeavyPath)(nil)

// HeavyOption configures a [HeavyPath].
type HeavyOption func(*HeavyPath)

// WithASRWeight sets the default confidence blend weight. Default: 0.4.
func WithASRWeight(w float64) HeavyOption {
	return func(h *HeavyPath) { h.asrWeight = w }
}

// WithMaxHypotheses bounds how many ranked hypotheses are scored. Default: 3.
func WithMaxHypotheses(n int) HeavyOption {
	return func(h *HeavyPath) {
		if n > 0 {
			h.maxHypotheses = n
		}
	}
}

// WithQGramSize sets the shingle size used for hypothesis MinHash
// signatures. Must match the size the index was built with.
func WithQGramSize(q int) HeavyOption {
	return func(h *HeavyPath) {
		if q > 0 {
			h.qgramSize = q
		}
	}
}

// NewHeavyPath returns a HeavyPath with the supplied options applied.
func NewHeavyPath(opts ...HeavyOption) *HeavyPath {
	h := &HeavyPath{
		asrWeight:     DefaultASRWeight,
		maxHypotheses: DefaultMaxHypotheses,
		qgramSize:     alias.DefaultQGramSize,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Match implements [Runner]. Per hypothesis it collects phonetic-bucket
// candidates and scores each; across hypotheses the best combined score per
// species survives. The context deadline is checked between candidates so a
// budget overrun surfaces promptly without scoring being torn mid-record.
func (h *HeavyPath) Match(ctx context.Context, ix *alias.Index, hyps []speech.Hypothesis, mctx *Context, asrWeight float64) (Candidate, []Candidate, error) {
	if asrWeight <= 0 {
		asrWeight = h.asrWeight
	}
	if len(hyps) > h.maxHypotheses {
		hyps = hyps[:h.maxHypotheses]
	}

	best := make(map[string]Candidate)

	for _, hyp := range hyps {
		norm, _ := ExtractAmount(alias.Normalize(hyp.Text))
		if norm == "" {
			continue
		}
		tokens := alias.Tokens(norm)
		sig := alias.MinHash(alias.QGrams(norm, h.qgramSize))
		codes := phonetic.Encode(norm)

		for _, rec := range ix.PhoneticCandidates(codes) {
			if err := ctx.Err(); err != nil {
				return Candidate{}, nil, err
			}

			quality := h.score(norm, tokens, sig, rec)
			combined := asrWeight*hyp.Confidence + (1-asrWeight)*quality
			combined += mctx.contextBoost(rec.SpeciesID)
			if combined > 1 {
				combined = 1
			}

			if prev, ok := best[rec.SpeciesID]; !ok || combined > prev.Score {
				best[rec.SpeciesID] = Candidate{
					SpeciesID:   rec.SpeciesID,
					DisplayName: rec.DisplayName(),
					Score:       combined,
					Source:      SourceHeavy,
					Amount:      1,
				}
			}
		}
	}

	if len(best) == 0 {
		return Candidate{}, nil, nil
	}

	ranked := make([]Candidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SpeciesID < ranked[j].SpeciesID
	})
	return ranked[0], ranked, nil
}

// score reduces the three similarity signals to one candidate quality in
// 0.0–1.0, adjusted by the record's weight prior.
func (h *HeavyPath) score(norm string, tokens []string, sig []uint64, rec *alias.Record) float64 {
	edit := editSimilarity(norm, rec.Norm)
	tok := tokenOverlap(tokens, rec.Tokens)
	shingle := alias.EstimateJaccard(sig, rec.MinHash64)

	quality := editWeight*edit + tokenWeight*tok + shingleWeight*shingle
	quality += weightPriorScale * (rec.Weight - alias.WeightCanonical)

	if quality < 0 {
		return 0
	}
	if quality > 1 {
		return 1
	}
	return quality
}

// editSimilarity is the normalized Levenshtein similarity of two strings:
// 1 - distance/maxLen.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	d := matchr.Levenshtein(a, b)
	sim := 1 - float64(d)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// tokenOverlap is the fuzzy token-set overlap ratio: a hypothesis token and
// a record token count as overlapping when they are equal or their
// Jaro-Winkler similarity clears fuzzyTokenFloor. The ratio is
// |overlap| / |union|.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	used := make([]bool, len(b))
	overlap := 0
	for _, ta := range a {
		for j, tb := range b {
			if used[j] {
				continue
			}
			if ta == tb || matchr.JaroWinkler(ta, tb, false) >= fuzzyTokenFloor {
				used[j] = true
				overlap++
				break
			}
		}
	}
	union := len(a) + len(b) - overlap
	return float64(overlap) / float64(union)
}

// fillerPhrases are recognizer/system prompt strings that must never reach
// the matchers.
var fillerPhrases = []string{
	"listening",
	"luisteren",
	"zeg een soort",
	"say a species",
	"speak now",
}

// isFiller reports whether a normalized hypothesis is a recognizer filler or
// system-prompt string rather than speech.
func isFiller(norm string) bool {
	if norm == "" {
		return true
	}
	for _, f := range fillerPhrases {
		if norm == f || strings.HasPrefix(norm, f) {
			return true
		}
	}
	return false
}
