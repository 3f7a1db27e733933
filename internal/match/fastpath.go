package match

import (
	"log/slog"
	"time"

	"github.com/mboersen/telwerk/internal/alias"
)

// Fast-path constants. The confidence floor gates exact matches of species
// that are not on an active tile; the warn threshold flags lookups slow
// enough to suggest index corruption or a performance regression.
const (
	DefaultExactConfidenceFloor  = 0.99
	DefaultFastPathWarnThreshold = 100 * time.Millisecond
)

// FastOutcome reports what the fast path decided.
type FastOutcome int

const (
	// FastMiss: no acceptance; the caller proceeds to the heavy path.
	FastMiss FastOutcome = iota

	// FastAccept: exactly one candidate was accepted.
	FastAccept

	// FastMulti: multiple exact matches at equal priority; the caller must
	// surface a MultiMatch.
	FastMulti
)

// FastPath is the exact-match lookup stage: literal normalized-string
// equality against the index's canonical/tile/alias names, O(1) amortized.
// It is read-only and safe for concurrent use.
type FastPath struct {
	confidenceFloor float64
	warnThreshold   time.Duration
}

// FastPathOption configures a [FastPath].
type FastPathOption func(*FastPath)

// WithExactConfidenceFloor sets the ASR confidence required to accept an
// exact match for a species that is not on an active tile. Default: 0.99.
func WithExactConfidenceFloor(f float64) FastPathOption {
	return func(fp *FastPath) { fp.confidenceFloor = f }
}

// WithWarnThreshold sets the lookup duration above which a warning is
// logged. Default: 100ms.
func WithWarnThreshold(d time.Duration) FastPathOption {
	return func(fp *FastPath) { fp.warnThreshold = d }
}

// NewFastPath returns a FastPath with the supplied options applied.
func NewFastPath(opts ...FastPathOption) *FastPath {
	fp := &FastPath{
		confidenceFloor: DefaultExactConfidenceFloor,
		warnThreshold:   DefaultFastPathWarnThreshold,
	}
	for _, o := range opts {
		o(fp)
	}
	return fp
}

// Lookup resolves norm against the exact-name index. The returned outcome
// decides how the orchestrator proceeds:
//
//   - A single matching species is accepted when it is on an active tile
//     (regardless of ASR confidence) or when confidence clears the strict
//     floor.
//   - Homonyms are disambiguated by tile membership; a unique tile member
//     wins. Two or more tile members is a MultiMatch.
//   - Everything else is a miss and falls through to the heavy path.
func (fp *FastPath) Lookup(ix *alias.Index, norm string, confidence float64, mctx *Context) ([]Candidate, FastOutcome) {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > fp.warnThreshold {
			slog.Warn("fastpath: slow exact lookup",
				"norm", norm,
				"elapsed", elapsed,
				"threshold", fp.warnThreshold,
			)
		}
	}()

	records := ix.Exact(norm)
	if len(records) == 0 {
		return nil, FastMiss
	}

	// Collapse homonym records to one best record per species.
	bySpecies := make(map[string]*alias.Record, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		if prev, ok := bySpecies[r.SpeciesID]; !ok {
			bySpecies[r.SpeciesID] = r
			order = append(order, r.SpeciesID)
		} else if r.Weight > prev.Weight {
			bySpecies[r.SpeciesID] = r
		}
	}

	if len(order) == 1 {
		r := bySpecies[order[0]]
		switch {
		case mctx.HasTile(r.SpeciesID):
			return []Candidate{exactCandidate(r, 1.0, SourceFastTiles)}, FastAccept
		case confidence >= fp.confidenceFloor:
			return []Candidate{exactCandidate(r, confidence, SourceFastPath)}, FastAccept
		default:
			return nil, FastMiss
		}
	}

	// Homonyms: a unique tile member wins outright.
	var tileIDs []string
	for _, id := range order {
		if mctx.HasTile(id) {
			tileIDs = append(tileIDs, id)
		}
	}
	switch {
	case len(tileIDs) == 1:
		r := bySpecies[tileIDs[0]]
		return []Candidate{exactCandidate(r, 1.0, SourceFastTiles)}, FastAccept
	case len(tileIDs) > 1:
		cands := make([]Candidate, 0, len(tileIDs))
		for _, id := range tileIDs {
			cands = append(cands, exactCandidate(bySpecies[id], 1.0, SourceFastTiles))
		}
		return cands, FastMulti
	}

	// No tile signal. With confidence above the floor the exact matches are
	// all equally plausible, so the user must disambiguate.
	if confidence >= fp.confidenceFloor {
		cands := make([]Candidate, 0, len(order))
		for _, id := range order {
			cands = append(cands, exactCandidate(bySpecies[id], confidence, SourceFastPath))
		}
		return cands, FastMulti
	}
	return nil, FastMiss
}

func exactCandidate(r *alias.Record, score float64, src Source) Candidate {
	return Candidate{
		SpeciesID:   r.SpeciesID,
		DisplayName: r.DisplayName(),
		Score:       score,
		Source:      src,
		Amount:      1,
	}
}
