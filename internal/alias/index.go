package alias

import (
	"fmt"

	"github.com/mboersen/telwerk/internal/phonetic"
)

// Index is the root container: an ordered sequence of records plus the
// derived lookup maps the matchers need. An Index is immutable after
// construction and therefore safe for unlocked concurrent reads; all
// mutation happens through [Index.WithRecord], which returns a new Index.
type Index struct {
	records []*Record

	byAliasID map[string]*Record

	// phoneticMap buckets alias IDs by "<algorithm>:<code>" for O(1)
	// candidate collection on the heavy path.
	phoneticMap map[string][]string

	// exact buckets records by every literal normalized name they answer to
	// (norm of alias, canonical, and tile name) for the fast path.
	exact map[string][]*Record
}

// NewIndex builds an Index over records and derives the lookup maps. It
// enforces the well-formedness invariants: alias IDs are unique, and at most
// one record exists per (speciesID, norm) pair.
func NewIndex(records []*Record) (*Index, error) {
	ix := &Index{
		records:     records,
		byAliasID:   make(map[string]*Record, len(records)),
		phoneticMap: make(map[string][]string, len(records)*3),
		exact:       make(map[string][]*Record, len(records)),
	}

	seenPair := make(map[[2]string]string, len(records))
	for _, r := range records {
		if r.AliasID == "" {
			return nil, fmt.Errorf("alias: record for species %q has empty alias ID", r.SpeciesID)
		}
		if _, dup := ix.byAliasID[r.AliasID]; dup {
			return nil, fmt.Errorf("alias: duplicate alias ID %q", r.AliasID)
		}
		pair := [2]string{r.SpeciesID, r.Norm}
		if prev, dup := seenPair[pair]; dup {
			return nil, fmt.Errorf("alias: records %q and %q duplicate (%q, %q)", prev, r.AliasID, r.SpeciesID, r.Norm)
		}
		seenPair[pair] = r.AliasID
		ix.byAliasID[r.AliasID] = r

		ix.indexPhonetic(r)
		ix.indexExact(r)
	}
	return ix, nil
}

func (ix *Index) indexPhonetic(r *Record) {
	codes := phonetic.Codes{
		Cologne:   r.Cologne,
		Metaphone: r.DoubleMetaphone,
		Tolerant:  r.BeiderMorse,
	}
	for _, key := range codes.Keys() {
		ix.phoneticMap[key] = append(ix.phoneticMap[key], r.AliasID)
	}
}

func (ix *Index) indexExact(r *Record) {
	seen := make(map[string]struct{}, 3)
	for _, name := range []string{r.Norm, Normalize(r.Canonical), Normalize(r.TileName)} {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		ix.exact[name] = append(ix.exact[name], r)
	}
}

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.records) }

// Records returns the ordered record sequence. Callers must not modify it.
func (ix *Index) Records() []*Record { return ix.records }

// ByAliasID returns the record with the given alias ID, or nil.
func (ix *Index) ByAliasID(id string) *Record { return ix.byAliasID[id] }

// Exact returns the records whose normalized alias, canonical name, or tile
// name equals norm exactly. Returns nil when nothing matches.
func (ix *Index) Exact(norm string) []*Record { return ix.exact[norm] }

// PhoneticCandidates returns the distinct records sharing at least one
// phonetic code with codes, in index order of first discovery.
func (ix *Index) PhoneticCandidates(codes phonetic.Codes) []*Record {
	var out []*Record
	seen := make(map[string]struct{})
	for _, key := range codes.Keys() {
		for _, id := range ix.phoneticMap[key] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, ix.byAliasID[id])
		}
	}
	return out
}

// HasSpeciesNorm reports whether the index already holds a record for the
// exact (speciesID, norm) pair.
func (ix *Index) HasSpeciesNorm(speciesID, norm string) bool {
	for _, r := range ix.exact[norm] {
		if r.SpeciesID == speciesID && r.Norm == norm {
			return true
		}
	}
	return false
}

// WithRecord returns a new Index containing all current records plus rec.
// The receiver is left untouched, so in-flight matches against it stay
// consistent. Returns an error when rec violates an index invariant.
func (ix *Index) WithRecord(rec *Record) (*Index, error) {
	records := make([]*Record, len(ix.records), len(ix.records)+1)
	copy(records, ix.records)
	records = append(records, rec)
	return NewIndex(records)
}
