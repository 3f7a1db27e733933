package match_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/match"
)

func testIndex(t *testing.T) *alias.Index {
	t.Helper()
	species := []alias.Species{
		{ID: "parmaj", Canonical: "Koolmees", TileName: "Koolmees", Aliases: []string{"grote mees"}},
		{ID: "butbut", Canonical: "Buizerd", Aliases: []string{"muizenbuizerd"}},
		{ID: "dender", Canonical: "Grote Bonte Specht", TileName: "GBS"},
	}
	ix, err := alias.BuildIndex(species, alias.DefaultQGramSize)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return ix
}

// homonymIndex has two species sharing the alias "mees".
func homonymIndex(t *testing.T) *alias.Index {
	t.Helper()
	species := []alias.Species{
		{ID: "parmaj", Canonical: "Koolmees", Aliases: []string{"mees"}},
		{ID: "parcae", Canonical: "Pimpelmees", Aliases: []string{"mees"}},
	}
	ix, err := alias.BuildIndex(species, alias.DefaultQGramSize)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return ix
}

func tileContext(speciesIDs ...string) *match.Context {
	mctx := match.NewContext()
	for _, id := range speciesIDs {
		mctx.Tiles[id] = struct{}{}
	}
	return mctx
}

func TestFastPath_TileMemberAcceptedAtAnyConfidence(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath()
	cands, outcome := fp.Lookup(testIndex(t), "koolmees", 0.40, tileContext("parmaj"))
	if outcome != match.FastAccept {
		t.Fatalf("outcome = %v, want FastAccept", outcome)
	}
	c := cands[0]
	if c.SpeciesID != "parmaj" || c.Source != match.SourceFastTiles || c.Score != 1.0 {
		t.Errorf("candidate = %+v", c)
	}
}

func TestFastPath_NonTileNeedsConfidenceFloor(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath()
	ix := testIndex(t)

	// 0.80 is an exact match but below the floor: heavy path decides.
	if _, outcome := fp.Lookup(ix, "buizerd", 0.80, nil); outcome != match.FastMiss {
		t.Errorf("conf 0.80: outcome = %v, want FastMiss", outcome)
	}

	cands, outcome := fp.Lookup(ix, "buizerd", 0.995, nil)
	if outcome != match.FastAccept {
		t.Fatalf("conf 0.995: outcome = %v, want FastAccept", outcome)
	}
	if c := cands[0]; c.SpeciesID != "butbut" || c.Source != match.SourceFastPath {
		t.Errorf("candidate = %+v", c)
	}
}

func TestFastPath_UnknownNameMisses(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath()
	if _, outcome := fp.Lookup(testIndex(t), "zeearend", 1.0, nil); outcome != match.FastMiss {
		t.Errorf("outcome = %v, want FastMiss", outcome)
	}
}

func TestFastPath_HomonymUniqueTileMemberWins(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath()
	cands, outcome := fp.Lookup(homonymIndex(t), "mees", 0.50, tileContext("parcae"))
	if outcome != match.FastAccept {
		t.Fatalf("outcome = %v, want FastAccept", outcome)
	}
	if c := cands[0]; c.SpeciesID != "parcae" || c.Source != match.SourceFastTiles {
		t.Errorf("candidate = %+v", c)
	}
}

func TestFastPath_HomonymMultipleTileMembers(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath()
	cands, outcome := fp.Lookup(homonymIndex(t), "mees", 0.50, tileContext("parmaj", "parcae"))
	if outcome != match.FastMulti {
		t.Fatalf("outcome = %v, want FastMulti", outcome)
	}
	if len(cands) != 2 {
		t.Errorf("len(cands) = %d, want 2", len(cands))
	}
}

func TestFastPath_HomonymNoTilesHighConfidence(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath()
	ix := homonymIndex(t)

	cands, outcome := fp.Lookup(ix, "mees", 0.995, nil)
	if outcome != match.FastMulti {
		t.Fatalf("conf 0.995: outcome = %v, want FastMulti", outcome)
	}
	if len(cands) != 2 {
		t.Errorf("len(cands) = %d, want 2", len(cands))
	}

	if _, outcome := fp.Lookup(ix, "mees", 0.50, nil); outcome != match.FastMiss {
		t.Errorf("conf 0.50: outcome = %v, want FastMiss", outcome)
	}
}

func TestFastPath_CustomConfidenceFloor(t *testing.T) {
	t.Parallel()

	fp := match.NewFastPath(match.WithExactConfidenceFloor(0.75))
	_, outcome := fp.Lookup(testIndex(t), "buizerd", 0.80, nil)
	if outcome != match.FastAccept {
		t.Errorf("outcome = %v, want FastAccept with lowered floor", outcome)
	}
}

func TestFastPath_SlowLookupWarns(t *testing.T) {
	// Swaps the default slog handler; must not run in parallel.
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ix := testIndex(t)

	// A negative threshold makes every lookup count as slow, even when the
	// clock measures it at zero.
	fp := match.NewFastPath(match.WithWarnThreshold(-time.Nanosecond))
	fp.Lookup(ix, "koolmees", 0.995, nil)
	if logged := buf.String(); !strings.Contains(logged, "slow exact lookup") {
		t.Errorf("zero threshold: missing slow-lookup warning, got: %s", logged)
	}

	// At the default 100ms threshold an exact lookup stays silent.
	buf.Reset()
	fp = match.NewFastPath()
	start := time.Now()
	fp.Lookup(ix, "koolmees", 0.995, nil)
	elapsed := time.Since(start)

	if elapsed > match.DefaultFastPathWarnThreshold {
		t.Errorf("lookup took %v, want under %v", elapsed, match.DefaultFastPathWarnThreshold)
	}
	if logged := buf.String(); strings.Contains(logged, "slow exact lookup") {
		t.Errorf("default threshold: unexpected warning: %s", logged)
	}
}
