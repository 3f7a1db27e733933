package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mboersen/telwerk/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleJSON = `[
  {"id": "parmaj", "canonical": "Koolmees", "tileName": "Koolmees", "aliases": ["grote mees"]},
  {"id": "butbut", "canonical": "Buizerd"}
]`

const sampleCSV = `id;canonical;tile_name;aliases
parmaj;Koolmees;Koolmees;grote mees,mees
butbut;Buizerd;;
`

func TestJSONSource_Load(t *testing.T) {
	t.Parallel()

	src := store.NewJSONSource(writeFile(t, "species.json", sampleJSON))
	species, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(species) != 2 {
		t.Fatalf("got %d species, want 2", len(species))
	}
	if species[0].ID != "parmaj" || species[0].TileName != "Koolmees" {
		t.Errorf("species[0] = %+v", species[0])
	}
	if len(species[0].Aliases) != 1 || species[0].Aliases[0] != "grote mees" {
		t.Errorf("aliases = %v", species[0].Aliases)
	}
	if species[1].TileName != "" || len(species[1].Aliases) != 0 {
		t.Errorf("species[1] = %+v", species[1])
	}
}

func TestJSONSource_RejectsMissingFields(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no id":        `[{"canonical": "Koolmees"}]`,
		"no canonical": `[{"id": "parmaj"}]`,
		"not an array": `{"id": "parmaj"}`,
	}
	for name, content := range cases {
		src := store.NewJSONSource(writeFile(t, "bad.json", content))
		if _, err := src.Load(context.Background()); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestCSVSource_Load(t *testing.T) {
	t.Parallel()

	src := store.NewCSVSource(writeFile(t, "species.csv", sampleCSV))
	species, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(species) != 2 {
		t.Fatalf("got %d species, want 2", len(species))
	}
	if got := species[0].Aliases; len(got) != 2 || got[0] != "grote mees" || got[1] != "mees" {
		t.Errorf("aliases = %v", got)
	}
	if species[1].ID != "butbut" || species[1].TileName != "" {
		t.Errorf("species[1] = %+v", species[1])
	}
}

func TestCSVSource_RejectsBadHeader(t *testing.T) {
	t.Parallel()

	src := store.NewCSVSource(writeFile(t, "bad.csv", "naam;soort\nx;y\n"))
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected error for bad header, got nil")
	}
}

func TestRegistry_CreatesBuiltins(t *testing.T) {
	t.Parallel()

	reg := store.NewRegistry()
	for _, format := range []string{"json", "csv"} {
		if _, err := reg.Create(format, "species."+format); err != nil {
			t.Errorf("Create(%q): %v", format, err)
		}
	}
	if _, err := reg.Create("xml", "species.xml"); !errors.Is(err, store.ErrFormatNotRegistered) {
		t.Errorf("Create(xml) = %v, want ErrFormatNotRegistered", err)
	}
}

func TestSources_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := store.NewJSONSource("/nonexistent.json").Load(context.Background()); err == nil {
		t.Error("json: expected error for missing file")
	}
	if _, err := store.NewCSVSource("/nonexistent.csv").Load(context.Background()); err == nil {
		t.Error("csv: expected error for missing file")
	}
}
