package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/mboersen/telwerk/internal/alias"
)

// CSVSource reads a semicolon-delimited catalog export with a header row:
//
//	id;canonical;tile_name;aliases
//	parmaj;Koolmees;Koolmees;grote mees,mees
//
// The aliases column holds a comma-separated list and may be empty, as may
// tile_name.
type CSVSource struct {
	path string
}

// NewCSVSource returns a source reading the CSV catalog at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

var _ SpeciesSource = (*CSVSource)(nil)

// Load implements [SpeciesSource].
func (s *CSVSource) Load(ctx context.Context) ([]alias.Species, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = 4

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("store: parse %q: %w", s.path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("store: %q: missing header row", s.path)
	}
	if got := rows[0][0]; got != "id" {
		return nil, fmt.Errorf("store: %q: unexpected header %q, want id;canonical;tile_name;aliases", s.path, got)
	}

	species := make([]alias.Species, 0, len(rows)-1)
	for i, row := range rows[1:] {
		sp := alias.Species{
			ID:        strings.TrimSpace(row[0]),
			Canonical: strings.TrimSpace(row[1]),
			TileName:  strings.TrimSpace(row[2]),
		}
		if sp.ID == "" {
			return nil, fmt.Errorf("store: %q: row %d has no id", s.path, i+2)
		}
		if sp.Canonical == "" {
			return nil, fmt.Errorf("store: %q: species %q has no canonical name", s.path, sp.ID)
		}
		for _, a := range strings.Split(row[3], ",") {
			if a = strings.TrimSpace(a); a != "" {
				sp.Aliases = append(sp.Aliases, a)
			}
		}
		species = append(species, sp)
	}
	return species, nil
}
