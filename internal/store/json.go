package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mboersen/telwerk/internal/alias"
)

// JSONSource reads a catalog file holding a JSON array of species objects:
//
//	[{"id": "parmaj", "canonical": "Koolmees", "tileName": "Koolmees",
//	  "aliases": ["grote mees"]}, ...]
type JSONSource struct {
	path string
}

// NewJSONSource returns a source reading the JSON catalog at path.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

var _ SpeciesSource = (*JSONSource)(nil)

// Load implements [SpeciesSource].
func (s *JSONSource) Load(ctx context.Context) ([]alias.Species, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", s.path, err)
	}

	var species []alias.Species
	if err := json.Unmarshal(data, &species); err != nil {
		return nil, fmt.Errorf("store: parse %q: %w", s.path, err)
	}
	for i, sp := range species {
		if sp.ID == "" {
			return nil, fmt.Errorf("store: %q: species[%d] has no id", s.path, i)
		}
		if sp.Canonical == "" {
			return nil, fmt.Errorf("store: %q: species %q has no canonical name", s.path, sp.ID)
		}
	}
	return species, nil
}
