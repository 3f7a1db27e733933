// Package store loads the species catalog the alias index is built from.
// Catalogs arrive as files produced by the download collaborator, in JSON or
// CSV form; a [Registry] maps the configured format name to the matching
// [SpeciesSource] constructor.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mboersen/telwerk/internal/alias"
)

// ErrFormatNotRegistered is returned by [Registry.Create] when no source
// factory exists for the requested format name.
var ErrFormatNotRegistered = errors.New("store: format not registered")

// SpeciesSource loads the raw species list the index is built from.
type SpeciesSource interface {
	// Load reads and parses the full catalog. Implementations re-read the
	// backing file on every call so a rebuild picks up edits.
	Load(ctx context.Context) ([]alias.Species, error)
}

// Factory constructs a source for the catalog file at path.
type Factory func(path string) (SpeciesSource, error)

// Registry maps format names to their source constructors. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the built-in formats
// ("json" and "csv").
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("json", func(path string) (SpeciesSource, error) {
		return NewJSONSource(path), nil
	})
	r.Register("csv", func(path string) (SpeciesSource, error) {
		return NewCSVSource(path), nil
	})
	return r
}

// Register adds or replaces the factory for a format name.
func (r *Registry) Register(format string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[format] = f
}

// Create builds a source for the given format and catalog path.
func (r *Registry) Create(format, path string) (SpeciesSource, error) {
	r.mu.RLock()
	f, ok := r.factories[format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFormatNotRegistered, format)
	}
	return f(path)
}
