// Package index owns the live alias index: it builds the index from the
// species catalog, persists it in the binary envelope format, swaps in
// updated snapshots atomically, and schedules debounced writes back to disk.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/alias/codec"
	"github.com/mboersen/telwerk/internal/observe"
	"github.com/mboersen/telwerk/internal/store"
)

// DefaultRebuildDebounce is how long persist-to-disk waits after a mutation
// so bursts of added aliases coalesce into one write.
const DefaultRebuildDebounce = 2 * time.Second

// ErrUnknownSpecies is returned by AddUserAlias for a species ID absent from
// the catalog.
var ErrUnknownSpecies = errors.New("index: unknown species")

// ErrDuplicateAlias is returned by AddUserAlias when the normalized alias
// already resolves to the same species.
var ErrDuplicateAlias = errors.New("index: alias already exists for species")

// Manager owns the mutable view over the immutable [alias.Index] snapshots.
// Readers call [Manager.Current] and get a consistent snapshot without
// locking; mutations are serialized internally.
type Manager struct {
	source   store.SpeciesSource
	path     string
	qgram    int
	debounce time.Duration
	metrics  *observe.Metrics

	current atomic.Pointer[alias.Index]

	mu sync.Mutex // serializes mutations and persists
	sf singleflight.Group

	timerMu sync.Mutex
	timer   *time.Timer
	dirty   bool
}

// Option configures a [Manager].
type Option func(*Manager)

// WithIndexPath sets the persisted index file. Empty disables persistence.
func WithIndexPath(path string) Option {
	return func(m *Manager) { m.path = path }
}

// WithQGramSize sets the shingle size for built signatures.
func WithQGramSize(q int) Option {
	return func(m *Manager) {
		if q > 0 {
			m.qgram = q
		}
	}
}

// WithRebuildDebounce sets the persist coalescing delay.
func WithRebuildDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithMetrics attaches the metrics instruments. May be nil.
func WithMetrics(mx *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager creates a manager over the given catalog source. Call
// [Manager.Load] before serving lookups.
func NewManager(source store.SpeciesSource, opts ...Option) *Manager {
	m := &Manager{
		source:   source,
		qgram:    alias.DefaultQGramSize,
		debounce: DefaultRebuildDebounce,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Current returns the live index snapshot. The snapshot is immutable and
// stays valid after later swaps.
func (m *Manager) Current() *alias.Index {
	return m.current.Load()
}

// Load initialises the live index: it decodes the persisted file when one is
// configured and readable, and otherwise rebuilds from the catalog source.
// A corrupt persisted file is never trusted; it is discarded and rebuilt.
func (m *Manager) Load(ctx context.Context) error {
	if m.path != "" {
		ix, err := m.decodeFile()
		switch {
		case err == nil:
			m.current.Store(ix)
			slog.Info("index loaded from disk", "path", m.path, "records", ix.Len())
			return nil
		case errors.Is(err, os.ErrNotExist):
			slog.Info("no persisted index, building from source", "path", m.path)
		case errors.Is(err, codec.ErrInvalidIndex):
			slog.Warn("persisted index is invalid, rebuilding from source", "path", m.path, "err", err)
		default:
			slog.Warn("persisted index unreadable, rebuilding from source", "path", m.path, "err", err)
		}
	}
	return m.Rebuild(ctx, "startup")
}

func (m *Manager) decodeFile() (*alias.Index, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return codec.Decode(f)
}

// Rebuild reloads the catalog, rebuilds the index, carries user-added
// aliases over from the previous snapshot, and persists the result.
// Concurrent calls coalesce into one build.
func (m *Manager) Rebuild(ctx context.Context, trigger string) error {
	_, err, _ := m.sf.Do("rebuild", func() (any, error) {
		return nil, m.rebuild(ctx, trigger)
	})
	return err
}

func (m *Manager) rebuild(ctx context.Context, trigger string) error {
	start := time.Now()

	species, err := m.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("index: load catalog: %w", err)
	}
	ix, err := alias.BuildIndex(species, m.qgram)
	if err != nil {
		return fmt.Errorf("index: build: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Carry user aliases over, dropping ones whose species vanished from
	// the catalog or that the new seed data now covers.
	prev := m.current.Load()
	if prev != nil {
		for _, rec := range prev.Records() {
			if !rec.Flags.UserAdded {
				continue
			}
			if ix.ByAliasID(rec.SpeciesID+":canonical") == nil {
				slog.Info("dropping user alias for removed species",
					"species", rec.SpeciesID, "alias", rec.Norm)
				continue
			}
			if ix.HasSpeciesNorm(rec.SpeciesID, rec.Norm) {
				continue
			}
			next, err := ix.WithRecord(rec)
			if err != nil {
				slog.Warn("could not carry user alias over", "alias", rec.AliasID, "err", err)
				continue
			}
			ix = next
		}
	}

	delta := int64(ix.Len())
	if prev != nil {
		delta -= int64(prev.Len())
	}
	m.current.Store(ix)
	m.metrics.RecordIndexRebuild(ctx, trigger, time.Since(start), delta)
	slog.Info("index rebuilt", "trigger", trigger, "records", ix.Len(), "elapsed", time.Since(start))

	return m.persistLocked()
}

// AddUserAlias registers a user-taught alias for an existing species and
// swaps in the extended snapshot. The write back to disk is debounced.
func (m *Manager) AddUserAlias(ctx context.Context, speciesID, aliasText string) (*alias.Record, error) {
	norm := alias.Normalize(aliasText)
	if norm == "" {
		return nil, fmt.Errorf("index: alias %q normalizes to nothing", aliasText)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ix := m.current.Load()
	if ix == nil {
		return nil, errors.New("index: not loaded")
	}
	canonical := ix.ByAliasID(speciesID + ":canonical")
	if canonical == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, speciesID)
	}
	if ix.HasSpeciesNorm(speciesID, norm) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateAlias, norm)
	}

	rec := alias.NewUserRecord(speciesID, canonical.Canonical, canonical.TileName, aliasText, m.qgram)
	next, err := ix.WithRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("index: add alias: %w", err)
	}
	m.current.Store(next)
	m.metrics.RecordIndexRebuild(ctx, "user_alias", 0, 1)
	slog.Info("user alias added", "species", speciesID, "alias", norm)

	m.schedulePersist()
	return rec, nil
}

// schedulePersist arms (or re-arms) the debounced write-back.
func (m *Manager) schedulePersist() {
	if m.path == "" {
		return
	}
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	m.dirty = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		if err := m.Flush(); err != nil {
			slog.Warn("index persist failed", "path", m.path, "err", err)
		}
	})
}

// Flush writes the live index to disk now if there are unpersisted changes.
func (m *Manager) Flush() error {
	m.timerMu.Lock()
	dirty := m.dirty
	m.dirty = false
	m.timerMu.Unlock()
	if !dirty {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked()
}

// persistLocked writes the current snapshot via a temp file and rename so a
// crash never leaves a torn index. Caller holds m.mu.
func (m *Manager) persistLocked() error {
	if m.path == "" {
		return nil
	}
	ix := m.current.Load()
	if ix == nil {
		return nil
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("index: create %q: %w", tmp, err)
	}
	if err := codec.Encode(f, ix); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("index: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index: close %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index: rename: %w", err)
	}
	return nil
}

// Close cancels the pending write-back timer and flushes outstanding
// changes.
func (m *Manager) Close() error {
	m.timerMu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerMu.Unlock()
	return m.Flush()
}
