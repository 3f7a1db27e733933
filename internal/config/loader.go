package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("log.max_size_mb %d must not be negative", cfg.Log.MaxSizeMB))
	}

	if cfg.Index.SourcePath == "" {
		errs = append(errs, errors.New("index.source_path is required"))
	}
	if cfg.Index.SourceFormat != "" && !cfg.Index.SourceFormat.IsValid() {
		errs = append(errs, fmt.Errorf("index.source_format %q is invalid; valid values: json, csv", cfg.Index.SourceFormat))
	}
	if cfg.Index.QGramSize < 0 {
		errs = append(errs, fmt.Errorf("index.qgram_size %d must not be negative", cfg.Index.QGramSize))
	}
	if cfg.Index.RebuildDebounceMS < 0 {
		errs = append(errs, fmt.Errorf("index.rebuild_debounce_ms %d must not be negative", cfg.Index.RebuildDebounceMS))
	}

	m := cfg.Matching
	if m.ASRWeight < 0 || m.ASRWeight > 1 {
		errs = append(errs, fmt.Errorf("matching.asr_weight %.2f is out of range [0, 1]", m.ASRWeight))
	}
	if m.MaxHypotheses < 0 {
		errs = append(errs, fmt.Errorf("matching.max_hypotheses %d must not be negative", m.MaxHypotheses))
	}
	if m.InlineBudgetMS < 0 || m.PendingBudgetMS < 0 {
		errs = append(errs, errors.New("matching budgets must not be negative"))
	}
	if m.PendingBudgetMS != 0 && m.InlineBudgetMS != 0 && m.PendingBudgetMS < m.InlineBudgetMS {
		errs = append(errs, fmt.Errorf("matching.pending_budget_ms %d must not be below inline_budget_ms %d", m.PendingBudgetMS, m.InlineBudgetMS))
	}
	if m.PendingCapacity < 0 {
		errs = append(errs, fmt.Errorf("matching.pending_capacity %d must not be negative", m.PendingCapacity))
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"matching.exact_confidence_floor", m.ExactConfidenceFloor},
		{"matching.auto_accept_floor", m.AutoAcceptFloor},
		{"matching.suggestion_floor", m.SuggestionFloor},
	} {
		if f.v < 0 || f.v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", f.name, f.v))
		}
	}
	if m.AutoAcceptFloor != 0 && m.SuggestionFloor != 0 && m.AutoAcceptFloor < m.SuggestionFloor {
		errs = append(errs, fmt.Errorf("matching.auto_accept_floor %.2f must not be below suggestion_floor %.2f", m.AutoAcceptFloor, m.SuggestionFloor))
	}

	if cfg.Audit.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("audit.buffer_size %d must not be negative", cfg.Audit.BufferSize))
	}

	return errors.Join(errs...)
}
