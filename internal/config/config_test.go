package config_test

import (
	"strings"
	"testing"

	"github.com/mboersen/telwerk/internal/config"
)

const sampleYAML = `
log:
  level: info
  file: /var/log/telwerk/telwerk.log
  max_size_mb: 20
  max_backups: 5
  max_age_days: 30

index:
  source_path: /etc/telwerk/species.json
  source_format: json
  index_path: /var/lib/telwerk/aliases.twix
  qgram_size: 3
  rebuild_debounce_ms: 2000

matching:
  asr_weight: 0.4
  max_hypotheses: 3
  inline_budget_ms: 300
  pending_budget_ms: 1200
  pending_capacity: 8
  exact_confidence_floor: 0.99
  auto_accept_floor: 0.72
  suggestion_floor: 0.45

audit:
  dir: /var/lib/telwerk/audit
  buffer_size: 256

telemetry:
  listen_addr: ":9465"
  service_name: telwerk
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Log.Level != config.LogInfo {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Index.SourceFormat != config.FormatJSON {
		t.Errorf("index.source_format = %q, want json", cfg.Index.SourceFormat)
	}
	if cfg.Index.QGramSize != 3 {
		t.Errorf("index.qgram_size = %d, want 3", cfg.Index.QGramSize)
	}
	if cfg.Matching.InlineBudgetMS != 300 || cfg.Matching.PendingBudgetMS != 1200 {
		t.Errorf("budgets = %d/%d, want 300/1200", cfg.Matching.InlineBudgetMS, cfg.Matching.PendingBudgetMS)
	}
	if cfg.Matching.AutoAcceptFloor != 0.72 {
		t.Errorf("auto_accept_floor = %v, want 0.72", cfg.Matching.AutoAcceptFloor)
	}
	if cfg.Audit.Dir != "/var/lib/telwerk/audit" {
		t.Errorf("audit.dir = %q", cfg.Audit.Dir)
	}
	if cfg.Telemetry.ListenAddr != ":9465" {
		t.Errorf("telemetry.listen_addr = %q", cfg.Telemetry.ListenAddr)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	yaml := `
index:
  source_path: species.json
  shard_count: 4
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Log: config.LogConfig{Level: "loud"},
		Index: config.IndexConfig{
			SourceFormat: "xml",
		},
		Matching: config.MatchingConfig{
			ASRWeight:       1.5,
			AutoAcceptFloor: 0.40,
			SuggestionFloor: 0.60,
		},
	}

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{
		"log.level",
		"index.source_path",
		"index.source_format",
		"matching.asr_weight",
		"matching.auto_accept_floor",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q:\n%s", want, msg)
		}
	}
}

func TestValidate_PendingBudgetBelowInline(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Index: config.IndexConfig{SourcePath: "species.json"},
		Matching: config.MatchingConfig{
			InlineBudgetMS:  500,
			PendingBudgetMS: 100,
		},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "pending_budget_ms") {
		t.Fatalf("expected pending budget error, got %v", err)
	}
}

func TestValidate_ZeroValuesAreDefaults(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Index: config.IndexConfig{SourcePath: "species.json"},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("zero config should validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/telwerk.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
