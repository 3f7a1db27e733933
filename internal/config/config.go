// Package config provides the configuration schema, loader, and file watcher
// for the Telwerk matching service.
package config

// LogLevel controls log verbosity for the Telwerk server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SourceFormat selects the species catalog file format.
type SourceFormat string

const (
	// FormatJSON reads the catalog from a JSON species array.
	FormatJSON SourceFormat = "json"

	// FormatCSV reads the catalog from a semicolon-delimited CSV export.
	FormatCSV SourceFormat = "csv"
)

// IsValid reports whether f is a recognised source format.
func (f SourceFormat) IsValid() bool {
	return f == FormatJSON || f == FormatCSV
}

// Config is the root configuration structure for Telwerk.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Index     IndexConfig     `yaml:"index"`
	Matching  MatchingConfig  `yaml:"matching"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig holds process-log settings.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level"`

	// File is the rotating log file path. Empty logs to stderr only.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is the maximum age of rotated files.
	MaxAgeDays int `yaml:"max_age_days"`
}

// IndexConfig holds the species catalog source and the persisted index
// location.
type IndexConfig struct {
	// SourcePath is the species catalog file the index is built from.
	SourcePath string `yaml:"source_path"`

	// SourceFormat selects the catalog parser.
	SourceFormat SourceFormat `yaml:"source_format"`

	// IndexPath is where the encoded index is persisted. Empty disables
	// persistence and the index is rebuilt from the source on every start.
	IndexPath string `yaml:"index_path"`

	// QGramSize is the shingle size for the MinHash signatures.
	QGramSize int `yaml:"qgram_size"`

	// RebuildDebounceMS delays the rebuild-to-disk after a user alias is
	// added, so bursts coalesce into one write.
	RebuildDebounceMS int `yaml:"rebuild_debounce_ms"`
}

// MatchingConfig holds the tunable thresholds and budgets of the matching
// cascade. Zero values select the built-in defaults.
type MatchingConfig struct {
	// ASRWeight blends recognizer confidence with matcher quality.
	ASRWeight float64 `yaml:"asr_weight"`

	// MaxHypotheses bounds how many ranked hypotheses are scored.
	MaxHypotheses int `yaml:"max_hypotheses"`

	// InlineBudgetMS bounds the synchronous heavy-path attempt.
	InlineBudgetMS int `yaml:"inline_budget_ms"`

	// PendingBudgetMS bounds each background heavy-path attempt.
	PendingBudgetMS int `yaml:"pending_budget_ms"`

	// PendingCapacity is the pending buffer size.
	PendingCapacity int `yaml:"pending_capacity"`

	// ExactConfidenceFloor gates exact matches of species not on a tile.
	ExactConfidenceFloor float64 `yaml:"exact_confidence_floor"`

	// AutoAcceptFloor is the combined score needed to commit a fuzzy match.
	AutoAcceptFloor float64 `yaml:"auto_accept_floor"`

	// SuggestionFloor is the combined score needed to appear as a
	// suggestion.
	SuggestionFloor float64 `yaml:"suggestion_floor"`
}

// AuditConfig holds match audit-trail settings.
type AuditConfig struct {
	// Dir is the directory for daily audit files. Empty disables auditing.
	Dir string `yaml:"dir"`

	// BufferSize is the in-memory entry buffer; entries beyond it are
	// dropped rather than blocking the matcher.
	BufferSize int `yaml:"buffer_size"`
}

// TelemetryConfig holds metrics endpoint settings.
type TelemetryConfig struct {
	// ListenAddr is the address of the /metrics and health endpoint.
	// Empty disables the HTTP listener.
	ListenAddr string `yaml:"listen_addr"`

	// ServiceName overrides the service name reported in telemetry.
	ServiceName string `yaml:"service_name"`
}
