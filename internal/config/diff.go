package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatchingChanged is true when any threshold or budget changed. The
	// matcher is rebuilt from the new values; in-flight parses keep the old
	// ones.
	MatchingChanged bool

	// SourceChanged is true when the species catalog path or format
	// changed, which requires an index rebuild.
	SourceChanged bool

	// AuditChanged is true when the audit directory or buffer changed,
	// which requires reopening the audit logger.
	AuditChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}
	if old.Matching != new.Matching {
		d.MatchingChanged = true
	}
	if old.Index.SourcePath != new.Index.SourcePath ||
		old.Index.SourceFormat != new.Index.SourceFormat ||
		old.Index.QGramSize != new.Index.QGramSize {
		d.SourceChanged = true
	}
	if old.Audit != new.Audit {
		d.AuditChanged = true
	}

	return d
}
