// Package auditlog appends structured records of every match decision to
// newline-delimited JSON files, one file per day, for offline analysis.
//
// Writes happen on a dedicated background goroutine and are never awaited by
// the matching critical path: [Logger.Log] is a non-blocking channel send
// that drops the entry when the buffer is full, and write failures degrade
// to skipping the entry. Nothing here ever propagates an error to a caller.
package auditlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Hypothesis is the logged form of one recognizer hypothesis.
type Hypothesis struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// CandidateScore is the logged form of one scored candidate.
type CandidateScore struct {
	SpeciesID string  `json:"speciesId"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"`
}

// Decision records one completed parse: the input, the chosen result, and
// everything that went into it.
type Decision struct {
	Kind       string           `json:"kind"` // always "decision"
	Time       time.Time        `json:"time"`
	Input      string           `json:"input"`
	Result     string           `json:"result"`
	SpeciesID  string           `json:"speciesId,omitempty"`
	Amount     int              `json:"amount,omitempty"`
	Score      float64          `json:"score,omitempty"`
	Source     string           `json:"source,omitempty"`
	Hypotheses []Hypothesis     `json:"hypotheses,omitempty"`
	Candidates []CandidateScore `json:"candidates,omitempty"`
	Partials   []string         `json:"partials,omitempty"`
}

// Timeout records a pending-buffer item dropped after its retries expired.
type Timeout struct {
	Kind       string       `json:"kind"` // always "timeout"
	Time       time.Time    `json:"time"`
	Input      string       `json:"input"`
	Attempts   int          `json:"attempts"`
	Hypotheses []Hypothesis `json:"hypotheses,omitempty"`
}

// Partial records an interim recognition snippet.
type Partial struct {
	Kind string    `json:"kind"` // always "partial"
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// entry is the closed set of loggable record types.
type entry interface{ kind() string }

func (Decision) kind() string { return "decision" }
func (Timeout) kind() string  { return "timeout" }
func (Partial) kind() string  { return "partial" }

// DefaultBufferSize is the channel depth between callers and the writer
// goroutine.
const DefaultBufferSize = 256

// Logger is the append-only decision recorder. The zero value is not usable;
// construct with [New]. A nil *Logger is safe: all methods become no-ops, so
// callers need no nil checks.
type Logger struct {
	dir string
	ch  chan entry

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	// writer-goroutine state, never touched elsewhere
	fileDate string
	file     *os.File
}

// Option configures a [Logger].
type Option func(*Logger)

// WithBufferSize sets the channel depth. Default: 256.
func WithBufferSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.ch = make(chan entry, n)
		}
	}
}

// New creates the log directory if needed and starts the writer goroutine.
// Creation failure is not fatal: the logger still starts and every write
// attempt will be skipped with a debug log.
func New(dir string, opts ...Option) *Logger {
	l := &Logger{
		dir:  dir,
		ch:   make(chan entry, DefaultBufferSize),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Debug("auditlog: create dir failed; entries will be skipped", "dir", dir, "err", err)
	}
	go l.run()
	return l
}

// LogDecision enqueues a decision entry. Non-blocking; drops when full.
func (l *Logger) LogDecision(d Decision) { l.log(d) }

// LogTimeout enqueues a timeout entry. Non-blocking; drops when full.
func (l *Logger) LogTimeout(t Timeout) { l.log(t) }

// LogPartial enqueues a partial-recognition entry. Non-blocking.
func (l *Logger) LogPartial(p Partial) { l.log(p) }

func (l *Logger) log(e entry) {
	if l == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	default:
		// Buffer full: the audit trail is best-effort by contract.
	}
}

// Close stops the writer goroutine after draining buffered entries.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()
	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)
	defer func() {
		if l.file != nil {
			l.file.Close()
		}
	}()

	for e := range l.ch {
		l.write(e)
	}
}

// write appends one entry to today's file. Every failure path logs at debug
// level and returns; no error ever leaves this function.
func (l *Logger) write(e entry) {
	now := time.Now()

	switch v := e.(type) {
	case Decision:
		v.Kind, v.Time = v.kind(), orNow(v.Time, now)
		e = v
	case Timeout:
		v.Kind, v.Time = v.kind(), orNow(v.Time, now)
		e = v
	case Partial:
		v.Kind, v.Time = v.kind(), orNow(v.Time, now)
		e = v
	}

	line, err := json.Marshal(e)
	if err != nil {
		slog.Debug("auditlog: marshal failed", "err", err)
		return
	}

	date := now.Format("2006-01-02")
	if l.file == nil || date != l.fileDate {
		if l.file != nil {
			l.file.Close()
			l.file = nil
		}
		path := filepath.Join(l.dir, "matches-"+date+".ndjson")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Debug("auditlog: open failed; entry skipped", "path", path, "err", err)
			return
		}
		l.file = f
		l.fileDate = date
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		slog.Debug("auditlog: write failed; entry skipped", "err", err)
	}
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
