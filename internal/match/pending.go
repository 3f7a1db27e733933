package match

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/match/auditlog"
	"github.com/mboersen/telwerk/internal/observe"
	"github.com/mboersen/telwerk/pkg/speech"
)

// Pending-buffer constants.
const (
	// DefaultPendingCapacity is the number of utterances the buffer holds.
	// Enqueueing beyond it silently evicts the oldest item.
	DefaultPendingCapacity = 8

	// DefaultPendingIdle is the worker's poll delay when the buffer is empty.
	DefaultPendingIdle = 50 * time.Millisecond

	// DefaultPendingBudget is the per-attempt heavy-match budget on the
	// worker, longer than the inline budget because nobody is blocked on it.
	DefaultPendingBudget = 1200 * time.Millisecond

	// pendingMaxAttempts bounds retries: one initial attempt plus one retry,
	// then the item is dropped and logged as a timeout.
	pendingMaxAttempts = 2
)

// Listener receives asynchronously resolved results. Results arrive as they
// complete — out of submission order — and at most once per enqueued item.
type Listener func(Result)

// pendingItem is one utterance awaiting a background heavy match.
type pendingItem struct {
	hyps     []speech.Hypothesis
	mctx     *Context
	amount   int
	raw      string
	attempts int
}

// PendingBuffer absorbs heavy matches that did not finish within the inline
// budget. A single long-lived worker goroutine re-runs them under a longer
// budget and delivers outcomes through the registered [Listener].
//
// The buffer is bounded: when full, Enqueue overwrites the oldest pending
// item. There is no caller-visible backpressure beyond that eventual
// omission.
type PendingBuffer struct {
	runner          Runner
	indexFn         func() *alias.Index
	audit           *auditlog.Logger
	metrics         *observe.Metrics
	capacity        int
	idle            time.Duration
	budget          time.Duration
	autoAcceptFloor float64
	suggestionFloor float64

	mu       sync.Mutex
	items    []pendingItem
	listener Listener

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// PendingOption configures a [PendingBuffer].
type PendingOption func(*PendingBuffer)

// WithPendingCapacity sets the buffer capacity. Default: 8.
func WithPendingCapacity(n int) PendingOption {
	return func(b *PendingBuffer) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithPendingIdle sets the worker's empty-buffer poll delay. Default: 50ms.
func WithPendingIdle(d time.Duration) PendingOption {
	return func(b *PendingBuffer) {
		if d > 0 {
			b.idle = d
		}
	}
}

// WithPendingBudget sets the per-attempt heavy-match budget. Default: 1200ms.
func WithPendingBudget(d time.Duration) PendingOption {
	return func(b *PendingBuffer) {
		if d > 0 {
			b.budget = d
		}
	}
}

// WithPendingAudit attaches an audit logger for timeout entries. May be nil.
func WithPendingAudit(l *auditlog.Logger) PendingOption {
	return func(b *PendingBuffer) { b.audit = l }
}

// WithPendingMetrics attaches the metrics instruments. May be nil.
func WithPendingMetrics(m *observe.Metrics) PendingOption {
	return func(b *PendingBuffer) { b.metrics = m }
}

// WithPendingFloors sets the auto-accept and suggestion score floors applied
// to asynchronously resolved results. Defaults match the inline path.
func WithPendingFloors(autoAccept, suggestion float64) PendingOption {
	return func(b *PendingBuffer) {
		b.autoAcceptFloor = autoAccept
		b.suggestionFloor = suggestion
	}
}

// NewPendingBuffer creates a buffer whose worker re-runs items through
// runner against the index snapshot indexFn returns at processing time (not
// enqueue time, so a rebuilt index is picked up automatically).
func NewPendingBuffer(runner Runner, indexFn func() *alias.Index, opts ...PendingOption) *PendingBuffer {
	b := &PendingBuffer{
		runner:          runner,
		indexFn:         indexFn,
		capacity:        DefaultPendingCapacity,
		idle:            DefaultPendingIdle,
		budget:          DefaultPendingBudget,
		autoAcceptFloor: DefaultAutoAcceptFloor,
		suggestionFloor: DefaultSuggestionFloor,
		done:            make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	b.items = make([]pendingItem, 0, b.capacity)
	return b
}

// SetListener registers the callback for asynchronous results. Must be set
// before Start; a nil listener discards results.
func (b *PendingBuffer) SetListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

// Start launches the worker goroutine. Safe to call once; the worker lives
// until [PendingBuffer.Close].
func (b *PendingBuffer) Start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

// Close stops the worker. Items still buffered are abandoned.
func (b *PendingBuffer) Close() {
	b.stopOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

// Enqueue adds an utterance for background matching. When the buffer is at
// capacity the oldest pending item is overwritten.
func (b *PendingBuffer) Enqueue(hyps []speech.Hypothesis, mctx *Context, amount int, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item := pendingItem{hyps: hyps, mctx: mctx, amount: amount, raw: raw}
	if len(b.items) >= b.capacity {
		evicted := b.items[0]
		copy(b.items, b.items[1:])
		b.items[len(b.items)-1] = item
		slog.Debug("pending: buffer full, evicted oldest", "evicted", evicted.raw, "enqueued", raw)
		return
	}
	b.items = append(b.items, item)
	b.metrics.RecordPendingDepth(context.Background(), 1)
}

// Len returns the number of items currently buffered.
func (b *PendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// take pops the oldest item, reporting false when the buffer is empty.
func (b *PendingBuffer) take() (pendingItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return pendingItem{}, false
	}
	item := b.items[0]
	copy(b.items, b.items[1:])
	b.items = b.items[:len(b.items)-1]
	b.metrics.RecordPendingDepth(context.Background(), -1)
	return item, true
}

// requeue puts a timed-out item back for its retry, unless the buffer has
// filled up in the meantime (newer utterances win).
func (b *PendingBuffer) requeue(item pendingItem) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.capacity {
		return false
	}
	b.items = append(b.items, item)
	b.metrics.RecordPendingDepth(context.Background(), 1)
	return true
}

func (b *PendingBuffer) run() {
	defer b.wg.Done()

	timer := time.NewTimer(b.idle)
	defer timer.Stop()

	for {
		item, ok := b.take()
		if !ok {
			timer.Reset(b.idle)
			select {
			case <-b.done:
				return
			case <-timer.C:
			}
			continue
		}

		select {
		case <-b.done:
			return
		default:
		}

		b.process(item)
	}
}

func (b *PendingBuffer) process(item pendingItem) {
	item.attempts++

	ctx, cancel := context.WithTimeout(context.Background(), b.budget)
	_, ranked, err := b.runner.Match(ctx, b.indexFn(), item.hyps, item.mctx, 0)
	cancel()

	switch {
	case err == nil:
		b.deliver(decide(ranked, item.amount, item.raw, item.mctx,
			b.autoAcceptFloor, b.suggestionFloor, SourcePending))

	case errors.Is(err, context.DeadlineExceeded) && item.attempts < pendingMaxAttempts:
		if !b.requeue(item) {
			b.logTimeout(item)
		}

	default:
		b.logTimeout(item)
	}
}

func (b *PendingBuffer) deliver(r Result) {
	b.mu.Lock()
	l := b.listener
	b.mu.Unlock()
	if l != nil {
		l(r)
	}
}

func (b *PendingBuffer) logTimeout(item pendingItem) {
	b.metrics.RecordPendingTimeout(context.Background())
	slog.Warn("pending: heavy match timed out, dropping item",
		"input", item.raw,
		"attempts", item.attempts,
	)
	hyps := make([]auditlog.Hypothesis, 0, len(item.hyps))
	for _, h := range item.hyps {
		hyps = append(hyps, auditlog.Hypothesis{Text: h.Text, Confidence: h.Confidence})
	}
	b.audit.LogTimeout(auditlog.Timeout{
		Input:      item.raw,
		Attempts:   item.attempts,
		Hypotheses: hyps,
	})
}
