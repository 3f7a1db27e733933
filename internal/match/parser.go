// Package match resolves noisy speech hypotheses to species identifiers.
//
// The [Parser] is the public entry point. It runs the exact-lookup fast path
// first, falls back to the budgeted fuzzy heavy path, and hands budget
// overruns to the [PendingBuffer] so the caller is never blocked beyond the
// inline budget. Every decision is recorded through the audit logger off the
// critical path.
package match

import (
	"context"
	"errors"
	"time"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/match/auditlog"
	"github.com/mboersen/telwerk/internal/observe"
	"github.com/mboersen/telwerk/pkg/speech"
)

// Orchestrator thresholds. Tunable via options; defaults were chosen
// empirically against field recordings.
const (
	// DefaultInlineBudget bounds the synchronous heavy-path attempt.
	DefaultInlineBudget = 300 * time.Millisecond

	// DefaultAutoAcceptFloor is the combined score above which a heavy-path
	// candidate is committed without confirmation.
	DefaultAutoAcceptFloor = 0.72

	// DefaultSuggestionFloor is the combined score above which candidates
	// are worth presenting as suggestions.
	DefaultSuggestionFloor = 0.45

	// tieEpsilon: candidates within this margin of the leader count as tied
	// and force disambiguation instead of a guess.
	tieEpsilon = 0.02
)

// Parser is the match orchestrator. It is safe for concurrent use; all
// mutable state lives in the index snapshot function and the pending buffer,
// both of which handle their own synchronisation.
type Parser struct {
	indexFn func() *alias.Index
	fast    *FastPath
	heavy   Runner
	pending *PendingBuffer
	audit   *auditlog.Logger
	metrics *observe.Metrics

	inlineBudget    time.Duration
	autoAcceptFloor float64
	suggestionFloor float64
	asrWeight       float64
}

// ParserOption configures a [Parser].
type ParserOption func(*Parser)

// WithFastPath replaces the default fast path.
func WithFastPath(fp *FastPath) ParserOption {
	return func(p *Parser) { p.fast = fp }
}

// WithHeavyPath replaces the default heavy path runner.
func WithHeavyPath(r Runner) ParserOption {
	return func(p *Parser) { p.heavy = r }
}

// WithPendingBuffer attaches the pending buffer for budget overruns. When
// nil (the default), overruns degrade to NoMatch.
func WithPendingBuffer(b *PendingBuffer) ParserOption {
	return func(p *Parser) { p.pending = b }
}

// WithAuditLogger attaches the decision audit logger. May be nil.
func WithAuditLogger(l *auditlog.Logger) ParserOption {
	return func(p *Parser) { p.audit = l }
}

// WithMetrics attaches the metrics instruments. May be nil.
func WithMetrics(m *observe.Metrics) ParserOption {
	return func(p *Parser) { p.metrics = m }
}

// WithInlineBudget sets the synchronous heavy-path budget. Default: 300ms.
func WithInlineBudget(d time.Duration) ParserOption {
	return func(p *Parser) {
		if d > 0 {
			p.inlineBudget = d
		}
	}
}

// WithFloors sets the auto-accept and suggestion score floors.
func WithFloors(autoAccept, suggestion float64) ParserOption {
	return func(p *Parser) {
		p.autoAcceptFloor = autoAccept
		p.suggestionFloor = suggestion
	}
}

// WithParserASRWeight overrides the confidence blend weight passed to the
// heavy path. Zero keeps the heavy path's own default.
func WithParserASRWeight(w float64) ParserOption {
	return func(p *Parser) { p.asrWeight = w }
}

// NewParser builds a Parser over the index snapshot function. indexFn is
// called once per parse so an atomically swapped index is picked up
// immediately.
func NewParser(indexFn func() *alias.Index, opts ...ParserOption) *Parser {
	p := &Parser{
		indexFn:         indexFn,
		fast:            NewFastPath(),
		heavy:           NewHeavyPath(),
		inlineBudget:    DefaultInlineBudget,
		autoAcceptFloor: DefaultAutoAcceptFloor,
		suggestionFloor: DefaultSuggestionFloor,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseHypotheses resolves one utterance. hyps is the ranked hypothesis
// list, best first. The call blocks for at most the fast-path lookup plus
// the inline heavy-path budget; a budget overrun returns KindDeferred and
// the final result arrives via the pending buffer's listener.
func (p *Parser) ParseHypotheses(ctx context.Context, hyps []speech.Hypothesis, mctx *Context) Result {
	ctx, span := observe.StartSpan(ctx, "match.parse")
	defer span.End()

	raw := ""
	if len(hyps) > 0 {
		raw = hyps[0].Text
	}

	// Normalize, drop fillers, and split the trailing count off the top
	// hypothesis.
	usable := make([]speech.Hypothesis, 0, len(hyps))
	for _, h := range hyps {
		if norm := alias.Normalize(h.Text); !isFiller(norm) {
			usable = append(usable, h)
		}
	}
	if len(usable) == 0 {
		return p.finish(ctx, noMatch(raw), raw, hyps, nil)
	}

	top := usable[0]
	norm, amount := ExtractAmount(alias.Normalize(top.Text))
	ix := p.indexFn()

	// Pre-stage: an unambiguous exact match on a species already recorded
	// this session commits immediately, whatever the confidence.
	if c, ok := quickExact(ix, norm, mctx); ok {
		c.Amount = amount
		return p.finish(ctx, Result{Kind: KindAutoAccept, Candidates: []Candidate{c}}, raw, usable, nil)
	}

	// Fast path.
	fastStart := time.Now()
	cands, outcome := p.fast.Lookup(ix, norm, top.Confidence, mctx)
	p.metrics.RecordFastPath(ctx, time.Since(fastStart), outcome == FastAccept)

	switch outcome {
	case FastAccept:
		c := cands[0]
		c.Amount = amount
		return p.finish(ctx, autoAccept(c, mctx), raw, usable, cands)
	case FastMulti:
		for i := range cands {
			cands[i].Amount = amount
		}
		return p.finish(ctx, Result{Kind: KindMultiMatch, Candidates: cands}, raw, usable, cands)
	}

	// Heavy path, inline and budgeted.
	heavyCtx, cancel := context.WithTimeout(ctx, p.inlineBudget)
	defer cancel()

	heavyStart := time.Now()
	_, ranked, err := p.heavy.Match(heavyCtx, ix, usable, mctx, p.asrWeight)
	p.metrics.RecordHeavyPath(ctx, time.Since(heavyStart), err == nil)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && p.pending != nil {
			p.pending.Enqueue(usable, mctx, amount, raw)
			return p.finish(ctx, Result{Kind: KindDeferred, Raw: raw}, raw, usable, nil)
		}
		return p.finish(ctx, noMatch(raw), raw, usable, nil)
	}

	res := decide(ranked, amount, raw, mctx, p.autoAcceptFloor, p.suggestionFloor, SourceHeavy)
	return p.finish(ctx, res, raw, usable, ranked)
}

// quickExact implements the pre-stage: all records matching norm belong to
// a single species and that species is already in the session set. A species
// answers to its canonical name through every one of its records, so the
// ambiguity check collapses to distinct species IDs.
func quickExact(ix *alias.Index, norm string, mctx *Context) (Candidate, bool) {
	records := ix.Exact(norm)
	if len(records) == 0 {
		return Candidate{}, false
	}
	first := records[0]
	for _, r := range records[1:] {
		if r.SpeciesID != first.SpeciesID {
			return Candidate{}, false
		}
	}
	if !mctx.InSession(first.SpeciesID) {
		return Candidate{}, false
	}
	return exactCandidate(first, 1.0, SourceQuickExact), true
}

// decide reduces a ranked heavy-path candidate list to a Result, shared by
// the inline path and the pending worker.
func decide(ranked []Candidate, amount int, raw string, mctx *Context, acceptFloor, suggestFloor float64, src Source) Result {
	// Drop everything below the suggestion floor.
	kept := ranked[:0:0]
	for _, c := range ranked {
		if c.Score >= suggestFloor {
			c.Source = src
			c.Amount = amount
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return noMatch(raw)
	}

	best := kept[0]
	tied := 1
	for _, c := range kept[1:] {
		if best.Score-c.Score <= tieEpsilon {
			tied++
		}
	}

	if best.Score >= acceptFloor && tied == 1 {
		return autoAccept(best, mctx)
	}
	return Result{Kind: KindSuggestionList, Candidates: kept}
}

// finish records the decision in the audit log (non-blocking) and the
// metrics, then returns res unchanged.
func (p *Parser) finish(ctx context.Context, res Result, raw string, hyps []speech.Hypothesis, ranked []Candidate) Result {
	best := res.Best()
	p.metrics.RecordMatch(ctx, string(best.Source), res.Kind.String())

	if p.audit != nil {
		lh := make([]auditlog.Hypothesis, 0, len(hyps))
		for _, h := range hyps {
			lh = append(lh, auditlog.Hypothesis{Text: h.Text, Confidence: h.Confidence})
		}
		lc := make([]auditlog.CandidateScore, 0, len(ranked))
		for _, c := range ranked {
			lc = append(lc, auditlog.CandidateScore{SpeciesID: c.SpeciesID, Score: c.Score, Source: string(c.Source)})
		}
		p.audit.LogDecision(auditlog.Decision{
			Input:      raw,
			Result:     res.Kind.String(),
			SpeciesID:  best.SpeciesID,
			Amount:     best.Amount,
			Score:      best.Score,
			Source:     string(best.Source),
			Hypotheses: lh,
			Candidates: lc,
		})
	}
	return res
}

// RecordPartial forwards an interim recognition snippet to the audit log.
// Partials are never matched.
func (p *Parser) RecordPartial(snippet speech.Partial) {
	if p.audit != nil {
		p.audit.LogPartial(auditlog.Partial{Text: snippet.Text})
	}
}
