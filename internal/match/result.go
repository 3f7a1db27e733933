package match

// Source tags which matching stage produced a candidate.
type Source string

const (
	// SourceQuickExact marks the orchestrator's pre-stage: an unambiguous
	// exact match on a species already recorded this session.
	SourceQuickExact Source = "quick_exact"

	// SourceFastPath marks an exact-lookup acceptance cleared by the
	// confidence floor.
	SourceFastPath Source = "fastpath"

	// SourceFastTiles marks an exact-lookup acceptance disambiguated by the
	// active tile set.
	SourceFastTiles Source = "fast_tiles"

	// SourceHeavy marks a fuzzy-cascade result computed inline.
	SourceHeavy Source = "heavy"

	// SourcePending marks a fuzzy-cascade result delivered asynchronously by
	// the pending buffer worker.
	SourcePending Source = "pending"
)

// Candidate is one scored match proposal.
type Candidate struct {
	// SpeciesID is the proposed species catalog key.
	SpeciesID string

	// DisplayName is the name to show for the proposal.
	DisplayName string

	// Score is the combined confidence in 0.0–1.0.
	Score float64

	// Source tags the stage that produced this candidate.
	Source Source

	// Amount is the count extracted from trailing text, 1 when absent.
	Amount int
}

// Kind discriminates the Result variants.
type Kind int

const (
	// KindNoMatch: nothing cleared any threshold. Raw carries the input.
	KindNoMatch Kind = iota

	// KindAutoAccept: confidence high enough to commit without confirmation.
	KindAutoAccept

	// KindAutoAcceptAddPopup: accept, but the species is new to the session
	// so a lightweight confirmation must still be shown.
	KindAutoAcceptAddPopup

	// KindSuggestionList: ambiguous; present the ranked list to the user.
	KindSuggestionList

	// KindMultiMatch: more than one exact match at equal priority; the user
	// must disambiguate.
	KindMultiMatch

	// KindDeferred: the inline budget was exceeded and the utterance was
	// handed to the pending buffer. The final result arrives via the
	// registered listener; there is no synchronous candidate.
	KindDeferred
)

// String returns the audit-log name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNoMatch:
		return "no_match"
	case KindAutoAccept:
		return "auto_accept"
	case KindAutoAcceptAddPopup:
		return "auto_accept_add_popup"
	case KindSuggestionList:
		return "suggestion_list"
	case KindMultiMatch:
		return "multi_match"
	case KindDeferred:
		return "deferred"
	}
	return "unknown"
}

// Result is the tagged outcome of one parse. Exactly one variant applies,
// discriminated by Kind; Candidates is populated for every variant except
// NoMatch and Deferred, and Raw only for NoMatch and Deferred.
type Result struct {
	Kind       Kind
	Candidates []Candidate
	Raw        string
}

// Best returns the top candidate, or a zero Candidate when there is none.
func (r Result) Best() Candidate {
	if len(r.Candidates) == 0 {
		return Candidate{}
	}
	return r.Candidates[0]
}

// Accepted reports whether the result commits a species (with or without
// the add popup).
func (r Result) Accepted() bool {
	return r.Kind == KindAutoAccept || r.Kind == KindAutoAcceptAddPopup
}

// autoAccept builds the accept variant, tagging whether the species still
// needs the lightweight confirmation because it is new to the session.
func autoAccept(c Candidate, mctx *Context) Result {
	kind := KindAutoAccept
	if !mctx.InSession(c.SpeciesID) {
		kind = KindAutoAcceptAddPopup
	}
	return Result{Kind: kind, Candidates: []Candidate{c}}
}

func noMatch(raw string) Result {
	return Result{Kind: KindNoMatch, Raw: raw}
}
