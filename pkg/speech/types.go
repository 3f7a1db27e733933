// Package speech defines the types exchanged with the external
// speech-recognition collaborator. The recognizer itself lives outside this
// module; the matching engine only consumes its ranked output.
package speech

import "time"

// Hypothesis is a single ranked recognition result for one utterance.
// Recognizers typically emit several hypotheses per utterance, best first.
type Hypothesis struct {
	// Text is the recognized speech content.
	Text string

	// Confidence is the recognizer's confidence score (0.0–1.0). May be zero
	// if the recognizer does not report confidence.
	Confidence float64
}

// Partial is an interim recognition snippet emitted while the speaker is
// still talking. Partials are never matched; they are recorded in the audit
// log so recognition behaviour can be analysed offline.
type Partial struct {
	// Text is the interim transcript so far.
	Text string

	// Timestamp marks when the snippet was produced, relative to utterance
	// start.
	Timestamp time.Duration
}

// Utterance bundles everything the recognizer delivers for one spoken
// phrase: the ranked final hypotheses plus any interim snippets seen along
// the way.
type Utterance struct {
	// Hypotheses holds the ranked final results, best first. Never empty for
	// a completed utterance.
	Hypotheses []Hypothesis

	// Partials holds the interim snippets in emission order. May be nil.
	Partials []Partial
}

// Best returns the top-ranked hypothesis, or a zero Hypothesis when the
// utterance carries none.
func (u Utterance) Best() Hypothesis {
	if len(u.Hypotheses) == 0 {
		return Hypothesis{}
	}
	return u.Hypotheses[0]
}
