package logic

import "strings"

// FishSequence is a known key sequence over the alphabet {e, r, t}.
type FishSequence struct {
	Name     string
	Sequence string
}

// Brain narrows the known sequences to those consistent with the keys
// pressed so far in the current session.
// Not safe for concurrent use.
type Brain struct {
	known      []FishSequence
	candidates []FishSequence
	history    string
	predict    bool
}

// NewBrain creates a predictor over the given sequences. The candidate set is
// full until the first RegisterKey.
func NewBrain(known []FishSequence, predict bool) *Brain {
	b := &Brain{known: known, predict: predict}
	b.Reset()
	return b
}

// Reset clears the history and restores every non-empty known sequence.
func (b *Brain) Reset() {
	b.history = ""
	b.candidates = b.candidates[:0]
	for _, f := range b.known {
		if f.Sequence != "" {
			b.candidates = append(b.candidates, f)
		}
	}
}

// SetPrediction enables or disables PredictNext.
func (b *Brain) SetPrediction(on bool) {
	b.predict = on
}

// RegisterKey appends k to the history and drops candidates that no longer match.
func (b *Brain) RegisterKey(k string) {
	b.history += strings.ToLower(k)

	kept := b.candidates[:0]
	for _, f := range b.candidates {
		if strings.HasPrefix(strings.ToLower(f.Sequence), b.history) {
			kept = append(kept, f)
		}
	}
	b.candidates = kept
}

// RegisterWrongKey records a key the game flagged as wrong. The candidate set
// is left alone; wrong keys do not yet narrow the prediction.
func (b *Brain) RegisterWrongKey(k string) {}

// PredictNext returns the next key when every surviving candidate agrees on it.
func (b *Brain) PredictNext() (string, bool) {
	if !b.predict || len(b.candidates) == 0 {
		return "", false
	}

	idx := len(b.history)
	next := ""
	for _, f := range b.candidates {
		seq := strings.ToLower(f.Sequence)
		if idx >= len(seq) {
			continue
		}
		c := seq[idx : idx+1]
		if next == "" {
			next = c
		} else if c != next {
			return "", false
		}
	}
	return next, next != ""
}

// History returns the keys pressed this session.
func (b *Brain) History() string {
	return b.history
}

// Candidates returns a copy of the surviving sequences.
func (b *Brain) Candidates() []FishSequence {
	out := make([]FishSequence, len(b.candidates))
	copy(out, b.candidates)
	return out
}

// CandidateCount returns the number of surviving sequences.
func (b *Brain) CandidateCount() int {
	return len(b.candidates)
}
