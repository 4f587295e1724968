package logic

import "time"

// Phase is the debounce phase of a single signal.
type Phase int

const (
	// PhaseIdle means the signal is not active.
	PhaseIdle Phase = iota
	// PhasePending means the signal is active but not yet confirmed.
	PhasePending
	// PhaseFired means the signal was confirmed and its action consumed.
	PhaseFired
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "PENDING"
	case PhaseFired:
		return "FIRED"
	default:
		return "IDLE"
	}
}

// SignalState tracks debounce state for a single signal.
// Since is only meaningful in PhasePending and PhaseFired.
type SignalState struct {
	Phase Phase
	Since time.Time
}

// Confirm feeds one tick of the signal and reports whether it fires.
// A signal fires at most once per continuous activation, and only after it
// has been active for at least hold. The first active tick never fires.
func (s *SignalState) Confirm(active bool, now time.Time, hold time.Duration) bool {
	if !active {
		s.Clear()
		return false
	}

	switch s.Phase {
	case PhaseIdle:
		s.Phase = PhasePending
		s.Since = now
		return false
	case PhasePending:
		if now.Sub(s.Since) >= hold {
			s.Phase = PhaseFired
			return true
		}
	}
	return false
}

// Clear returns the signal to idle.
func (s *SignalState) Clear() {
	s.Phase = PhaseIdle
	s.Since = time.Time{}
}

// Active reports whether the signal is pending or fired.
func (s *SignalState) Active() bool {
	return s.Phase != PhaseIdle
}

// letterState is the per-letter record: green debounce plus the
// once-per-session wrong-key registration.
type letterState struct {
	green         SignalState
	wrongRecorded bool
}
