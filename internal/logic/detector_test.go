package logic

import (
	"testing"
	"time"
)

func TestConfirmFirstTickNeverFires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var s SignalState

	if s.Confirm(true, now, 0) {
		t.Error("first active tick should not fire, even with zero hold")
	}
	if s.Phase != PhasePending {
		t.Errorf("phase: got %s, want PENDING", s.Phase)
	}
	if !s.Since.Equal(now) {
		t.Errorf("since: got %v, want %v", s.Since, now)
	}
}

func TestConfirmBeforeHoldDoesNotFire(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hold := 500 * time.Millisecond
	var s SignalState

	s.Confirm(true, now, hold)
	if s.Confirm(true, now.Add(hold-time.Millisecond), hold) {
		t.Error("signal active for hold-1ms should not fire")
	}
	if s.Phase != PhasePending {
		t.Errorf("phase: got %s, want PENDING", s.Phase)
	}
}

func TestConfirmFiresExactlyOnce(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hold := 500 * time.Millisecond
	var s SignalState

	s.Confirm(true, now, hold)
	if !s.Confirm(true, now.Add(hold), hold) {
		t.Fatal("signal active for exactly hold should fire")
	}
	if s.Phase != PhaseFired {
		t.Errorf("phase: got %s, want FIRED", s.Phase)
	}

	// Still active: must never fire again.
	for i := 1; i <= 20; i++ {
		if s.Confirm(true, now.Add(hold+time.Duration(i)*100*time.Millisecond), hold) {
			t.Fatalf("tick %d: fired again while continuously active", i)
		}
	}
}

func TestConfirmInactiveTickRestartsHold(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hold := 500 * time.Millisecond
	var s SignalState

	s.Confirm(true, now, hold)
	s.Confirm(true, now.Add(400*time.Millisecond), hold)

	// One inactive tick
	if s.Confirm(false, now.Add(450*time.Millisecond), hold) {
		t.Error("inactive tick should never fire")
	}
	if s.Phase != PhaseIdle {
		t.Errorf("phase after inactive tick: got %s, want IDLE", s.Phase)
	}

	// Reappears: first tick is a new activation
	if s.Confirm(true, now.Add(500*time.Millisecond), hold) {
		t.Error("reactivation should not fire on its first tick")
	}
	// Original first_seen would have satisfied hold here; must not carry over.
	if s.Confirm(true, now.Add(900*time.Millisecond), hold) {
		t.Error("reactivation should need a fresh full hold")
	}
	if !s.Confirm(true, now.Add(1000*time.Millisecond), hold) {
		t.Error("reactivation should fire after a fresh full hold")
	}
}

func TestConfirmRefiresAfterDrop(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hold := 100 * time.Millisecond
	var s SignalState

	s.Confirm(true, now, hold)
	if !s.Confirm(true, now.Add(hold), hold) {
		t.Fatal("expected first fire")
	}
	s.Confirm(false, now.Add(200*time.Millisecond), hold)
	s.Confirm(true, now.Add(300*time.Millisecond), hold)
	if !s.Confirm(true, now.Add(400*time.Millisecond), hold) {
		t.Error("expected second fire after signal dropped and returned")
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "IDLE"},
		{PhasePending, "PENDING"},
		{PhaseFired, "FIRED"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String(): got %q, want %q", tt.phase, got, tt.want)
		}
	}
}
