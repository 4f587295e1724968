package gpio

import (
	"errors"
	"testing"
)

func TestSwitchReportsRunToStop(t *testing.T) {
	s := NewSwitch(NewFakeReader(true, true, false, false, true, false))

	want := []bool{false, false, true, false, false, true}
	for i, w := range want {
		got, err := s.Stopped()
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if got != w {
			t.Errorf("tick %d: got %v, want %v", i, got, w)
		}
	}
}

func TestSwitchAtStopOnFirstRead(t *testing.T) {
	s := NewSwitch(NewFakeReader(false))

	if stopped, _ := s.Stopped(); !stopped {
		t.Error("switch already at STOP should report a stop")
	}
	if stopped, _ := s.Stopped(); stopped {
		t.Error("stop should be reported once")
	}
}

func TestSwitchReadErrorKeepsPosition(t *testing.T) {
	f := NewFakeReader(true, false)
	s := NewSwitch(f)
	s.Stopped()

	f.ReadError = errors.New("bus error")
	if stopped, err := s.Stopped(); err == nil || stopped {
		t.Errorf("got (%v, %v), want (false, error)", stopped, err)
	}

	f.ReadError = nil
	if stopped, _ := s.Stopped(); !stopped {
		t.Error("expected stop after error cleared")
	}
}

func TestSwitchClose(t *testing.T) {
	f := NewFakeReader(true)
	if err := NewSwitch(f).Close(); err != nil {
		t.Fatal(err)
	}
	if !f.Closed {
		t.Error("Close should close the reader")
	}
}
