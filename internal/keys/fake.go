package keys

import "sync"

// FakePresser is a test double that records presses.
type FakePresser struct {
	mu      sync.Mutex
	pressed []string

	// PressError, if set, will be returned by Press()
	PressError error
}

// NewFakePresser creates a FakePresser.
func NewFakePresser() *FakePresser {
	return &FakePresser{}
}

// Press records key, even when PressError is set.
func (f *FakePresser) Press(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, key)
	return f.PressError
}

// Pressed returns a copy of every key pressed so far.
func (f *FakePresser) Pressed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.pressed))
	copy(out, f.pressed)
	return out
}
