// Package gpio reads an optional hardware run switch.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the run switch.
type Reader interface {
	// Read returns true while the switch is in the RUN position.
	// The input is active-low: raw active = logical STOP.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM line used when --stop-pin is not given.
const DefaultPin = 26

// Switch tracks a Reader and reports when it moves to STOP.
// A read error leaves the last known position in place.
type Switch struct {
	r       Reader
	running bool
	primed  bool
}

// NewSwitch wraps r.
func NewSwitch(r Reader) *Switch {
	return &Switch{r: r}
}

// Stopped polls the switch and returns true only on the tick it moves from
// RUN to STOP. A switch that is already at STOP on the first read also
// reports a stop.
func (s *Switch) Stopped() (bool, error) {
	run, err := s.r.Read()
	if err != nil {
		return false, err
	}

	stopped := !run && (s.running || !s.primed)
	s.running = run
	s.primed = true
	return stopped, nil
}

// Close closes the underlying reader.
func (s *Switch) Close() error {
	return s.r.Close()
}
