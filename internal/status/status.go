// Package status provides a thread-safe status tracker for the fishing bot.
// It is written by the polling loop and read by HTTP and websocket handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// RecentLimit is the number of finished sessions kept for display.
const RecentLimit = 10

// Catch is a finished session as shown on the status page. This is a local
// copy to avoid importing internal/store from status.
type Catch struct {
	Session int
	Result  string
	History string
	Forced  bool
	At      time.Time
}

// Tally is the number of logged catches with one result text.
type Tally struct {
	Result string
	Count  int
}

// Logged summarises the catch log across every run.
type Logged struct {
	Outcomes map[string]int
	Tally    []Tally // most frequent first
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	ConfigPath  string
	KnownFish   int
}

// Progress is the machine's view of the current session.
type Progress struct {
	State      logic.StateLabel
	Session    int
	StartedAt  time.Time
	History    string
	Candidates int
	Predicted  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Progress
	Counts        logic.Counts
	LastEvent     *logic.Event
	Recent        []Catch // newest first
	Logged        Logged
	Running       bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Progress:  Progress{State: logic.StateIdle},
			StartTime: startTime,
			Running:   true,
			Config:    cfg,
		},
	}
}

// Update sets the session progress and counters.
// Called from runLoop on every tick.
func (t *Tracker) Update(p Progress, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Progress = p
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordEvent remembers ev as the latest event. Completed sessions are
// added to the recent catches.
func (t *Tracker) RecordEvent(ev logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.LastEvent = &ev
	if ev.Type != logic.EventSessionComplete {
		return
	}
	c := Catch{
		Session: ev.Session,
		Result:  ev.Result,
		History: ev.History,
		Forced:  ev.Forced,
		At:      ev.Timestamp,
	}
	t.snap.Recent = append([]Catch{c}, t.snap.Recent...)
	if len(t.snap.Recent) > RecentLimit {
		t.snap.Recent = t.snap.Recent[:RecentLimit]
	}
}

// SetRecent replaces the recent catches, newest first. Used to seed the
// page from the catch log at startup.
func (t *Tracker) SetRecent(catches []Catch) {
	if len(catches) > RecentLimit {
		catches = catches[:RecentLimit]
	}
	cp := make([]Catch, len(catches))
	copy(cp, catches)

	t.mu.Lock()
	t.snap.Recent = cp
	t.mu.Unlock()
}

// SetLogged replaces the catch log totals.
func (t *Tracker) SetLogged(l Logged) {
	cp := Logged{
		Outcomes: make(map[string]int, len(l.Outcomes)),
		Tally:    make([]Tally, len(l.Tally)),
	}
	for k, v := range l.Outcomes {
		cp.Outcomes[k] = v
	}
	copy(cp.Tally, l.Tally)

	t.mu.Lock()
	t.snap.Logged = cp
	t.mu.Unlock()
}

// SetRunning records whether the polling loop is still active.
func (t *Tracker) SetRunning(running bool) {
	t.mu.Lock()
	t.snap.Running = running
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Recent = make([]Catch, len(t.snap.Recent))
	copy(s.Recent, t.snap.Recent)
	s.Logged.Tally = make([]Tally, len(t.snap.Logged.Tally))
	copy(s.Logged.Tally, t.snap.Logged.Tally)
	s.Logged.Outcomes = make(map[string]int, len(t.snap.Logged.Outcomes))
	for k, v := range t.snap.Logged.Outcomes {
		s.Logged.Outcomes[k] = v
	}
	if t.snap.LastEvent != nil {
		ev := *t.snap.LastEvent
		s.LastEvent = &ev
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
