package logic

import (
	"fmt"
	"math/rand"
	"time"
)

// Actuator synthesizes a key press.
type Actuator interface {
	Press(key string) error
}

// ResultReader reads the result label of a finished session from region.
// Best-effort.
type ResultReader interface {
	ReadResult(region Region) (string, error)
}

// OutcomeKind tags which guarded check claimed a tick.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	// OutcomeBiteHold means the bite signal is active but not confirmed
	// (or already consumed); nothing else is evaluated this tick.
	OutcomeBiteHold
	OutcomeBite
	OutcomeWaiting
	OutcomeLetter
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeBiteHold:
		return "bite-hold"
	case OutcomeBite:
		return "bite"
	case OutcomeWaiting:
		return "waiting"
	case OutcomeLetter:
		return "letter"
	default:
		return "none"
	}
}

// Outcome is the authoritative decision of one tick.
type Outcome struct {
	Kind OutcomeKind
	Key  string
}

// Session is one attempt cycle from start actuation to completion or timeout.
// Zero times mean "unset".
type Session struct {
	Seq                int
	StartedAt          time.Time
	LastEventAt        time.Time
	LastPressAt        time.Time
	AwaitingCompletion bool
	MenuAbsentSince    time.Time
	Timeout            time.Duration
}

// Option configures a Machine.
type Option func(*Machine)

// WithRand sets the random source used for key choice, timeouts and jitter.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) { m.rng = r }
}

// WithSleep sets the function used for blocking waits.
func WithSleep(f func(time.Duration)) Option {
	return func(m *Machine) { m.sleep = f }
}

// Machine is the session state machine. It owns the session, the per-signal
// debounce state and the predictor.
// Not safe for concurrent use; call Start and Tick from a single goroutine.
type Machine struct {
	src      SettingsSource
	settings Settings
	keys     Actuator
	results  ResultReader
	rng      *rand.Rand
	sleep    func(time.Duration)

	brain   *Brain
	session Session
	started bool
	waitRed SignalState
	letters map[string]*letterState
	waiting bool
	last    Outcome

	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewMachine creates a machine. Start must be called before Tick.
func NewMachine(src SettingsSource, known []FishSequence, keys Actuator, results ResultReader, opts ...Option) *Machine {
	settings := src.Settings()
	m := &Machine{
		src:      src,
		settings: settings,
		keys:     keys,
		results:  results,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    time.Sleep,
		brain:    NewBrain(known, settings.UsePrediction),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetSignals()
	return m
}

// Start opens the first session and presses the start key if configured.
func (m *Machine) Start(now time.Time) []Event {
	m.started = true
	m.startTime = now
	m.lastHeartbeat = now
	return m.startSession(now)
}

// Tick evaluates one frame worth of samples. Steps run in strict priority:
// bite, waiting indicator, letters (with idle reset); completion and the
// startup timeout are evaluated afterwards on every tick.
func (m *Machine) Tick(obs Observation, now time.Time) []Event {
	if !m.started {
		return m.Start(now)
	}

	cls := Classify(obs, m.settings.Thresholds, m.settings.IndicatorThreshold)

	out, events := m.decide(cls, now)
	m.last = out

	if evs := m.checkCompletion(cls, now); evs != nil {
		return append(events, evs...)
	}
	return append(events, m.checkStartTimeout(now)...)
}

type check func(cls Classification, now time.Time) (Outcome, []Event, bool)

func (m *Machine) decide(cls Classification, now time.Time) (Outcome, []Event) {
	for _, c := range []check{m.checkBite, m.checkWaiting, m.checkLetters} {
		if out, events, claimed := c(cls, now); claimed {
			return out, events
		}
	}
	return Outcome{Kind: OutcomeNone}, nil
}

func (m *Machine) checkBite(cls Classification, now time.Time) (Outcome, []Event, bool) {
	active := cls.Wait.Red && cls.Indicator && m.brain.History() == ""
	if !active {
		m.waitRed.Clear()
		return Outcome{}, nil, false
	}

	if !m.waitRed.Confirm(true, now, m.settings.ConfirmDelay) || len(m.settings.Keys) == 0 {
		return Outcome{Kind: OutcomeBiteHold}, nil, true
	}

	key := m.settings.Keys[m.rng.Intn(len(m.settings.Keys))]
	ev := m.pressAndRegister(EventBite, key, now)
	m.counts.Bites++
	return Outcome{Kind: OutcomeBite, Key: key}, []Event{ev}, true
}

// checkWaiting claims the tick while the wait bar is green and nothing has
// been pressed; letter signals at this stage are noise.
func (m *Machine) checkWaiting(cls Classification, now time.Time) (Outcome, []Event, bool) {
	if m.brain.History() != "" || !cls.Wait.Green {
		m.waiting = false
		return Outcome{}, nil, false
	}

	var events []Event
	if !m.waiting {
		m.waiting = true
		events = append(events, m.event(EventWaiting, now))
	}
	return Outcome{Kind: OutcomeWaiting}, events, true
}

func (m *Machine) checkLetters(cls Classification, now time.Time) (Outcome, []Event, bool) {
	var events []Event
	out := Outcome{Kind: OutcomeNone}

	for _, name := range Letters {
		a := cls.Letters[name]
		ls := m.letters[name]

		if a.Red && !ls.wrongRecorded {
			ls.wrongRecorded = true
			m.brain.RegisterWrongKey(name)
			m.counts.WrongKeys++
			ev := m.event(EventWrongKey, now)
			ev.Key = name
			events = append(events, ev)
		}

		if out.Kind == OutcomeLetter || !a.Green {
			continue
		}
		if ls.green.Confirm(true, now, m.settings.ConfirmDelay) {
			events = append(events, m.pressAndRegister(EventKeyPress, name, now))
			out = Outcome{Kind: OutcomeLetter, Key: name}
		}
	}

	// Idle reset: a letter that dropped may be detected again this session.
	for _, name := range Letters {
		if !cls.Letters[name].Green {
			m.letters[name].green.Clear()
		}
	}
	return out, events, true
}

func (m *Machine) checkCompletion(cls Classification, now time.Time) []Event {
	s := &m.session
	if !s.AwaitingCompletion || s.LastPressAt.IsZero() {
		s.MenuAbsentSince = time.Time{}
		return nil
	}

	// The indicator can read present forever on a false positive; an idle
	// ceiling forces the session to finish anyway.
	force := now.Sub(s.LastPressAt) > m.settings.MaxSequenceIdle

	if !force && (cls.Indicator || cls.LettersActive()) {
		s.MenuAbsentSince = time.Time{}
		return nil
	}

	if s.MenuAbsentSince.IsZero() {
		s.MenuAbsentSince = now
		return nil
	}

	if force {
		return m.complete(now, true)
	}
	if now.Sub(s.MenuAbsentSince) < m.settings.MenuAbsentHold ||
		now.Sub(s.LastPressAt) < m.settings.PostPressHold {
		return nil
	}
	return m.complete(now, false)
}

func (m *Machine) complete(now time.Time, forced bool) []Event {
	ev := m.event(EventSessionComplete, now)
	if forced {
		ev.Forced = true
		ev.Reason = "forced"
		m.counts.ForcedFinishes++
	}
	m.counts.Completions++

	if m.results != nil {
		text, err := m.results.ReadResult(m.settings.Regions[RegionResult])
		if err != nil {
			m.counts.ResultFailures++
			ev.Reason = joinReason(ev.Reason, fmt.Sprintf("read result: %v", err))
		} else {
			ev.Result = text
		}
	}

	wait := m.drawDuration(m.settings.FinishJitterMin, m.settings.FinishJitterMax)
	if wait > 0 {
		m.sleep(wait)
	}
	return append([]Event{ev}, m.startSession(now.Add(wait))...)
}

func (m *Machine) checkStartTimeout(now time.Time) []Event {
	s := m.session
	if s.AwaitingCompletion || !s.LastPressAt.IsZero() || m.brain.History() != "" {
		return nil
	}
	if now.Sub(s.StartedAt) < s.Timeout {
		return nil
	}

	ev := m.event(EventSessionTimeout, now)
	ev.Key = m.settings.RecoveryKey
	ev.Reason = fmt.Sprintf("no bite after %v", s.Timeout.Round(100*time.Millisecond))
	if ev.Key != "" {
		if err := m.press(ev.Key); err != nil {
			ev.Reason = joinReason(ev.Reason, err.Error())
		}
	}
	m.counts.Timeouts++

	wait := m.settings.FallbackDelay
	if wait > 0 {
		m.sleep(wait)
	}
	return append([]Event{ev}, m.startSession(now.Add(wait))...)
}

// startSession replaces the session wholesale and re-pulls settings.
func (m *Machine) startSession(now time.Time) []Event {
	m.settings = m.src.Settings()
	m.brain.SetPrediction(m.settings.UsePrediction)
	m.brain.Reset()
	m.resetSignals()
	m.waiting = false
	m.last = Outcome{}

	m.counts.Sessions++
	m.session = Session{
		Seq:       m.counts.Sessions,
		StartedAt: now,
		Timeout:   m.drawDuration(m.settings.StartTimeoutMin, m.settings.StartTimeoutMax),
	}

	ev := m.event(EventSessionStart, now)
	if m.settings.StartOnRun && m.settings.StartKey != "" {
		ev.Key = m.settings.StartKey
		if err := m.press(ev.Key); err != nil {
			ev.Reason = err.Error()
		}
	}
	return []Event{ev}
}

func (m *Machine) resetSignals() {
	m.waitRed.Clear()
	m.letters = make(map[string]*letterState, len(Letters))
	for _, name := range Letters {
		m.letters[name] = &letterState{}
	}
}

func (m *Machine) pressAndRegister(typ EventType, key string, now time.Time) Event {
	err := m.press(key)
	m.brain.RegisterKey(key)
	m.session.AwaitingCompletion = true
	m.session.LastPressAt = now
	m.session.LastEventAt = now
	m.counts.KeyPresses++

	ev := m.event(typ, now)
	ev.Key = key
	if err != nil {
		ev.Reason = err.Error()
	}
	return ev
}

func (m *Machine) press(key string) error {
	if m.keys == nil {
		return nil
	}
	if err := m.keys.Press(key); err != nil {
		m.counts.ActuationFailures++
		return fmt.Errorf("press %q: %w", key, err)
	}
	return nil
}

func (m *Machine) event(typ EventType, now time.Time) Event {
	predicted, _ := m.brain.PredictNext()
	return Event{
		Timestamp:  now,
		Type:       typ,
		Session:    m.session.Seq,
		History:    m.brain.History(),
		Candidates: m.brain.CandidateCount(),
		Predicted:  predicted,
	}
}

// drawDuration returns a uniform duration in [lo, hi].
func (m *Machine) drawDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(m.rng.Int63n(int64(hi-lo)+1))
}

func joinReason(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// State returns the current lifecycle state.
func (m *Machine) State() StateLabel {
	switch {
	case !m.started:
		return StateIdle
	case m.session.AwaitingCompletion && !m.session.MenuAbsentSince.IsZero():
		return StateCompleting
	case m.brain.History() != "":
		return StateInSequence
	default:
		return StateAwaitingBite
	}
}

// Session returns a copy of the current session.
func (m *Machine) Session() Session {
	return m.session
}

// LastOutcome returns the decision of the most recent tick.
func (m *Machine) LastOutcome() Outcome {
	return m.last
}

// Brain returns the predictor. Callers must not mutate it.
func (m *Machine) Brain() *Brain {
	return m.brain
}

// Settings returns the settings applied to the current session.
func (m *Machine) Settings() Settings {
	return m.settings
}

// Counts returns a snapshot of the outcome counters.
func (m *Machine) Counts() Counts {
	return m.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not started, if the interval
// has not elapsed, or if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 || !m.started {
		return nil
	}
	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
	}
}
