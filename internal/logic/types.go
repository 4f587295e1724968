// Package logic contains the pure decision logic of the fishing bot:
// classification of region colour samples, debounced confirmation,
// the sequence predictor and the session state machine.
// This package has NO external dependencies (no screen, keyboard, MQTT or OS).
// Blocking waits go through an injectable sleep function.
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Region names used by the sampler and classifier.
const (
	RegionWait      = "wait"
	RegionE         = "e"
	RegionR         = "r"
	RegionT         = "t"
	RegionIndicator = "indicator"
	RegionResult    = "result"
)

// Letters lists the letter signals in priority order.
var Letters = []string{RegionE, RegionR, RegionT}

// Region is a rectangle within the capture frame.
type Region struct {
	X int
	Y int
	W int
	H int
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// ColorSample holds the mean channel intensities of one region at one tick.
type ColorSample struct {
	Green float64
	Red   float64
	Blue  float64
}

// Brightness returns the mean of the three channels.
func (c ColorSample) Brightness() float64 {
	return (c.Green + c.Red + c.Blue) / 3
}

// ThresholdSet contains calibration-derived classification thresholds.
type ThresholdSet struct {
	GreenMin         float64
	RedMin           float64
	WaitGreenDiffMin float64
	WaitRedDiffMin   float64
	GreenDiffMin     float64
	LetterRedDiffMin float64
}

// Observation is one tick worth of samples keyed by region name.
// A region missing from Samples is not configured and never activates.
type Observation struct {
	Samples map[string]ColorSample
}

// Settings is the immutable configuration consumed by the state machine.
type Settings struct {
	Thresholds         ThresholdSet
	IndicatorThreshold float64

	// Regions locates each named region within a captured frame.
	Regions map[string]Region

	// Keys to choose from when a bite is confirmed.
	Keys []string
	// StartKey begins a session when StartOnRun is set.
	StartKey   string
	StartOnRun bool
	// RecoveryKey is pressed when a session never sees a bite.
	RecoveryKey string

	ConfirmDelay    time.Duration
	StartTimeoutMin time.Duration
	StartTimeoutMax time.Duration
	MenuAbsentHold  time.Duration
	PostPressHold   time.Duration
	MaxSequenceIdle time.Duration
	FallbackDelay   time.Duration
	FinishJitterMin time.Duration
	FinishJitterMax time.Duration

	UsePrediction bool
}

// SettingsSource supplies the settings applied at each session reset.
type SettingsSource interface {
	Settings() Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

// Settings returns the wrapped value.
func (s StaticSettings) Settings() Settings {
	return Settings(s)
}

// StateLabel is the externally visible state of the machine.
type StateLabel string

const (
	StateIdle         StateLabel = "IDLE"
	StateAwaitingBite StateLabel = "AWAITING_BITE"
	StateInSequence   StateLabel = "IN_SEQUENCE"
	StateCompleting   StateLabel = "COMPLETING"
)

// EventType identifies something the machine did or observed.
type EventType string

const (
	EventSessionStart    EventType = "SESSION_START"
	EventBite            EventType = "BITE"
	EventKeyPress        EventType = "KEY_PRESS"
	EventWrongKey        EventType = "WRONG_KEY"
	EventWaiting         EventType = "WAITING"
	EventSessionComplete EventType = "SESSION_COMPLETE"
	EventSessionTimeout  EventType = "SESSION_TIMEOUT"
)

// Event is emitted by the machine for logging and publishing.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Session    int
	Key        string
	History    string
	Candidates int
	// Predicted is the predictor's forced next key, empty when ambiguous.
	Predicted string
	// Result is the text read after a completed session.
	Result string
	// Forced marks a completion triggered by the idle limit.
	Forced bool
	// Reason qualifies completion ("forced") and failures.
	Reason string
}

// Counts tracks the number of each outcome since startup.
type Counts struct {
	Sessions          int
	Bites             int
	KeyPresses        int
	WrongKeys         int
	Completions       int
	ForcedFinishes    int
	Timeouts          int
	ResultFailures    int
	ActuationFailures int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
