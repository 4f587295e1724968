package internal

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/fishing-bot/internal/capture"
	"github.com/sweeney/fishing-bot/internal/config"
	"github.com/sweeney/fishing-bot/internal/keys"
	"github.com/sweeney/fishing-bot/internal/logic"
	"github.com/sweeney/fishing-bot/internal/mqtt"
	"github.com/sweeney/fishing-bot/internal/ocr"
	"github.com/sweeney/fishing-bot/internal/status"
)

const configJSON = `{
  "capture_region": {"top": 0, "left": 0, "width": 200, "height": 80},
  "areas": {
    "wait": {"x": 10, "y": 10, "w": 40, "h": 8},
    "e": {"x": 60, "y": 10, "w": 12, "h": 12},
    "r": {"x": 80, "y": 10, "w": 12, "h": 12},
    "t": {"x": 100, "y": 10, "w": 12, "h": 12}
  },
  "fishing_icon_roi": {"x": 150, "y": 10, "w": 10, "h": 10},
  "result_name_roi": {"x": 10, "y": 40, "w": 100, "h": 20},
  "keys": ["e"],
  "post_finish_delay_jitter": {"min": 1, "max": 1}
}`

const fishJSON = `{
  "fish_sequences": [
    {"name": "Carp", "sequence": "ert"},
    {"name": "Pike", "sequence": "ett"},
    {"name": "Eel", "sequence": "rte"}
  ],
  "locations": {"River": {"Worm": ["Carp", "Eel"]}},
  "active_location": "River",
  "active_bait": "Worm"
}`

var (
	red   = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	green = color.RGBA{R: 20, G: 220, B: 20, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// sim drives a machine the way the main loop does, with fakes at every edge.
type sim struct {
	t         *testing.T
	cfg       *config.Config
	machine   *logic.Machine
	latest    *capture.Latest
	publisher *mqtt.FakePublisher
	presser   *keys.FakePresser
	results   *ocr.FakeReader
	start     time.Time
	step      time.Duration
	ticks     int
}

// simOption adjusts a sim before its first session starts.
type simOption func(*sim)

func withPressError(err error) simOption {
	return func(s *sim) { s.presser.PressError = err }
}

func withPublishError(err error) simOption {
	return func(s *sim) { s.publisher.PublishError = err }
}

func newSim(t *testing.T, step time.Duration, opts ...simOption) *sim {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	fishPath := filepath.Join(dir, "fish_data.json")
	if err := os.WriteFile(cfgPath, []byte(configJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fishPath, []byte(fishJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	fish, err := config.LoadFishData(fishPath)
	if err != nil {
		t.Fatalf("LoadFishData: %v", err)
	}

	s := &sim{
		t:         t,
		cfg:       cfg,
		latest:    &capture.Latest{},
		publisher: mqtt.NewFakePublisher(),
		presser:   keys.NewFakePresser(),
		results:   ocr.NewFakeReader("Carp"),
		start:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		step:      step,
	}
	s.machine = logic.NewMachine(logic.StaticSettings(cfg.Settings()), fish.Pool(), s.presser, s.results,
		logic.WithRand(rand.New(rand.NewSource(7))),
		logic.WithSleep(func(time.Duration) {}))
	for _, opt := range opts {
		opt(s)
	}
	s.publishAll(s.machine.Start(s.start))
	return s
}

// frame paints the named regions of the configured layout.
func (s *sim) frame(fills map[string]color.RGBA) image.Image {
	regions := s.cfg.Regions()
	m := make(map[logic.Region]color.RGBA, len(fills))
	for name, c := range fills {
		m[regions[name]] = c
	}
	return capture.Paint(s.cfg.CaptureRegion.Width, s.cfg.CaptureRegion.Height, m)
}

func (s *sim) now() time.Time {
	return s.start.Add(time.Duration(s.ticks) * s.step)
}

// run feeds img for n ticks.
func (s *sim) run(img image.Image, n int) {
	src := capture.NewFakeSource(img)
	for i := 0; i < n; i++ {
		s.ticks++
		frame, err := src.Capture()
		if err != nil {
			s.t.Fatalf("capture: %v", err)
		}
		s.latest.Set(frame)
		obs := capture.Observe(frame, s.machine.Settings().Regions)
		s.publishAll(s.machine.Tick(obs, s.now()))
	}
}

func (s *sim) publishAll(events []logic.Event) {
	for _, ev := range events {
		if err := s.publisher.Publish(ev); err != nil {
			s.t.Logf("publish: %v", err)
		}
	}
}

func (s *sim) types() []logic.EventType {
	return s.publisher.EventTypes()
}

func equalTypes(got []logic.EventType, want ...logic.EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// TestIntegrationFullCatch tests a session from cast to result using files on
// disk for config and fish data.
func TestIntegrationFullCatch(t *testing.T) {
	s := newSim(t, 250*time.Millisecond)

	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: red, logic.RegionIndicator: white}), 3)
	s.run(s.frame(map[string]color.RGBA{logic.RegionR: green, logic.RegionIndicator: white}), 3)
	s.run(s.frame(map[string]color.RGBA{logic.RegionT: green, logic.RegionIndicator: white}), 3)
	s.run(s.frame(nil), 9)

	want := []logic.EventType{
		logic.EventSessionStart, logic.EventBite, logic.EventKeyPress, logic.EventKeyPress,
		logic.EventSessionComplete, logic.EventSessionStart,
	}
	if got := s.types(); !equalTypes(got, want...) {
		t.Fatalf("events: got %v, want %v", got, want)
	}

	ev := s.publisher.Events
	// Only Carp and Eel bite on worms at the river; after "e" only Carp remains.
	if ev[1].Key != "e" || ev[1].Candidates != 1 || ev[1].Predicted != "r" {
		t.Errorf("bite: got key %q candidates %d predicted %q, want e 1 r",
			ev[1].Key, ev[1].Candidates, ev[1].Predicted)
	}
	if ev[3].History != "ert" {
		t.Errorf("history: got %q, want ert", ev[3].History)
	}
	if ev[4].Result != "Carp" || ev[4].Forced {
		t.Errorf("completion: got result %q forced %v", ev[4].Result, ev[4].Forced)
	}
	if ev[5].Session != 2 || ev[5].Candidates != 2 {
		t.Errorf("next session: got %d with %d candidates, want 2 with 2", ev[5].Session, ev[5].Candidates)
	}

	pressed := s.presser.Pressed()
	wantPressed := []string{"5", "e", "r", "t", "5"}
	if len(pressed) != len(wantPressed) {
		t.Fatalf("pressed: got %v, want %v", pressed, wantPressed)
	}
	for i := range wantPressed {
		if pressed[i] != wantPressed[i] {
			t.Errorf("press %d: got %q, want %q", i, pressed[i], wantPressed[i])
		}
	}

	// Verify JSON payloads
	for i, payload := range s.publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Bot.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Bot.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}
}

// TestIntegrationResultCropMatchesRegion verifies the frame kept for OCR
// crops to the configured result region.
func TestIntegrationResultCropMatchesRegion(t *testing.T) {
	s := newSim(t, 100*time.Millisecond)
	s.run(s.frame(map[string]color.RGBA{logic.RegionResult: white}), 1)

	crop, err := ocr.Crop(s.latest.Frame(), s.cfg.Regions()[logic.RegionResult])
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if b := crop.Bounds(); b.Dx() != 100 || b.Dy() != 20 {
		t.Errorf("crop size: got %dx%d, want 100x20", b.Dx(), b.Dy())
	}
	if got := capture.Sample(crop, logic.Region{W: 100, H: 20}); got.Brightness() != 255 {
		t.Errorf("crop brightness: got %v, want 255", got.Brightness())
	}
}

// TestIntegrationWaitingBarSuppressesLetters verifies green letters seen
// while the wait bar is green are not pressed.
func TestIntegrationWaitingBarSuppressesLetters(t *testing.T) {
	s := newSim(t, 250*time.Millisecond)
	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: green, logic.RegionE: green}), 6)

	want := []logic.EventType{logic.EventSessionStart, logic.EventWaiting}
	if got := s.types(); !equalTypes(got, want...) {
		t.Errorf("events: got %v, want %v", got, want)
	}
	if len(s.presser.Pressed()) != 1 {
		t.Errorf("pressed: got %v, want only the start key", s.presser.Pressed())
	}
}

// TestIntegrationForcedFinish verifies a stuck indicator cannot hold a
// session open past the idle limit.
func TestIntegrationForcedFinish(t *testing.T) {
	s := newSim(t, 500*time.Millisecond)

	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: red, logic.RegionIndicator: white}), 2)
	// Indicator never goes away.
	s.run(s.frame(map[string]color.RGBA{logic.RegionIndicator: white}), 20)

	var done *logic.Event
	for i := range s.publisher.Events {
		if s.publisher.Events[i].Type == logic.EventSessionComplete {
			done = &s.publisher.Events[i]
			break
		}
	}
	if done == nil {
		t.Fatalf("no completion, events: %v", s.types())
	}
	if !done.Forced || done.Reason != "forced" {
		t.Errorf("completion: got forced %v reason %q, want forced", done.Forced, done.Reason)
	}
	// Bite at 1s; idle exceeds 8s at 9.5s, which marks the menu absent,
	// and the next tick completes.
	if want := s.start.Add(10 * time.Second); !done.Timestamp.Equal(want) {
		t.Errorf("completed at %v, want %v", done.Timestamp, want)
	}
	if got := s.machine.Counts().ForcedFinishes; got != 1 {
		t.Errorf("forced finishes: got %d, want 1", got)
	}
}

// TestIntegrationResultFailureStillCompletes verifies an unreadable result
// does not stall the bot.
func TestIntegrationResultFailureStillCompletes(t *testing.T) {
	s := newSim(t, 250*time.Millisecond)
	s.results.ReadError = ocr.ErrNoText

	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: red, logic.RegionIndicator: white}), 3)
	s.run(s.frame(nil), 9)

	counts := s.machine.Counts()
	if counts.Completions != 1 || counts.ResultFailures != 1 {
		t.Errorf("counts: completions %d result failures %d, want 1 and 1",
			counts.Completions, counts.ResultFailures)
	}
	for _, ev := range s.publisher.Events {
		if ev.Type == logic.EventSessionComplete && ev.Result != "" {
			t.Errorf("result should be empty on failure, got %q", ev.Result)
		}
	}
}

// TestIntegrationActuationFailureIsReported verifies key errors surface in
// events without stopping the session.
func TestIntegrationActuationFailureIsReported(t *testing.T) {
	s := newSim(t, 250*time.Millisecond, withPressError(errors.New("xdotool: no display")))

	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: red, logic.RegionIndicator: white}), 3)

	types := s.types()
	if !equalTypes(types, logic.EventSessionStart, logic.EventBite) {
		t.Fatalf("events: got %v", types)
	}
	if s.publisher.Events[0].Reason == "" {
		t.Error("session start should carry the start key press error")
	}
	if s.publisher.Events[1].Reason == "" {
		t.Error("bite event should carry the press error")
	}
	if got := s.machine.Counts().ActuationFailures; got != 2 {
		t.Errorf("actuation failures: got %d, want 2 (start + bite)", got)
	}
	if s.machine.State() != logic.StateInSequence {
		t.Errorf("state: got %s, want IN_SEQUENCE", s.machine.State())
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies the machine keeps going
// while MQTT is down.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	s := newSim(t, 250*time.Millisecond, withPublishError(errors.New("broker unavailable")))

	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: red, logic.RegionIndicator: white}), 3)
	s.run(s.frame(nil), 9)

	if len(s.publisher.Events) != 0 {
		t.Errorf("expected no recorded events, got %d", len(s.publisher.Events))
	}
	if got := s.machine.Counts().Completions; got != 1 {
		t.Errorf("completions: got %d, want 1", got)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the SHUTDOWN message carries
// the full status snapshot.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	s := newSim(t, 250*time.Millisecond)
	tracker := status.NewTracker(s.start, status.Config{Broker: "tcp://localhost:1883", KnownFish: 2})

	s.run(s.frame(map[string]color.RGBA{logic.RegionWait: red, logic.RegionIndicator: white}), 3)
	for _, ev := range s.publisher.Events {
		tracker.RecordEvent(ev)
	}
	brain := s.machine.Brain()
	tracker.Update(status.Progress{
		State:      s.machine.State(),
		Session:    s.machine.Session().Seq,
		History:    brain.History(),
		Candidates: brain.CandidateCount(),
	}, s.machine.Counts())
	tracker.SetRunning(false)

	event := mqtt.SystemEvent{
		Timestamp:  s.now(),
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", "SIGTERM"),
	}
	if err := s.publisher.PublishSystem(event); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(s.publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	st := parsed.Status
	if st.Event != "SHUTDOWN" || st.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", st.Event, st.Reason)
	}
	if st.State != "IN_SEQUENCE" || st.Session.History != "e" {
		t.Errorf("session: got state %q history %q", st.State, st.Session.History)
	}
	if st.Running {
		t.Error("expected running=false")
	}
	if st.LastEvent == nil || st.LastEvent.Type != "BITE" {
		t.Errorf("last event: got %+v, want BITE", st.LastEvent)
	}
	if st.Counts.Bites != 1 || st.Config.KnownFish != 2 {
		t.Errorf("counts.bites %d known_fish %d, want 1 and 2", st.Counts.Bites, st.Config.KnownFish)
	}
}

// TestIntegrationStartupPayloadFormat verifies STARTUP uses the retained
// system topic format before any session has run.
func TestIntegrationStartupPayloadFormat(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{PollMs: 50})
	publisher := mqtt.NewFakePublisher()

	snap := tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	})
	if err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("event: got %q, want STARTUP", parsed.Status.Event)
	}
	if parsed.Status.State != "IDLE" || !parsed.Status.Running {
		t.Errorf("got state %q running %v, want IDLE true", parsed.Status.State, parsed.Status.Running)
	}
	if parsed.Status.Config.PollMs != 50 {
		t.Errorf("poll_ms: got %d, want 50", parsed.Status.Config.PollMs)
	}
}
