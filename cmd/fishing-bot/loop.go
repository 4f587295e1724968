package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/fishing-bot/internal/capture"
	"github.com/sweeney/fishing-bot/internal/config"
	"github.com/sweeney/fishing-bot/internal/gpio"
	"github.com/sweeney/fishing-bot/internal/logic"
	"github.com/sweeney/fishing-bot/internal/metrics"
	"github.com/sweeney/fishing-bot/internal/mqtt"
	"github.com/sweeney/fishing-bot/internal/status"
	"github.com/sweeney/fishing-bot/internal/store"
)

// bot wires one machine to its inputs and outputs. Optional collaborators
// (tracker, metrics, store, stopSwitch, mqttStatus) may be nil.
type bot struct {
	source  capture.Source
	latest  *capture.Latest
	machine *logic.Machine
	cfg     func() *config.Config

	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	store      *store.Store
	stopSwitch *gpio.Switch

	heartbeat time.Duration
	now       func() time.Time

	sessionStart time.Time
}

func (b *bot) runLoop(tick <-chan time.Time, sig <-chan os.Signal, stop <-chan struct{}) error {
	b.setRunning(true)
	b.handle(b.machine.Start(b.now()))
	b.refresh()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			b.shutdown(signalName)
			return nil

		case <-stop:
			log.Printf("stop requested, shutting down")
			b.shutdown("HTTP_STOP")
			return nil

		case <-tick:
			if b.stopSwitch != nil {
				stopped, err := b.stopSwitch.Stopped()
				if err != nil {
					log.Printf("gpio read error: %v", err)
				} else if stopped {
					log.Printf("run switch moved to STOP, shutting down")
					b.shutdown("STOP_SWITCH")
					return nil
				}
			}
			b.step()
		}
	}
}

// step captures one frame and feeds it through the machine.
func (b *bot) step() {
	began := time.Now()
	t := b.now()

	img, err := b.source.Capture()
	if err != nil {
		log.Printf("capture error: %v", err)
		if b.metrics != nil {
			b.metrics.IncCaptureErrors()
		}
		return
	}
	if b.latest != nil {
		b.latest.Set(img)
	}

	// Regions follow the machine's settings so a reload lands at the next
	// session reset along with thresholds and timing.
	obs := capture.Observe(img, b.machine.Settings().Regions)
	if b.cfg().LogDebugValues {
		log.Printf("samples: %s", formatSamples(obs))
	}

	b.handle(b.machine.Tick(obs, t))

	if hb := b.machine.CheckHeartbeat(t, b.heartbeat); hb != nil {
		b.sendHeartbeat(hb)
	}

	b.refresh()
	if b.metrics != nil {
		b.metrics.ObserveTick(time.Since(began))
	}
}

func (b *bot) handle(events []logic.Event) {
	for _, ev := range events {
		logEvent(ev)

		if err := b.publisher.Publish(ev); err != nil {
			log.Printf("publish error: %v", err)
			// Don't stop fishing on publish failure
		}
		if b.tracker != nil {
			b.tracker.RecordEvent(ev)
		}
		if b.metrics != nil {
			b.metrics.ObserveEvent(ev, b.sessionStart)
		}
		if b.store != nil && (ev.Type == logic.EventSessionComplete || ev.Type == logic.EventSessionTimeout) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, err := b.store.Record(ctx, ev)
			cancel()
			if err != nil {
				log.Printf("store error: %v", err)
			} else if b.tracker != nil {
				refreshLogged(b.store, b.tracker)
			}
		}

		if ev.Type == logic.EventSessionStart {
			b.sessionStart = ev.Timestamp
		}
	}
}

// refresh pushes the machine's view to the tracker and gauges.
func (b *bot) refresh() {
	st := b.machine.State()
	brain := b.machine.Brain()
	if b.metrics != nil {
		b.metrics.SetState(st)
		b.metrics.SetCandidates(brain.CandidateCount())
	}
	if b.tracker == nil {
		return
	}

	predicted, _ := brain.PredictNext()
	sess := b.machine.Session()
	b.tracker.Update(status.Progress{
		State:      st,
		Session:    sess.Seq,
		StartedAt:  sess.StartedAt,
		History:    brain.History(),
		Candidates: brain.CandidateCount(),
		Predicted:  predicted,
	}, b.machine.Counts())
	if b.mqttStatus != nil {
		b.tracker.SetMQTTConnected(b.mqttStatus.IsConnected())
	}
}

func (b *bot) sendHeartbeat(hb *logic.HeartbeatData) {
	c := hb.Counts
	log.Printf("heartbeat: uptime=%v sessions=%d completions=%d forced=%d timeouts=%d",
		hb.Uptime, c.Sessions, c.Completions, c.ForcedFinishes, c.Timeouts)

	event := mqtt.SystemEvent{
		Timestamp: hb.Timestamp,
		Event:     "HEARTBEAT",
	}
	if b.tracker != nil {
		b.refresh()
		event.RawPayload = status.FormatStatusEvent(b.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := b.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (b *bot) shutdown(reason string) {
	b.setRunning(false)

	event := mqtt.SystemEvent{
		Timestamp: b.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if b.tracker != nil {
		if b.mqttStatus != nil {
			b.tracker.SetMQTTConnected(b.mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(b.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := b.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func (b *bot) setRunning(running bool) {
	if b.tracker != nil {
		b.tracker.SetRunning(running)
	}
	if b.metrics != nil {
		b.metrics.SetRunning(running)
	}
}

func logEvent(ev logic.Event) {
	switch ev.Type {
	case logic.EventSessionComplete:
		log.Printf("event: %s session=%d history=%q result=%q forced=%v %s",
			ev.Type, ev.Session, ev.History, ev.Result, ev.Forced, ev.Reason)
	case logic.EventSessionStart, logic.EventBite, logic.EventKeyPress, logic.EventSessionTimeout:
		log.Printf("event: %s session=%d key=%q history=%q candidates=%d predicted=%q %s",
			ev.Type, ev.Session, ev.Key, ev.History, ev.Candidates, ev.Predicted, ev.Reason)
	default:
		log.Printf("event: %s session=%d key=%q", ev.Type, ev.Session, ev.Key)
	}
}

func formatSamples(obs logic.Observation) string {
	names := make([]string, 0, len(obs.Samples))
	for name := range obs.Samples {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		s := obs.Samples[name]
		fmt.Fprintf(&sb, "%s=(%.0f,%.0f,%.0f)", name, s.Red, s.Green, s.Blue)
	}
	return sb.String()
}
