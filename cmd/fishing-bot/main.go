// Command fishing-bot watches a region of the screen for the fishing
// minigame, presses the keys it asks for, and publishes what happens to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/fishing-bot/internal/capture"
	"github.com/sweeney/fishing-bot/internal/config"
	"github.com/sweeney/fishing-bot/internal/gpio"
	"github.com/sweeney/fishing-bot/internal/keys"
	"github.com/sweeney/fishing-bot/internal/logic"
	"github.com/sweeney/fishing-bot/internal/metrics"
	"github.com/sweeney/fishing-bot/internal/mqtt"
	"github.com/sweeney/fishing-bot/internal/ocr"
	"github.com/sweeney/fishing-bot/internal/status"
	"github.com/sweeney/fishing-bot/internal/store"
	"github.com/sweeney/fishing-bot/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	fishPath   string
	poll       time.Duration
	broker     string
	clientID   string
	heartbeat  time.Duration
	httpAddr   string
	dbPath     string
	stopPin    int
	printState bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "config.json", "Calibration and timing config")
	flag.StringVar(&o.fishPath, "fish-data", "fish_data.json", "Known fish sequences")
	flag.DurationVar(&o.poll, "poll", 50*time.Millisecond, "Screen polling interval")
	flag.StringVar(&o.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&o.clientID, "client-id", "fishing-bot", "MQTT client ID")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.StringVar(&o.dbPath, "db", "fishing-bot.db", "Catch log database (empty to disable)")
	flag.IntVar(&o.stopPin, "stop-pin", -1, fmt.Sprintf("BCM pin of the run switch, e.g. %d (-1 to disable)", gpio.DefaultPin))
	flag.BoolVar(&o.printState, "print-state", false, "Print the current region samples and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	watcher, err := config.NewWatcher(o.configPath)
	if err != nil {
		return err
	}
	cfg := watcher.Current()

	fish, err := config.LoadFishData(o.fishPath)
	if err != nil {
		return err
	}
	pool := fish.Pool()

	cr := cfg.CaptureRegion
	source, err := capture.NewScreenSource(cr.Left, cr.Top, cr.Width, cr.Height)
	if err != nil {
		return fmt.Errorf("init capture: %w", err)
	}

	// Print state mode
	if o.printState {
		img, err := source.Capture()
		if err != nil {
			return err
		}
		printState(os.Stdout, img, cfg)
		return nil
	}

	presser, err := keys.NewXdotool()
	if err != nil {
		return fmt.Errorf("init keys: %w", err)
	}

	latest := &capture.Latest{}
	var results logic.ResultReader
	if tess, err := ocr.NewTesseract(latest); err != nil {
		log.Printf("result reading disabled: %v", err)
	} else {
		results = tess
	}

	publisher, err := mqtt.NewRealPublisher(o.broker, o.clientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	m := metrics.New(version)

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		ConfigPath:  o.configPath,
		KnownFish:   len(pool),
	})

	var catches *store.Store
	if o.dbPath != "" {
		catches, err = store.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer catches.Close()
		seedRecent(catches, tracker)
	}

	var stopSwitch *gpio.Switch
	if o.stopPin >= 0 {
		r, err := gpio.NewRealReader(o.stopPin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		stopSwitch = gpio.NewSwitch(r)
		defer stopSwitch.Close()
	}

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(stopCh) }) }

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, web.WithMetrics(m), web.WithStop(stop))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	watcher.OnChange(func(c *config.Config) {
		if c.CaptureRegion != cfg.CaptureRegion {
			log.Printf("config: capture_region changed, restart to apply")
		}
	})
	watcher.Watch()

	machine := logic.NewMachine(watcher, pool, presser, results)

	if d := cfg.FocusDelay(); d > 0 {
		log.Printf("waiting %v for the game window to take focus", d)
		time.Sleep(d)
	}

	log.Printf("started: poll=%v broker=%s heartbeat=%v fish=%d", o.poll, o.broker, o.heartbeat, len(pool))

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	b := &bot{
		source:     source,
		latest:     latest,
		machine:    machine,
		cfg:        watcher.Current,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		store:      catches,
		stopSwitch: stopSwitch,
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}
	return b.runLoop(ticker.C, sigCh, stopCh)
}

// seedRecent fills the status page with catches from earlier runs.
func seedRecent(s *store.Store, tracker *status.Tracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recs, err := s.Recent(ctx, status.RecentLimit)
	if err != nil {
		log.Printf("load recent catches: %v", err)
		return
	}
	catches := make([]status.Catch, len(recs))
	for i, r := range recs {
		catches[i] = status.Catch{
			Session: r.Session,
			Result:  r.Result,
			History: r.History,
			Forced:  r.Outcome == store.OutcomeForced,
			At:      r.At,
		}
	}
	tracker.SetRecent(catches)
	refreshLogged(s, tracker)
}

// refreshLogged copies the catch log totals onto the status page.
func refreshLogged(s *store.Store, tracker *status.Tracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	outcomes, err := s.Outcomes(ctx)
	if err != nil {
		log.Printf("load outcome totals: %v", err)
		return
	}
	tally, err := s.Tally(ctx)
	if err != nil {
		log.Printf("load catch tally: %v", err)
		return
	}

	l := status.Logged{
		Outcomes: make(map[string]int, len(outcomes)),
		Tally:    make([]status.Tally, len(tally)),
	}
	for o, n := range outcomes {
		l.Outcomes[string(o)] = n
	}
	for i, rc := range tally {
		l.Tally[i] = status.Tally{Result: rc.Result, Count: rc.Count}
	}
	tracker.SetLogged(l)
}

// printState writes each configured region's mean colour and what it
// classifies as. Used while calibrating config.json.
func printState(w io.Writer, img image.Image, cfg *config.Config) {
	regions := cfg.Regions()
	obs := capture.Observe(img, regions)
	cls := logic.Classify(obs, cfg.Settings().Thresholds, cfg.FishingIconThreshold)

	names := make([]string, 0, len(obs.Samples))
	for name := range obs.Samples {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := obs.Samples[name]
		fmt.Fprintf(w, "%-9s R=%6.1f G=%6.1f B=%6.1f\n", name, s.Red, s.Green, s.Blue)
	}
	fmt.Fprintf(w, "wait: green=%v red=%v indicator=%v\n", cls.Wait.Green, cls.Wait.Red, cls.Indicator)
	for _, name := range logic.Letters {
		a := cls.Letters[name]
		fmt.Fprintf(w, "%s: green=%v red=%v\n", name, a.Green, a.Red)
	}
}
