// Package metrics exposes Prometheus collectors for the bot.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/fishing-bot/internal/logic"
)

const namespace = "fishing_bot"

var states = []logic.StateLabel{
	logic.StateIdle,
	logic.StateAwaitingBite,
	logic.StateInSequence,
	logic.StateCompleting,
}

// Metrics holds every collector on a private registry so tests can create
// as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	keysPressed     *prometheus.CounterVec
	state           *prometheus.GaugeVec
	candidates      prometheus.Gauge
	sessionDuration *prometheus.HistogramVec
	tickDuration    prometheus.Histogram
	captureErrors   prometheus.Counter
	running         prometheus.Gauge

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	websocketClients prometheus.Gauge
}

// New creates and registers the collectors.
func New(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Machine events by type.",
		}, []string{"type"}),
		keysPressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_pressed_total",
			Help:      "Keys sent to the game, including start and recovery presses.",
		}, []string{"key"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current machine state, 0 otherwise.",
		}, []string{"state"}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Known sequences still consistent with the keys pressed this session.",
		}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time from session start to completion or timeout.",
			Buckets:   []float64{5, 10, 15, 20, 25, 30, 45, 60, 90},
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Capture, classify and act time per polling tick.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		captureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Ticks skipped because the frame could not be captured.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the polling loop is active.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		websocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live status clients.",
		}),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)

	m.registry.MustRegister(
		m.events,
		m.keysPressed,
		m.state,
		m.candidates,
		m.sessionDuration,
		m.tickDuration,
		m.captureErrors,
		m.running,
		m.httpRequests,
		m.httpDuration,
		m.websocketClients,
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.SetState(logic.StateIdle)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEvent counts ev. sessionStart is when the event's session began
// and is used to time completions and timeouts.
func (m *Metrics) ObserveEvent(ev logic.Event, sessionStart time.Time) {
	m.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case logic.EventSessionStart, logic.EventBite, logic.EventKeyPress, logic.EventSessionTimeout:
		if ev.Key != "" {
			m.keysPressed.WithLabelValues(ev.Key).Inc()
		}
	}

	var outcome string
	switch {
	case ev.Type == logic.EventSessionComplete && ev.Forced:
		outcome = "forced"
	case ev.Type == logic.EventSessionComplete:
		outcome = "caught"
	case ev.Type == logic.EventSessionTimeout:
		outcome = "timeout"
	}
	if outcome != "" && !sessionStart.IsZero() {
		m.sessionDuration.WithLabelValues(outcome).Observe(ev.Timestamp.Sub(sessionStart).Seconds())
	}
}

// SetState marks s as the current state.
func (m *Metrics) SetState(s logic.StateLabel) {
	for _, label := range states {
		v := 0.0
		if label == s {
			v = 1
		}
		m.state.WithLabelValues(string(label)).Set(v)
	}
}

// SetCandidates records the predictor's remaining candidate count.
func (m *Metrics) SetCandidates(n int) {
	m.candidates.Set(float64(n))
}

// ObserveTick records how long one polling tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// IncCaptureErrors counts a failed capture.
func (m *Metrics) IncCaptureErrors() {
	m.captureErrors.Inc()
}

// SetRunning records whether the polling loop is active.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}

// IncWebsocketClients increments connected live status clients.
func (m *Metrics) IncWebsocketClients() {
	m.websocketClients.Inc()
}

// DecWebsocketClients decrements connected live status clients.
func (m *Metrics) DecWebsocketClients() {
	m.websocketClients.Dec()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	path = normalizePath(path)
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// normalizePath folds unknown paths into one label to bound cardinality.
func normalizePath(path string) string {
	switch path {
	case "/", "/index.html", "/index.json", "/ws", "/stop", "/metrics":
		return path
	}
	return "other"
}

// Middleware records every request except scrapes of /metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		if r.URL.Path != "/metrics" {
			m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("ResponseWriter does not implement http.Hijacker")
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
