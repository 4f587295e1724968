package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	State         string      `json:"state"`
	Running       bool        `json:"running"`
	Session       SessionJSON `json:"session"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"counts"`
	LastEvent     *EventJSON  `json:"last_event,omitempty"`
	Recent        []CatchJSON `json:"recent"`
	Logged        LoggedJSON  `json:"logged"`
	Config        ConfigJSON  `json:"config"`
}

// SessionJSON describes the session in progress.
type SessionJSON struct {
	Number     int    `json:"number"`
	StartedAt  string `json:"started_at,omitempty"`
	History    string `json:"history"`
	Candidates int    `json:"candidates"`
	Predicted  string `json:"predicted,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the outcome counters.
type CountsJSON struct {
	Sessions          int `json:"sessions"`
	Bites             int `json:"bites"`
	KeyPresses        int `json:"key_presses"`
	WrongKeys         int `json:"wrong_keys"`
	Completions       int `json:"completions"`
	ForcedFinishes    int `json:"forced_finishes"`
	Timeouts          int `json:"timeouts"`
	ResultFailures    int `json:"result_failures"`
	ActuationFailures int `json:"actuation_failures"`
}

// EventJSON is the most recent machine event.
type EventJSON struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Key       string `json:"key,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// CatchJSON is one finished session.
type CatchJSON struct {
	Session int    `json:"session"`
	Result  string `json:"result"`
	History string `json:"history"`
	Forced  bool   `json:"forced,omitempty"`
	At      string `json:"at"`
}

// LoggedJSON is the catch log summary.
type LoggedJSON struct {
	Outcomes map[string]int `json:"outcomes"`
	Tally    []TallyJSON    `json:"tally"`
}

// TallyJSON is one row of the catch tally.
type TallyJSON struct {
	Result string `json:"result"`
	Count  int    `json:"count"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	ConfigPath  string `json:"config_path"`
	KnownFish   int    `json:"known_fish"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:   state,
		Running: snap.Running,
		Session: SessionJSON{
			Number:     snap.Session,
			StartedAt:  formatTime(snap.StartedAt),
			History:    snap.History,
			Candidates: snap.Candidates,
			Predicted:  snap.Predicted,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Sessions:          snap.Counts.Sessions,
			Bites:             snap.Counts.Bites,
			KeyPresses:        snap.Counts.KeyPresses,
			WrongKeys:         snap.Counts.WrongKeys,
			Completions:       snap.Counts.Completions,
			ForcedFinishes:    snap.Counts.ForcedFinishes,
			Timeouts:          snap.Counts.Timeouts,
			ResultFailures:    snap.Counts.ResultFailures,
			ActuationFailures: snap.Counts.ActuationFailures,
		},
		Recent: make([]CatchJSON, 0, len(snap.Recent)),
		Logged: LoggedJSON{
			Outcomes: make(map[string]int, len(snap.Logged.Outcomes)),
			Tally:    make([]TallyJSON, 0, len(snap.Logged.Tally)),
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			ConfigPath:  snap.Config.ConfigPath,
			KnownFish:   snap.Config.KnownFish,
		},
	}

	if ev := snap.LastEvent; ev != nil {
		inner.LastEvent = &EventJSON{
			Type:      string(ev.Type),
			Timestamp: formatTime(ev.Timestamp),
			Key:       ev.Key,
			Reason:    ev.Reason,
		}
	}
	for _, c := range snap.Recent {
		inner.Recent = append(inner.Recent, CatchJSON{
			Session: c.Session,
			Result:  c.Result,
			History: c.History,
			Forced:  c.Forced,
			At:      formatTime(c.At),
		})
	}
	for k, v := range snap.Logged.Outcomes {
		inner.Logged.Outcomes[k] = v
	}
	for _, tl := range snap.Logged.Tally {
		inner.Logged.Tally = append(inner.Logged.Tally, TallyJSON{Result: tl.Result, Count: tl.Count})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
