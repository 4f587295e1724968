// Package mqtt publishes bot events to an MQTT broker, with a fake for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// Topic is the MQTT topic for bot events.
const Topic = "games/fishing-bot/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "games/fishing-bot/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a bot event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM", "STOP_SWITCH" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message body for a bot event.
type Payload struct {
	Bot BotPayload `json:"bot"`
}

// BotPayload contains the event details.
type BotPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Session    int    `json:"session"`
	Key        string `json:"key,omitempty"`
	History    string `json:"history,omitempty"`
	Candidates int    `json:"candidates"`
	Predicted  string `json:"predicted,omitempty"`
	Result     string `json:"result,omitempty"`
	Forced     bool   `json:"forced,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a bot event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Bot: BotPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      string(event.Type),
			Session:    event.Session,
			Key:        event.Key,
			History:    event.History,
			Candidates: event.Candidates,
			Predicted:  event.Predicted,
			Result:     event.Result,
			Forced:     event.Forced,
			Reason:     event.Reason,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is used for simple events (LWT, RECONNECTED) that don't
// carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the retained last-will message the broker publishes if
// the bot drops off without a clean shutdown.
func WillPayload(now time.Time) []byte {
	data, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	return data
}
