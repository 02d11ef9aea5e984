// Package mqtt bridges bus events to an MQTT broker so off-process
// collaborators (announcer, wall display, dashboards) can consume them.
// Publishing is strictly best-effort: a broker outage buffers messages and
// never blocks or delays control decisions.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dust-collector/internal/bus"
)

// Topic is the MQTT topic for dust-collector events.
const Topic = "workshop/dust/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "workshop/dust/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a bus event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event bus.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Dust DustPayload `json:"dust"`
}

// DustPayload contains the event details.
type DustPayload struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Source    string  `json:"source"`
	Machine   string  `json:"machine,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// FormatPayload creates the JSON payload for a bus event.
func FormatPayload(event bus.Event) ([]byte, error) {
	payload := Payload{
		Dust: DustPayload{
			ID:        event.ID,
			Timestamp: event.Time.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Source:    event.Source,
			Machine:   event.Machine,
			Value:     event.Value,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
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
// If event.RawPayload is set, it is returned directly (used for full status
// snapshots).
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
