// Package mqtt publishes indicator events with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for readings and threshold changes.
const Topic = "semaphor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "semaphor/system"

// EventType classifies an indicator event.
type EventType string

const (
	// EventReading is a poll cycle that produced a metric.
	EventReading EventType = "READING"
	// EventPollFailed is a poll cycle that ended without a metric.
	EventPollFailed EventType = "POLL_FAILED"
	// EventThresholds is an operator edit of the threshold pair or mode.
	EventThresholds EventType = "THRESHOLDS"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an indicator event to the broker.
	// A failure is reported, never fatal.
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports the state of the MQTT connection.
type ConnectionStatus interface {
	IsConnected() bool
	// Backlog reports messages held while disconnected.
	Backlog() Backlog
}

// Event is one indicator event. Reading fields are set for READING and
// POLL_FAILED; Thresholds is set for every type.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Reading   *Reading
	Low       int
	High      int
	Mode      string
}

// Reading describes one poll cycle.
type Reading struct {
	ID         string
	Forced     bool
	HTTPStatus int
	Metric     int
	Level      string // empty when nothing was rendered
	Error      string
}

// SystemEvent represents a system lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name, shutdown only
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Semaphor SemaphorPayload `json:"semaphor"`
}

// SemaphorPayload contains the event details.
type SemaphorPayload struct {
	Timestamp  string          `json:"timestamp"`
	Event      string          `json:"event"`
	Reading    *ReadingPayload `json:"reading,omitempty"`
	Thresholds ThresholdsJSON  `json:"thresholds"`
}

// ReadingPayload is the JSON form of a poll cycle.
type ReadingPayload struct {
	ID         string `json:"id"`
	Forced     bool   `json:"forced"`
	HTTPStatus int    `json:"http_status"`
	Metric     int    `json:"metric"`
	Level      string `json:"level,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ThresholdsJSON is the JSON form of the threshold pair.
type ThresholdsJSON struct {
	Low  int    `json:"low"`
	High int    `json:"high"`
	Mode string `json:"mode"`
}

// FormatPayload creates the JSON payload for an indicator event.
func FormatPayload(event Event) ([]byte, error) {
	p := SemaphorPayload{
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
		Event:      string(event.Type),
		Thresholds: ThresholdsJSON{Low: event.Low, High: event.High, Mode: event.Mode},
	}
	if r := event.Reading; r != nil {
		p.Reading = &ReadingPayload{
			ID:         r.ID,
			Forced:     r.Forced,
			HTTPStatus: r.HTTPStatus,
			Metric:     r.Metric,
			Level:      r.Level,
			Error:      r.Error,
		}
	}
	return json.Marshal(Payload{Semaphor: p})
}

// SystemPayload is the payload for simple system events (LWT, RECONNECTED)
// that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly.
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

// willPayload is the last-will message the broker publishes if the
// daemon drops off without a clean disconnect.
func willPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "LWT", Reason: "connection lost"}})
	return data
}
