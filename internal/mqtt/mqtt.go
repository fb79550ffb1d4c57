// Package mqtt publishes collector door alerts and lifecycle events to an
// MQTT broker. Publishers implement notify.Sink.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/notify"
)

// Topic is the MQTT topic for door alerts.
const Topic = "carpi/doors/alerts"

// TopicSystem is the MQTT topic for collector lifecycle events.
const TopicSystem = "carpi/collector/system"

// Publisher publishes alerts to MQTT.
type Publisher interface {
	notify.Sink

	// PublishSystem sends a collector lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the broker connection is currently up.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// SystemEvent is a collector lifecycle event (STARTUP, SHUTDOWN).
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // shutdown only, e.g. "SIGTERM"
}

// Payload is the alert message body.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the alert details.
type DoorPayload struct {
	Timestamp  string `json:"timestamp"`
	ReceivedAt string `json:"receivedAt"`
	SensorID   int    `json:"sensorId"`
	State      string `json:"state"`
}

// FormatPayload creates the JSON payload for an alert.
func FormatPayload(a notify.Alert) ([]byte, error) {
	return json.Marshal(Payload{
		Door: DoorPayload{
			Timestamp:  a.At.UTC().Format(time.RFC3339),
			ReceivedAt: a.ReceivedAt.UTC().Format(time.RFC3339),
			SensorID:   a.SensorID,
			State:      a.Door.String(),
		},
	})
}

// SystemPayload is the lifecycle message body.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
