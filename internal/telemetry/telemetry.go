// Package telemetry mirrors agent activity to an MQTT broker for operators
// watching the shop floor remotely. The mirror is strictly best-effort:
// collector delivery never waits on it, and a dead broker costs visibility
// only, never events.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/sweeney/andon-agent/internal/delivery"
)

// Topic layout: andon/<device>/events carries mirrored pin transitions,
// andon/<device>/system carries lifecycle and connectivity messages.
const topicRoot = "andon/"

// EventsTopic returns the transition mirror topic for a device.
func EventsTopic(device string) string {
	return topicRoot + device + "/events"
}

// SystemTopic returns the lifecycle topic for a device.
func SystemTopic(device string) string {
	return topicRoot + device + "/system"
}

// Publisher is the broker-facing half of the mirror. Callers treat every
// method as best-effort: a returned error is logged and forgotten.
type Publisher interface {
	Publish(event delivery.Event) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus exposes broker liveness for the status endpoint.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is one lifecycle message: STARTUP, SHUTDOWN, HEARTBEAT, or a
// connectivity change. When RawPayload is set it is published verbatim in
// place of the standard envelope; the startup status snapshot uses this.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string
	RawPayload []byte
	Retained   bool
}

// systemEnvelope is the wire shape of a plain lifecycle message. Snapshot
// messages bypass it via RawPayload.
type systemEnvelope struct {
	System systemBody `json:"system"`
}

type systemBody struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload renders a lifecycle message for the wire. Timestamps
// are normalized to UTC regardless of the zone they arrive in.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(systemEnvelope{
		System: systemBody{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
