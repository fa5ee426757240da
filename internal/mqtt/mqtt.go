// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/timed-io/internal/logic"
)

// TopicPrefix is the root of every topic published by the daemon.
const TopicPrefix = "timed-io"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = TopicPrefix + "/system"

// StateTopic returns the topic for ON/OFF transitions of sensor.
func StateTopic(sensor string) string {
	return TopicPrefix + "/" + topicSegment(sensor) + "/state"
}

// NVRAMTopic returns the topic for persistence events of sensor.
func NVRAMTopic(sensor string) string {
	return TopicPrefix + "/" + topicSegment(sensor) + "/nvram"
}

// topicSegment makes a sensor name usable as one topic level.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(s)
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTransition sends a sensor ON/OFF transition.
	// Returns error if publishing fails (should not crash the process).
	PublishTransition(event TransitionEvent) error

	// PublishPersist sends an NVRAM persistence attempt.
	PublishPersist(event logic.PersistEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TransitionEvent is a sensor transition tagged with the session it opens or closes.
type TransitionEvent struct {
	logic.TransitionEvent
	Session string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatePayload is the JSON payload of a transition.
type StatePayload struct {
	Sensor StateInner `json:"sensor"`
}

// StateInner contains the transition details.
type StateInner struct {
	Timestamp  string `json:"timestamp"`
	Name       string `json:"name"`
	Pin        int    `json:"pin"`
	State      string `json:"state"`
	Session    string `json:"session,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// FormatTransitionPayload creates the JSON payload for a transition.
func FormatTransitionPayload(event TransitionEvent) ([]byte, error) {
	payload := StatePayload{
		Sensor: StateInner{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Name:       event.Sensor,
			Pin:        event.Pin,
			State:      string(event.State),
			Session:    event.Session,
			DurationMs: event.Duration.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// PersistPayload is the JSON payload of an NVRAM persistence attempt.
type PersistPayload struct {
	NVRAM PersistInner `json:"nvram"`
}

// PersistInner contains the persistence details.
type PersistInner struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Slot      int    `json:"slot"`
	Month     int    `json:"month"`
	ValueMs   uint32 `json:"value_ms"`
	Written   bool   `json:"written"`
}

// FormatPersistPayload creates the JSON payload for a persistence attempt.
func FormatPersistPayload(event logic.PersistEvent) ([]byte, error) {
	payload := PersistPayload{
		NVRAM: PersistInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Name:      event.Sensor,
			Slot:      event.Slot,
			Month:     event.Month,
			ValueMs:   event.Value,
			Written:   event.Written,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
