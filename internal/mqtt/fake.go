package mqtt

import (
	"github.com/sweeney/timed-io/internal/logic"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Transitions contains all transitions that were published.
	Transitions []TransitionEvent

	// Persists contains all persistence attempts that were published.
	Persists []logic.PersistEvent

	// Payloads contains the JSON payloads of transitions and persists, keyed by topic.
	Payloads map[string][][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishTransition and PublishPersist.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Payloads: make(map[string][][]byte)}
}

// PublishTransition records the transition.
func (f *FakePublisher) PublishTransition(event TransitionEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatTransitionPayload(event)
	if err != nil {
		return err
	}
	f.Transitions = append(f.Transitions, event)
	topic := StateTopic(event.Sensor)
	f.Payloads[topic] = append(f.Payloads[topic], payload)
	return nil
}

// PublishPersist records the persistence attempt.
func (f *FakePublisher) PublishPersist(event logic.PersistEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPersistPayload(event)
	if err != nil {
		return err
	}
	f.Persists = append(f.Persists, event)
	topic := NVRAMTopic(event.Sensor)
	f.Payloads[topic] = append(f.Payloads[topic], payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Transitions = nil
	f.Persists = nil
	f.Payloads = make(map[string][][]byte)
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
