package telemetry

import (
	"github.com/sweeney/andon-agent/internal/delivery"
)

// FakePublisher is an in-memory Publisher for tests. It records events in
// publish order. When an error field is set, the matching method returns it
// without recording, which mimics a publish that never reached the broker.
type FakePublisher struct {
	Events       []delivery.Event
	SystemEvents []SystemEvent

	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher returns an empty fake ready to record.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records a mirrored collector event.
func (f *FakePublisher) Publish(event delivery.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Events = append(f.Events, event)
	return nil
}

// PublishSystem records a lifecycle event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close sets the Closed flag.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports the value of the Connected field.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset returns the fake to its zero state.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
