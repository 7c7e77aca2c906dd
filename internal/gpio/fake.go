package gpio

import (
	"fmt"
	"sync"
	"time"
)

// FakeWatcher is a test double driven by Fire instead of hardware edges.
type FakeWatcher struct {
	mu       sync.Mutex
	handlers map[int]EdgeHandler

	// Resting maps pins to the level RestingState reports. Unlisted pins
	// report High, matching a released pulled-up line.
	Resting map[int]Level

	// WatchError, if set, is returned by Watch.
	WatchError error

	// RestingError, if set, is returned by RestingState.
	RestingError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWatcher creates a FakeWatcher with no watched pins.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{
		handlers: make(map[int]EdgeHandler),
		Resting:  make(map[int]Level),
	}
}

// Watch registers the handler for the pin.
func (f *FakeWatcher) Watch(pin int, h EdgeHandler) error {
	if f.WatchError != nil {
		return f.WatchError
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}
	f.handlers[pin] = h
	return nil
}

// RestingState reports the scripted level for the pin.
func (f *FakeWatcher) RestingState(pin int) (Level, error) {
	if f.RestingError != nil {
		return "", f.RestingError
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if level, ok := f.Resting[pin]; ok {
		return level, nil
	}
	return High, nil
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Fire delivers an edge to the pin's handler, as the kernel would after
// debouncing. It runs the handler on the calling goroutine and also updates
// Resting so later RestingState calls agree with the fired level.
func (f *FakeWatcher) Fire(pin int, level Level, at time.Time) {
	f.mu.Lock()
	h, ok := f.handlers[pin]
	f.Resting[pin] = level
	f.mu.Unlock()

	if ok {
		h(Edge{Pin: pin, Level: level, Time: at})
	}
}

// Watched reports whether Watch was called for the pin.
func (f *FakeWatcher) Watched(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[pin]
	return ok
}
