// Package gpio provides the hardware abstraction for monitored input lines.
// The real implementation uses the Linux GPIO character device with kernel
// debouncing. The fake implementation allows testing without hardware.
package gpio

import "time"

// Level is the logical level of an input line.
type Level string

const (
	High Level = "HIGH"
	Low  Level = "LOW"
)

// Edge is a debounced transition reported by the hardware layer.
// Lines are pulled up, so an asserted (pressed) line reads Low and a
// released line reads High.
type Edge struct {
	Pin   int
	Level Level     // level after the transition
	Time  time.Time // wall-clock time the edge was observed
}

// EdgeHandler receives debounced edges. Handlers for distinct pins may be
// invoked concurrently; edges for a single pin arrive in order.
type EdgeHandler func(Edge)

// Watcher turns physical line transitions into debounced edge callbacks.
type Watcher interface {
	// Watch requests the pin as a pulled-up input and registers h for its
	// debounced edges.
	Watch(pin int, h EdgeHandler) error

	// RestingState returns the pin's current level without waiting for an
	// edge. Works on watched and unwatched pins.
	RestingState(pin int) (Level, error)

	// Close releases all requested lines.
	Close() error
}
