// Package monitor tracks the logical state of each watched line and turns
// hardware edges into transitions carrying the time spent in the previous
// state. It owns no hardware and never reads the clock: edges arrive through
// HandleEdge with their own timestamps and leave through the sink.
package monitor

import (
	"sync"
	"time"

	"github.com/sweeney/andon-agent/internal/gpio"
)

// Transition is a completed state change on one line.
type Transition struct {
	Pin   int
	Level gpio.Level    // level the line settled at
	Held  time.Duration // time spent in the previous level
	Time  time.Time     // when the edge occurred
}

// Sink receives transitions as they are produced. Calls for distinct pins
// may be concurrent; the receiver orders them.
type Sink func(Transition)

// lineState is the per-pin record: the current level and when it was entered.
type lineState struct {
	level gpio.Level
	since time.Time
}

// Monitor converts edges into transitions. Safe for concurrent HandleEdge
// calls from per-line goroutines.
type Monitor struct {
	mu    sync.Mutex
	lines map[int]lineState
	sink  Sink
}

// New creates a Monitor emitting to sink.
func New(sink Sink) *Monitor {
	return &Monitor{
		lines: make(map[int]lineState),
		sink:  sink,
	}
}

// Seed records the resting level of a pin without emitting a transition.
// The timestamp starts the first duration measurement, so the first edge on
// the pin reports time held since the seed.
func (m *Monitor) Seed(pin int, level gpio.Level, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[pin] = lineState{level: level, since: at}
}

// HandleEdge updates the pin's record and emits a transition holding the
// time the line spent in its previous level. An edge repeating the current
// level is still reported; the hardware already debounced it, so it stands
// for a real transition whose counterpart was not observed. Edges on pins
// that were never seeded adopt the edge time as baseline and report a zero
// hold.
func (m *Monitor) HandleEdge(e gpio.Edge) {
	m.mu.Lock()
	prev, seeded := m.lines[e.Pin]
	m.lines[e.Pin] = lineState{level: e.Level, since: e.Time}
	m.mu.Unlock()

	var held time.Duration
	if seeded {
		held = e.Time.Sub(prev.since)
	}

	m.sink(Transition{Pin: e.Pin, Level: e.Level, Held: held, Time: e.Time})
}

// States returns a snapshot of the current level of every known pin.
func (m *Monitor) States() map[int]gpio.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]gpio.Level, len(m.lines))
	for pin, ls := range m.lines {
		out[pin] = ls.level
	}
	return out
}
