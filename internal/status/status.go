// Package status tracks what the agent is doing right now. The coordinator
// and health monitor write to it; the HTTP endpoint and telemetry heartbeat
// read consistent snapshots from it.
package status

import (
	"sync"
	"time"
)

// Counts are the delivery counters since startup.
type Counts struct {
	Delivered    int
	Dropped      int
	Failed       int
	Restorations int
}

// Config contains agent configuration for display.
type Config struct {
	Device         string
	Collector      string
	Pins           []int
	DebounceMs     int
	CheckIntervalS int
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of agent state. The pin map is owned by
// the snapshot, so it stays valid after the tracker moves on.
type Snapshot struct {
	Pins               map[int]string
	Seeded             bool
	Connected          bool
	Gateway            string
	LastCheck          time.Time
	PendingFailure     bool
	Counts             Counts
	TelemetryConnected bool
	StartTime          time.Time
	Now                time.Time
	Config             Config
}

// Uptime returns the duration since the agent started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker accumulates agent state behind an RWMutex. Writers touch single
// fields; readers get a full copy via Snapshot.
type Tracker struct {
	mu sync.RWMutex

	pins               map[int]string
	seeded             bool
	connected          bool
	gateway            string
	lastCheck          time.Time
	pendingFailure     bool
	counts             Counts
	telemetryConnected bool

	start time.Time
	cfg   Config
}

// NewTracker creates a Tracker for an agent that started at start.
func NewTracker(start time.Time, cfg Config) *Tracker {
	return &Tracker{
		pins:  make(map[int]string),
		start: start,
		cfg:   cfg,
	}
}

// SetPin records the current level of one pin. Called at seed time and on
// every transition.
func (t *Tracker) SetPin(pin int, state string) {
	t.mu.Lock()
	t.pins[pin] = state
	t.mu.Unlock()
}

// SetSeeded marks that all configured pins have their baseline state.
func (t *Tracker) SetSeeded(seeded bool) {
	t.mu.Lock()
	t.seeded = seeded
	t.mu.Unlock()
}

// SetConnectivity records the health monitor's latest verdict.
func (t *Tracker) SetConnectivity(connected bool, gateway string, lastCheck time.Time) {
	t.mu.Lock()
	t.connected = connected
	t.gateway = gateway
	t.lastCheck = lastCheck
	t.mu.Unlock()
}

// SetPendingFailure records the coordinator's pending-failure flag.
func (t *Tracker) SetPendingFailure(pending bool) {
	t.mu.Lock()
	t.pendingFailure = pending
	t.mu.Unlock()
}

// SetCounts records the delivery counters.
func (t *Tracker) SetCounts(c Counts) {
	t.mu.Lock()
	t.counts = c
	t.mu.Unlock()
}

// SetTelemetryConnected records the MQTT mirror's connection status.
func (t *Tracker) SetTelemetryConnected(connected bool) {
	t.mu.Lock()
	t.telemetryConnected = connected
	t.mu.Unlock()
}

// Snapshot copies the current state, stamping Now with the wall clock.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pins := make(map[int]string, len(t.pins))
	for pin, state := range t.pins {
		pins[pin] = state
	}

	return Snapshot{
		Pins:               pins,
		Seeded:             t.seeded,
		Connected:          t.connected,
		Gateway:            t.gateway,
		LastCheck:          t.lastCheck,
		PendingFailure:     t.pendingFailure,
		Counts:             t.counts,
		TelemetryConnected: t.telemetryConnected,
		StartTime:          t.start,
		Now:                time.Now(),
		Config:             t.cfg,
	}
}
