// Package agent glues debounced pin transitions to collector delivery.
//
// The coordinator owns the pending-failure flag: when a delivery fails or an
// event is dropped for lack of connectivity, the flag is raised, and the next
// successful contact with the collector is preceded by a synthetic
// restoration notice so the collector knows a gap occurred. Events dropped
// while offline are gone; only the gap itself is reported.
package agent

import (
	"sync"
	"time"

	"github.com/sweeney/andon-agent/internal/delivery"
	"github.com/sweeney/andon-agent/internal/logging"
	"github.com/sweeney/andon-agent/internal/monitor"
	"github.com/sweeney/andon-agent/internal/status"
	"github.com/sweeney/andon-agent/internal/telemetry"
)

// Sender delivers a single event to the collector.
type Sender interface {
	Send(event delivery.Event) delivery.Outcome
}

// Health reports the current connectivity state.
type Health interface {
	Connected() bool
}

// Coordinator turns pin transitions into collector deliveries. Sends are
// serialized behind a mutex so events leave in emission order.
type Coordinator struct {
	device  string
	sender  Sender
	health  Health
	tracker *status.Tracker
	log     *logging.Logger
	mirror  telemetry.Publisher

	now func() time.Time

	mu             sync.Mutex
	pendingFailure bool
	counts         status.Counts
}

// New creates a Coordinator for the given device.
func New(device string, sender Sender, health Health, tracker *status.Tracker, log *logging.Logger) *Coordinator {
	return &Coordinator{
		device:  device,
		sender:  sender,
		health:  health,
		tracker: tracker,
		log:     log.With("component", "agent"),
		now:     time.Now,
	}
}

// SetMirror attaches an optional telemetry publisher that receives a copy of
// every transition event. Must be called before the first transition.
func (c *Coordinator) SetMirror(p telemetry.Publisher) {
	c.mirror = p
}

// HandleTransition builds and delivers the event for one debounced
// transition. Matches monitor.Sink.
func (c *Coordinator) HandleTransition(tr monitor.Transition) {
	event := delivery.Event{
		DeviceName:  c.device,
		Pin:         tr.Pin,
		State:       string(tr.Level),
		TimeDiffSec: tr.Held.Seconds(),
		Timestamp:   tr.Time,
	}

	c.tracker.SetPin(tr.Pin, string(tr.Level))

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.health.Connected() {
		c.pendingFailure = true
		c.counts.Dropped++
		c.publishState()
		c.log.Warn("no connectivity, event dropped",
			"pin", tr.Pin, "state", event.State)
		c.mirrorEvent(event)
		return
	}

	if c.pendingFailure {
		notice := delivery.RestoredEvent(c.device, c.now())
		if outcome := c.sender.Send(notice); outcome == delivery.Success {
			c.pendingFailure = false
			c.counts.Restorations++
			c.log.Info("restoration notice delivered")
		} else {
			c.log.Warn("restoration notice failed", "outcome", outcome)
		}
	}

	if outcome := c.sender.Send(event); outcome == delivery.Success {
		c.counts.Delivered++
		c.log.Info("event delivered",
			"pin", tr.Pin, "state", event.State, "held_sec", event.TimeDiffSec)
	} else {
		c.pendingFailure = true
		c.counts.Failed++
		c.log.Warn("delivery failed",
			"pin", tr.Pin, "state", event.State, "outcome", outcome)
	}
	c.publishState()
	c.mirrorEvent(event)
}

// PendingFailure reports whether the last delivery attempt failed.
func (c *Coordinator) PendingFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingFailure
}

// Counts returns the delivery counters.
func (c *Coordinator) Counts() status.Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// publishState pushes the flag and counters to the tracker. Caller holds mu.
func (c *Coordinator) publishState() {
	c.tracker.SetPendingFailure(c.pendingFailure)
	c.tracker.SetCounts(c.counts)
}

// mirrorEvent copies the event to the telemetry publisher, if attached.
// Mirror failures never affect collector delivery.
func (c *Coordinator) mirrorEvent(event delivery.Event) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Publish(event); err != nil {
		c.log.Debug("telemetry mirror failed", "error", err)
	}
}
