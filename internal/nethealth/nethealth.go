// Package nethealth owns the agent's connectivity state. A background loop
// tests the LAN on an interval and, when the test fails, works through a
// bounded recovery ladder: bounce the link, restart its management service,
// renew the DHCP lease. Probe and command failures drive the state machine;
// none of them ever stop the loop.
package nethealth

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sweeney/andon-agent/internal/logging"
	"github.com/sweeney/andon-agent/internal/netcheck"
)

// State is the published connectivity snapshot. The monitor is the sole
// writer; the coordinator and status tracker read it.
type State struct {
	Connected bool
	LastCheck time.Time
	Gateway   net.IP
}

// Config bounds the check loop and names the interfaces it recovers. An
// empty interface name means the device does not have that interface.
type Config struct {
	CheckInterval     time.Duration
	ReconnectTimeout  time.Duration
	RetryBackoff      time.Duration
	CommandTimeout    time.Duration
	SettleDelay       time.Duration
	WifiInterface     string
	EthernetInterface string
	WifiService       string
}

// Prober is the LAN test the monitor drives. netcheck.Checker implements it.
type Prober interface {
	TestLAN(ctx context.Context) bool
	InvalidateGateway()
	CachedGateway() net.IP
}

// Monitor runs the periodic connectivity check and recovery loop.
type Monitor struct {
	cfg    Config
	prober Prober
	runner netcheck.Runner
	log    *logging.Logger

	onChange func(connected bool)

	// Injection points for tests.
	linkUp func(name string) bool
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) bool
	tick   <-chan time.Time

	mu      sync.RWMutex
	state   State
	checked bool
}

// New creates a Monitor. Run starts the loop.
func New(cfg Config, prober Prober, runner netcheck.Runner, log *logging.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		prober: prober,
		runner: runner,
		log:    log.With("component", "nethealth"),
		linkUp: netcheck.InterfaceUp,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// SetOnChange registers a hook fired on every Connected transition after the
// first check establishes the baseline. Must be called before Run.
func (m *Monitor) SetOnChange(fn func(connected bool)) {
	m.onChange = fn
}

// State returns the current connectivity snapshot.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connected reports the current connectivity verdict.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Connected
}

// Run checks connectivity immediately and then once per CheckInterval until
// the context is cancelled. Cancellation is honored between steps; in-flight
// probes and commands finish under their own timeouts.
func (m *Monitor) Run(ctx context.Context) {
	m.check(ctx)

	tick := m.tick
	if tick == nil {
		t := time.NewTicker(m.cfg.CheckInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			m.log.Info("health monitor stopping")
			return
		case <-tick:
			m.check(ctx)
		}
	}
}

// check runs one LAN test and enters recovery on failure.
func (m *Monitor) check(ctx context.Context) {
	if m.prober.TestLAN(context.Background()) {
		m.setConnected(true)
		return
	}

	m.log.Warn("lan test failed, entering recovery")
	m.setConnected(false)
	m.recover(ctx)
}

// recover retries the recovery ladder until connectivity returns or the
// overall timeout elapses. On timeout the state stays Disconnected and the
// next periodic check starts recovery over.
func (m *Monitor) recover(ctx context.Context) {
	deadline := m.now().Add(m.cfg.ReconnectTimeout)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if !m.now().Before(deadline) {
			m.log.Warn("recovery timed out, staying disconnected",
				"timeout", m.cfg.ReconnectTimeout)
			return
		}

		wifi := m.cfg.WifiInterface
		eth := m.cfg.EthernetInterface
		wifiUp := wifi == "" || m.linkUp(wifi)
		ethUp := eth == "" || m.linkUp(eth)
		m.log.Info("recovery attempt",
			"attempt", attempt, "wifi_up", wifiUp, "ethernet_up", ethUp)

		if wifiUp && ethUp {
			// Link layer looks fine, the outage is higher up.
			if m.retest() {
				return
			}
		} else {
			if !wifiUp {
				m.recoverInterface(ctx, wifi, m.cfg.WifiService)
				if m.linkUp(wifi) && m.retest() {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			if !ethUp {
				m.recoverInterface(ctx, eth, "")
				if m.linkUp(eth) && m.retest() {
					return
				}
			}
		}

		if !m.sleep(ctx, m.cfg.RetryBackoff) {
			return
		}
	}
}

// retest re-runs the LAN test after a recovery step and publishes success.
func (m *Monitor) retest() bool {
	if !m.prober.TestLAN(context.Background()) {
		return false
	}
	m.log.Info("connectivity restored")
	m.setConnected(true)
	return true
}

// recoverInterface runs the ordered procedure for one down interface: link
// down, settle, link up, settle; then, if the interface still has no
// address, restart its management service and renew the DHCP lease. A
// command failure aborts this interface's round; the loop carries on. The
// cached gateway is always invalidated, since even a partial bounce can
// change the default route.
func (m *Monitor) recoverInterface(ctx context.Context, name, service string) {
	defer m.prober.InvalidateGateway()

	m.log.Info("restarting interface", "interface", name)
	if err := m.runCmd("ip", "link", "set", name, "down"); err != nil {
		m.log.Warn("interface recovery aborted", "interface", name, "error", err)
		return
	}
	if !m.sleep(ctx, m.cfg.SettleDelay) {
		return
	}
	if err := m.runCmd("ip", "link", "set", name, "up"); err != nil {
		m.log.Warn("interface recovery aborted", "interface", name, "error", err)
		return
	}
	if !m.sleep(ctx, m.cfg.SettleDelay) {
		return
	}

	if m.linkUp(name) {
		return
	}

	if service != "" {
		m.log.Info("restarting service", "service", service)
		if err := m.runCmd("systemctl", "restart", service); err != nil {
			m.log.Warn("interface recovery aborted", "interface", name, "error", err)
			return
		}
	}

	m.log.Info("renewing dhcp lease", "interface", name)
	if err := m.runCmd("dhclient", "-r", name); err != nil {
		m.log.Warn("interface recovery aborted", "interface", name, "error", err)
		return
	}
	if err := m.runCmd("dhclient", name); err != nil {
		m.log.Warn("interface recovery aborted", "interface", name, "error", err)
		return
	}
}

// runCmd executes one external command under the per-command timeout. The
// context is deliberately not derived from the loop's: shutdown waits for
// the command rather than killing it mid-flight.
func (m *Monitor) runCmd(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CommandTimeout)
	defer cancel()

	out, err := m.runner.Run(ctx, name, args...)
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(out))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// setConnected publishes the new verdict and fires the change hook on real
// transitions. The first check only establishes the baseline.
func (m *Monitor) setConnected(connected bool) {
	m.mu.Lock()
	was := m.state.Connected
	fire := m.checked && was != connected
	m.checked = true
	m.state.Connected = connected
	m.state.LastCheck = m.now()
	m.state.Gateway = m.prober.CachedGateway()
	m.mu.Unlock()

	if fire && m.onChange != nil {
		m.onChange(connected)
	}
}

// sleepCtx waits for the duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
