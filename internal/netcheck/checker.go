package netcheck

import (
	"context"
	"net"
	"sync"
	"time"
)

// CheckerConfig selects which probes run and their bounds.
type CheckerConfig struct {
	CollectorAddr    string
	ServerCheck      bool
	GatewayCheck     bool
	CollectorTimeout time.Duration
	GatewayTimeout   time.Duration
}

// Checker composes the collector and gateway probes into the LAN test the
// health monitor runs. It also owns the cached default gateway, resolved
// lazily and dropped on InvalidateGateway.
type Checker struct {
	cfg    CheckerConfig
	runner Runner

	mu      sync.Mutex
	gateway net.IP
}

// NewChecker creates a Checker running commands through r.
func NewChecker(cfg CheckerConfig, r Runner) *Checker {
	return &Checker{cfg: cfg, runner: r}
}

// TestLAN reports whether the LAN looks usable. The collector probe runs
// first and short-circuits on success; the gateway probe is the fallback.
// A disabled probe is skipped, not failed. With both probes disabled the
// test always reports false.
func (c *Checker) TestLAN(ctx context.Context) bool {
	if c.cfg.ServerCheck && ProbeCollector(ctx, c.cfg.CollectorAddr, c.cfg.CollectorTimeout) {
		return true
	}
	if c.cfg.GatewayCheck {
		if gw := c.lookupGateway(ctx); gw != nil {
			return ProbeGateway(ctx, c.runner, gw, c.cfg.GatewayTimeout)
		}
	}
	return false
}

// lookupGateway returns the cached gateway, resolving it on first use and
// after invalidation.
func (c *Checker) lookupGateway(ctx context.Context) net.IP {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gateway != nil {
		return c.gateway
	}

	gw, err := DefaultGateway(ctx, c.runner)
	if err != nil || gw == nil {
		return nil
	}
	c.gateway = gw
	return gw
}

// InvalidateGateway drops the cached gateway so the next test re-resolves
// it. Interface restarts can change the default route.
func (c *Checker) InvalidateGateway() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gateway = nil
}

// CachedGateway returns the cached gateway, nil while unresolved.
func (c *Checker) CachedGateway() net.IP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateway
}
