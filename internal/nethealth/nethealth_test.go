package nethealth

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/andon-agent/internal/logging"
	"github.com/sweeney/andon-agent/internal/netcheck"
)

// fakeProber scripts TestLAN verdicts. Results are consumed in order; when
// exhausted the last verdict repeats.
type fakeProber struct {
	mu            sync.Mutex
	results       []bool
	last          bool
	gateway       net.IP
	probes        int
	invalidations int
}

func (p *fakeProber) TestLAN(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if len(p.results) > 0 {
		p.last = p.results[0]
		p.results = p.results[1:]
	}
	return p.last
}

func (p *fakeProber) InvalidateGateway() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidations++
}

func (p *fakeProber) CachedGateway() net.IP {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gateway
}

// linkScript scripts per-interface up verdicts, repeating the last one when
// the sequence runs out. Unscripted interfaces report up.
type linkScript struct {
	mu  sync.Mutex
	seq map[string][]bool
}

func (s *linkScript) up(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.seq[name]
	if len(q) == 0 {
		return true
	}
	v := q[0]
	if len(q) > 1 {
		s.seq[name] = q[1:]
	}
	return v
}

// fakeClock is a manually advanced clock shared with the instant sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() Config {
	return Config{
		CheckInterval:     30 * time.Second,
		ReconnectTimeout:  300 * time.Second,
		RetryBackoff:      30 * time.Second,
		CommandTimeout:    15 * time.Second,
		SettleDelay:       2 * time.Second,
		WifiInterface:     "wlan0",
		EthernetInterface: "eth0",
		WifiService:       "wpa_supplicant",
	}
}

// newTestMonitor wires a Monitor with instant sleeps and a fake clock. The
// sleep advances the clock so bounded loops terminate deterministically.
func newTestMonitor(t *testing.T, cfg Config, p *fakeProber, r *netcheck.FakeRunner, links *linkScript) (*Monitor, *[]time.Duration) {
	t.Helper()
	m := New(cfg, p, r, logging.Discard())

	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	var sleeps []time.Duration
	m.now = clock.now
	m.sleep = func(ctx context.Context, d time.Duration) bool {
		sleeps = append(sleeps, d)
		clock.advance(d)
		return ctx.Err() == nil
	}
	m.linkUp = links.up
	return m, &sleeps
}

func TestCheckConnected(t *testing.T) {
	p := &fakeProber{results: []bool{true}, gateway: net.ParseIP("192.168.1.1")}
	r := netcheck.NewFakeRunner()
	m, _ := newTestMonitor(t, testConfig(), p, r, &linkScript{})

	m.check(context.Background())

	st := m.State()
	if !st.Connected {
		t.Error("expected connected state")
	}
	if st.LastCheck.IsZero() {
		t.Error("expected last check timestamp to be set")
	}
	if st.Gateway == nil || st.Gateway.String() != "192.168.1.1" {
		t.Errorf("expected gateway mirrored into state, got %v", st.Gateway)
	}
	if len(r.CallLines()) != 0 {
		t.Errorf("no recovery commands expected, ran %v", r.CallLines())
	}
}

func TestRecoveryViaLinkBounce(t *testing.T) {
	p := &fakeProber{results: []bool{false, true}}
	r := netcheck.NewFakeRunner()
	links := &linkScript{seq: map[string][]bool{
		"wlan0": {false, true}, // down at detection, up after the bounce
	}}
	m, _ := newTestMonitor(t, testConfig(), p, r, links)

	m.check(context.Background())

	if !m.Connected() {
		t.Error("expected connected after recovery")
	}
	want := []string{"ip link set wlan0 down", "ip link set wlan0 up"}
	got := r.CallLines()
	if len(got) != len(want) {
		t.Fatalf("expected %v, ran %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if p.invalidations != 1 {
		t.Errorf("expected 1 gateway invalidation, got %d", p.invalidations)
	}
}

func TestRecoveryEscalatesToServiceAndDHCP(t *testing.T) {
	p := &fakeProber{results: []bool{false, true}}
	r := netcheck.NewFakeRunner()
	links := &linkScript{seq: map[string][]bool{
		"wlan0": {false, false, true}, // bounce alone does not cure it
	}}
	m, _ := newTestMonitor(t, testConfig(), p, r, links)

	m.check(context.Background())

	if !m.Connected() {
		t.Error("expected connected after escalated recovery")
	}
	want := []string{
		"ip link set wlan0 down",
		"ip link set wlan0 up",
		"systemctl restart wpa_supplicant",
		"dhclient -r wlan0",
		"dhclient wlan0",
	}
	got := r.CallLines()
	if len(got) != len(want) {
		t.Fatalf("expected %v, ran %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestEthernetRecoverySkipsService(t *testing.T) {
	p := &fakeProber{results: []bool{false, true}}
	r := netcheck.NewFakeRunner()
	links := &linkScript{seq: map[string][]bool{
		"eth0": {false, false, true},
	}}
	m, _ := newTestMonitor(t, testConfig(), p, r, links)

	m.check(context.Background())

	if !m.Connected() {
		t.Error("expected connected after ethernet recovery")
	}
	if r.Called("systemctl") {
		t.Errorf("no service restart expected for ethernet, ran %v", r.CallLines())
	}
	if !r.Called("dhclient -r eth0") || !r.Called("dhclient eth0") {
		t.Errorf("expected dhcp renewal for eth0, ran %v", r.CallLines())
	}
}

func TestCommandFailureAbortsInterfaceRoundOnly(t *testing.T) {
	p := &fakeProber{results: []bool{false, true}}
	r := netcheck.NewFakeRunner()
	r.Results["ip link set wlan0 down"] = netcheck.FakeResult{
		Output: []byte("RTNETLINK answers: operation not permitted"),
		Err:    errors.New("exit status 2"),
	}
	links := &linkScript{seq: map[string][]bool{
		"wlan0": {false, false}, // stays down, recovery for it aborted
		"eth0":  {false, true},
	}}
	m, _ := newTestMonitor(t, testConfig(), p, r, links)

	m.check(context.Background())

	if !m.Connected() {
		t.Error("expected ethernet recovery to proceed after wifi command failure")
	}
	if r.Called("ip link set wlan0 up") {
		t.Error("wifi round should have aborted after the failed command")
	}
	if !r.Called("ip link set eth0 down") || !r.Called("ip link set eth0 up") {
		t.Errorf("expected ethernet bounce, ran %v", r.CallLines())
	}
}

func TestBothInterfacesUpRetestsDirectly(t *testing.T) {
	p := &fakeProber{results: []bool{false, true}}
	r := netcheck.NewFakeRunner()
	m, _ := newTestMonitor(t, testConfig(), p, r, &linkScript{})

	m.check(context.Background())

	if !m.Connected() {
		t.Error("expected connected after direct retest")
	}
	if len(r.CallLines()) != 0 {
		t.Errorf("no commands expected when links are up, ran %v", r.CallLines())
	}
	if p.invalidations != 0 {
		t.Errorf("no invalidation expected without an interface restart, got %d", p.invalidations)
	}
}

func TestRecoveryTimesOutAndStaysDisconnected(t *testing.T) {
	p := &fakeProber{results: []bool{false}} // every test fails
	r := netcheck.NewFakeRunner()
	m, sleeps := newTestMonitor(t, testConfig(), p, r, &linkScript{})

	m.check(context.Background())

	if m.Connected() {
		t.Error("expected disconnected after recovery timeout")
	}
	// 300s timeout at 30s backoff: ten rounds, then the deadline ends it.
	if len(*sleeps) != 10 {
		t.Errorf("expected 10 backoff sleeps, got %d", len(*sleeps))
	}
	for i, d := range *sleeps {
		if d != 30*time.Second {
			t.Errorf("sleep %d: expected 30s backoff, got %v", i, d)
		}
	}
}

func TestOnChangeFiresOnTransitionsOnly(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectTimeout = time.Second
	cfg.RetryBackoff = time.Second

	p := &fakeProber{results: []bool{true}}
	r := netcheck.NewFakeRunner()
	m, _ := newTestMonitor(t, cfg, p, r, &linkScript{})

	var changes []bool
	m.SetOnChange(func(connected bool) {
		changes = append(changes, connected)
	})

	// Baseline check: no hook.
	m.check(context.Background())
	if len(changes) != 0 {
		t.Fatalf("no change expected on baseline check, got %v", changes)
	}

	// Drop: hook fires false, recovery times out.
	p.results = []bool{false}
	m.check(context.Background())
	if len(changes) != 1 || changes[0] != false {
		t.Fatalf("expected [false], got %v", changes)
	}

	// Restore: hook fires true.
	p.results = []bool{true}
	m.check(context.Background())
	if len(changes) != 2 || changes[1] != true {
		t.Fatalf("expected [false true], got %v", changes)
	}

	// Staying connected fires nothing.
	m.check(context.Background())
	if len(changes) != 2 {
		t.Errorf("no change expected while staying connected, got %v", changes)
	}
}

func TestFirstCheckDisconnectedIsBaseline(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectTimeout = time.Second
	cfg.RetryBackoff = time.Second

	p := &fakeProber{results: []bool{false}}
	r := netcheck.NewFakeRunner()
	m, _ := newTestMonitor(t, cfg, p, r, &linkScript{})

	var changes []bool
	m.SetOnChange(func(connected bool) {
		changes = append(changes, connected)
	})

	m.check(context.Background())
	if len(changes) != 0 {
		t.Errorf("baseline check must not fire the hook, got %v", changes)
	}
	if m.Connected() {
		t.Error("expected disconnected baseline")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := &fakeProber{results: []bool{true}}
	r := netcheck.NewFakeRunner()
	m, _ := newTestMonitor(t, testConfig(), p, r, &linkScript{})

	tick := make(chan time.Time)
	m.tick = tick

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
