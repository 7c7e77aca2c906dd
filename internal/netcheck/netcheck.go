// Package netcheck probes LAN connectivity and inspects network interfaces.
// The probes are building blocks; Checker composes them into the LAN test
// the health monitor runs.
package netcheck

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// InterfaceUp reports whether the named interface is up and holds at least
// one address. A link that is up but never got a lease counts as down here,
// since it cannot carry traffic to the collector.
func InterfaceUp(name string) bool {
	ifs, err := psnet.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifs {
		if iface.Name != name {
			continue
		}
		return hasFlag(iface.Flags, "up") && len(iface.Addrs) > 0
	}
	return false
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// DefaultGateway returns the IPv4 default gateway from the routing table,
// or nil when there is none.
func DefaultGateway(ctx context.Context, r Runner) (net.IP, error) {
	out, err := r.Run(ctx, "ip", "route", "show", "default")
	if err != nil {
		return nil, fmt.Errorf("ip route: %w", err)
	}
	return parseDefaultRoute(string(out)), nil
}

// parseDefaultRoute extracts the gateway address from `ip route show default`
// output ("default via 192.168.1.1 dev wlan0 ...").
func parseDefaultRoute(out string) net.IP {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] == "via" {
				if ip := net.ParseIP(fields[i+1]); ip != nil {
					return ip
				}
			}
		}
	}
	return nil
}

// ProbeCollector reports whether a TCP connection to the collector address
// succeeds within the timeout.
func ProbeCollector(ctx context.Context, addr string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProbeGateway sends a single ICMP echo to the gateway through the system
// ping binary. Raw ICMP sockets need CAP_NET_RAW; the distro ping already
// has it.
func ProbeGateway(ctx context.Context, r Runner, gw net.IP, timeout time.Duration) bool {
	if gw == nil {
		return false
	}

	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}

	// Allow the command a little slack beyond ping's own deadline.
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	_, err := r.Run(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), gw.String())
	return err == nil
}
