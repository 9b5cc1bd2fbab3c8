package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gonet "github.com/shirou/gopsutil/v4/net"
)

// connectionLister matches gopsutil's connection enumeration; swapped in tests.
type connectionLister func(ctx context.Context, kind string) ([]gonet.ConnectionStat, error)

// FirewallCheck introspects local listening sockets and reports unexpected
// exposures: TCP listeners bound beyond loopback on ports outside the
// allow-list.
type FirewallCheck struct {
	allowedPorts map[uint32]bool
	list         connectionLister
}

// NewFirewallCheck builds the firewall status check. allowedPorts are the
// ports the host is expected to expose.
func NewFirewallCheck(allowedPorts []int) *FirewallCheck {
	allowed := make(map[uint32]bool, len(allowedPorts))
	for _, p := range allowedPorts {
		if p > 0 {
			allowed[uint32(p)] = true
		}
	}
	return &FirewallCheck{
		allowedPorts: allowed,
		list:         gonet.ConnectionsWithContext,
	}
}

func (f *FirewallCheck) ID() string { return "firewall-status" }

func (f *FirewallCheck) Description() string {
	return "Local firewall and port exposure introspection"
}

// Run enumerates listening TCP sockets. Introspection being unavailable is a
// warn, not a fail: it says nothing about the target service itself.
func (f *FirewallCheck) Run(ctx context.Context) Result {
	start := time.Now()
	latency := func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000.0
	}

	conns, err := f.list(ctx, "tcp")
	if err != nil {
		return NewResult(f.ID(), StatusWarn, latency(),
			fmt.Sprintf("socket introspection unavailable: %v", err), nil)
	}

	var exposed []string
	seen := make(map[uint32]bool)
	for _, conn := range conns {
		if conn.Status != "LISTEN" {
			continue
		}
		if isLoopback(conn.Laddr.IP) {
			continue
		}
		if f.allowedPorts[conn.Laddr.Port] || seen[conn.Laddr.Port] {
			continue
		}
		seen[conn.Laddr.Port] = true
		exposed = append(exposed, fmt.Sprintf("%s:%d", conn.Laddr.IP, conn.Laddr.Port))
	}

	if len(exposed) > 0 {
		sort.Strings(exposed)
		return NewResult(f.ID(), StatusFail, latency(),
			fmt.Sprintf("unexpected exposed listeners: %s", strings.Join(exposed, ", ")),
			map[string]any{"exposed": exposed})
	}
	return NewResult(f.ID(), StatusPass, latency(), "no unexpected exposed listeners", nil)
}

func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || strings.HasPrefix(ip, "127.")
}
