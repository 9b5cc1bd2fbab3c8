package checks

import (
	"context"
	"fmt"
	"testing"

	gonet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
)

func listenConn(ip string, port uint32) gonet.ConnectionStat {
	return gonet.ConnectionStat{
		Status: "LISTEN",
		Laddr:  gonet.Addr{IP: ip, Port: port},
	}
}

func TestFirewallCheckNoExposure(t *testing.T) {
	f := NewFirewallCheck([]int{8080})
	f.list = func(ctx context.Context, kind string) ([]gonet.ConnectionStat, error) {
		return []gonet.ConnectionStat{
			listenConn("127.0.0.1", 5432),
			listenConn("::1", 6379),
			listenConn("0.0.0.0", 8080),
			{Status: "ESTABLISHED", Laddr: gonet.Addr{IP: "0.0.0.0", Port: 9999}},
		}, nil
	}

	res := f.Run(context.Background())

	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "firewall-status", res.CheckID)
}

func TestFirewallCheckReportsUnexpectedListeners(t *testing.T) {
	f := NewFirewallCheck([]int{8080})
	f.list = func(ctx context.Context, kind string) ([]gonet.ConnectionStat, error) {
		return []gonet.ConnectionStat{
			listenConn("0.0.0.0", 8080),
			listenConn("0.0.0.0", 23),
			listenConn("10.0.0.5", 23), // same port, reported once
			listenConn("0.0.0.0", 3306),
		}, nil
	}

	res := f.Run(context.Background())

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, ":23")
	assert.Contains(t, res.Message, ":3306")
	exposed := res.Details["exposed"].([]string)
	assert.Len(t, exposed, 2)
}

func TestFirewallCheckIntrospectionErrorWarns(t *testing.T) {
	f := NewFirewallCheck(nil)
	f.list = func(ctx context.Context, kind string) ([]gonet.ConnectionStat, error) {
		return nil, fmt.Errorf("proc not mounted")
	}

	res := f.Run(context.Background())

	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "introspection unavailable")
}
