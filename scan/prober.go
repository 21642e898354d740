package scan

import (
	"context"
	"net"
	"strconv"
	"time"
)

// ConnectProber probes with a full TCP handshake. Any failure to connect,
// whether refused, timed out or unreachable, counts as closed.
type ConnectProber struct {
	timeout time.Duration
}

// NewConnectProber creates a prober. A zero timeout leaves the connect timeout to the OS.
func NewConnectProber(timeout time.Duration) *ConnectProber {
	return &ConnectProber{
		timeout: timeout,
	}
}

func (p *ConnectProber) Probe(ctx context.Context, host net.IP, port int) PortState {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host.String(), strconv.Itoa(port)))
	if err != nil {
		return PortClosed
	}
	_ = conn.Close()
	return PortOpen
}
