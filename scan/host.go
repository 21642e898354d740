package scan

import (
	"context"
	"fmt"
	"net"
)

type PortState uint8

const (
	PortUnknown PortState = iota
	PortOpen
	PortClosed
	PortFiltered
)

func (s PortState) String() string {
	switch s {
	case PortOpen:
		return "OPEN"
	case PortClosed:
		return "CLOSED"
	case PortFiltered:
		return "FILTERED"
	}
	return "UNKNOWN"
}

// ResolveHost turns a hostname or literal address into the IP that will be probed.
// IPv4 addresses are preferred when a name resolves to both families.
func ResolveHost(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return ip, nil
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("lookup failed for '%s'", host)
	}

	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return ips[0], nil
}
