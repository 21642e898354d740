package scan

//go:generate mockgen -destination=../mock/scan/mock_scan.go -package=mock_scan . Prober,Scanner

import (
	"context"
	"net"
)

// Prober decides whether a single port on a host accepts connections.
type Prober interface {
	Probe(ctx context.Context, host net.IP, port int) PortState
}

// Scanner visits every port of a range on one host.
type Scanner interface {
	Scan(ctx context.Context, host net.IP, ports Range) (Result, error)
}
