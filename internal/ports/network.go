// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

import (
	"context"
	"net"
	"time"
)

// NetworkDialer abstracts TCP dialing for testing.
type NetworkDialer interface {
	// DialTimeout establishes a network connection, giving up after timeout.
	DialTimeout(network, address string, timeout time.Duration) (net.Conn, error)
}

// Resolver abstracts host name resolution for testing.
type Resolver interface {
	// LookupHost returns the addresses of host.
	LookupHost(ctx context.Context, host string) ([]string, error)
}
