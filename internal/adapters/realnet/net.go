// Package realnet provides real implementations of the NetworkDialer and Resolver ports.
package realnet

import (
	"context"
	"net"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Dialer implements ports.NetworkDialer using net.DialTimeout.
type Dialer struct{}

// NewDialer creates a new Dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// DialTimeout establishes a network connection.
func (d *Dialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// Resolver implements ports.Resolver using the process-wide net.DefaultResolver.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// LookupHost returns the addresses of host.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

var (
	_ ports.NetworkDialer = (*Dialer)(nil)
	_ ports.Resolver      = (*Resolver)(nil)
)
