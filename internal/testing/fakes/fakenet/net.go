// Package fakenet provides a fake network dialer and resolver for testing.
package fakenet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Dialer is a fake network dialer that can be configured to return errors or specific connections.
type Dialer struct {
	DialFunc func(network, address string) (net.Conn, error)

	mu    sync.Mutex
	calls []DialCall
}

// DialCall records a call to DialTimeout.
type DialCall struct {
	Network string
	Address string
	Timeout time.Duration
}

// NewDialer creates a new fake Dialer that returns an error by default.
func NewDialer() *Dialer {
	return &Dialer{
		DialFunc: func(network, address string) (net.Conn, error) {
			return nil, fmt.Errorf("fakenet: not configured")
		},
	}
}

// NewPipeDialer returns a dialer whose connections are the client side of a
// net.Pipe. Each server side is delivered on the returned channel.
func NewPipeDialer() (*Dialer, <-chan net.Conn) {
	servers := make(chan net.Conn, 4)
	d := NewDialer()
	d.DialFunc = func(network, address string) (net.Conn, error) {
		client, server := net.Pipe()
		servers <- server
		return client, nil
	}
	return d, servers
}

// DialTimeout records the call and delegates to DialFunc.
func (d *Dialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	d.calls = append(d.calls, DialCall{Network: network, Address: address, Timeout: timeout})
	d.mu.Unlock()
	return d.DialFunc(network, address)
}

// Calls returns all recorded DialTimeout calls.
func (d *Dialer) Calls() []DialCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DialCall(nil), d.calls...)
}

// SetError configures the dialer to always return the given error.
func (d *Dialer) SetError(err error) {
	d.DialFunc = func(network, address string) (net.Conn, error) {
		return nil, err
	}
}

// Resolver is a fake resolver backed by a static table.
type Resolver struct {
	mu      sync.Mutex
	hosts   map[string][]string
	lookups []string
}

// NewResolver creates a resolver that knows only the given hosts.
func NewResolver(hosts map[string][]string) *Resolver {
	if hosts == nil {
		hosts = make(map[string][]string)
	}
	return &Resolver{hosts: hosts}
}

// LookupHost returns the configured addresses or a not-found error.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, host)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addrs, ok := r.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// Lookups returns every host name that was looked up.
func (r *Resolver) Lookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lookups...)
}
