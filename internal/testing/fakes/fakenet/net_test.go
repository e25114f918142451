package fakenet

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestDialer_DefaultError(t *testing.T) {
	d := NewDialer()
	_, err := d.DialTimeout("tcp", "localhost:23", time.Second)
	if err == nil {
		t.Error("expected error from unconfigured dialer")
	}
}

func TestDialer_RecordsCalls(t *testing.T) {
	d := NewDialer()

	d.DialTimeout("tcp", "10.0.0.1:23", time.Second)
	d.DialTimeout("tcp", "10.0.0.2:2323", 2*time.Second)

	calls := d.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Address != "10.0.0.1:23" {
		t.Errorf("expected address=10.0.0.1:23, got %s", calls[0].Address)
	}
	if calls[1].Timeout != 2*time.Second {
		t.Errorf("expected timeout=2s, got %s", calls[1].Timeout)
	}
}

func TestDialer_SetError(t *testing.T) {
	d := NewDialer()
	expected := errors.New("connection refused")
	d.SetError(expected)

	_, err := d.DialTimeout("tcp", "host:23", time.Second)
	if err != expected {
		t.Errorf("expected %v, got %v", expected, err)
	}
}

func TestPipeDialer(t *testing.T) {
	d, servers := NewPipeDialer()
	client, err := d.DialTimeout("tcp", "router:23", time.Second)
	if err != nil {
		t.Fatalf("DialTimeout() error = %v", err)
	}
	defer client.Close()

	server := <-servers
	defer server.Close()

	go server.Write([]byte("x"))
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err != nil || buf[0] != 'x' {
		t.Errorf("read = %q, %v", buf, err)
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver(map[string][]string{"router": {"192.0.2.1"}})

	addrs, err := r.LookupHost(context.Background(), "router")
	if err != nil || len(addrs) != 1 || addrs[0] != "192.0.2.1" {
		t.Errorf("LookupHost(router) = %v, %v", addrs, err)
	}

	_, err = r.LookupHost(context.Background(), "missing")
	var dnsErr *net.DNSError
	if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
		t.Errorf("expected not-found DNSError, got %v", err)
	}

	if got := r.Lookups(); len(got) != 2 {
		t.Errorf("Lookups() = %v, want 2 entries", got)
	}
}
