package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/telnet"
	"github.com/acolita/telnet-shell-mcp/internal/testing/fakes/fakenet"
)

func newPipeTransport(t *testing.T, host string) (*Transport, net.Conn) {
	t.Helper()

	dialer, servers := fakenet.NewPipeDialer()
	tr := New(Options{
		Host:          host,
		StreamTimeout: 100 * time.Millisecond,
		Dialer:        dialer,
		Resolver:      fakenet.NewResolver(map[string][]string{"router": {"192.0.2.10"}}),
	})
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	server := <-servers
	t.Cleanup(func() {
		server.Close()
		tr.Close()
	})
	return tr, server
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	tr := New(Options{Host: "router"})
	if tr.port != DefaultPort {
		t.Errorf("port = %d, want %d", tr.port, DefaultPort)
	}
	if tr.connectTimeout != DefaultConnectTimeout {
		t.Errorf("connectTimeout = %s", tr.connectTimeout)
	}
	if tr.StreamTimeout() != DefaultStreamTimeout {
		t.Errorf("StreamTimeout() = %s", tr.StreamTimeout())
	}
	if tr.Connected() {
		t.Error("new transport should be disconnected")
	}
}

func TestConnect_ResolvesHostName(t *testing.T) {
	dialer, servers := fakenet.NewPipeDialer()
	resolver := fakenet.NewResolver(map[string][]string{"router": {"192.0.2.10"}})
	tr := New(Options{Host: "router", Port: 2323, Dialer: dialer, Resolver: resolver})

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Close()
	(<-servers).Close()

	calls := dialer.Calls()
	if len(calls) != 1 || calls[0].Address != "192.0.2.10:2323" {
		t.Errorf("dial calls = %+v", calls)
	}
	if calls[0].Timeout != DefaultConnectTimeout {
		t.Errorf("dial timeout = %s", calls[0].Timeout)
	}
}

func TestConnect_LiteralAddressSkipsResolver(t *testing.T) {
	dialer, servers := fakenet.NewPipeDialer()
	resolver := fakenet.NewResolver(nil)
	tr := New(Options{Host: "2001:db8::1", Dialer: dialer, Resolver: resolver})

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Close()
	(<-servers).Close()

	if len(resolver.Lookups()) != 0 {
		t.Errorf("resolver should not be used for literal addresses, got %v", resolver.Lookups())
	}
	if got := dialer.Calls()[0].Address; got != "[2001:db8::1]:23" {
		t.Errorf("dial address = %s", got)
	}
}

func TestConnect_ResolveFailure(t *testing.T) {
	tr := New(Options{Host: "nowhere", Dialer: fakenet.NewDialer(), Resolver: fakenet.NewResolver(nil)})

	err := tr.Connect(context.Background())
	var cerr *telnet.ConnectionError
	if !errors.As(err, &cerr) || cerr.Op != "resolve" {
		t.Fatalf("expected resolve ConnectionError, got %v", err)
	}
}

func TestConnect_DialFailure(t *testing.T) {
	dialer := fakenet.NewDialer()
	dialer.SetError(errors.New("connection refused"))
	tr := New(Options{Host: "192.0.2.1", Dialer: dialer})

	err := tr.Connect(context.Background())
	if !errors.Is(err, telnet.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if tr.Connected() {
		t.Error("transport should stay disconnected after a failed dial")
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestReadByte(t *testing.T) {
	tr, server := newPipeTransport(t, "router")
	go server.Write([]byte("ab"))

	for _, want := range []byte("ab") {
		b, err := tr.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte() error = %v", err)
		}
		if b != want {
			t.Errorf("ReadByte() = %q, want %q", b, want)
		}
	}
}

func TestReadByte_WouldBlock(t *testing.T) {
	tr, _ := newPipeTransport(t, "router")

	start := time.Now()
	_, err := tr.ReadByte()
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ReadByte blocked for %s, stream timeout is 100ms", elapsed)
	}
}

func TestReadByte_RecoversAfterTimeout(t *testing.T) {
	tr, server := newPipeTransport(t, "router")

	if _, err := tr.ReadByte(); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}

	go server.Write([]byte("z"))
	b, err := tr.ReadByte()
	if err != nil || b != 'z' {
		t.Fatalf("ReadByte() after timeout = %q, %v", b, err)
	}
}

func TestReadByte_EOF(t *testing.T) {
	tr, server := newPipeTransport(t, "router")
	server.Close()

	if _, err := tr.ReadByte(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestWaitReadable(t *testing.T) {
	tr, server := newPipeTransport(t, "router")

	if tr.WaitReadable() {
		t.Error("WaitReadable() = true with nothing sent")
	}

	go server.Write([]byte("q"))
	if !tr.WaitReadable() {
		t.Fatal("WaitReadable() = false after server wrote")
	}
	b, err := tr.ReadByte()
	if err != nil || b != 'q' {
		t.Errorf("WaitReadable consumed input: got %q, %v", b, err)
	}
}

func TestDrain(t *testing.T) {
	tr, server := newPipeTransport(t, "router")

	go server.Write([]byte("noise"))
	if !tr.WaitReadable() {
		t.Fatal("WaitReadable() = false after server wrote")
	}

	if got := string(tr.Drain(time.Second)); got != "noise" {
		t.Errorf("Drain() = %q, want %q", got, "noise")
	}
	if got := tr.Drain(time.Second); len(got) != 0 {
		t.Errorf("second Drain() = %q, want empty", got)
	}
}

func TestDrain_StopsOnContinuousOutput(t *testing.T) {
	tr, server := newPipeTransport(t, "router")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := server.Write([]byte("x")); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if !tr.WaitReadable() {
		t.Fatal("WaitReadable() = false after server wrote")
	}
	start := time.Now()
	got := tr.Drain(100 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Drain() took %v on a streaming peer", elapsed)
	}
	if len(got) == 0 {
		t.Error("Drain() returned nothing from a streaming peer")
	}
	if len(tr.Drain(0)) > 1 {
		t.Error("Drain(0) should only return buffered bytes")
	}
}

// ---------------------------------------------------------------------------
// Writes and close
// ---------------------------------------------------------------------------

func TestWrite(t *testing.T) {
	tr, server := newPipeTransport(t, "router")

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		got <- buf[:n]
	}()

	if _, err := tr.Write([]byte("show ver\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if s := string(<-got); s != "show ver\r\n" {
		t.Errorf("server received %q", s)
	}
}

func TestWrite_TimesOutWithoutReader(t *testing.T) {
	tr, _ := newPipeTransport(t, "router")

	_, err := tr.Write([]byte("x"))
	if !errors.Is(err, telnet.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestClosedTransportFailsFast(t *testing.T) {
	tr, _ := newPipeTransport(t, "router")
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := tr.ReadByte(); !errors.Is(err, telnet.ErrConnection) {
		t.Errorf("ReadByte on closed transport: expected ErrConnection, got %v", err)
	}
	if _, err := tr.Write([]byte("x")); !errors.Is(err, telnet.ErrConnection) {
		t.Errorf("Write on closed transport: expected ErrConnection, got %v", err)
	}
	if tr.WaitReadable() {
		t.Error("WaitReadable on closed transport should be false")
	}
	if tr.Drain(time.Second) != nil {
		t.Error("Drain on closed transport should be nil")
	}
}

func TestClose_Idempotent(t *testing.T) {
	tr, _ := newPipeTransport(t, "router")

	for i := 0; i < 3; i++ {
		if err := tr.Close(); err != nil {
			t.Fatalf("Close() #%d error = %v", i+1, err)
		}
	}
	if tr.Connected() {
		t.Error("Connected() = true after Close")
	}
}

func TestSetStreamTimeout(t *testing.T) {
	tr := New(Options{Host: "router"})

	tr.SetStreamTimeout(250 * time.Millisecond)
	if got := tr.StreamTimeout(); got != 250*time.Millisecond {
		t.Errorf("StreamTimeout() = %s", got)
	}

	tr.SetStreamTimeout(0)
	if got := tr.StreamTimeout(); got != DefaultStreamTimeout {
		t.Errorf("StreamTimeout() after reset = %s", got)
	}
}

func TestString(t *testing.T) {
	tr := New(Options{Host: "router", Port: 2323})
	if got := tr.String(); got != "telnet://router:2323" {
		t.Errorf("String() = %q", got)
	}
}
