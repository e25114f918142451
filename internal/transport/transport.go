// Package transport owns the TCP byte stream of a telnet session and
// exposes byte-level reads and writes bounded by a stream timeout.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/adapters/realnet"
	"github.com/acolita/telnet-shell-mcp/internal/ports"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

const (
	// DefaultPort is the well-known telnet port.
	DefaultPort = 23

	// DefaultConnectTimeout bounds resolution plus dialing.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultStreamTimeout bounds each individual read or write.
	DefaultStreamTimeout = time.Second

	// drainWait is how long Drain waits for bytes that are already in flight.
	drainWait = 5 * time.Millisecond

	// MaxDrain caps the bytes a single Drain discards.
	MaxDrain = 64 << 10

	readBufferSize = 4096
)

// ErrWouldBlock is returned by ReadByte when no byte arrived within the
// stream timeout. The transport stays usable.
var ErrWouldBlock = errors.New("no data within stream timeout")

// Options configures a Transport.
type Options struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	StreamTimeout  time.Duration

	Dialer   ports.NetworkDialer
	Resolver ports.Resolver
	Logger   *slog.Logger
}

// Transport is a single TCP connection. It is not safe for concurrent
// readers; the owning session serialises access.
type Transport struct {
	host           string
	port           int
	connectTimeout time.Duration
	streamTimeout  time.Duration

	dialer   ports.NetworkDialer
	resolver ports.Resolver
	logger   *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// New creates a disconnected transport, filling unset options with defaults.
func New(opts Options) *Transport {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = DefaultStreamTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = realnet.NewDialer()
	}
	if opts.Resolver == nil {
		opts.Resolver = realnet.NewResolver()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Transport{
		host:           opts.Host,
		port:           opts.Port,
		connectTimeout: opts.ConnectTimeout,
		streamTimeout:  opts.StreamTimeout,
		dialer:         opts.Dialer,
		resolver:       opts.Resolver,
		logger:         opts.Logger,
	}
}

// Addr returns host:port as configured, before resolution.
func (t *Transport) Addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// Connect resolves the host unless it is already a literal address and
// opens the TCP stream. Calling Connect on a connected transport is a no-op.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	ip, err := t.resolve(ctx)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(t.port))
	conn, err := t.dialer.DialTimeout("tcp", addr, t.connectTimeout)
	if err != nil {
		return &telnet.ConnectionError{Op: "dial", Addr: addr, Err: err}
	}

	t.conn = conn
	t.reader = bufio.NewReaderSize(conn, readBufferSize)

	t.logger.Debug("transport connected",
		slog.String("host", t.host),
		slog.String("addr", addr),
	)
	return nil
}

func (t *Transport) resolve(ctx context.Context) (string, error) {
	if net.ParseIP(t.host) != nil {
		return t.host, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	addrs, err := t.resolver.LookupHost(ctx, t.host)
	if err != nil {
		return "", &telnet.ConnectionError{Op: "resolve", Addr: t.host, Err: err}
	}
	if len(addrs) == 0 {
		return "", &telnet.ConnectionError{Op: "resolve", Addr: t.host, Err: errors.New("no addresses")}
	}
	return addrs[0], nil
}

// Connected reports whether the stream is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// StreamTimeout returns the per-read/per-write bound.
func (t *Transport) StreamTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamTimeout
}

// SetStreamTimeout changes the per-read/per-write bound. Non-positive
// values restore the default.
func (t *Transport) SetStreamTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultStreamTimeout
	}
	t.mu.Lock()
	t.streamTimeout = d
	t.mu.Unlock()
}

// Close closes the stream. It is safe to call more than once; only the
// first call can report an error.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.reader = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	t.logger.Debug("transport closed", slog.String("host", t.host))
	if err := conn.Close(); err != nil && !isClosedConnError(err) {
		return &telnet.ConnectionError{Op: "close", Addr: t.Addr(), Err: err}
	}
	return nil
}

func (t *Transport) stream() (net.Conn, *bufio.Reader, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, nil, 0, &telnet.ConnectionError{Op: "use", Addr: t.Addr(), Err: errors.New("not connected")}
	}
	return t.conn, t.reader, t.streamTimeout, nil
}

// ReadByte returns the next byte. It returns io.EOF when the peer closed
// the stream and ErrWouldBlock when nothing arrived within the stream timeout.
func (t *Transport) ReadByte() (byte, error) {
	conn, r, timeout, err := t.stream()
	if err != nil {
		return 0, err
	}

	if r.Buffered() == 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}

	b, err := r.ReadByte()
	if err != nil {
		return 0, t.readError(err)
	}
	return b, nil
}

// WaitReadable blocks until at least one byte (or end of stream) can be
// read, or the stream timeout elapses. It consumes nothing.
func (t *Transport) WaitReadable() bool {
	conn, r, timeout, err := t.stream()
	if err != nil {
		return false
	}
	if r.Buffered() > 0 {
		return true
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	_, err = r.Peek(1)
	return err == nil || errors.Is(err, io.EOF)
}

// Drain returns whatever bytes are already available. It stops once the
// peer pauses for a few milliseconds, after limit has passed, or after
// MaxDrain bytes. A non-positive limit only takes what is buffered.
func (t *Transport) Drain(limit time.Duration) []byte {
	conn, r, _, err := t.stream()
	if err != nil {
		return nil
	}

	stop := time.Now().Add(limit)
	var out []byte
	for len(out) < MaxDrain {
		if n := r.Buffered(); n > 0 {
			n = min(n, MaxDrain-len(out))
			chunk, _ := r.Peek(n)
			out = append(out, chunk...)
			r.Discard(n)
			continue
		}

		wait := min(drainWait, time.Until(stop))
		if wait <= 0 {
			break
		}
		conn.SetReadDeadline(time.Now().Add(wait))
		if _, err := r.Peek(1); err != nil {
			break
		}
	}
	return out
}

// Write sends p, bounded by the stream timeout.
func (t *Transport) Write(p []byte) (int, error) {
	conn, _, timeout, err := t.stream()
	if err != nil {
		return 0, err
	}

	conn.SetWriteDeadline(time.Now().Add(timeout))
	n, err := conn.Write(p)
	if err != nil {
		return n, &telnet.WriteError{Err: err}
	}
	return n, nil
}

func (t *Transport) readError(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err):
		return ErrWouldBlock
	default:
		return &telnet.ConnectionError{Op: "read", Addr: t.Addr(), Err: err}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isClosedConnError matches the errors a second close of an already dead
// socket produces.
func isClosedConnError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed") ||
		strings.Contains(msg, "closed network connection")
}

// String implements fmt.Stringer for log lines.
func (t *Transport) String() string {
	return fmt.Sprintf("telnet://%s", t.Addr())
}
