// Package session implements the telnet session engine: prompt-driven
// reads over a transport, transparent option refusal, and the command
// buffer and transcript that hold what was exchanged.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"sync"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/adapters/realclock"
	"github.com/acolita/telnet-shell-mcp/internal/ports"
	"github.com/acolita/telnet-shell-mcp/internal/profile"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
	"github.com/acolita/telnet-shell-mcp/internal/transport"
)

// State represents the connection state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
)

// DefaultEOL is sent after every command unless configured otherwise.
const DefaultEOL = "\r\n"

// DefaultPrompt is active until SetPrompt or a login replaces it.
const DefaultPrompt = `\$`

// ErrCommandBlocked is returned by Exec for commands the policy refuses.
var ErrCommandBlocked = errors.New("command blocked")

// CommandPolicy decides whether a command may be sent.
type CommandPolicy interface {
	IsAllowed(command string) (bool, string)
}

// Recorder receives the session's traffic for on-disk recording.
type Recorder interface {
	RecordOutput(data string) error
	RecordInput(data string) error
	RecordMaskedInput(length int) error
	Close() error
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	ID   string
	Host string
	Port int

	// ConnectTimeout bounds connecting. It also bounds the total wait for a
	// prompt unless CommandTimeout is set.
	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	// StreamTimeout bounds each single read or write.
	StreamTimeout time.Duration

	EOL        string
	KeepPrompt bool   // keep the trailing prompt line in Buffer
	Charset    string // IANA name; empty means the bytes are used as-is

	Catalog  *profile.Catalog
	Policy   CommandPolicy
	Recorder Recorder

	Dialer   ports.NetworkDialer
	Resolver ports.Resolver
	Clock    ports.Clock
	Logger   *slog.Logger
}

// Session is one telnet connection to a device.
type Session struct {
	ID        string
	Host      string
	Port      int
	CreatedAt time.Time

	mu             sync.Mutex
	state          State
	lastUsed       time.Time
	profileName    string
	transport      *transport.Transport
	negotiator     *telnet.Negotiator
	commandTimeout time.Duration
	eol            string
	stripPrompt    bool
	delay          time.Duration
	prompt         *regexp.Regexp
	promptSource   string
	charset        *charset
	buf            commandBuffer
	transcript     *Transcript
	catalog        *profile.Catalog
	policy         CommandPolicy
	recorder       Recorder
	clock          ports.Clock
	logger         *slog.Logger
}

// New creates a disconnected session.
func New(opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = realclock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = profile.NewCatalog()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = transport.DefaultConnectTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = opts.ConnectTimeout
	}
	if opts.EOL == "" {
		opts.EOL = DefaultEOL
	}
	if opts.Port == 0 {
		opts.Port = transport.DefaultPort
	}

	cs, err := newCharset(opts.Charset)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With(
		slog.String("session_id", opts.ID),
		slog.String("host", opts.Host),
	)

	s := &Session{
		ID:             opts.ID,
		Host:           opts.Host,
		Port:           opts.Port,
		CreatedAt:      opts.Clock.Now(),
		state:          StateDisconnected,
		commandTimeout: opts.CommandTimeout,
		eol:            opts.EOL,
		stripPrompt:    !opts.KeepPrompt,
		charset:        cs,
		transcript:     &Transcript{},
		catalog:        opts.Catalog,
		policy:         opts.Policy,
		recorder:       opts.Recorder,
		clock:          opts.Clock,
		logger:         logger,
	}
	s.lastUsed = s.CreatedAt

	s.transport = transport.New(transport.Options{
		Host:           opts.Host,
		Port:           opts.Port,
		ConnectTimeout: opts.ConnectTimeout,
		StreamTimeout:  opts.StreamTimeout,
		Dialer:         opts.Dialer,
		Resolver:       opts.Resolver,
		Logger:         logger,
	})
	s.negotiator = telnet.NewNegotiator(replyWriter{s}, logger)

	if err := s.setRegexPrompt(DefaultPrompt); err != nil {
		return nil, err
	}

	// An abandoned session must not leak its socket. Transport.Close is
	// idempotent, so an explicit Disconnect beforehand is harmless.
	runtime.AddCleanup(s, func(t *transport.Transport) { t.Close() }, s.transport)

	return s, nil
}

// Connect opens the connection.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transport.Connect(ctx); err != nil {
		s.logger.Warn("connect failed", slog.String("error", err.Error()))
		return err
	}
	s.state = StateConnected
	s.touch()

	s.logger.Info("session connected", slog.Int("port", s.Port))
	return nil
}

// Disconnect closes the connection. Calling it again is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnect()
}

func (s *Session) disconnect() error {
	if s.state == StateDisconnected {
		return nil
	}
	s.state = StateDisconnected
	s.logger.Info("session disconnected")
	return s.transport.Close()
}

// Close disconnects and releases the recorder.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.disconnect()
	if s.recorder != nil {
		if rerr := s.recorder.Close(); rerr != nil && err == nil {
			err = fmt.Errorf("close recorder: %w", rerr)
		}
		s.recorder = nil
	}
	return err
}

// State returns the connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetPrompt makes a literal string the active prompt.
func (s *Session) SetPrompt(literal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A quoted literal always compiles.
	_ = s.setRegexPrompt(regexp.QuoteMeta(literal))
}

// SetRegexPrompt makes a regular expression the active prompt. It is
// matched against the end of the received output. An empty pattern
// disables prompt matching: reads then end when the stream goes quiet.
func (s *Session) SetRegexPrompt(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRegexPrompt(pattern)
}

func (s *Session) setRegexPrompt(pattern string) error {
	if pattern == "" {
		s.prompt = nil
		s.promptSource = ""
		return nil
	}

	re, err := compilePrompt(pattern)
	if err != nil {
		return err
	}
	s.prompt = re
	s.promptSource = pattern
	return nil
}

// compilePrompt anchors pattern at the end of the text.
func compilePrompt(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid prompt pattern %q: %v", telnet.ErrConfiguration, pattern, err)
	}
	return re, nil
}

// Prompt returns the active prompt pattern, or "" if none.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptSource
}

// SetStreamTimeout changes the bound on each single read or write.
func (s *Session) SetStreamTimeout(d time.Duration) {
	s.transport.SetStreamTimeout(d)
}

// SetCommandTimeout changes the bound on the total wait for a prompt.
func (s *Session) SetCommandTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.commandTimeout = d
	s.mu.Unlock()
}

// SetDelay sets the pause taken before answering each negotiation, for
// devices that cannot keep up.
func (s *Session) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// SetEOL changes the end-of-line sequence sent after commands.
func (s *Session) SetEOL(eol string) {
	s.mu.Lock()
	s.eol = eol
	s.mu.Unlock()
}

// StripPromptFromBuffer controls whether Buffer drops its last line.
func (s *Session) StripPromptFromBuffer(strip bool) {
	s.mu.Lock()
	s.stripPrompt = strip
	s.mu.Unlock()
}

// Status returns a snapshot of the session for listings.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		ID:              s.ID,
		Host:            s.Host,
		Port:            s.Port,
		State:           s.state,
		Profile:         s.profileName,
		Prompt:          s.promptSource,
		BufferBytes:     s.buf.Len(),
		TranscriptBytes: s.transcript.Len(),
		CreatedAt:       s.CreatedAt,
		LastUsed:        s.lastUsed,
	}
}

func (s *Session) touch() {
	s.lastUsed = s.clock.Now()
}

// Status is a point-in-time view of a session.
type Status struct {
	ID              string    `json:"session_id"`
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	State           State     `json:"state"`
	Profile         string    `json:"profile,omitempty"`
	Prompt          string    `json:"prompt"`
	BufferBytes     int       `json:"buffer_bytes"`
	TranscriptBytes int       `json:"transcript_bytes"`
	CreatedAt       time.Time `json:"created_at"`
	LastUsed        time.Time `json:"last_used"`
}
