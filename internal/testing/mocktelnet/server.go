// Package mocktelnet provides a scripted telnet device for testing. It
// listens on loopback, runs an optional login conversation, answers
// commands from a table and records what the client sent.
package mocktelnet

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// Handler writes the reply to one command. The prompt is written after it
// returns unless the handler reports false.
type Handler func(w io.Writer) (prompt bool)

// Negotiation is one control sequence received from the client.
type Negotiation struct {
	Verb   byte
	Option byte
}

// Server is a mock telnet device.
type Server struct {
	listener net.Listener
	addr     string

	greeting       []byte
	login          bool
	usernamePrompt string
	passwordPrompt string
	prompt         string
	users          map[string]string
	commands       map[string]Handler

	mu           sync.Mutex
	received     []byte
	lines        []string
	negotiations []Negotiation
	conns        []net.Conn

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// Option configures the mock server.
type Option func(*Server)

// WithGreeting sends raw bytes as soon as a client connects.
func WithGreeting(b []byte) Option {
	return func(s *Server) { s.greeting = append(s.greeting, b...) }
}

// WithLogin enables the login conversation with the given prompts.
func WithLogin(usernamePrompt, passwordPrompt string) Option {
	return func(s *Server) {
		s.login = true
		s.usernamePrompt = usernamePrompt
		s.passwordPrompt = passwordPrompt
	}
}

// WithUser adds a user/password pair accepted by the login conversation.
func WithUser(username, password string) Option {
	return func(s *Server) { s.users[username] = password }
}

// WithPrompt sets the shell prompt.
func WithPrompt(prompt string) Option {
	return func(s *Server) { s.prompt = prompt }
}

// WithReply answers cmd with output followed by the prompt.
func WithReply(cmd, output string) Option {
	return WithHandler(cmd, func(w io.Writer) bool {
		io.WriteString(w, output)
		return true
	})
}

// WithSilence makes cmd produce nothing at all, not even a prompt.
func WithSilence(cmd string) Option {
	return WithHandler(cmd, func(io.Writer) bool { return false })
}

// WithHandler answers cmd with a custom handler.
func WithHandler(cmd string, h Handler) Option {
	return func(s *Server) { s.commands[cmd] = h }
}

// New starts a mock server on 127.0.0.1.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		prompt:   "router#",
		users:    map[string]string{"test": "test"},
		commands: make(map[string]Handler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	s.wg.Add(1)
	go s.acceptLoop()

	slog.Debug("mock telnet server started", slog.String("addr", s.addr))
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
}

// Host returns the host part of the address.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr)
	return host
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.addr)
	n, _ := strconv.Atoi(port)
	return n
}

// Received returns every byte the clients sent, control sequences included.
func (s *Server) Received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.received...)
}

// Lines returns the lines the clients sent, without line endings.
func (s *Server) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Negotiations returns the control sequences the clients sent.
func (s *Server) Negotiations() []Negotiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Negotiation(nil), s.negotiations...)
}

// Close shuts down the server and every open connection. Later calls
// return the first result.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.listener.Close()

		s.mu.Lock()
		for _, c := range s.conns {
			c.Close()
		}
		s.conns = nil
		s.mu.Unlock()

		s.wg.Wait()
	})
	return s.closeErr
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Debug("accept error", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := &lineReader{s: s, r: bufio.NewReader(conn)}

	if len(s.greeting) > 0 {
		if _, err := conn.Write(s.greeting); err != nil {
			return
		}
	}

	if s.login && !s.runLogin(conn, r) {
		return
	}

	if _, err := io.WriteString(conn, s.prompt); err != nil {
		return
	}

	for {
		line, err := r.readLine()
		if err != nil {
			return
		}

		switch line {
		case "exit", "logout", "quit":
			return
		}

		h, ok := s.commands[line]
		if !ok {
			h = func(w io.Writer) bool {
				if line != "" {
					fmt.Fprintf(w, "%% Unknown command: %s\r\n", line)
				}
				return true
			}
		}

		// Devices echo the command line back.
		if line != "" {
			io.WriteString(conn, line+"\r\n")
		}
		if h(conn) {
			if _, err := io.WriteString(conn, s.prompt); err != nil {
				return
			}
		}
	}
}

func (s *Server) runLogin(conn net.Conn, r *lineReader) bool {
	if _, err := io.WriteString(conn, s.usernamePrompt); err != nil {
		return false
	}
	user, err := r.readLine()
	if err != nil {
		return false
	}
	if _, err := io.WriteString(conn, s.passwordPrompt); err != nil {
		return false
	}
	pass, err := r.readLine()
	if err != nil {
		return false
	}

	if want, ok := s.users[user]; !ok || want != pass {
		io.WriteString(conn, "\r\nLogin incorrect\r\n")
		return false
	}
	_, err = io.WriteString(conn, "\r\n")
	return err == nil
}

// lineReader reads client lines, recording control sequences on the side.
type lineReader struct {
	s *Server
	r *bufio.Reader
}

func (l *lineReader) readByte() (byte, error) {
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, err
	}
	l.s.mu.Lock()
	l.s.received = append(l.s.received, b)
	l.s.mu.Unlock()
	return b, nil
}

func (l *lineReader) readLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := l.readByte()
		if err != nil {
			return "", err
		}

		switch b {
		case telnet.IAC:
			verb, err := l.readByte()
			if err != nil {
				return "", err
			}
			opt, err := l.readByte()
			if err != nil {
				return "", err
			}
			l.s.mu.Lock()
			l.s.negotiations = append(l.s.negotiations, Negotiation{Verb: verb, Option: opt})
			l.s.mu.Unlock()
		case '\r':
		case '\n':
			line := sb.String()
			l.s.mu.Lock()
			l.s.lines = append(l.s.lines, line)
			l.s.mu.Unlock()
			return line, nil
		default:
			sb.WriteByte(b)
		}
	}
}
