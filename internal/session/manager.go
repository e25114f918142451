package session

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/acolita/telnet-shell-mcp/internal/adapters/realrand"
	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// DefaultMaxSessions bounds the sessions a Manager holds when unset.
const DefaultMaxSessions = 10

// RecorderFactory opens a recorder for a new session.
type RecorderFactory func(sessionID, host string) (Recorder, error)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	MaxSessions int

	// Defaults are applied to every session. Per-session fields in
	// CreateOptions override them.
	Defaults Options

	// NewRecorder, when set, gives each session a recorder.
	NewRecorder RecorderFactory

	Random ports.Random
	Logger *slog.Logger
}

// Manager manages telnet sessions.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	opts     ManagerOptions
}

// NewManager creates a new session manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Random == nil {
		opts.Random = realrand.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Defaults.Logger == nil {
		opts.Defaults.Logger = opts.Logger
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// SetDefaults replaces the options applied to sessions created from now
// on. Existing sessions keep theirs.
func (m *Manager) SetDefaults(d Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Logger == nil {
		d.Logger = m.opts.Logger
	}
	m.opts.Defaults = d
}

// CreateOptions defines options for creating a session.
type CreateOptions struct {
	Host    string
	Port    int
	EOL     string
	Charset string
}

// Create creates a disconnected session. The caller connects it.
func (m *Manager) Create(c CreateOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.opts.MaxSessions {
		return nil, fmt.Errorf("max sessions reached (%d)", m.opts.MaxSessions)
	}
	if c.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	id, err := m.generateID()
	if err != nil {
		return nil, err
	}

	opts := m.opts.Defaults
	opts.ID = id
	opts.Host = c.Host
	if c.Port != 0 {
		opts.Port = c.Port
	}
	if c.EOL != "" {
		opts.EOL = c.EOL
	}
	if c.Charset != "" {
		opts.Charset = c.Charset
	}

	if m.opts.NewRecorder != nil {
		rec, err := m.opts.NewRecorder(id, c.Host)
		if err != nil {
			return nil, fmt.Errorf("create recorder: %w", err)
		}
		opts.Recorder = rec
	}

	sess, err := New(opts)
	if err != nil {
		if opts.Recorder != nil {
			opts.Recorder.Close()
		}
		return nil, err
	}

	m.sessions[id] = sess
	m.opts.Logger.Info("session created", slog.String("session_id", id), slog.String("host", c.Host))
	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess, nil
}

// Close closes and removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	return sess.Close()
}

// CloseAll closes every session and returns the first error.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var first error
	for _, sess := range sessions {
		if err := sess.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// List returns the status of every session, oldest first.
func (m *Manager) List() []Status {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SessionCount returns the number of sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) generateID() (string, error) {
	b := make([]byte, 8)
	for range 3 {
		if _, err := m.opts.Random.Read(b); err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		id := "tel_" + hex.EncodeToString(b)
		if _, taken := m.sessions[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate session id: collision")
}
