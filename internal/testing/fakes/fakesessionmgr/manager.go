// Package fakesessionmgr provides a fake session manager for testing MCP handlers.
package fakesessionmgr

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/acolita/telnet-shell-mcp/internal/session"
)

// ErrNotConfigured is returned by Create when no CreateFunc is set.
var ErrNotConfigured = errors.New("fakesessionmgr: Create not configured")

// Manager is a fake session manager that stores pre-configured sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	closed   map[string]bool

	// Hooks for customizing behavior
	CreateFunc  func(opts session.CreateOptions) (*session.Session, error)
	CloseAllErr error

	closeAllCalls int
}

// New creates a new fake Manager.
func New() *Manager {
	return &Manager{
		sessions: make(map[string]*session.Session),
		closed:   make(map[string]bool),
	}
}

// AddSession adds a pre-configured session to the manager.
func (m *Manager) AddSession(sess *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
}

// Create delegates to CreateFunc and keeps the session it returns.
func (m *Manager) Create(opts session.CreateOptions) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateFunc == nil {
		return nil, ErrNotConfigured
	}
	sess, err := m.CreateFunc(opts)
	if err != nil {
		return nil, err
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || m.closed[id] {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess, nil
}

// Close closes a session by ID.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	m.closed[id] = true
	delete(m.sessions, id)
	return sess.Close()
}

// CloseAll closes every session and returns CloseAllErr.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeAllCalls++
	for id, sess := range m.sessions {
		sess.Close()
		m.closed[id] = true
		delete(m.sessions, id)
	}
	return m.CloseAllErr
}

// CloseAllCalls reports how often CloseAll ran.
func (m *Manager) CloseAllCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeAllCalls
}

// WasClosed reports whether the session was closed through the manager.
func (m *Manager) WasClosed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[id]
}

// List returns the status of every open session ordered by ID.
func (m *Manager) List() []session.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]session.Status, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
