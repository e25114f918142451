package recording

import (
	"path/filepath"
	"sync"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// DefaultDir returns the recording directory used when none is
// configured: a directory under the system temp dir.
func DefaultDir(fs ports.FileSystem) string {
	return filepath.Join(fs.TempDir(), "telnet-shell-mcp", "recordings")
}

// Manager opens recorders for sessions and tracks the open ones.
type Manager struct {
	mu        sync.RWMutex
	recorders map[string]*Recorder
	dir       string
	fs        ports.FileSystem
	clock     ports.Clock
}

// NewManager creates a recording manager writing under dir. An empty dir
// selects DefaultDir.
func NewManager(dir string, fs ports.FileSystem, clock ports.Clock) *Manager {
	if dir == "" {
		dir = DefaultDir(fs)
	}
	return &Manager{
		recorders: make(map[string]*Recorder),
		dir:       dir,
		fs:        fs,
		clock:     clock,
	}
}

// Dir returns the directory recordings are written to.
func (m *Manager) Dir() string {
	return m.dir
}

// Open starts a recording for a session. A recording already open for the
// same session is closed first.
func (m *Manager) Open(sessionID, title string) (*Recorder, error) {
	m.mu.Lock()
	existing := m.recorders[sessionID]
	m.mu.Unlock()
	if existing != nil {
		existing.Close()
	}

	rec, err := NewRecorder(m.dir, sessionID, title, m.fs, m.clock)
	if err != nil {
		return nil, err
	}
	rec.onClose = func() { m.forget(sessionID, rec) }

	m.mu.Lock()
	m.recorders[sessionID] = rec
	m.mu.Unlock()
	return rec, nil
}

func (m *Manager) forget(sessionID string, rec *Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorders[sessionID] == rec {
		delete(m.recorders, sessionID)
	}
}

// Path returns the recording file of an open session recording.
func (m *Manager) Path(sessionID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, ok := m.recorders[sessionID]; ok {
		return rec.Path()
	}
	return ""
}

// Count returns the number of open recordings.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recorders)
}

// CloseAll closes every open recording.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	open := make([]*Recorder, 0, len(m.recorders))
	for _, rec := range m.recorders {
		open = append(open, rec)
	}
	m.mu.RUnlock()

	for _, rec := range open {
		rec.Close()
	}
}
