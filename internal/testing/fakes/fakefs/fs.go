// Package fakefs provides an in-memory FileSystem implementation for testing.
package fakefs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// FS is an in-memory filesystem for testing.
type FS struct {
	mu      sync.RWMutex
	files   map[string]*fakeFile
	dirs    map[string]bool
	homeDir string
	tempDir string
	env     map[string]string

	failWrites error
}

type fakeFile struct {
	data []byte
	mode fs.FileMode
}

// New creates a new in-memory filesystem.
func New() *FS {
	return &FS{
		files:   make(map[string]*fakeFile),
		dirs:    map[string]bool{"/": true, "/tmp": true},
		homeDir: "/home/test",
		tempDir: "/tmp",
		env:     make(map[string]string),
	}
}

// ReadFile reads the named file and returns its contents.
func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	name = filepath.Clean(name)
	file, ok := f.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	// Return a copy to prevent mutation
	data := make([]byte, len(file.data))
	copy(data, file.data)
	return data, nil
}

// WriteFile writes data to the named file, creating it if necessary.
// Parent directories are automatically created (like os.WriteFile with MkdirAll).
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)

	// Auto-create parent directories
	dir := filepath.Dir(name)
	f.mkdirAllLocked(dir)

	// Store a copy to prevent mutation
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	f.files[name] = &fakeFile{data: dataCopy, mode: perm}
	return nil
}

// mkdirAllLocked creates directories (must be called with lock held).
func (f *FS) mkdirAllLocked(path string) {
	path = filepath.Clean(path)
	parts := strings.Split(path, string(filepath.Separator))

	current := ""
	for _, part := range parts {
		if part == "" {
			current = "/"
			continue
		}
		if current == "/" {
			current = "/" + part
		} else {
			current = current + "/" + part
		}
		f.dirs[current] = true
	}
}

// MkdirAll creates a directory and all parent directories.
func (f *FS) MkdirAll(path string, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mkdirAllLocked(path)
	return nil
}

// UserHomeDir returns the configured home directory.
func (f *FS) UserHomeDir() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.homeDir, nil
}

// Getenv retrieves the value of the environment variable.
func (f *FS) Getenv(key string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.env[key]
}

// OpenFile opens a file for writing. O_CREATE, O_EXCL, O_TRUNC and
// O_APPEND are honored; writes land in the in-memory file as they happen.
func (f *FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)
	file, exists := f.files[name]

	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	case !exists && flag&os.O_CREATE == 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case !exists:
		if !f.dirs[filepath.Dir(name)] {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		file = &fakeFile{mode: perm}
		f.files[name] = file
	case flag&os.O_TRUNC != 0:
		file.data = nil
	}

	return &handle{fs: f, name: name, file: file, append: flag&os.O_APPEND != 0}, nil
}

// TempDir returns the configured temporary directory.
func (f *FS) TempDir() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tempDir
}

// handle is an open fake file.
type handle struct {
	fs     *FS
	name   string
	file   *fakeFile
	append bool
	offset int
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return 0, &fs.PathError{Op: "write", Path: h.name, Err: fs.ErrClosed}
	}
	if h.fs.failWrites != nil {
		return 0, h.fs.failWrites
	}
	if h.append {
		h.offset = len(h.file.data)
	}

	end := h.offset + len(p)
	if end > len(h.file.data) {
		grown := make([]byte, end)
		copy(grown, h.file.data)
		h.file.data = grown
	}
	copy(h.file.data[h.offset:], p)
	h.offset = end
	return len(p), nil
}

func (h *handle) Close() error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return &fs.PathError{Op: "close", Path: h.name, Err: fs.ErrClosed}
	}
	h.closed = true
	return nil
}

func (h *handle) Name() string { return h.name }

// --- Test helpers ---

// SetTempDir sets the directory returned by TempDir.
func (f *FS) SetTempDir(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tempDir = dir
	f.mkdirAllLocked(dir)
}

// FailWrites makes every write to an open handle return err. Pass nil to
// restore normal behavior.
func (f *FS) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = err
}

// AddFile adds a file, creating its parent directories.
func (f *FS) AddFile(name string, data []byte, mode fs.FileMode) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)
	f.mkdirAllLocked(filepath.Dir(name))
	f.files[name] = &fakeFile{data: append([]byte(nil), data...), mode: mode}
}

// SetHomeDir sets the home directory returned by UserHomeDir.
func (f *FS) SetHomeDir(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homeDir = dir
}

// SetEnv sets an environment variable.
func (f *FS) SetEnv(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.env[key] = value
}

// IsDir reports whether the directory exists.
func (f *FS) IsDir(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dirs[filepath.Clean(path)]
}

var _ ports.FileSystem = (*FS)(nil)
