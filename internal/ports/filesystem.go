package ports

import (
	"io"
	"io/fs"
)

// FileSystem abstracts file operations for testing.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// UserHomeDir returns the current user's home directory.
	UserHomeDir() (string, error)

	// Getenv retrieves the value of the environment variable named by the key.
	Getenv(key string) string

	// OpenFile opens the named file with the given flags and permissions.
	OpenFile(name string, flag int, perm fs.FileMode) (FileHandle, error)

	// TempDir returns the directory used for ephemeral files.
	TempDir() string
}

// FileHandle is the subset of *os.File used for streaming writes.
type FileHandle interface {
	io.Writer
	io.Closer

	// Name returns the path the handle was opened with.
	Name() string
}
