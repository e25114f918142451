package mcp

import (
	"context"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/expect"
	"github.com/acolita/telnet-shell-mcp/internal/session"
)

// sessionManager abstracts session lifecycle management for testing.
type sessionManager interface {
	Create(opts session.CreateOptions) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Close(id string) error
	CloseAll() error
	List() []session.Status
}

// managedSession lists the operations MCP handlers call on a session.
type managedSession interface {
	Connect(ctx context.Context) error
	Login(username, password, profileName string) error
	Exec(cmd string, addNewline bool) (string, error)
	RunScript(script *expect.Script) error

	SetPrompt(literal string)
	SetRegexPrompt(pattern string) error
	SetCommandTimeout(d time.Duration)

	Buffer() string
	GlobalBuffer() string
	Status() session.Status

	Close() error
}

// passwordStore is the keyring subset used to look up device passwords.
type passwordStore interface {
	GetDevicePassword(host, user string) ([]byte, error)
}

// Verify concrete types satisfy the interfaces at compile time.
var (
	_ sessionManager = (*session.Manager)(nil)
	_ managedSession = (*session.Session)(nil)
)
