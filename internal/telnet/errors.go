package telnet

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Errors returned by the transport and session layers match
// one of these with errors.Is. A LoginError also matches its cause.
var (
	ErrConnection    = errors.New("connection error")
	ErrWrite         = errors.New("write error")
	ErrTimeout       = errors.New("timeout")
	ErrProtocol      = errors.New("unexpected control sequence")
	ErrConfiguration = errors.New("configuration error")
	ErrLogin         = errors.New("login failed")
)

// ConnectionError reports a resolve, dial, close, or closed-transport failure.
type ConnectionError struct {
	Op   string // "resolve", "dial", "close", "read", "write"
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Addr, ErrConnection)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Addr, ErrConnection, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// WriteError reports a socket write failure on an established connection.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("%s: %v", ErrWrite, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Is reports whether target is ErrWrite.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// TimeoutError reports a prompt that never matched. Partial holds whatever
// was collected in the command buffer before giving up.
type TimeoutError struct {
	Pattern string
	Partial []byte
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s waiting for prompt %q (%d bytes received)",
		ErrTimeout, e.Elapsed.Round(time.Millisecond), e.Pattern, len(e.Partial))
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ProtocolError reports an IAC followed by a byte that is not a negotiation verb.
type ProtocolError struct {
	Verb byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: IAC %s", ErrProtocol, VerbName(e.Verb))
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// LoginError wraps any failure during a login sequence. The message stays
// generic; the cause is still reachable through errors.Is and errors.As.
type LoginError struct {
	Profile string
	Step    string
	Err     error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("%s (profile %s)", ErrLogin, e.Profile)
}

func (e *LoginError) Unwrap() error { return e.Err }

// Is reports whether target is ErrLogin.
func (e *LoginError) Is(target error) bool { return target == ErrLogin }
