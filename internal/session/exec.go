package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/acolita/telnet-shell-mcp/internal/logging"
)

// Write sends cmd, followed by the end-of-line sequence if addNewline is
// set. The command buffer is cleared first.
func (s *Session) Write(cmd string, addNewline bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cmd, addNewline, false)
}

// Send writes text like Write. Masked text is starred out of the
// transcript, the recording and the logs.
func (s *Session) Send(text string, newline, masked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(text, newline, masked)
}

func (s *Session) write(text string, newline, masked bool) error {
	s.buf.Reset()
	s.touch()

	data := []byte(text)
	if newline {
		data = append(data, s.eol...)
	}

	if _, err := s.transport.Write(data); err != nil {
		return err
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) && !masked {
		s.logger.Debug("sent", logging.Traffic("data", data))
	}

	if masked {
		s.transcript.Append(maskBytes(len(text)))
		if newline {
			s.transcript.Append([]byte(s.eol))
		}
	} else {
		s.transcript.Append(data)
	}
	s.recordInput(data, masked)
	return nil
}

func maskBytes(n int) []byte {
	return bytes.Repeat([]byte{'*'}, n)
}

func (s *Session) recordInput(data []byte, masked bool) {
	if s.recorder == nil {
		return
	}
	var err error
	if masked {
		err = s.recorder.RecordMaskedInput(len(data))
	} else {
		err = s.recorder.RecordInput(string(data))
	}
	if err != nil {
		s.logger.Warn("recording input failed", slog.String("error", err.Error()))
	}
}

// Exec sends cmd, waits for the active prompt and returns the output.
func (s *Session) Exec(cmd string, addNewline bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(cmd, addNewline)
}

func (s *Session) exec(cmd string, addNewline bool) (string, error) {
	if s.policy != nil {
		if ok, reason := s.policy.IsAllowed(cmd); !ok {
			s.logger.Warn("command blocked", slog.String("reason", reason))
			return "", fmt.Errorf("%w: %s", ErrCommandBlocked, reason)
		}
	}

	s.logger.Debug("exec", slog.String("command", cmd))

	if err := s.write(cmd, addNewline, false); err != nil {
		return "", err
	}
	if err := s.waitPrompt(); err != nil {
		return "", err
	}
	return s.buffer(), nil
}

// Buffer returns the output of the last command with newlines normalized,
// trimmed, and with the trailing prompt line removed unless disabled.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer()
}

func (s *Session) buffer() string {
	return formatOutput(s.charset.decode(s.buf.Bytes()), s.stripPrompt)
}

// RawBuffer returns a copy of the command buffer bytes.
func (s *Session) RawBuffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// ClearBuffer empties the command buffer.
func (s *Session) ClearBuffer() {
	s.mu.Lock()
	s.buf.Reset()
	s.mu.Unlock()
}

// GlobalBuffer returns the whole transcript verbatim: every byte read and
// written, except masked input such as login passwords, which appears as
// one '*' per byte of the masked text.
func (s *Session) GlobalBuffer() string {
	return string(s.transcript.Bytes())
}

// replyWriter carries negotiation replies to the socket. It is only used
// from inside readUntil, so the session lock is already held.
type replyWriter struct {
	s *Session
}

func (w replyWriter) Write(p []byte) (int, error) {
	n, err := w.s.transport.Write(p)
	if err != nil {
		return n, err
	}
	w.s.transcript.Append(p)
	return n, nil
}
