package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/logging"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
	"github.com/acolita/telnet-shell-mcp/internal/transport"
)

// ReadUntil reads until pattern matches the end of the output. The active
// prompt is left unchanged. An empty pattern reads until the stream goes
// quiet.
func (s *Session) ReadUntil(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" {
		return s.readUntil(nil, "")
	}
	re, err := compilePrompt(pattern)
	if err != nil {
		return err
	}
	return s.readUntil(re, pattern)
}

// WaitPrompt reads until the active prompt matches.
func (s *Session) WaitPrompt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitPrompt()
}

func (s *Session) waitPrompt() error {
	return s.readUntil(s.prompt, s.promptSource)
}

// readUntil collects bytes into the command buffer until prompt matches
// its tail. Control sequences are answered and never buffered. Without a
// prompt the read succeeds once the stream goes quiet or ends. With one,
// a quiet or closed stream and a passed command deadline are timeouts.
func (s *Session) readUntil(prompt *regexp.Regexp, source string) error {
	s.buf.Reset()
	s.touch()

	s.transport.WaitReadable()

	start := s.clock.Now()
	deadline := start.Add(s.commandTimeout)

	for {
		if s.clock.Now().After(deadline) {
			s.recordOutput(nil)
			return s.timeoutError(source, start)
		}

		b, err := s.transport.ReadByte()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			s.logger.Debug("stream closed by peer", slog.Int("bytes", s.buf.Len()))
			s.recordOutput(nil)
			if prompt == nil {
				return nil
			}
			return s.timeoutError(source, start)
		case errors.Is(err, transport.ErrWouldBlock):
			noise := s.drain(deadline)
			s.recordOutput(noise)
			if prompt == nil {
				return nil
			}
			return s.timeoutError(source, start)
		default:
			s.recordOutput(nil)
			return err
		}

		if b == telnet.IAC {
			if s.delay > 0 {
				s.clock.Sleep(s.delay)
			}
			if err := s.negotiator.Handle(s.transport); err != nil {
				s.recordOutput(nil)
				return err
			}
			continue
		}

		s.buf.WriteByte(b)
		s.transcript.AppendByte(b)

		if prompt != nil && s.matches(prompt) {
			noise := s.drain(deadline)
			s.recordOutput(noise)
			if s.logger.Enabled(context.Background(), slog.LevelDebug) {
				s.logger.Debug("prompt matched",
					slog.String("prompt", source),
					logging.Traffic("tail", s.buf.tail()),
					slog.Int("discarded", len(noise)),
				)
			}
			return nil
		}
	}
}

func (s *Session) matches(prompt *regexp.Regexp) bool {
	tail := s.buf.tail()
	if s.charset == nil {
		return prompt.Match(tail)
	}
	return prompt.MatchString(s.charset.decode(tail))
}

// drain discards whatever is immediately available. It was read from the
// socket, so it still belongs in the transcript.
// drain discards output that follows a match, for at most one stream
// timeout and never past deadline.
func (s *Session) drain(deadline time.Time) []byte {
	limit := min(s.transport.StreamTimeout(), deadline.Sub(s.clock.Now()))
	noise := s.transport.Drain(limit)
	if len(noise) > 0 {
		s.transcript.Append(noise)
	}
	return noise
}

func (s *Session) timeoutError(source string, start time.Time) error {
	err := &telnet.TimeoutError{
		Pattern: source,
		Partial: bytes.Clone(s.buf.Bytes()),
		Elapsed: s.clock.Now().Sub(start),
	}
	s.logger.Warn("prompt not matched",
		slog.String("prompt", source),
		slog.Int("bytes", len(err.Partial)),
		slog.Duration("elapsed", err.Elapsed),
	)
	return err
}

// recordOutput passes what this read received to the recorder.
func (s *Session) recordOutput(noise []byte) {
	if s.recorder == nil {
		return
	}
	out := s.charset.decode(append(bytes.Clone(s.buf.Bytes()), noise...))
	if out == "" {
		return
	}
	if err := s.recorder.RecordOutput(out); err != nil {
		s.logger.Warn("recording output failed", slog.String("error", err.Error()))
	}
}
