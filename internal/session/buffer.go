package session

import (
	"bytes"
	"strings"
	"sync"
)

// matchWindow is how much of the command buffer tail the prompt is
// matched against. Prompts are a single short line.
const matchWindow = 512

// commandBuffer holds the bytes received since it was last cleared, with
// every control sequence removed.
type commandBuffer struct {
	bytes.Buffer
}

// tail returns the trailing window used for prompt matching.
func (b *commandBuffer) tail() []byte {
	p := b.Bytes()
	if len(p) > matchWindow {
		p = p[len(p)-matchWindow:]
	}
	return p
}

// Transcript is an append-only log of every byte written to or read from
// the connection.
type Transcript struct {
	mu   sync.Mutex
	data []byte
}

// Append adds p to the end of the transcript.
func (t *Transcript) Append(p []byte) {
	t.mu.Lock()
	t.data = append(t.data, p...)
	t.mu.Unlock()
}

// AppendByte adds a single byte.
func (t *Transcript) AppendByte(b byte) {
	t.mu.Lock()
	t.data = append(t.data, b)
	t.mu.Unlock()
}

// Bytes returns a copy of the transcript.
func (t *Transcript) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.data)
}

// Len returns the transcript size in bytes.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}

// newlineReplacer turns CRLF, CR NUL and bare CR into LF.
var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r\x00", "\n", "\r", "\n")

// trimSet matches the characters a device pads output with.
const trimSet = " \t\n\r\x00\x0b"

// formatOutput turns raw command output into the text handed to callers.
// With stripPrompt the last line, holding the echoed prompt, is dropped.
func formatOutput(text string, stripPrompt bool) string {
	text = newlineReplacer.Replace(text)
	if stripPrompt {
		if i := strings.LastIndexByte(text, '\n'); i >= 0 {
			text = text[:i]
		} else {
			text = ""
		}
	}
	return strings.Trim(text, trimSet)
}
