// Package fakerand provides a predictable Random so session IDs are known
// in advance.
package fakerand

import (
	"sync"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Random replays a byte sequence in a loop, or fails every read.
type Random struct {
	mu       sync.Mutex
	sequence []byte
	offset   int
	err      error
}

// NewSequential yields 0, 1, ..., 255 and starts over.
func NewSequential() *Random {
	seq := make([]byte, 256)
	for i := range seq {
		seq[i] = byte(i)
	}
	return &Random{sequence: seq}
}

// NewFixed repeats b forever, so every ID drawn from it is the same.
func NewFixed(b []byte) *Random {
	return &Random{sequence: append([]byte(nil), b...)}
}

// NewFailing returns err from every Read.
func NewFailing(err error) *Random {
	return &Random{err: err}
}

func (r *Random) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return 0, r.err
	}
	for i := range b {
		b[i] = r.sequence[r.offset%len(r.sequence)]
		r.offset++
	}
	return len(b), nil
}

var _ ports.Random = (*Random)(nil)
