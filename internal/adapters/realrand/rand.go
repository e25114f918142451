// Package realrand reads session ID bytes from crypto/rand.
package realrand

import (
	"crypto/rand"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Random is backed by the operating system's CSPRNG.
type Random struct{}

func New() *Random { return &Random{} }

func (Random) Read(b []byte) (int, error) { return rand.Read(b) }

var _ ports.Random = (*Random)(nil)
