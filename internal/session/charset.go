package session

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// charset decodes device output to UTF-8. A nil charset passes bytes
// through unchanged.
type charset struct {
	name string
	dec  *encoding.Decoder
}

func newCharset(name string) (*charset, error) {
	if name == "" {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown charset %q: %v", telnet.ErrConfiguration, name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: unsupported charset %q", telnet.ErrConfiguration, name)
	}
	return &charset{name: name, dec: enc.NewDecoder()}, nil
}

// decode returns p as UTF-8 text. Bytes that do not decode are replaced
// rather than failing the read.
func (c *charset) decode(p []byte) string {
	if c == nil {
		return string(p)
	}
	out, err := c.dec.Bytes(p)
	if err != nil {
		return string(p)
	}
	return string(out)
}

// String returns the charset name.
func (c *charset) String() string {
	if c == nil {
		return ""
	}
	return c.name
}
