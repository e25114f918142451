package security

import "crypto/rand"

// WipeBytes overwrites a byte slice with random data and then zeros.
func WipeBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	_, _ = rand.Read(data)
	clear(data)
}

// SecureBytes holds a private copy of a secret until Wipe is called.
type SecureBytes struct {
	data []byte
}

// NewSecureBytes creates a new SecureBytes with a copy of the data.
func NewSecureBytes(data []byte) *SecureBytes {
	return &SecureBytes{data: append([]byte(nil), data...)}
}

// Data returns the underlying byte slice.
func (sb *SecureBytes) Data() []byte {
	return sb.data
}

// String returns the secret as a string. The copy cannot be wiped.
func (sb *SecureBytes) String() string {
	return string(sb.data)
}

// Wipe wipes the data.
func (sb *SecureBytes) Wipe() {
	WipeBytes(sb.data)
	sb.data = nil
}

// Len returns the length of the data.
func (sb *SecureBytes) Len() int {
	return len(sb.data)
}
