package security

import (
	"sync"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// DefaultCredentialTTL is how long a password used for a successful login
// stays cached for later sessions to the same device.
const DefaultCredentialTTL = 10 * time.Minute

type cachedSecret struct {
	secret    *SecureBytes
	expiresAt time.Time
}

// CredentialCache keeps recently used device passwords in memory keyed by
// user@host. Expired entries are wiped on access.
type CredentialCache struct {
	mu      sync.Mutex
	entries map[string]*cachedSecret
	ttl     time.Duration
	clock   ports.Clock
}

// NewCredentialCache creates a cache with the given TTL.
func NewCredentialCache(ttl time.Duration, clock ports.Clock) *CredentialCache {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	return &CredentialCache{
		entries: make(map[string]*cachedSecret),
		ttl:     ttl,
		clock:   clock,
	}
}

// Set stores a copy of password for user@host, replacing any earlier entry.
func (c *CredentialCache) Set(host, user string, password []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Account(host, user)
	if old, ok := c.entries[k]; ok {
		old.secret.Wipe()
	}
	c.entries[k] = &cachedSecret{
		secret:    NewSecureBytes(password),
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Get returns a copy of the cached password, or nil if absent or expired.
func (c *CredentialCache) Get(host, user string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Account(host, user)
	e, ok := c.entries[k]
	if !ok {
		return nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		e.secret.Wipe()
		delete(c.entries, k)
		return nil
	}
	return append([]byte(nil), e.secret.Data()...)
}

// ExpiresIn returns the time left for user@host, or 0.
func (c *CredentialCache) ExpiresIn(host, user string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[Account(host, user)]
	if !ok {
		return 0
	}
	return max(e.expiresAt.Sub(c.clock.Now()), 0)
}

// Forget wipes and removes the entry for user@host.
func (c *CredentialCache) Forget(host, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Account(host, user)
	if e, ok := c.entries[k]; ok {
		e.secret.Wipe()
		delete(c.entries, k)
	}
}

// Len returns the number of entries, expired ones included.
func (c *CredentialCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ClearAll wipes every entry.
func (c *CredentialCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.secret.Wipe()
	}
	c.entries = make(map[string]*cachedSecret)
}
