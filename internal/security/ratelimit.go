package security

import (
	"sync"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// AuthRateLimiter tracks login failures per user@host and enforces lockout.
type AuthRateLimiter struct {
	mu              sync.Mutex
	failures        map[string]*authFailure
	maxFailures     int
	lockoutDuration time.Duration
	clock           ports.Clock
}

type authFailure struct {
	count     int
	firstFail time.Time
	lockedAt  time.Time
}

// DefaultMaxAuthFailures is the default number of failures before lockout.
const DefaultMaxAuthFailures = 5

// DefaultAuthLockoutDuration is the default lockout duration.
const DefaultAuthLockoutDuration = 15 * time.Minute

// NewAuthRateLimiter creates a new auth rate limiter.
func NewAuthRateLimiter(maxFailures int, lockoutDuration time.Duration, clock ports.Clock) *AuthRateLimiter {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxAuthFailures
	}
	if lockoutDuration <= 0 {
		lockoutDuration = DefaultAuthLockoutDuration
	}

	return &AuthRateLimiter{
		failures:        make(map[string]*authFailure),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
		clock:           clock,
	}
}

// Account formats the user@host key shared by the limiter and the keyring.
func Account(host, user string) string {
	return user + "@" + host
}

// IsLocked checks if login is locked for the given host/user.
func (r *AuthRateLimiter) IsLocked(host, user string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.failures[Account(host, user)]
	if !ok || f.lockedAt.IsZero() {
		return false, 0
	}

	elapsed := r.clock.Now().Sub(f.lockedAt)
	if elapsed >= r.lockoutDuration {
		return false, 0
	}
	return true, r.lockoutDuration - elapsed
}

// RecordFailure records a login failure.
func (r *AuthRateLimiter) RecordFailure(host, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	k := Account(host, user)
	f, ok := r.failures[k]
	if !ok {
		f = &authFailure{firstFail: now}
		r.failures[k] = f
	}

	// Expired lockout starts a fresh window
	if !f.lockedAt.IsZero() && now.Sub(f.lockedAt) >= r.lockoutDuration {
		f.count = 0
		f.firstFail = now
		f.lockedAt = time.Time{}
	}

	f.count++
	if f.count >= r.maxFailures {
		f.lockedAt = now
	}
}

// RecordSuccess records a successful login, resetting the failure count.
func (r *AuthRateLimiter) RecordSuccess(host, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, Account(host, user))
}

// Failures returns the current failure count for host/user.
func (r *AuthRateLimiter) Failures(host, user string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.failures[Account(host, user)]; ok {
		return f.count
	}
	return 0
}

// Cleanup removes expired entries.
func (r *AuthRateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for k, f := range r.failures {
		if !f.lockedAt.IsZero() && now.Sub(f.lockedAt) >= r.lockoutDuration {
			delete(r.failures, k)
			continue
		}
		// No recent activity
		if now.Sub(f.firstFail) >= 2*r.lockoutDuration {
			delete(r.failures, k)
		}
	}
}
