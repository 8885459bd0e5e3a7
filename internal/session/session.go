// Package session owns the lifetime of passphrase-derived key material:
// a Session is created on successful unlock, refreshed by every sensitive
// operation, and destroyed (keys zeroized) on explicit lock or idle timeout.
// A Session is never persisted.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/cryptox"
)

// DefaultTimeout is the idle window after which a session expires.
const DefaultTimeout = 30 * time.Minute

// Session holds the working key set for an unlocked vault.
//
// Every sensitive entry point must call Use() first: it fails with
// common.ErrSessionExpired (wiping the keys) once the idle timeout has
// elapsed, and otherwise resets the idle clock. Callers borrow the key
// material via Keys() for the duration of a call and must not retain it.
type Session struct {
	mu         sync.Mutex
	keys       *cryptox.KeyMaterial
	lastAccess time.Time
	timeout    time.Duration
	locked     bool

	nowFn func() time.Time // test seam
}

// New wraps freshly derived key material in a session. The session takes
// ownership of keys and is responsible for wiping them.
func New(keys *cryptox.KeyMaterial, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Session{keys: keys, timeout: timeout, nowFn: time.Now}
	s.lastAccess = s.nowFn()
	return s
}

// Use gates a sensitive operation. On success the idle clock is reset, so an
// operation performed just before the deadline keeps the session alive.
func (s *Session) Use() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return common.ErrVaultLocked
	}

	now := s.nowFn()
	if now.Sub(s.lastAccess) > s.timeout {
		s.wipeLocked()
		return fmt.Errorf("%w: idle for more than %s", common.ErrSessionExpired, s.timeout)
	}
	s.lastAccess = now
	return nil
}

// Expired reports whether the idle timeout has elapsed, without touching
// the clock or the keys.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked || s.nowFn().Sub(s.lastAccess) > s.timeout
}

// Keys returns the session's key material. The caller must have called Use()
// first and must not keep the reference beyond the current operation.
func (s *Session) Keys() *cryptox.KeyMaterial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

// Lock invalidates the session and zeroizes the key material. Safe to call
// more than once.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipeLocked()
}

func (s *Session) wipeLocked() {
	s.keys.Wipe()
	s.locked = true
}
