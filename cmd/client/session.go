package client

import (
	"sync"
	"time"
)

// Session is the cached access token. ExpiresAt is fixed at issuance
// (now + server-declared lifetime) and never derived from the token.
type Session struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the session is stale at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore holds at most one session.
type SessionStore interface {
	Get() (Session, bool)
	Set(token, email string, expiresIn time.Duration) Session
	Clear()
}

// MemorySessionStore is a process-local SessionStore.
type MemorySessionStore struct {
	mu  sync.RWMutex
	cur *Session
	now func() time.Time
}

// NewMemorySessionStore uses now for expiry math; nil means time.Now.
func NewMemorySessionStore(now func() time.Time) *MemorySessionStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionStore{now: now}
}

func (m *MemorySessionStore) Get() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return Session{}, false
	}
	return *m.cur, true
}

func (m *MemorySessionStore) Set(token, email string, expiresIn time.Duration) Session {
	s := Session{
		Token:     token,
		Email:     email,
		ExpiresAt: m.now().Add(expiresIn),
	}
	m.mu.Lock()
	m.cur = &s
	m.mu.Unlock()
	return s
}

func (m *MemorySessionStore) Clear() {
	m.mu.Lock()
	m.cur = nil
	m.mu.Unlock()
}
