package identity

import (
	"sync"
	"time"
)

// Session is a best-effort, non-durable verification gate. Sessions live in
// process memory only and are lost on restart; the JWT path is the durable
// alternative.
type Session struct {
	Token     string
	Verified  bool
	ExpiresAt time.Time
}

// SessionStore holds sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewSessionStore builds an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session), now: time.Now}
}

// WithClock overrides the store clock. Test hook.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// Put records a session for the token.
func (s *SessionStore) Put(token string, verified bool, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = Session{Token: token, Verified: verified, ExpiresAt: s.now().Add(ttl)}
}

// Get returns the session for the token. Expired sessions are dropped lazily.
func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if s.now().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return session, true
}

// Verified reports whether the token has a live, verified session.
func (s *SessionStore) Verified(token string) bool {
	session, ok := s.Get(token)
	return ok && session.Verified
}

// Drop removes the session for the token.
func (s *SessionStore) Drop(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
