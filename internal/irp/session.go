// Package irp talks to the government Invoice Registration Portal:
// authentication, payload encryption, IRN generation and response
// classification.
package irp

import (
	"sync"
	"time"
)

// Session holds the authentication state issued by the IRP: the auth
// token, the session encryption key (SEK) and the token expiry. Only
// Authenticate writes it; everything else reads.
type Session struct {
	mu        sync.RWMutex
	authToken string
	sek       []byte
	expiry    time.Time
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{}
}

// Valid reports whether the session holds an unexpired token and key
func (s *Session) Valid(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken != "" && len(s.sek) > 0 && now.Before(s.expiry)
}

// Set replaces the session state after a successful authentication
func (s *Session) Set(token string, sek []byte, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
	s.sek = sek
	s.expiry = expiry
}

// Reset clears the session. Called on logout and whenever credentials
// change, because tokens are bound to the credential pair.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = ""
	s.sek = nil
	s.expiry = time.Time{}
}

// Token returns the current auth token, empty when unauthenticated
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken
}

// SEK returns the current session encryption key
func (s *Session) SEK() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sek
}
