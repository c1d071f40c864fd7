package hubclient

import (
	"sync"
	"time"
)

// Pair is the credential set of one session domain. Token, CSRF, and expiry
// always originate from the same server response.
type Pair struct {
	Token     string
	CSRF      string
	ExpiresAt time.Time
}

// TokenStore holds the credentials of a single session domain (hub or admin).
// The pair is replaced as a whole: readers can never observe a fresh token
// next to a stale CSRF or expiry.
type TokenStore struct {
	mu   sync.RWMutex
	pair Pair
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// SetPair atomically replaces the full credential set.
func (s *TokenStore) SetPair(token, csrf string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{Token: token, CSRF: csrf, ExpiresAt: expiresAt}
}

// SetToken replaces the pair with a bare bearer token. Used by the hub domain,
// which carries no CSRF token.
func (s *TokenStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{Token: token}
}

func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
}

// Pair reads the whole credential set under one lock acquisition.
func (s *TokenStore) Pair() Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Token
}
