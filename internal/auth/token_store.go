package auth

import (
	"log/slog"
	"sync"
	"time"
)

// TokenStore manages bearer access tokens. Tokens are reusable until they
// expire; expired entries are evicted lazily on validation and periodically
// by the expiry sweep.
type TokenStore struct {
	tokens map[string]*AccessToken
	mu     sync.RWMutex
	now    func() time.Time
	logger *slog.Logger
}

// NewTokenStore creates a new access token store.
func NewTokenStore(logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenStore{
		tokens: make(map[string]*AccessToken),
		now:    time.Now,
		logger: logger,
	}
}

// Save stores an access token.
func (s *TokenStore) Save(token *AccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.Token] = token
	s.logger.Debug("Saved access token",
		"token_hash", hashForLogging(token.Token),
		"client_id", token.ClientID,
		"expires_at", token.ExpiresAt,
	)
}

// Validate looks up a presented token. A token past its expiry is deleted on
// the spot and reported invalid. Validation has no side effect on live
// tokens. Returns the owning client ID on success.
func (s *TokenStore) Validate(token string) (string, error) {
	s.mu.RLock()
	entry, exists := s.tokens[token]
	s.mu.RUnlock()

	if !exists {
		return "", ErrTokenNotFound
	}

	if s.now().After(entry.ExpiresAt) {
		s.mu.Lock()
		// Re-check under the write lock in case a sweep got here first.
		if current, ok := s.tokens[token]; ok && s.now().After(current.ExpiresAt) {
			delete(s.tokens, token)
		}
		s.mu.Unlock()

		s.logger.Debug("Rejected expired access token", "token_hash", hashForLogging(token))
		return "", ErrTokenExpired
	}

	return entry.ClientID, nil
}

// Delete removes an access token.
func (s *TokenStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
}

// Count returns the number of stored tokens.
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// DeleteExpired removes every token whose expiry has passed. Returns the
// number of entries removed.
func (s *TokenStore) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := 0
	for token, entry := range s.tokens {
		if now.After(entry.ExpiresAt) {
			delete(s.tokens, token)
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Debug("Swept expired access tokens", "deleted", deleted)
	}

	return deleted
}
