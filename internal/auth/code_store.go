package auth

import (
	"log/slog"
	"sync"
	"time"
)

// CodeStore manages short-lived, single-use authorization codes. The
// consume transition (used=false to used=true) runs under the store's write
// lock so that concurrent exchange attempts for the same code can never both
// succeed.
type CodeStore struct {
	codes  map[string]*AuthorizationCode
	mu     sync.RWMutex
	now    func() time.Time
	logger *slog.Logger
}

// NewCodeStore creates a new authorization code store.
func NewCodeStore(logger *slog.Logger) *CodeStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &CodeStore{
		codes:  make(map[string]*AuthorizationCode),
		now:    time.Now,
		logger: logger,
	}
}

// Save stores an authorization code.
func (s *CodeStore) Save(code *AuthorizationCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.Code] = code
	s.logger.Debug("Saved authorization code",
		"code_hash", hashForLogging(code.Code),
		"client_id", code.ClientID,
		"expires_at", code.ExpiresAt,
	)
}

// Get retrieves a snapshot of an authorization code for validation. Expired
// entries are deleted on sight and reported as ErrCodeExpired. A used entry
// is reported as ErrCodeUsed but kept in place: the tombstone stays for the
// rest of the code's lifetime so that every replay, not just the first, is
// distinguishable from an unknown code.
func (s *CodeStore) Get(code string) (AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.codes[code]
	if !exists {
		return AuthorizationCode{}, ErrCodeNotFound
	}

	if s.now().After(entry.ExpiresAt) {
		delete(s.codes, code)
		s.logger.Debug("Deleted expired authorization code", "code_hash", hashForLogging(code))
		return AuthorizationCode{}, ErrCodeExpired
	}

	if entry.Used {
		s.logger.Warn("Authorization code replay detected",
			"code_hash", hashForLogging(code),
			"client_id", entry.ClientID,
		)
		return AuthorizationCode{}, ErrCodeUsed
	}

	return *entry, nil
}

// Consume marks an authorization code as used. Exactly one Consume per code
// ever succeeds. The used entry is retained as a tombstone until the expiry
// sweep removes it, which is what lets replays be told apart from unknown
// codes no matter how many exchanges race on the same code.
func (s *CodeStore) Consume(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.codes[code]
	if !exists {
		// The entry can only vanish between Get and Consume through an
		// expiry sweep, so report it the way Get would have.
		return ErrCodeExpired
	}

	if entry.Used {
		return ErrCodeUsed
	}

	if s.now().After(entry.ExpiresAt) {
		delete(s.codes, code)
		return ErrCodeExpired
	}

	entry.Used = true

	s.logger.Info("Authorization code consumed",
		"code_hash", hashForLogging(code),
		"client_id", entry.ClientID,
	)

	return nil
}

// Delete removes an authorization code.
func (s *CodeStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.codes, code)
}

// Count returns the number of stored codes, used or not.
func (s *CodeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

// DeleteExpired removes every code whose expiry has passed, which includes
// used tombstones once their original lifetime ends. Returns the number of
// entries removed.
func (s *CodeStore) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := 0
	for code, entry := range s.codes {
		if now.After(entry.ExpiresAt) {
			delete(s.codes, code)
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Debug("Swept expired authorization codes", "deleted", deleted)
	}

	return deleted
}
