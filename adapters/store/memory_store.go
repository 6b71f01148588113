package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/cosign/core"
)

// MemoryStore is an in-memory implementation of every store port
type MemoryStore struct {
	challenges sync.Map // core.Address -> *core.Challenge

	proposalLocks *keyedMutex
	proposalsMu   sync.RWMutex
	proposals     map[string]*core.Proposal

	revokedMu sync.RWMutex
	revoked   map[string]time.Time

	usersMu sync.RWMutex
	users   map[core.Address]*core.User

	now func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposalLocks: newKeyedMutex(),
		proposals:     make(map[string]*core.Proposal),
		revoked:       make(map[string]time.Time),
		users:         make(map[core.Address]*core.User),
		now:           time.Now,
	}
}

// Revoke marks a session as revoked
func (s *MemoryStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	s.revokedMu.Lock()
	defer s.revokedMu.Unlock()

	s.revoked[sessionID] = s.now().Add(ttl)
	return nil
}

// IsRevoked checks if a session is revoked
func (s *MemoryStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	s.revokedMu.RLock()
	defer s.revokedMu.RUnlock()

	expiryTime, exists := s.revoked[sessionID]
	if !exists {
		return false, nil
	}

	// The session would have expired by now anyway
	if s.now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// Touch records a login for address
func (s *MemoryStore) Touch(ctx context.Context, address core.Address, at time.Time) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	s.users[address] = &core.User{Address: address, LastLoginAt: at}
	return nil
}

// GetUser returns the user record for address, or nil if it never logged in
func (s *MemoryStore) GetUser(ctx context.Context, address core.Address) (*core.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	user, ok := s.users[address]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

// Sweep drops expired challenges and revocation records. It only reclaims
// memory; expiry is always enforced on read. Challenges are kept for
// expiredChallengeGrace past their expiry, like in Redis, so a late login
// still reports ErrChallengeExpired.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0

	s.challenges.Range(func(key, value any) bool {
		challenge := value.(*core.Challenge)
		if !now.Before(challenge.ExpiresAt.Add(expiredChallengeGrace)) && s.challenges.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})

	s.revokedMu.Lock()
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
			removed++
		}
	}
	s.revokedMu.Unlock()

	return removed
}
