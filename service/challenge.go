package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/ports"
	"github.com/pkg/errors"
)

const nonceSize = 32

// ChallengeManager issues and consumes single-use login nonces.
type ChallengeManager struct {
	store ports.ChallengeStore
	ttl   time.Duration
	opts  Options
}

// NewChallengeManager creates a challenge manager with the given TTL.
func NewChallengeManager(store ports.ChallengeStore, ttl time.Duration, opts Options) *ChallengeManager {
	return &ChallengeManager{
		store: store,
		ttl:   ttl,
		opts:  opts.withDefaults(),
	}
}

// Issue generates a fresh nonce for address, replacing any live challenge.
func (m *ChallengeManager) Issue(ctx context.Context, address core.Address) (*core.Challenge, error) {
	nonceBytes := make([]byte, nonceSize)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	now := m.opts.Now()
	challenge := &core.Challenge{
		Address:   address,
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	err := m.opts.Policy.Do(ctx, func(ctx context.Context) error {
		return m.store.Put(ctx, challenge)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store challenge")
	}

	return challenge, nil
}

// Consume removes the live challenge for address and checks it. An empty
// nonce accepts whatever challenge is live. The stored record is gone
// afterwards whatever the outcome.
func (m *ChallengeManager) Consume(ctx context.Context, address core.Address, nonce string) (*core.Challenge, error) {
	var challenge *core.Challenge
	err := m.opts.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		challenge, err = m.store.Take(ctx, address)
		return err
	})
	if err != nil {
		return nil, err
	}

	if challenge.Expired(m.opts.Now()) {
		return nil, core.ErrChallengeExpired
	}
	if nonce != "" && subtle.ConstantTimeCompare([]byte(challenge.Nonce), []byte(nonce)) != 1 {
		return nil, core.ErrChallengeMismatch
	}

	return challenge, nil
}
