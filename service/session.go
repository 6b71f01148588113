package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/ports"
	"github.com/pkg/errors"
)

// SessionIssuer mints and validates bearer sessions.
type SessionIssuer struct {
	tokenizer   ports.Tokenizer
	revocations ports.RevocationStore
	ttl         time.Duration
	opts        Options
}

// NewSessionIssuer creates a session issuer with the given session lifetime.
func NewSessionIssuer(tokenizer ports.Tokenizer, revocations ports.RevocationStore, ttl time.Duration, opts Options) *SessionIssuer {
	return &SessionIssuer{
		tokenizer:   tokenizer,
		revocations: revocations,
		ttl:         ttl,
		opts:        opts.withDefaults(),
	}
}

// Grant creates a session for address. Callers must have verified a
// signature over a freshly consumed challenge first.
func (s *SessionIssuer) Grant(address core.Address) (*core.Session, string, error) {
	now := s.opts.Now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create session token")
	}

	return session, token, nil
}

// Validate resolves a bearer token into its session.
func (s *SessionIssuer) Validate(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if !s.opts.Now().Before(session.ExpiresAt) {
		return nil, core.ErrSessionExpired
	}

	var revoked bool
	err = s.opts.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		revoked, err = s.revocations.IsRevoked(ctx, session.ID)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to check session revocation")
	}
	if revoked {
		return nil, errors.Wrap(core.ErrSessionInvalid, "session revoked")
	}

	return session, nil
}

// Revoke invalidates session for the rest of its lifetime.
func (s *SessionIssuer) Revoke(ctx context.Context, session *core.Session) error {
	remaining := session.ExpiresAt.Sub(s.opts.Now())
	if remaining <= 0 {
		return nil
	}

	return s.opts.Policy.Do(ctx, func(ctx context.Context) error {
		return s.revocations.Revoke(ctx, session.ID, remaining)
	})
}
