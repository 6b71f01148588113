package service

import (
	"context"

	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/eth"
	"github.com/layer-3/cosign/internal/metrics"
	"github.com/layer-3/cosign/ports"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AuthService runs the wallet challenge/response login flow
type AuthService struct {
	challenges *ChallengeManager
	sessions   *SessionIssuer
	users      ports.UserStore
	eventPub   ports.EventPublisher
	opts       Options
}

// NewAuthService creates a new authentication service
func NewAuthService(
	challenges *ChallengeManager,
	sessions *SessionIssuer,
	users ports.UserStore,
	eventPub ports.EventPublisher,
	opts Options,
) *AuthService {
	return &AuthService{
		challenges: challenges,
		sessions:   sessions,
		users:      users,
		eventPub:   eventPub,
		opts:       opts.withDefaults(),
	}
}

// RequestChallenge issues a new nonce for address to sign.
func (s *AuthService) RequestChallenge(ctx context.Context, address core.Address) (*core.Challenge, error) {
	challenge, err := s.challenges.Issue(ctx, address)
	if err != nil {
		s.opts.Log.WithError(err).WithField("address", address).Error("failed to issue challenge")
		return nil, err
	}
	return challenge, nil
}

// Authenticate consumes the live challenge for address, verifies the
// signature over its nonce and grants a session. The challenge is burned
// even when verification fails.
func (s *AuthService) Authenticate(ctx context.Context, address core.Address, nonce, signatureHex string) (*core.Session, string, error) {
	session, token, err := s.authenticate(ctx, address, nonce, signatureHex)
	metrics.ObserveAuth(authResult(err))
	if err != nil {
		log := s.opts.Log.WithFields(logrus.Fields{"address": address, "reason": core.ErrorCode(err)})
		if errors.Is(err, core.ErrStoreUnavailable) {
			log.WithError(err).Error("login failed")
		} else {
			log.Info("login rejected")
		}
		return nil, "", err
	}

	s.opts.Log.WithFields(logrus.Fields{"address": address, "session": session.ID}).Debug("login succeeded")
	return session, token, nil
}

func (s *AuthService) authenticate(ctx context.Context, address core.Address, nonce, signatureHex string) (*core.Session, string, error) {
	challenge, err := s.challenges.Consume(ctx, address, nonce)
	if err != nil {
		return nil, "", err
	}

	signature, err := eth.DecodeSignature(signatureHex)
	if err != nil {
		return nil, "", errors.Wrap(core.ErrVerificationFailed, err.Error())
	}

	ok, err := eth.Verify([]byte(challenge.Nonce), signature, address)
	if err != nil {
		return nil, "", errors.Wrap(core.ErrVerificationFailed, err.Error())
	}
	if !ok {
		return nil, "", core.ErrVerificationFailed
	}

	session, token, err := s.sessions.Grant(address)
	if err != nil {
		return nil, "", err
	}

	err = s.opts.Policy.Do(ctx, func(ctx context.Context) error {
		return s.users.Touch(ctx, address, session.IssuedAt)
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to record login")
	}

	return session, token, nil
}

// Validate resolves a bearer token into a live session.
func (s *AuthService) Validate(ctx context.Context, token string) (*core.Session, error) {
	return s.sessions.Validate(ctx, token)
}

// Logout revokes the session and notifies other instances.
func (s *AuthService) Logout(ctx context.Context, session *core.Session) error {
	if err := s.sessions.Revoke(ctx, session); err != nil {
		return errors.Wrap(err, "failed to revoke session")
	}

	// The revocation is already stored; a lost event only delays other caches.
	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		s.opts.Log.WithError(err).WithField("session", session.ID).Warn("failed to publish logout event")
	}

	return nil
}

// Me returns the stored profile of address.
func (s *AuthService) Me(ctx context.Context, address core.Address) (*core.User, error) {
	var user *core.User
	err := s.opts.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetUser(ctx, address)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user")
	}
	if user == nil {
		user = &core.User{Address: address}
	}
	return user, nil
}

func authResult(err error) string {
	if err == nil {
		return "success"
	}
	return core.ErrorCode(err)
}
