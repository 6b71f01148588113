package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/layer-3/cosign/core"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "cosign:"

	// Expired challenges are kept a little longer than their TTL so that a late
	// login reports ErrChallengeExpired rather than ErrChallengeNotFound.
	expiredChallengeGrace = time.Minute

	updateInitialWait = time.Millisecond
	updateMaxWait     = 20 * time.Millisecond
)

// RedisStore is a Redis implementation of every store port
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: defaultPrefix,
	}
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err, "ping")
	}
	return nil
}

// Revoke marks a session as revoked in Redis
func (s *RedisStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.revokedKey(sessionID), "1", ttl).Err(); err != nil {
		return unavailable(err, "revoke session")
	}
	return nil
}

// IsRevoked checks if a session is revoked in Redis
func (s *RedisStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.revokedKey(sessionID)).Result()
	if err != nil {
		return false, unavailable(err, "check revocation")
	}
	return val > 0, nil
}

// Touch records a login for address
func (s *RedisStore) Touch(ctx context.Context, address core.Address, at time.Time) error {
	data, err := json.Marshal(&core.User{Address: address, LastLoginAt: at})
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}
	if err := s.client.Set(ctx, s.userKey(address), data, 0).Err(); err != nil {
		return unavailable(err, "save user")
	}
	return nil
}

// GetUser returns the user record for address, or nil if it never logged in
func (s *RedisStore) GetUser(ctx context.Context, address core.Address) (*core.User, error) {
	data, err := s.client.Get(ctx, s.userKey(address)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, unavailable(err, "get user")
	}

	var user core.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal user")
	}
	return &user, nil
}

func (s *RedisStore) revokedKey(sessionID string) string {
	return s.prefix + "revoked:" + sessionID
}

func (s *RedisStore) userKey(address core.Address) string {
	return s.prefix + "user:" + string(address)
}

func (s *RedisStore) challengeKey(address core.Address) string {
	return s.prefix + "challenge:" + string(address)
}

func (s *RedisStore) proposalKey(id string) string {
	return s.prefix + "proposal:" + id
}

func (s *RedisStore) ownerIndexKey(address core.Address) string {
	return s.prefix + "proposals:owner:" + string(address)
}

func (s *RedisStore) participantIndexKey(address core.Address) string {
	return s.prefix + "proposals:participant:" + string(address)
}

// unavailable marks a redis failure as transient.
func unavailable(err error, op string) error {
	return errors.Wrapf(core.ErrStoreUnavailable, "%s: %v", op, err)
}
