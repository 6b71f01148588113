package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/layer-3/cosign/core"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Put stores the challenge, replacing the previous one for the address.
func (s *RedisStore) Put(ctx context.Context, challenge *core.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return errors.Wrap(err, "failed to marshal challenge")
	}

	ttl := time.Until(challenge.ExpiresAt) + expiredChallengeGrace
	if err := s.client.Set(ctx, s.challengeKey(challenge.Address), data, ttl).Err(); err != nil {
		return unavailable(err, "save challenge")
	}
	return nil
}

// Take removes and returns the live challenge for address with a single GETDEL.
func (s *RedisStore) Take(ctx context.Context, address core.Address) (*core.Challenge, error) {
	data, err := s.client.GetDel(ctx, s.challengeKey(address)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrChallengeNotFound
		}
		return nil, unavailable(err, "take challenge")
	}

	var challenge core.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal challenge")
	}
	return &challenge, nil
}
