package store

import (
	"context"

	"github.com/layer-3/cosign/core"
)

// Put stores the challenge, replacing the previous one for the address.
func (s *MemoryStore) Put(ctx context.Context, challenge *core.Challenge) error {
	cp := *challenge
	s.challenges.Store(challenge.Address, &cp)
	return nil
}

// Take removes and returns the live challenge for address.
// LoadAndDelete is atomic per key, so two callers never both receive it.
func (s *MemoryStore) Take(ctx context.Context, address core.Address) (*core.Challenge, error) {
	value, ok := s.challenges.LoadAndDelete(address)
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	return value.(*core.Challenge), nil
}
