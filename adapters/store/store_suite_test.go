package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fullStore interface {
	ports.ChallengeStore
	ports.ProposalStore
	ports.RevocationStore
	ports.UserStore
}

var (
	addrA = core.MustAddress("0x1111111111111111111111111111111111111111")
	addrB = core.MustAddress("0x2222222222222222222222222222222222222222")
	addrC = core.MustAddress("0x3333333333333333333333333333333333333333")
)

func runStoreSuite(t *testing.T, newStore func(t *testing.T) fullStore) {
	t.Run("challenge put replaces previous", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, s.Put(ctx, &core.Challenge{Address: addrA, Nonce: "first", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}))
		require.NoError(t, s.Put(ctx, &core.Challenge{Address: addrA, Nonce: "second", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}))

		challenge, err := s.Take(ctx, addrA)
		require.NoError(t, err)
		assert.Equal(t, "second", challenge.Nonce)

		_, err = s.Take(ctx, addrA)
		assert.ErrorIs(t, err, core.ErrChallengeNotFound)
	})

	t.Run("challenge take is single use under concurrency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()
		require.NoError(t, s.Put(ctx, &core.Challenge{Address: addrB, Nonce: "n", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}))

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Take(ctx, addrB); err == nil {
					atomic.AddInt32(&wins, 1)
				} else {
					assert.ErrorIs(t, err, core.ErrChallengeNotFound)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	t.Run("proposal create get list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Now().Truncate(time.Millisecond)

		for i := 0; i < 3; i++ {
			require.NoError(t, s.Create(ctx, &core.Proposal{
				ID:                fmt.Sprintf("p%d", i),
				Owner:             addrA,
				Participants:      []core.Address{addrB, addrC},
				RequiredApprovals: 1,
				Payload:           []byte("x"),
				Status:            core.StatusPending,
				Approvals:         map[core.Address]string{},
				CreatedAt:         base.Add(time.Duration(i) * time.Second),
			}))
		}
		require.NoError(t, s.Create(ctx, &core.Proposal{
			ID:                "other",
			Owner:             addrB,
			Participants:      []core.Address{addrA},
			RequiredApprovals: 1,
			Payload:           []byte("y"),
			Status:            core.StatusPending,
			CreatedAt:         base,
		}))

		assert.Error(t, s.Create(ctx, &core.Proposal{ID: "p0", Owner: addrA, CreatedAt: base}))

		got, err := s.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, addrA, got.Owner)
		assert.Equal(t, []core.Address{addrB, addrC}, got.Participants)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrProposalNotFound)

		owned, err := s.List(ctx, core.ProposalFilter{Owner: addrA})
		require.NoError(t, err)
		require.Len(t, owned, 3)
		assert.Equal(t, "p2", owned[0].ID)
		assert.Equal(t, "p0", owned[2].ID)

		participating, err := s.List(ctx, core.ProposalFilter{Participant: addrC})
		require.NoError(t, err)
		assert.Len(t, participating, 3)

		participating, err = s.List(ctx, core.ProposalFilter{Participant: addrA})
		require.NoError(t, err)
		require.Len(t, participating, 1)
		assert.Equal(t, "other", participating[0].ID)

		none, err := s.List(ctx, core.ProposalFilter{Owner: addrC})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("proposal update is serialized", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, s.Create(ctx, &core.Proposal{
			ID:        "counter",
			Owner:     addrA,
			Status:    core.StatusPending,
			Approvals: map[core.Address]string{},
			CreatedAt: time.Now(),
		}))

		const writers = 40
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Update(ctx, "counter", func(p *core.Proposal) error {
					p.Approvals[core.Address(fmt.Sprintf("0x%040d", i))] = "sig"
					return nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := s.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Len(t, got.Approvals, writers)
		assert.Equal(t, int64(writers), got.Version)
	})

	t.Run("proposal update error leaves record untouched", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, &core.Proposal{ID: "keep", Owner: addrA, Status: core.StatusPending, CreatedAt: time.Now()}))

		_, err := s.Update(ctx, "keep", func(p *core.Proposal) error {
			p.Status = core.StatusApproved
			return core.ErrNotParticipant
		})
		assert.ErrorIs(t, err, core.ErrNotParticipant)

		got, err := s.Get(ctx, "keep")
		require.NoError(t, err)
		assert.Equal(t, core.StatusPending, got.Status)

		_, err = s.Update(ctx, "missing", func(p *core.Proposal) error { return nil })
		assert.ErrorIs(t, err, core.ErrProposalNotFound)
	})

	t.Run("revocation and users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		revoked, err := s.IsRevoked(ctx, "sid")
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, s.Revoke(ctx, "sid", time.Minute))
		revoked, err = s.IsRevoked(ctx, "sid")
		require.NoError(t, err)
		assert.True(t, revoked)

		user, err := s.GetUser(ctx, addrA)
		require.NoError(t, err)
		assert.Nil(t, user)

		at := time.Now().Truncate(time.Second)
		require.NoError(t, s.Touch(ctx, addrA, at))
		user, err = s.GetUser(ctx, addrA)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.True(t, at.Equal(user.LastLoginAt))
	})
}
