package ports

import (
	"context"
	"time"

	"github.com/layer-3/cosign/core"
)

// ChallengeStore holds at most one live challenge per address.
type ChallengeStore interface {
	// Put stores the challenge, replacing any previous one for the same address.
	Put(ctx context.Context, challenge *core.Challenge) error
	// Take atomically retrieves and deletes the challenge for address.
	// It returns core.ErrChallengeNotFound when there is none.
	Take(ctx context.Context, address core.Address) (*core.Challenge, error)
}

// ProposalStore owns proposal records.
type ProposalStore interface {
	Create(ctx context.Context, proposal *core.Proposal) error
	Get(ctx context.Context, id string) (*core.Proposal, error)
	// List returns proposals matching filter, newest first.
	List(ctx context.Context, filter core.ProposalFilter) ([]*core.Proposal, error)
	// Update runs fn on a private copy of the proposal under a per-proposal
	// critical section and persists the copy if fn returns nil. fn may be
	// invoked more than once by optimistic implementations.
	Update(ctx context.Context, id string, fn func(*core.Proposal) error) (*core.Proposal, error)
}

// RevocationStore tracks revoked session IDs until they would expire anyway
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// UserStore records wallet holders that have logged in.
type UserStore interface {
	Touch(ctx context.Context, address core.Address, at time.Time) error
	GetUser(ctx context.Context, address core.Address) (*core.User, error)
}
