package store

import (
	"context"
	"sort"

	"github.com/layer-3/cosign/core"
	"github.com/pkg/errors"
)

// Create stores a new proposal
func (s *MemoryStore) Create(ctx context.Context, proposal *core.Proposal) error {
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()

	if _, exists := s.proposals[proposal.ID]; exists {
		return errors.Errorf("proposal %s already exists", proposal.ID)
	}
	s.proposals[proposal.ID] = proposal.Clone()
	return nil
}

// Get returns a copy of the proposal
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Proposal, error) {
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()

	proposal, ok := s.proposals[id]
	if !ok {
		return nil, core.ErrProposalNotFound
	}
	return proposal.Clone(), nil
}

// List returns proposals matching filter, newest first
func (s *MemoryStore) List(ctx context.Context, filter core.ProposalFilter) ([]*core.Proposal, error) {
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()

	var result []*core.Proposal
	for _, proposal := range s.proposals {
		if filter.Owner != "" && proposal.Owner != filter.Owner {
			continue
		}
		if filter.Participant != "" && !proposal.IsParticipant(filter.Participant) {
			continue
		}
		result = append(result, proposal.Clone())
	}

	sortNewestFirst(result)
	return result, nil
}

// Update applies fn to a copy of the proposal while holding that proposal's lock.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*core.Proposal) error) (*core.Proposal, error) {
	unlock := s.proposalLocks.Lock(id)
	defer unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(current); err != nil {
		return nil, err
	}
	current.Version++

	s.proposalsMu.Lock()
	s.proposals[id] = current.Clone()
	s.proposalsMu.Unlock()

	return current, nil
}

func sortNewestFirst(proposals []*core.Proposal) {
	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].CreatedAt.Equal(proposals[j].CreatedAt) {
			return proposals[i].ID < proposals[j].ID
		}
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
}
