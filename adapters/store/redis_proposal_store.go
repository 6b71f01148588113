package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/layer-3/cosign/core"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// createProposalScript writes the record and every index entry in one atomic
// step. KEYS[1] is the record, the rest are index sets. Returns 1 when
// created, otherwise the record already stored under that ID.
var createProposalScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
	return existing
end
redis.call("SET", KEYS[1], ARGV[1])
for i = 2, #KEYS do
	redis.call("ZADD", KEYS[i], ARGV[2], ARGV[3])
end
return 1
`)

// Create stores a new proposal and indexes it by owner and participants.
// Repeating the same create is a no-op, so a retry after a lost reply
// succeeds.
func (s *RedisStore) Create(ctx context.Context, proposal *core.Proposal) error {
	data, err := json.Marshal(proposal)
	if err != nil {
		return errors.Wrap(err, "failed to marshal proposal")
	}

	keys := make([]string, 0, len(proposal.Participants)+2)
	keys = append(keys, s.proposalKey(proposal.ID), s.ownerIndexKey(proposal.Owner))
	for _, participant := range proposal.Participants {
		keys = append(keys, s.participantIndexKey(participant))
	}

	res, err := createProposalScript.Run(ctx, s.client, keys, data, proposal.CreatedAt.UnixMilli(), proposal.ID).Result()
	if err != nil {
		return unavailable(err, "save proposal")
	}
	if existing, ok := res.(string); ok && existing != string(data) {
		return errors.Errorf("proposal %s already exists", proposal.ID)
	}
	return nil
}

// Get loads a proposal by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*core.Proposal, error) {
	data, err := s.client.Get(ctx, s.proposalKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrProposalNotFound
		}
		return nil, unavailable(err, "get proposal")
	}
	return decodeProposal(data)
}

// List returns proposals matching filter, newest first
func (s *RedisStore) List(ctx context.Context, filter core.ProposalFilter) ([]*core.Proposal, error) {
	var index string
	switch {
	case filter.Owner != "":
		index = s.ownerIndexKey(filter.Owner)
	case filter.Participant != "":
		index = s.participantIndexKey(filter.Participant)
	default:
		return nil, errors.New("proposal filter requires owner or participant")
	}

	ids, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, unavailable(err, "list proposal ids")
	}
	if len(ids) == 0 {
		return []*core.Proposal{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.proposalKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "load proposals")
	}

	proposals := make([]*core.Proposal, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		proposal, err := decodeProposal([]byte(raw))
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}

	sortNewestFirst(proposals)
	return proposals, nil
}

// Update applies fn inside a WATCH/MULTI transaction. When another writer
// changes the proposal first it retries with jittered backoff until ctx is
// done, then reports core.ErrConflict.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*core.Proposal) error) (*core.Proposal, error) {
	key := s.proposalKey(id)

	var updated *core.Proposal
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return abort(core.ErrProposalNotFound)
			}
			return abort(unavailable(err, "get proposal"))
		}

		proposal, err := decodeProposal(data)
		if err != nil {
			return abort(err)
		}
		if err := fn(proposal); err != nil {
			return abort(err)
		}
		proposal.Version++

		encoded, err := json.Marshal(proposal)
		if err != nil {
			return abort(errors.Wrap(err, "failed to marshal proposal"))
		}

		// Fails with redis.TxFailedErr if the key changed since WATCH
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = proposal
		return nil
	}

	conflict := func() error {
		return errors.Wrapf(core.ErrConflict, "too much contention updating %q", id)
	}

	wait := contentionBackoff()
	contended := false
	for {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		var aborted *updateAborted
		if errors.As(err, &aborted) {
			return nil, aborted.err
		}
		if !errors.Is(err, redis.TxFailedErr) {
			if contended && ctx.Err() != nil {
				return nil, conflict()
			}
			return nil, unavailable(err, "update proposal")
		}
		contended = true

		// someone else updated first, back off and retry until ctx is done
		timer := time.NewTimer(wait.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, conflict()
		case <-timer.C:
		}
	}
}

// contentionBackoff spreads out writers that lost a WATCH race so they do not
// collide again on the next attempt.
func contentionBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = updateInitialWait
	b.MaxInterval = updateMaxWait
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// updateAborted carries errors raised inside a transaction that must reach
// the caller unchanged.
type updateAborted struct {
	err error
}

func abort(err error) error {
	return &updateAborted{err: err}
}

func (e *updateAborted) Error() string {
	return e.err.Error()
}

func decodeProposal(data []byte) (*core.Proposal, error) {
	var proposal core.Proposal
	if err := json.Unmarshal(data, &proposal); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal proposal")
	}
	if proposal.Approvals == nil {
		proposal.Approvals = make(map[core.Address]string)
	}
	return &proposal, nil
}
