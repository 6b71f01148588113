package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/metrics"
	"github.com/layer-3/cosign/ports"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CreateProposal describes a proposal to be registered.
type CreateProposal struct {
	Owner             core.Address
	Participants      []core.Address
	RequiredApprovals int
	Payload           []byte
	TTL               time.Duration // zero means the proposal never expires
}

// Registry owns proposal records. All mutations go through Update.
type Registry struct {
	store    ports.ProposalStore
	eventPub ports.EventPublisher
	opts     Options
}

// NewRegistry creates a proposal registry.
func NewRegistry(store ports.ProposalStore, eventPub ports.EventPublisher, opts Options) *Registry {
	return &Registry{
		store:    store,
		eventPub: eventPub,
		opts:     opts.withDefaults(),
	}
}

// Create validates req and stores a new pending proposal.
func (r *Registry) Create(ctx context.Context, req CreateProposal) (*core.Proposal, error) {
	owner, err := core.ParseAddress(string(req.Owner))
	if err != nil {
		return nil, err
	}

	participants := make([]core.Address, 0, len(req.Participants))
	seen := make(map[core.Address]struct{}, len(req.Participants))
	for _, raw := range req.Participants {
		addr, err := core.ParseAddress(string(raw))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		participants = append(participants, addr)
	}

	if len(participants) == 0 {
		return nil, errors.Wrap(core.ErrInvalidProposal, "no participants")
	}
	if len(req.Payload) == 0 {
		return nil, errors.Wrap(core.ErrInvalidProposal, "empty payload")
	}
	if req.TTL < 0 {
		return nil, errors.Wrap(core.ErrInvalidProposal, "negative ttl")
	}
	if req.RequiredApprovals < 1 || req.RequiredApprovals > len(participants) {
		return nil, errors.Wrapf(core.ErrInvalidQuorum, "required approvals must be between 1 and %d", len(participants))
	}

	now := r.opts.Now()
	proposal := &core.Proposal{
		ID:                uuid.New().String(),
		Owner:             owner,
		Participants:      participants,
		RequiredApprovals: req.RequiredApprovals,
		Payload:           append([]byte(nil), req.Payload...),
		Status:            core.StatusPending,
		Approvals:         map[core.Address]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.TTL > 0 {
		proposal.ExpiresAt = now.Add(req.TTL)
	}

	err = r.opts.Policy.Do(ctx, func(ctx context.Context) error {
		return r.store.Create(ctx, proposal)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store proposal")
	}

	metrics.ObserveProposalCreated()
	r.publish(ctx, proposal)
	r.opts.Log.WithFields(logrus.Fields{
		"proposal": proposal.ID,
		"owner":    owner,
		"required": proposal.RequiredApprovals,
	}).Info("proposal created")

	return proposal.Clone(), nil
}

// Get returns the proposal with its effective status: a pending proposal
// past its expiry is reported as expired.
func (r *Registry) Get(ctx context.Context, id string) (*core.Proposal, error) {
	var proposal *core.Proposal
	err := r.opts.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		proposal, err = r.store.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.effective(proposal)
	return proposal, nil
}

// List returns the proposals matching filter, newest first.
func (r *Registry) List(ctx context.Context, filter core.ProposalFilter) ([]*core.Proposal, error) {
	var proposals []*core.Proposal
	err := r.opts.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		proposals, err = r.store.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, p := range proposals {
		r.effective(p)
	}
	return proposals, nil
}

// CanonicalBytes returns the message participants sign to approve id.
func (r *Registry) CanonicalBytes(ctx context.Context, id string) ([]byte, error) {
	proposal, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status.Terminal() {
		return nil, core.ErrTerminalProposal
	}
	return CanonicalMessage(proposal), nil
}

// Update runs fn against the current proposal inside its critical section.
func (r *Registry) Update(ctx context.Context, id string, fn func(*core.Proposal) error) (*core.Proposal, error) {
	var proposal *core.Proposal
	err := r.opts.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		proposal, err = r.store.Update(ctx, id, fn)
		return err
	})
	return proposal, err
}

func (r *Registry) effective(p *core.Proposal) {
	if p.Expired(r.opts.Now()) {
		p.Status = core.StatusExpired
	}
}

func (r *Registry) publish(ctx context.Context, p *core.Proposal) {
	if err := r.eventPub.PublishProposal(ctx, p); err != nil {
		r.opts.Log.WithError(err).WithField("proposal", p.ID).Warn("failed to publish proposal event")
	}
}

// CanonicalMessage renders the immutable fields of p as the text signed by
// participants. The payload is committed to by its keccak256 hash.
func CanonicalMessage(p *core.Proposal) []byte {
	participants := make([]string, len(p.Participants))
	for i, addr := range p.Participants {
		participants[i] = addr.String()
	}

	var b strings.Builder
	b.WriteString("cosign proposal approval\n")
	fmt.Fprintf(&b, "id: %s\n", p.ID)
	fmt.Fprintf(&b, "owner: %s\n", p.Owner)
	fmt.Fprintf(&b, "participants: %s\n", strings.Join(participants, ","))
	fmt.Fprintf(&b, "required: %d\n", p.RequiredApprovals)
	fmt.Fprintf(&b, "payload: 0x%x", crypto.Keccak256(p.Payload))
	return []byte(b.String())
}
