package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/eth"
	"github.com/layer-3/cosign/internal/metrics"
	"github.com/layer-3/cosign/ports"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// errUnchanged aborts an update that would not change the stored record.
var errUnchanged = errors.New("proposal unchanged")

// Coordinator collects participant signatures and moves proposals through
// their status transitions. It mutates proposals only via Registry.Update.
type Coordinator struct {
	registry *Registry
	eventPub ports.EventPublisher
	opts     Options
}

// NewCoordinator creates an approval coordinator.
func NewCoordinator(registry *Registry, eventPub ports.EventPublisher, opts Options) *Coordinator {
	return &Coordinator{
		registry: registry,
		eventPub: eventPub,
		opts:     opts.withDefaults(),
	}
}

// SubmitApproval records address's signature over the proposal's canonical
// message. The call that brings the proposal to quorum is the only one that
// transitions it to approved.
func (c *Coordinator) SubmitApproval(ctx context.Context, id string, address core.Address, signature []byte) (*core.Proposal, error) {
	encoded := hexutil.Encode(signature)

	var transitioned, expired bool
	proposal, err := c.registry.Update(ctx, id, func(p *core.Proposal) error {
		transitioned, expired = false, false
		now := c.opts.Now()

		if p.Expired(now) {
			p.Status = core.StatusExpired
			p.UpdatedAt = now
			expired = true
			return nil
		}
		if !p.Status.CanTransition(core.StatusApproved) {
			return core.ErrTerminalProposal
		}
		if !p.IsParticipant(address) {
			return core.ErrNotParticipant
		}

		ok, err := eth.Verify(CanonicalMessage(p), signature, address)
		if err != nil {
			return errors.Wrap(core.ErrVerificationFailed, err.Error())
		}
		if !ok {
			return core.ErrVerificationFailed
		}

		if p.Approvals[address] == encoded {
			return errUnchanged
		}
		if p.Approvals == nil {
			p.Approvals = make(map[core.Address]string)
		}
		p.Approvals[address] = encoded
		p.UpdatedAt = now

		if p.QuorumReached() {
			p.Status = core.StatusApproved
			transitioned = true
		}
		return nil
	})

	if errors.Is(err, errUnchanged) {
		proposal, err = c.registry.Get(ctx, id)
	}
	metrics.ObserveApproval(approvalResult(err, expired))
	if err != nil {
		c.logRejected(id, address, err)
		return nil, err
	}

	log := c.opts.Log.WithFields(logrus.Fields{"proposal": id, "address": address})
	switch {
	case expired:
		c.finished(ctx, proposal)
		log.Info("proposal expired")
		return proposal, core.ErrTerminalProposal
	case transitioned:
		c.finished(ctx, proposal)
		log.WithField("approvals", len(proposal.Approvals)).Info("proposal approved")
	default:
		log.WithField("approvals", len(proposal.Approvals)).Debug("approval recorded")
	}

	return proposal, nil
}

// Reject lets the owner abandon a pending proposal.
func (c *Coordinator) Reject(ctx context.Context, id string, caller core.Address) (*core.Proposal, error) {
	var expired bool
	proposal, err := c.registry.Update(ctx, id, func(p *core.Proposal) error {
		expired = false
		now := c.opts.Now()

		if p.Expired(now) {
			p.Status = core.StatusExpired
			p.UpdatedAt = now
			expired = true
			return nil
		}
		if !p.Status.CanTransition(core.StatusRejected) {
			return core.ErrTerminalProposal
		}
		if p.Owner != caller {
			return core.ErrAddressMismatch
		}

		p.Status = core.StatusRejected
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		c.logRejected(id, caller, err)
		return nil, err
	}

	c.finished(ctx, proposal)
	if expired {
		return proposal, core.ErrTerminalProposal
	}

	c.opts.Log.WithFields(logrus.Fields{"proposal": id, "owner": caller}).Info("proposal rejected")
	return proposal, nil
}

func (c *Coordinator) finished(ctx context.Context, p *core.Proposal) {
	metrics.ObserveProposalFinished(string(p.Status))
	if err := c.eventPub.PublishProposal(ctx, p); err != nil {
		c.opts.Log.WithError(err).WithField("proposal", p.ID).Warn("failed to publish proposal event")
	}
}

func (c *Coordinator) logRejected(id string, address core.Address, err error) {
	log := c.opts.Log.WithFields(logrus.Fields{"proposal": id, "address": address, "reason": core.ErrorCode(err)})
	if errors.Is(err, core.ErrStoreUnavailable) || errors.Is(err, core.ErrConflict) {
		log.WithError(err).Error("proposal update failed")
		return
	}
	log.Info("proposal update rejected")
}

func approvalResult(err error, expired bool) string {
	switch {
	case err != nil:
		return core.ErrorCode(err)
	case expired:
		return core.ErrorCode(core.ErrTerminalProposal)
	default:
		return "accepted"
	}
}
