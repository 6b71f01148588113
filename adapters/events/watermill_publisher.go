package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/ports"
	"github.com/pkg/errors"
)

const (
	TopicLogout           = "cosign.logout"
	TopicProposalCreated  = "cosign.proposal.created"
	TopicProposalApproved = "cosign.proposal.approved"
	TopicProposalRejected = "cosign.proposal.rejected"
	TopicProposalExpired  = "cosign.proposal.expired"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address   core.Address `json:"address"`
	SessionID string       `json:"session_id"`
}

// ProposalEvent is published whenever a proposal is created or finishes.
type ProposalEvent struct {
	ID                string         `json:"id"`
	Owner             core.Address   `json:"owner"`
	Status            core.Status    `json:"status"`
	RequiredApprovals int            `json:"required_approvals"`
	Approvers         []core.Address `json:"approvers"`
	At                time.Time      `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address core.Address, sessionID string) error {
	return p.publish(ctx, TopicLogout, sessionID, LogoutEvent{
		Address:   address,
		SessionID: sessionID,
	})
}

// PublishProposal publishes the event matching the proposal's status
func (p *WatermillPublisher) PublishProposal(ctx context.Context, proposal *core.Proposal) error {
	topic, err := proposalTopic(proposal.Status)
	if err != nil {
		return err
	}

	approvers := make([]core.Address, 0, len(proposal.Approvals))
	for _, participant := range proposal.Participants {
		if _, ok := proposal.Approvals[participant]; ok {
			approvers = append(approvers, participant)
		}
	}

	return p.publish(ctx, topic, watermill.NewUUID(), ProposalEvent{
		ID:                proposal.ID,
		Owner:             proposal.Owner,
		Status:            proposal.Status,
		RequiredApprovals: proposal.RequiredApprovals,
		Approvers:         approvers,
		At:                proposal.UpdatedAt,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, uuid string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	msg := message.NewMessage(uuid, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return errors.Wrap(err, "failed to publish event")
	}

	return nil
}

func proposalTopic(status core.Status) (string, error) {
	switch status {
	case core.StatusPending:
		return TopicProposalCreated, nil
	case core.StatusApproved:
		return TopicProposalApproved, nil
	case core.StatusRejected:
		return TopicProposalRejected, nil
	case core.StatusExpired:
		return TopicProposalExpired, nil
	default:
		return "", errors.Errorf("no topic for status %q", status)
	}
}
