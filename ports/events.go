package ports

import (
	"context"

	"github.com/layer-3/cosign/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, address core.Address, sessionID string) error
	PublishProposal(ctx context.Context, proposal *core.Proposal) error
}
