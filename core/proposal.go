package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// CanTransition reports whether a proposal may move from s to next.
// Only pending proposals move, and only forward.
func (s Status) CanTransition(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// Proposal is a multi-signature proposal awaiting participant approvals.
type Proposal struct {
	ID                string             `json:"id"`
	Owner             Address            `json:"owner"`
	Participants      []Address          `json:"participants"`
	RequiredApprovals int                `json:"required_approvals"`
	Payload           []byte             `json:"payload"`
	Status            Status             `json:"status"`
	Approvals         map[Address]string `json:"approvals"` // hex signatures
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	ExpiresAt         time.Time          `json:"expires_at,omitempty"` // zero means no expiry
	Version           int64              `json:"version"`
}

// IsParticipant reports whether addr may approve the proposal.
func (p *Proposal) IsParticipant(addr Address) bool {
	for _, participant := range p.Participants {
		if participant == addr {
			return true
		}
	}
	return false
}

// Expired reports whether a pending proposal has outlived its deadline.
func (p *Proposal) Expired(now time.Time) bool {
	return p.Status == StatusPending && !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// QuorumReached reports whether enough distinct participants have approved.
func (p *Proposal) QuorumReached() bool {
	return len(p.Approvals) >= p.RequiredApprovals
}

// Progress returns approvals/required, capped at one.
func (p *Proposal) Progress() decimal.Decimal {
	if p.RequiredApprovals <= 0 {
		return decimal.Zero
	}
	progress := decimal.NewFromInt(int64(len(p.Approvals))).
		Div(decimal.NewFromInt(int64(p.RequiredApprovals)))
	return decimal.Min(progress, decimal.NewFromInt(1))
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Participants = append([]Address(nil), p.Participants...)
	cp.Payload = append([]byte(nil), p.Payload...)
	cp.Approvals = make(map[Address]string, len(p.Approvals))
	for addr, sig := range p.Approvals {
		cp.Approvals[addr] = sig
	}
	return &cp
}

// ProposalFilter selects proposals by owner or participant. Exactly one
// field is expected to be set.
type ProposalFilter struct {
	Owner       Address
	Participant Address
}
