package http

import (
	"time"

	"github.com/layer-3/cosign/core"
	"github.com/shopspring/decimal"
)

type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

type ChallengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	// Challenge optionally echoes the nonce that was signed.
	Challenge string `json:"challenge"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type MeResponse struct {
	Address     core.Address `json:"address"`
	LastLoginAt *time.Time   `json:"last_login_at,omitempty"`
}

type CreateProposalRequest struct {
	Owner             string   `json:"owner" binding:"required"`
	Participants      []string `json:"participants" binding:"required"`
	RequiredApprovals int      `json:"required_approvals"`
	Payload           string   `json:"payload" binding:"required"`
	TTLSeconds        int64    `json:"ttl_seconds" binding:"min=0"`
}

type ApprovalRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type ProposalResponse struct {
	ID                string                  `json:"id"`
	Owner             core.Address            `json:"owner"`
	Participants      []core.Address          `json:"participants"`
	RequiredApprovals int                     `json:"required_approvals"`
	Payload           string                  `json:"payload"`
	Status            core.Status             `json:"status"`
	Approvals         map[core.Address]string `json:"approvals"`
	Progress          decimal.Decimal         `json:"progress"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	ExpiresAt         *time.Time              `json:"expires_at,omitempty"`
	Version           int64                   `json:"version"`
}

type ProposalListResponse struct {
	Proposals []ProposalResponse `json:"proposals"`
}

// ProposalDataResponse carries the exact message participants must sign.
type ProposalDataResponse struct {
	Data    string `json:"data"`
	DataHex string `json:"data_hex"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func newProposalResponse(p *core.Proposal) ProposalResponse {
	resp := ProposalResponse{
		ID:                p.ID,
		Owner:             p.Owner,
		Participants:      p.Participants,
		RequiredApprovals: p.RequiredApprovals,
		Payload:           string(p.Payload),
		Status:            p.Status,
		Approvals:         p.Approvals,
		Progress:          p.Progress(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
	if resp.Approvals == nil {
		resp.Approvals = map[core.Address]string{}
	}
	if !p.ExpiresAt.IsZero() {
		expiresAt := p.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
