package http

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/eth"
	"github.com/layer-3/cosign/service"
	"github.com/pkg/errors"
)

// ProposalHandlers contains HTTP handlers for multisig proposals
type ProposalHandlers struct {
	registry    *service.Registry
	coordinator *service.Coordinator
}

// NewProposalHandlers creates new proposal handlers
func NewProposalHandlers(registry *service.Registry, coordinator *service.Coordinator) *ProposalHandlers {
	return &ProposalHandlers{
		registry:    registry,
		coordinator: coordinator,
	}
}

// Create registers a proposal owned by the caller
func (h *ProposalHandlers) Create(c *gin.Context) {
	var req CreateProposalRequest
	if err := bindJSON(c, &req); err != nil {
		abortInvalidRequest(c, err)
		return
	}

	owner, err := core.ParseAddress(req.Owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if owner != sessionFrom(c).Address {
		abortWithError(c, core.ErrAddressMismatch)
		return
	}

	participants := make([]core.Address, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = core.Address(p)
	}

	proposal, err := h.registry.Create(c.Request.Context(), service.CreateProposal{
		Owner:             owner,
		Participants:      participants,
		RequiredApprovals: req.RequiredApprovals,
		Payload:           []byte(req.Payload),
		TTL:               time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newProposalResponse(proposal))
}

// List returns proposals by owner or participant, defaulting to the
// proposals the caller participates in
func (h *ProposalHandlers) List(c *gin.Context) {
	ownerParam, participantParam := c.Query("owner"), c.Query("participant")
	if ownerParam != "" && participantParam != "" {
		abortInvalidRequest(c, errors.New("owner and participant are mutually exclusive"))
		return
	}

	var filter core.ProposalFilter
	switch {
	case ownerParam != "":
		owner, err := core.ParseAddress(ownerParam)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.Owner = owner
	case participantParam != "":
		participant, err := core.ParseAddress(participantParam)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.Participant = participant
	default:
		filter.Participant = sessionFrom(c).Address
	}

	proposals, err := h.registry.List(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := ProposalListResponse{Proposals: make([]ProposalResponse, 0, len(proposals))}
	for _, p := range proposals {
		resp.Proposals = append(resp.Proposals, newProposalResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns a single proposal
func (h *ProposalHandlers) Get(c *gin.Context) {
	proposal, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProposalResponse(proposal))
}

// Data returns the canonical message participants sign to approve
func (h *ProposalHandlers) Data(c *gin.Context) {
	data, err := h.registry.CanonicalBytes(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProposalDataResponse{
		Data:    string(data),
		DataHex: "0x" + hex.EncodeToString(data),
	})
}

// Approve records the caller's signature over the proposal data
func (h *ProposalHandlers) Approve(c *gin.Context) {
	var req ApprovalRequest
	if err := bindJSON(c, &req); err != nil {
		abortInvalidRequest(c, err)
		return
	}

	address, err := core.ParseAddress(req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if address != sessionFrom(c).Address {
		abortWithError(c, core.ErrAddressMismatch)
		return
	}

	signature, err := eth.DecodeSignature(req.Signature)
	if err != nil {
		abortWithError(c, err)
		return
	}

	proposal, err := h.coordinator.SubmitApproval(c.Request.Context(), c.Param("id"), address, signature)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProposalResponse(proposal))
}

// Reject abandons a pending proposal. Only its owner may do so.
func (h *ProposalHandlers) Reject(c *gin.Context) {
	proposal, err := h.coordinator.Reject(c.Request.Context(), c.Param("id"), sessionFrom(c).Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProposalResponse(proposal))
}
