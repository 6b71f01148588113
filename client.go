// Package cosign is a Go client for the cosign authentication and approval API.
package cosign

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/eth"
	api "github.com/layer-3/cosign/transport/http"
	"github.com/pkg/errors"
)

// Client represents the public interface for interacting with the cosign service
type Client interface {
	// Login runs the full challenge/response handshake for key and keeps the
	// session token for later calls
	Login(ctx context.Context, key *ecdsa.PrivateKey) (*api.LoginResponse, error)

	// Logout revokes the current session
	Logout(ctx context.Context) error

	// Me returns the authenticated wallet
	Me(ctx context.Context) (*api.MeResponse, error)

	// CreateProposal registers a proposal owned by the logged in wallet
	CreateProposal(ctx context.Context, req api.CreateProposalRequest) (*api.ProposalResponse, error)

	// Proposal fetches a proposal by ID
	Proposal(ctx context.Context, id string) (*api.ProposalResponse, error)

	// Proposals lists proposals the logged in wallet participates in
	Proposals(ctx context.Context) ([]api.ProposalResponse, error)

	// Approve signs the proposal's canonical data with key and submits it
	Approve(ctx context.Context, id string, key *ecdsa.PrivateKey) (*api.ProposalResponse, error)

	// Reject abandons a proposal owned by the logged in wallet
	Reject(ctx context.Context, id string) (*api.ProposalResponse, error)
}

// HTTPClient talks to a cosign server over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   string
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates a client for the server at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Token returns the current session token, if any.
func (c *HTTPClient) Token() string {
	return c.token
}

func (c *HTTPClient) Login(ctx context.Context, key *ecdsa.PrivateKey) (*api.LoginResponse, error) {
	address := eth.KeyAddress(key)

	var challenge api.ChallengeResponse
	if err := c.do(ctx, http.MethodPost, "/auth/challenge", api.ChallengeRequest{Address: address.String()}, &challenge); err != nil {
		return nil, err
	}

	sig, err := eth.SignText(key, []byte(challenge.Challenge))
	if err != nil {
		return nil, err
	}

	var login api.LoginResponse
	err = c.do(ctx, http.MethodPost, "/auth/login", api.LoginRequest{
		Address:   address.String(),
		Signature: hexutil.Encode(sig),
		Challenge: challenge.Challenge,
	}, &login)
	if err != nil {
		return nil, err
	}

	c.token = login.Token
	return &login, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	var resp api.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, &resp); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *HTTPClient) Me(ctx context.Context) (*api.MeResponse, error) {
	var resp api.MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateProposal(ctx context.Context, req api.CreateProposalRequest) (*api.ProposalResponse, error) {
	var resp api.ProposalResponse
	if err := c.do(ctx, http.MethodPost, "/api/proposals", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Proposal(ctx context.Context, id string) (*api.ProposalResponse, error) {
	var resp api.ProposalResponse
	if err := c.do(ctx, http.MethodGet, "/api/proposals/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Proposals(ctx context.Context) ([]api.ProposalResponse, error) {
	var resp api.ProposalListResponse
	if err := c.do(ctx, http.MethodGet, "/api/proposals", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Proposals, nil
}

func (c *HTTPClient) Approve(ctx context.Context, id string, key *ecdsa.PrivateKey) (*api.ProposalResponse, error) {
	var data api.ProposalDataResponse
	if err := c.do(ctx, http.MethodGet, "/api/proposals/"+url.PathEscape(id)+"/data", nil, &data); err != nil {
		return nil, err
	}

	sig, err := eth.SignText(key, []byte(data.Data))
	if err != nil {
		return nil, err
	}

	var resp api.ProposalResponse
	err = c.do(ctx, http.MethodPost, "/api/proposals/"+url.PathEscape(id)+"/approvals", api.ApprovalRequest{
		Address:   eth.KeyAddress(key).String(),
		Signature: hexutil.Encode(sig),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Reject(ctx context.Context, id string) (*api.ProposalResponse, error) {
	var resp api.ProposalResponse
	if err := c.do(ctx, http.MethodPost, "/api/proposals/"+url.PathEscape(id)+"/reject", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Code == "" {
			return &APIError{Status: resp.StatusCode, Code: "internal", Message: http.StatusText(resp.StatusCode)}
		}
		return &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// APIError is a failed request as reported by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cosign: %s (%d): %s", e.Code, e.Status, e.Message)
}

// Unwrap maps the server's error code back onto the domain error, so callers
// can use errors.Is(err, core.ErrTerminalProposal) and friends.
func (e *APIError) Unwrap() error {
	return errorsByCode[e.Code]
}

var errorsByCode = map[string]error{
	"challenge_not_found": core.ErrChallengeNotFound,
	"challenge_expired":   core.ErrChallengeExpired,
	"challenge_mismatch":  core.ErrChallengeMismatch,
	"verification_failed": core.ErrVerificationFailed,
	"malformed_signature": core.ErrMalformedSignature,
	"session_invalid":     core.ErrSessionInvalid,
	"session_expired":     core.ErrSessionExpired,
	"not_found":           core.ErrProposalNotFound,
	"invalid_quorum":      core.ErrInvalidQuorum,
	"invalid_request":     core.ErrInvalidProposal,
	"not_participant":     core.ErrNotParticipant,
	"address_mismatch":    core.ErrAddressMismatch,
	"terminal_proposal":   core.ErrTerminalProposal,
	"conflict":            core.ErrConflict,
	"store_unavailable":   core.ErrStoreUnavailable,
}
