package core

import (
	"errors"
	"fmt"
)

// Authentication errors
var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeExpired   = errors.New("challenge has expired")
	ErrVerificationFailed = errors.New("signature verification failed")
	ErrSessionInvalid     = errors.New("session is invalid")
	ErrSessionExpired     = errors.New("session has expired")

	// ErrChallengeMismatch is also an ErrChallengeNotFound: the provided nonce
	// names no live challenge for the address.
	ErrChallengeMismatch = fmt.Errorf("%w: nonce mismatch", ErrChallengeNotFound)
)

// Proposal errors
var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrInvalidQuorum    = errors.New("invalid quorum")
	ErrInvalidProposal  = errors.New("invalid proposal")
	ErrNotParticipant   = errors.New("address is not a participant")
	ErrTerminalProposal = errors.New("proposal is in a terminal state")
	ErrAddressMismatch  = errors.New("address does not match session")
)

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidAddress     = errors.New("invalid ethereum address")

	// ErrStoreUnavailable marks transient store failures that are safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConflict         = errors.New("concurrent update conflict")
)

// ErrorCode returns the stable external code for err. Order matters:
// ErrChallengeMismatch must be checked before ErrChallengeNotFound.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrChallengeMismatch):
		return "challenge_mismatch"
	case errors.Is(err, ErrChallengeNotFound):
		return "challenge_not_found"
	case errors.Is(err, ErrChallengeExpired):
		return "challenge_expired"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrMalformedSignature):
		return "malformed_signature"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionInvalid):
		return "session_invalid"
	case errors.Is(err, ErrProposalNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidQuorum):
		return "invalid_quorum"
	case errors.Is(err, ErrInvalidProposal), errors.Is(err, ErrInvalidAddress):
		return "invalid_request"
	case errors.Is(err, ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, ErrTerminalProposal):
		return "terminal_proposal"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
