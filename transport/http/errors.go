package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/core"
)

var statusByCode = map[string]int{
	"challenge_not_found": http.StatusBadRequest,
	"challenge_expired":   http.StatusBadRequest,
	"challenge_mismatch":  http.StatusUnauthorized,
	"verification_failed": http.StatusUnauthorized,
	"malformed_signature": http.StatusBadRequest,
	"session_invalid":     http.StatusUnauthorized,
	"session_expired":     http.StatusUnauthorized,
	"not_found":           http.StatusNotFound,
	"invalid_quorum":      http.StatusUnprocessableEntity,
	"invalid_request":     http.StatusBadRequest,
	"not_participant":     http.StatusForbidden,
	"address_mismatch":    http.StatusForbidden,
	"terminal_proposal":   http.StatusConflict,
	"conflict":            http.StatusConflict,
	"store_unavailable":   http.StatusServiceUnavailable,
}

var messageByCode = map[string]string{
	"challenge_not_found": "No pending challenge for this address",
	"challenge_expired":   "Challenge expired",
	"challenge_mismatch":  "Challenge does not match",
	"verification_failed": "Invalid signature",
	"malformed_signature": "Malformed signature",
	"session_invalid":     "Invalid token",
	"session_expired":     "Token expired",
	"not_found":           "Proposal not found",
	"invalid_quorum":      "Required approvals must be between 1 and the number of participants",
	"invalid_request":     "Invalid request",
	"not_participant":     "Address is not a participant",
	"address_mismatch":    "Address does not match the session",
	"terminal_proposal":   "Proposal is no longer pending",
	"conflict":            "Proposal is busy, try again",
	"store_unavailable":   "Service temporarily unavailable",
	"internal":            "Internal error",
}

// statusFor maps a domain error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	code := core.ErrorCode(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, "internal"
}

// abortWithError writes the error body without echoing internal details.
func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Error: messageByCode[code]})
}

func abortInvalidRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_request", Error: messageByCode["invalid_request"]})
}
