package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Challenge issues a nonce for the address to sign
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := bindJSON(c, &req); err != nil {
		abortInvalidRequest(c, err)
		return
	}

	address, err := core.ParseAddress(req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	challenge, err := h.authService.RequestChallenge(c.Request.Context(), address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		Challenge: challenge.Nonce,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// Login exchanges a signed challenge for a session token
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		abortInvalidRequest(c, err)
		return
	}

	address, err := core.ParseAddress(req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	session, token, err := h.authService.Authenticate(c.Request.Context(), address, req.Challenge, req.Signature)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout revokes the caller's session
func (h *AuthHandlers) Logout(c *gin.Context) {
	session := sessionFrom(c)
	if err := h.authService.Logout(c.Request.Context(), session); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	session := sessionFrom(c)
	user, err := h.authService.Me(c.Request.Context(), session.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := MeResponse{Address: user.Address}
	if !user.LastLoginAt.IsZero() {
		resp.LastLoginAt = &user.LastLoginAt
	}
	c.JSON(http.StatusOK, resp)
}
