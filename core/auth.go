package core

import "time"

// Challenge represents an authentication challenge
type Challenge struct {
	Address   Address   `json:"address"`    // Address the challenge was issued to
	Nonce     string    `json:"nonce"`      // Random nonce to be signed
	IssuedAt  time.Time `json:"issued_at"`  // When the challenge was created
	ExpiresAt time.Time `json:"expires_at"` // When the challenge expires
}

// Expired reports whether the challenge is no longer usable at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session represents an authenticated user session
type Session struct {
	ID        string    // Unique session identifier
	Address   Address   // Address of the user
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session expires
}
