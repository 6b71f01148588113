package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims carried by a session token; the
// subject is the canonical address and the ID is the session ID.
type SessionClaims struct {
	jwt.RegisteredClaims
}
