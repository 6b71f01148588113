package ports

import "github.com/layer-3/cosign/core"

// Tokenizer converts between sessions and bearer tokens
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	// TokenToSession returns core.ErrSessionExpired or core.ErrSessionInvalid
	// for tokens that cannot be accepted.
	TokenToSession(token string) (*core.Session, error)
}
