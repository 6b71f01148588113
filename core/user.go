package core

import "time"

// User is a wallet holder that has completed at least one login.
type User struct {
	Address     Address   `json:"address"`
	LastLoginAt time.Time `json:"last_login_at"`
}
