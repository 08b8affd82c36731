// session.go defines the Session model holding the durable per-login state
// that principal resolution trusts on every request.
package models

import "time"

// Session is a server-side session row. The tenant scope of a client login is
// persisted here at login time so request-time resolution never depends on
// lexical conventions in the account row.
type Session struct {
	ID        string    `json:"id" db:"id"`
	TokenHash string    `json:"-" db:"token_hash"`
	UserID    string    `json:"user_id" db:"user_id"`
	IsClient  bool      `json:"is_client" db:"is_client"`
	TenantID  *string   `json:"tenant_id,omitempty" db:"tenant_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session has passed its expiry as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
