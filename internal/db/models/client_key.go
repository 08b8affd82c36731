// client_key.go defines the ClientKey model: the single-use tenant-admission
// token that, once consumed, becomes the tenant identifier scoping all of a
// client's data.
package models

import "time"

// ClientKey represents a tenant-admission token.
//
// The two booleans are deliberately independent axes, not one enum:
// Used is a one-way latch set by the first successful login, while Locked
// toggles with the login-session lifecycle and is force-cleared by the
// stale-lock sweeper.
type ClientKey struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	Label     string     `json:"label"`
	Used      bool       `json:"used"`
	Locked    bool       `json:"locked"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
	CreatedBy *string    `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// StaleLockedSince reports whether the key has been locked longer than timeout
// as of now. Unlocked keys are never stale.
func (k *ClientKey) StaleLockedSince(now time.Time, timeout time.Duration) bool {
	if !k.Locked || k.LockedAt == nil {
		return false
	}
	return k.LockedAt.Before(now.Add(-timeout))
}
