// errors.go defines the sentinel error kinds surfaced by identity resolution
// and tenant authorization. All of them are terminal for the request — the
// HTTP layer maps them to 401/403 responses and nothing retries them.
package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when an admin email/password pair
	// does not match an admin account. It is also returned when a client
	// account attempts the admin login path.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrUsedKey is returned when a client key is unknown or has
	// already been consumed by a previous login.
	ErrInvalidOrUsedKey = errors.New("invalid or already used client key")

	// ErrNoPrincipal is returned when session and account state together are
	// insufficient to resolve any role. It indicates silent tenant-scope loss
	// and is logged server-side as an integrity warning.
	ErrNoPrincipal = errors.New("no principal resolvable from session state")

	// ErrForbidden is returned when a resolved principal is not allowed to
	// touch the targeted tenant's resources.
	ErrForbidden = errors.New("forbidden")
)
