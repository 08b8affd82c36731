// Package models defines the database model types for the portal backend.
// Each type corresponds to a database table. Models are pure data types —
// business logic belongs in the auth and handler layers, query logic in the
// repositories layer.
package models

import (
	"fmt"
	"strings"
	"time"
)

// User roles. Client accounts are generic per-tenant rows created on first
// key activation; they exist so sessions have an account to bind to, not to
// identify individual people within a tenant.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// clientEmailSuffix is the reserved domain suffix of generated client account
// emails. The local-part convention is "client+<tenant token>".
const clientEmailSuffix = "@clients.workdesk.local"

const clientEmailLocalPrefix = "client+"

// User represents an account row. Admins are real people with credentials;
// client rows are the generic per-tenant accounts described above.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash *string   `json:"-"`
	OIDCSub      *string   `json:"-"` // OIDC subject identifier for SSO admins
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account is an administrator.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ClientAccountEmail returns the reserved-convention email for a tenant's
// generic client account.
func ClientAccountEmail(tenantID string) string {
	return clientEmailLocalPrefix + tenantID + clientEmailSuffix
}

// TenantFromClientEmail extracts the tenant token from a reserved-convention
// client account email. It returns false when the email does not follow the
// convention. This exists only as degraded-mode recovery for sessions whose
// durable tenant state was lost; see auth.Resolver.
func TenantFromClientEmail(email string) (string, bool) {
	if !strings.HasSuffix(email, clientEmailSuffix) {
		return "", false
	}
	local := strings.TrimSuffix(email, clientEmailSuffix)
	if !strings.HasPrefix(local, clientEmailLocalPrefix) {
		return "", false
	}
	tenant := strings.TrimPrefix(local, clientEmailLocalPrefix)
	if tenant == "" {
		return "", false
	}
	return tenant, true
}

// String implements fmt.Stringer without leaking the password hash.
func (u *User) String() string {
	return fmt.Sprintf("User(%s role=%s email=%s)", u.ID, u.Role, u.Email)
}
