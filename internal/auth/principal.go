// Package auth implements identity resolution and tenant scoping for the
// portal. It is the single place that decides, for a login or a request,
// whether the caller is an administrator or a key-based client and which
// tenant a client is scoped to. Handlers and middleware consume the resolved
// Principal; they never re-derive identity from raw session or account state.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/telemetry"
)

// PrincipalKind distinguishes the two roles the portal knows about.
type PrincipalKind string

const (
	KindAdmin  PrincipalKind = "admin"
	KindClient PrincipalKind = "client"
)

// Principal is the resolved identity attached to a request.
//
// Invariant: a Client principal always carries a non-empty TenantID; an Admin
// principal never carries one. Construction goes through the resolver so the
// invariant holds everywhere downstream.
type Principal struct {
	Kind     PrincipalKind `json:"kind"`
	UserID   string        `json:"user_id"`
	TenantID string        `json:"tenant_id,omitempty"`
}

// IsAdmin reports whether the principal is an administrator.
func (p *Principal) IsAdmin() bool { return p.Kind == KindAdmin }

// SessionState is the typed snapshot of durable session state consulted by
// ResolveFromSession. It replaces ad hoc reads of framework session globals:
// the middleware loads the session row once and passes this struct in.
type SessionState struct {
	IsClient bool
	TenantID string
}

// UserStore is the slice of the user repository the resolver needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// ClientKeyStore is the slice of the client key repository the resolver needs.
// Consume must be atomic: a single conditional UPDATE that both checks and
// marks the key, so two concurrent logins with the same key cannot both win.
type ClientKeyStore interface {
	Consume(ctx context.Context, token string) (bool, error)
}

// Resolver produces Principals at login and on every subsequent request.
type Resolver struct {
	users UserStore
	keys  ClientKeyStore
}

// NewResolver creates a Resolver over the given stores.
func NewResolver(users UserStore, keys ClientKeyStore) *Resolver {
	return &Resolver{users: users, keys: keys}
}

// ResolveAdminLogin verifies an admin email/password pair and returns an Admin
// principal. Any mismatch — unknown email, wrong password, or a client account
// presented on the admin path — fails with ErrInvalidCredentials. The caller
// must not distinguish these cases to the user.
func (r *Resolver) ResolveAdminLogin(ctx context.Context, email, password string) (*Principal, error) {
	user, err := r.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up admin account: %w", err)
	}
	if user == nil || !user.IsAdmin() || user.PasswordHash == nil {
		// Burn a bcrypt comparison anyway so unknown emails take as long as
		// wrong passwords.
		CheckPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &Principal{Kind: KindAdmin, UserID: user.ID}, nil
}

// ResolveClientLogin consumes a client key and returns a Client principal
// scoped to that key's tenant. The key check-and-mark is one atomic
// conditional update; exactly one login can ever win a given key. On success
// the generic per-tenant client account row is created or reused.
func (r *Resolver) ResolveClientLogin(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidOrUsedKey
	}

	consumed, err := r.keys.Consume(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("consuming client key: %w", err)
	}
	if !consumed {
		return nil, ErrInvalidOrUsedKey
	}
	telemetry.ClientKeysConsumedTotal.Inc()

	account, err := r.clientAccount(ctx, token)
	if err != nil {
		return nil, err
	}

	return &Principal{Kind: KindClient, UserID: account.ID, TenantID: token}, nil
}

// clientAccount returns the generic client account for a tenant, creating it
// on first activation.
func (r *Resolver) clientAccount(ctx context.Context, tenantID string) (*models.User, error) {
	email := models.ClientAccountEmail(tenantID)
	account, err := r.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up client account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	account = &models.User{
		Email: email,
		Name:  "Client",
		Role:  models.RoleClient,
	}
	if err := r.users.CreateUser(ctx, account); err != nil {
		return nil, fmt.Errorf("creating client account: %w", err)
	}
	return account, nil
}

// ResolveFromSession re-derives the Principal for an authenticated request
// from durable session state and the bound account row.
//
// Resolution order, first match wins:
//
//  1. Session says client and carries a tenant → Client with that tenant.
//  2. Account role is "client" → client, but the tenant is unknown from this
//     signal alone; fall through to 3.
//  3. Account email follows the reserved client convention → extract the
//     tenant from the local-part.
//  4. Account is an admin → Admin. Otherwise ErrNoPrincipal.
//
// Step 1 is the source of truth: tenant scope is persisted into the session
// at login, so steps 2–3 only fire when session state has been lost (store
// cleared, legacy rows). When they fire a warning is logged and a counter is
// bumped — recurring fallbacks mean tenant scope is being recovered lexically,
// which is exactly the failure mode durable session state exists to remove.
func (r *Resolver) ResolveFromSession(sess SessionState, account *models.User) (*Principal, error) {
	if account == nil {
		return nil, ErrNoPrincipal
	}

	if sess.IsClient && sess.TenantID != "" {
		return &Principal{Kind: KindClient, UserID: account.ID, TenantID: sess.TenantID}, nil
	}

	if account.Role == models.RoleClient {
		if tenant, ok := models.TenantFromClientEmail(account.Email); ok {
			slog.Warn("tenant scope recovered from email convention; session state was lost",
				"user_id", account.ID)
			telemetry.PrincipalFallbackTotal.WithLabelValues("email_convention").Inc()
			return &Principal{Kind: KindClient, UserID: account.ID, TenantID: tenant}, nil
		}
		// A client account whose tenant cannot be recovered gets zero access,
		// never wildcard access.
		slog.Warn("client account with no resolvable tenant scope",
			"user_id", account.ID)
		telemetry.PrincipalFallbackTotal.WithLabelValues("unresolved_client").Inc()
		return nil, ErrNoPrincipal
	}

	if tenant, ok := models.TenantFromClientEmail(account.Email); ok {
		slog.Warn("tenant scope recovered from email convention on unmarked account",
			"user_id", account.ID)
		telemetry.PrincipalFallbackTotal.WithLabelValues("email_convention").Inc()
		return &Principal{Kind: KindClient, UserID: account.ID, TenantID: tenant}, nil
	}

	if account.IsAdmin() {
		return &Principal{Kind: KindAdmin, UserID: account.ID}, nil
	}

	return nil, ErrNoPrincipal
}

// AuthorizeTenantAccess decides whether principal may touch a resource owned
// by resourceTenantID. Admins may touch everything; a client may touch only
// resources of its own tenant. A client with an absent tenant gets zero
// access — absence is never a wildcard.
func AuthorizeTenantAccess(p *Principal, resourceTenantID string) error {
	if p == nil {
		return ErrForbidden
	}
	if p.Kind == KindAdmin {
		return nil
	}
	if p.Kind == KindClient && p.TenantID != "" && p.TenantID == resourceTenantID {
		return nil
	}
	telemetry.TenantAccessDeniedTotal.Inc()
	return ErrForbidden
}
