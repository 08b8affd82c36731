// oidc.go implements optional admin single sign-on. Only pre-provisioned
// admin accounts may enter through this path: an identity the IdP vouches for
// but the portal does not know is rejected, never auto-created. Client logins
// never touch OIDC.
package authapi

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/auth/oidc"
	"github.com/workdesk/workdesk/internal/telemetry"
)

// oidcState tracks one in-flight OAuth authorization round trip.
type oidcState struct {
	createdAt time.Time
}

// OIDCHandlers handles the admin SSO flow. The state store is in-memory;
// a restart mid-flow just means the user restarts the login.
type OIDCHandlers struct {
	auth     *AuthHandlers
	provider *oidc.Provider

	mu     sync.Mutex
	states map[string]oidcState
}

// NewOIDCHandlers creates OIDC handlers over an initialized provider
func NewOIDCHandlers(authHandlers *AuthHandlers, provider *oidc.Provider) *OIDCHandlers {
	return &OIDCHandlers{
		auth:     authHandlers,
		provider: provider,
		states:   make(map[string]oidcState),
	}
}

func (h *OIDCHandlers) newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)

	h.mu.Lock()
	defer h.mu.Unlock()
	// Drop stale states so the map cannot grow without bound.
	for s, st := range h.states {
		if time.Since(st.createdAt) > 10*time.Minute {
			delete(h.states, s)
		}
	}
	h.states[state] = oidcState{createdAt: time.Now()}
	return state, nil
}

func (h *OIDCHandlers) takeState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[state]
	if !ok {
		return false
	}
	delete(h.states, state)
	return time.Since(st.createdAt) <= 10*time.Minute
}

// LoginHandler redirects to the identity provider.
// GET /api/v1/auth/oidc/login
func (h *OIDCHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.newState()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state"})
			return
		}
		c.Redirect(http.StatusFound, h.provider.AuthURL(state))
	}
}

// CallbackHandler completes the flow: validates state, exchanges the code,
// and establishes an admin session for a known account.
// GET /api/v1/auth/oidc/callback
func (h *OIDCHandlers) CallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := c.Query("state")
		code := c.Query("code")
		if state == "" || code == "" || !h.takeState(state) {
			telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired login attempt"})
			return
		}

		claims, err := h.provider.Exchange(c.Request.Context(), code)
		if err != nil {
			telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "error").Inc()
			slog.Error("oidc code exchange failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Identity provider rejected the login"})
			return
		}

		account, err := h.auth.userRepo.GetUserByOIDCSub(c.Request.Context(), claims.Subject)
		if err != nil {
			telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "error").Inc()
			slog.Error("oidc account lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		if account == nil && claims.Email != "" {
			// First SSO login for an account provisioned by email only.
			account, err = h.auth.userRepo.GetUserByEmail(c.Request.Context(), claims.Email)
			if err != nil {
				telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "error").Inc()
				slog.Error("oidc account lookup failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
				return
			}
			if account != nil && account.IsAdmin() {
				sub := claims.Subject
				account.OIDCSub = &sub
				if err := h.auth.userRepo.UpdateUser(c.Request.Context(), account); err != nil {
					slog.Error("failed to bind oidc subject to account", "error", err)
				}
			}
		}

		if account == nil || !account.IsAdmin() {
			telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "invalid_credentials").Inc()
			slog.Warn("oidc login for unknown or non-admin identity", "email", claims.Email)
			c.JSON(http.StatusForbidden, gin.H{"error": "No administrator account for this identity"})
			return
		}

		principal := &auth.Principal{Kind: auth.KindAdmin, UserID: account.ID}
		token, sess, err := h.auth.establishSession(c, principal)
		if err != nil {
			telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "error").Inc()
			slog.Error("failed to establish oidc session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		telemetry.LoginAttemptsTotal.WithLabelValues("oidc", "success").Inc()
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": sess.ExpiresAt,
			"principal":  principal,
		})
	}
}
