// Package authapi implements the login, logout, and session endpoints. Both
// login paths converge on one session shape: a server-side session row plus a
// signed JWT carrying only the session id. Tenant scope for client logins is
// persisted into the session row at login, so request-time resolution never
// leans on lexical conventions.
package authapi

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
	"github.com/workdesk/workdesk/internal/middleware"
	"github.com/workdesk/workdesk/internal/telemetry"
)

// AuthHandlers handles authentication endpoints
type AuthHandlers struct {
	cfg         *config.Config
	userRepo    *repositories.UserRepository
	keyRepo     *repositories.ClientKeyRepository
	sessionRepo *repositories.SessionRepository
	resolver    *auth.Resolver
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.Config, db *sql.DB) *AuthHandlers {
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewClientKeyRepository(db)
	return &AuthHandlers{
		cfg:         cfg,
		userRepo:    userRepo,
		keyRepo:     keyRepo,
		sessionRepo: repositories.NewSessionRepository(db),
		resolver:    auth.NewResolver(userRepo, keyRepo),
	}
}

// establishSession creates a fresh session row for the principal and returns
// a signed JWT naming it. Every login gets a brand-new session identifier;
// tokens are never carried over across logins.
func (h *AuthHandlers) establishSession(c *gin.Context, p *auth.Principal) (string, *models.Session, error) {
	ttl := h.cfg.Auth.Sessions.AdminTTL
	if p.Kind == auth.KindClient {
		ttl = h.cfg.Auth.Sessions.ClientTTL
	}

	sess := &models.Session{
		UserID:    p.UserID,
		IsClient:  p.Kind == auth.KindClient,
		ExpiresAt: time.Now().Add(ttl),
	}
	if p.TenantID != "" {
		tenant := p.TenantID
		sess.TenantID = &tenant
	}

	if err := h.sessionRepo.CreateSession(c.Request.Context(), sess, uuid.New().String()); err != nil {
		return "", nil, err
	}

	token, err := auth.GenerateSessionJWT(p.UserID, sess.ID, ttl)
	if err != nil {
		return "", nil, err
	}

	// Mirror the token into the session cookie so browser requests work
	// without the SPA storing a bearer token.
	if name := h.cfg.Auth.Sessions.CookieName; name != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, token, int(ttl.Seconds()), "/", "", h.cfg.Auth.Sessions.CookieSecure, true)
	}

	return token, sess, nil
}

type adminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginHandler authenticates an administrator by email and password.
// POST /api/v1/auth/login
func (h *AuthHandlers) AdminLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adminLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}

		principal, err := h.resolver.ResolveAdminLogin(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				telemetry.LoginAttemptsTotal.WithLabelValues("admin", "invalid_credentials").Inc()
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
				return
			}
			telemetry.LoginAttemptsTotal.WithLabelValues("admin", "error").Inc()
			slog.Error("admin login failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		token, sess, err := h.establishSession(c, principal)
		if err != nil {
			telemetry.LoginAttemptsTotal.WithLabelValues("admin", "error").Inc()
			slog.Error("failed to establish admin session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		telemetry.LoginAttemptsTotal.WithLabelValues("admin", "success").Inc()
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": sess.ExpiresAt,
			"principal":  principal,
		})
	}
}

type clientLoginRequest struct {
	Key string `json:"key" binding:"required"`
}

// ClientLoginHandler authenticates a client by single-use key. The key is
// consumed atomically; a second login with the same key fails no matter how
// the first session ended.
// POST /api/v1/auth/client-login
func (h *AuthHandlers) ClientLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clientLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Client key is required"})
			return
		}

		principal, err := h.resolver.ResolveClientLogin(c.Request.Context(), req.Key)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidOrUsedKey) {
				telemetry.LoginAttemptsTotal.WithLabelValues("client", "invalid_or_used_key").Inc()
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or already used client key"})
				return
			}
			telemetry.LoginAttemptsTotal.WithLabelValues("client", "error").Inc()
			slog.Error("client login failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		token, sess, err := h.establishSession(c, principal)
		if err != nil {
			telemetry.LoginAttemptsTotal.WithLabelValues("client", "error").Inc()
			slog.Error("failed to establish client session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		telemetry.LoginAttemptsTotal.WithLabelValues("client", "success").Inc()
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": sess.ExpiresAt,
			"principal":  principal,
		})
	}
}

// LogoutHandler revokes the current session. A client logout also unlocks the
// tenant's key once no other live client session holds it; locked tracks the
// login-session lifecycle, while used stays latched forever.
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetString(middleware.SessionIDKey)
		principal := middleware.GetPrincipal(c)

		if sessionID != "" {
			if err := h.sessionRepo.DeleteSession(c.Request.Context(), sessionID); err != nil {
				slog.Error("failed to delete session at logout", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
				return
			}
		}

		if principal != nil && principal.Kind == auth.KindClient && principal.TenantID != "" {
			remaining, err := h.sessionRepo.CountActiveClientSessions(
				c.Request.Context(), principal.TenantID, time.Now())
			if err != nil {
				slog.Error("failed to count live client sessions", "error", err)
			} else if remaining == 0 {
				if err := h.keyRepo.Unlock(c.Request.Context(), principal.TenantID); err != nil {
					slog.Error("failed to unlock client key at logout",
						"tenant_id", principal.TenantID, "error", err)
				}
			}
		}

		if name := h.cfg.Auth.Sessions.CookieName; name != "" {
			c.SetCookie(name, "", -1, "/", "", h.cfg.Auth.Sessions.CookieSecure, true)
		}

		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// MeHandler returns the resolved principal for the current session.
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"principal": principal})
	}
}
