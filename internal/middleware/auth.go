// Package middleware provides Gin HTTP middleware for authentication,
// tenant authorization, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Audit → Handler
//
// Security headers run first among the outbound-affecting set so they appear
// on all responses including errors. Rate limiting runs before auth to block
// brute force before any DB work. Auth resolves the principal; tenant guards
// and audit logging read from that context.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// timeNow is swapped in tests to pin session expiry checks.
var timeNow = time.Now

// Context keys set by AuthMiddleware.
const (
	// PrincipalKey holds the resolved *auth.Principal.
	PrincipalKey = "principal"
	// SessionIDKey holds the server-side session id backing this request.
	SessionIDKey = "session_id"
)

// AuthMiddleware validates the bearer JWT, loads the server-side session it
// names, and resolves the request principal. The JWT carries only a session
// id; every trust decision reads from the session row, so revocation is
// immediate and the tenant scope of a client login survives token replay
// against a changed account row.
func AuthMiddleware(sessionRepo *repositories.SessionRepository, userRepo *repositories.UserRepository, resolver *auth.Resolver) gin.HandlerFunc {
	return AuthMiddlewareWithCookie("", sessionRepo, userRepo, resolver)
}

// AuthMiddlewareWithCookie additionally accepts the session JWT from the
// named cookie when no Authorization header is present, so browser requests
// work without the SPA storing a bearer token.
func AuthMiddlewareWithCookie(cookieName string, sessionRepo *repositories.SessionRepository, userRepo *repositories.UserRepository, resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Authorization header must start with 'Bearer '",
				})
				return
			}
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if token == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Authorization token is empty",
				})
				return
			}
		} else if cookieName != "" {
			if v, err := c.Cookie(cookieName); err == nil {
				token = v
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		claims, err := auth.ValidateSessionJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		sess, err := sessionRepo.GetSessionByID(c.Request.Context(), claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load session",
			})
			return
		}
		if sess == nil || sess.Expired(timeNow()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session expired or revoked",
			})
			return
		}

		account, err := userRepo.GetUserByID(c.Request.Context(), sess.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load account",
			})
			return
		}

		state := auth.SessionState{IsClient: sess.IsClient}
		if sess.TenantID != nil {
			state.TenantID = *sess.TenantID
		}

		principal, err := resolver.ResolveFromSession(state, account)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unable to establish identity for this session",
			})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(SessionIDKey, sess.ID)
		c.Next()
	}
}

// GetPrincipal returns the principal resolved by AuthMiddleware, or nil when
// the request is unauthenticated.
func GetPrincipal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, ok := v.(*auth.Principal)
	if !ok {
		return nil
	}
	return p
}

// RequireAdmin aborts with 403 unless the request principal is an admin.
// Must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		if p.Kind != auth.KindAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Administrator access required",
			})
			return
		}
		c.Next()
	}
}

// RequireTenantAccess aborts with 403 unless the request principal may touch
// the resource tenant produced by lookup. The lookup receives the gin context
// so it can read path params and query the database; returning an empty
// string with nil error means the resource does not exist, which surfaces as
// 404 before any tenant comparison leaks existence.
func RequireTenantAccess(lookup func(c *gin.Context) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		resourceTenant, err := lookup(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve resource",
			})
			return
		}
		if resourceTenant == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "Not found",
			})
			return
		}

		if err := auth.AuthorizeTenantAccess(p, resourceTenant); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Access denied",
			})
			return
		}

		c.Next()
	}
}

// principalModelRole maps a principal back to the account role string used in
// audit rows.
func principalModelRole(p *auth.Principal) string {
	if p == nil {
		return ""
	}
	if p.Kind == auth.KindAdmin {
		return models.RoleAdmin
	}
	return models.RoleClient
}
