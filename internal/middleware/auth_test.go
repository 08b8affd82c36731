package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var sessCols = []string{
	"id", "token_hash", "user_id", "is_client", "tenant_id", "created_at", "expires_at",
}

var userCols = []string{
	"id", "email", "name", "role", "password_hash", "oidc_sub", "created_at", "updated_at",
}

func newAuthRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessionRepo := repositories.NewSessionRepository(db)
	userRepo := repositories.NewUserRepository(db)
	resolver := auth.NewResolver(userRepo, nil)

	r := gin.New()
	r.Use(AuthMiddleware(sessionRepo, userRepo, resolver))
	r.GET("/whoami", func(c *gin.Context) {
		p := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"kind": string(p.Kind), "tenant_id": p.TenantID})
	})
	return mock, r
}

func bearerRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("GET", "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// ---------------------------------------------------------------------------
// AuthMiddleware
// ---------------------------------------------------------------------------

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	_, r := newAuthRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, bearerRequest(t, ""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_MalformedToken(t *testing.T) {
	_, r := newAuthRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, bearerRequest(t, "not-a-jwt"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ClientSession(t *testing.T) {
	mock, r := newAuthRouter(t)

	token, err := auth.GenerateSessionJWT("user-1", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionJWT: %v", err)
	}

	tenant := "wdk_abc123"
	mock.ExpectQuery(`SELECT \* FROM sessions WHERE id`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessCols).
			AddRow("sess-1", "hash", "user-1", true, &tenant,
				time.Now(), time.Now().Add(time.Hour)))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "client+wdk_abc123@clients.workdesk.local", "Client",
				"client", "", nil, time.Now(), time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, bearerRequest(t, token))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"kind":"client"`) || !strings.Contains(body, "wdk_abc123") {
		t.Errorf("body = %s", body)
	}
}

func TestAuthMiddleware_ExpiredSession(t *testing.T) {
	mock, r := newAuthRouter(t)

	token, err := auth.GenerateSessionJWT("user-1", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionJWT: %v", err)
	}

	tenant := "wdk_abc123"
	mock.ExpectQuery(`SELECT \* FROM sessions WHERE id`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessCols).
			AddRow("sess-1", "hash", "user-1", true, &tenant,
				time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, bearerRequest(t, token))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for expired session", w.Code)
	}
}

func TestAuthMiddleware_RevokedSession(t *testing.T) {
	mock, r := newAuthRouter(t)

	token, err := auth.GenerateSessionJWT("user-1", "sess-gone", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionJWT: %v", err)
	}

	mock.ExpectQuery(`SELECT \* FROM sessions WHERE id`).
		WithArgs("sess-gone").
		WillReturnRows(sqlmock.NewRows(sessCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, bearerRequest(t, token))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deleted session", w.Code)
	}
}

func TestAuthMiddleware_CookieFallback(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessionRepo := repositories.NewSessionRepository(db)
	userRepo := repositories.NewUserRepository(db)
	resolver := auth.NewResolver(userRepo, nil)

	r := gin.New()
	r.Use(AuthMiddlewareWithCookie("workdesk_session", sessionRepo, userRepo, resolver))
	r.GET("/whoami", func(c *gin.Context) {
		p := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"kind": string(p.Kind)})
	})

	token, err := auth.GenerateSessionJWT("user-1", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionJWT: %v", err)
	}

	mock.ExpectQuery(`SELECT \* FROM sessions WHERE id`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessCols).
			AddRow("sess-1", "hash", "user-1", false, nil,
				time.Now(), time.Now().Add(time.Hour)))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "ops@workdesk.local", "Ops", "admin",
				"", nil, time.Now(), time.Now()))

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "workdesk_session", Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"kind":"admin"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Guards
// ---------------------------------------------------------------------------

func guardRouter(p *auth.Principal, guard gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if p != nil {
			c.Set(PrincipalKey, p)
		}
		c.Next()
	})
	r.GET("/x", guard, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{"admin allowed", &auth.Principal{Kind: auth.KindAdmin, UserID: "u1"}, http.StatusOK},
		{"client forbidden", &auth.Principal{Kind: auth.KindClient, TenantID: "wdk_a"}, http.StatusForbidden},
		{"anonymous unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := guardRouter(tt.principal, RequireAdmin())
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireTenantAccess(t *testing.T) {
	lookup := func(tenant string) func(c *gin.Context) (string, error) {
		return func(c *gin.Context) (string, error) { return tenant, nil }
	}

	tests := []struct {
		name           string
		principal      *auth.Principal
		resourceTenant string
		want           int
	}{
		{"matching tenant", &auth.Principal{Kind: auth.KindClient, TenantID: "wdk_a"}, "wdk_a", http.StatusOK},
		{"foreign tenant", &auth.Principal{Kind: auth.KindClient, TenantID: "wdk_a"}, "wdk_b", http.StatusForbidden},
		{"admin any tenant", &auth.Principal{Kind: auth.KindAdmin, UserID: "u1"}, "wdk_b", http.StatusOK},
		{"missing resource", &auth.Principal{Kind: auth.KindAdmin, UserID: "u1"}, "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := guardRouter(tt.principal, RequireTenantAccess(lookup(tt.resourceTenant)))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
