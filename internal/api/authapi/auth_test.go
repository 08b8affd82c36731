package authapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/middleware"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("DEV_MODE", "true")
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var userCols = []string{
	"id", "email", "name", "role", "password_hash", "oidc_sub", "created_at", "updated_at",
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.Sessions.AdminTTL = 24 * time.Hour
	cfg.Auth.Sessions.ClientTTL = 12 * time.Hour
	return cfg
}

func newAuthRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine, *AuthHandlers) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuthHandlers(testConfig(), db)

	r := gin.New()
	r.POST("/auth/login", h.AdminLoginHandler())
	r.POST("/auth/client-login", h.ClientLoginHandler())
	return mock, r, h
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Admin login
// ---------------------------------------------------------------------------

func TestAdminLogin_Success(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("ops@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("admin-1", "ops@example.com", "Ops", "admin", &hash, nil, time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(t, r, "/auth/login", `{"email":"ops@example.com","password":"hunter2hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"token"`)) {
		t.Error("response carries no token")
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"kind":"admin"`)) {
		t.Errorf("principal not admin: %s", w.Body.String())
	}
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	hash, _ := auth.HashPassword("correct-password")
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("ops@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("admin-1", "ops@example.com", "Ops", "admin", &hash, nil, time.Now(), time.Now()))

	w := postJSON(t, r, "/auth/login", `{"email":"ops@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdminLogin_UnknownEmail(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := postJSON(t, r, "/auth/login", `{"email":"ghost@example.com","password":"whatever"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdminLogin_ClientKeyInPasswordField(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	// A client key pasted into the admin form fails with the admin path's
	// error; the handler never sniffs the other credential shape.
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("someone@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := postJSON(t, r, "/auth/login", `{"email":"someone@example.com","password":"wdk_abc123"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdminLogin_MissingFields(t *testing.T) {
	_, r, _ := newAuthRouter(t)
	w := postJSON(t, r, "/auth/login", `{"email":"ops@example.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Client login
// ---------------------------------------------------------------------------

func TestClientLogin_FreshKey(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	mock.ExpectExec(`UPDATE client_keys\s+SET used = true, locked = true`).
		WithArgs("wdk_fresh").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("client+wdk_fresh@clients.workdesk.local").
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(t, r, "/auth/client-login", `{"key":"wdk_fresh"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"tenant_id":"wdk_fresh"`)) {
		t.Errorf("principal not scoped to key tenant: %s", w.Body.String())
	}
}

func TestClientLogin_UsedKey(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	mock.ExpectExec(`UPDATE client_keys\s+SET used = true, locked = true`).
		WithArgs("wdk_spent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := postJSON(t, r, "/auth/client-login", `{"key":"wdk_spent"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for used key", w.Code)
	}
}

func TestClientLogin_ReusesExistingAccount(t *testing.T) {
	mock, r, _ := newAuthRouter(t)

	mock.ExpectExec(`UPDATE client_keys\s+SET used = true, locked = true`).
		WithArgs("wdk_back").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("client+wdk_back@clients.workdesk.local").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("client-1", "client+wdk_back@clients.workdesk.local", "Client",
				"client", nil, nil, time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(t, r, "/auth/client-login", `{"key":"wdk_back"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("account should be reused, not recreated: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestLogout_ClientUnlocksKey(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuthHandlers(testConfig(), db)

	r := gin.New()
	r.POST("/auth/logout", func(c *gin.Context) {
		c.Set(middleware.PrincipalKey, &auth.Principal{
			Kind: auth.KindClient, UserID: "client-1", TenantID: "wdk_abc",
		})
		c.Set(middleware.SessionIDKey, "sess-1")
		c.Next()
	}, h.LogoutHandler())

	mock.ExpectExec(`DELETE FROM sessions WHERE id`).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions WHERE is_client`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE client_keys\s+SET locked = false`).
		WithArgs("wdk_abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/auth/logout", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("key was not unlocked: %v", err)
	}
}

func TestLogout_AdminDoesNotTouchKeys(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuthHandlers(testConfig(), db)

	r := gin.New()
	r.POST("/auth/logout", func(c *gin.Context) {
		c.Set(middleware.PrincipalKey, &auth.Principal{Kind: auth.KindAdmin, UserID: "admin-1"})
		c.Set(middleware.SessionIDKey, "sess-2")
		c.Next()
	}, h.LogoutHandler())

	mock.ExpectExec(`DELETE FROM sessions WHERE id`).
		WithArgs("sess-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/auth/logout", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database work on admin logout: %v", err)
	}
}
