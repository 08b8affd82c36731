package admin

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/middleware"
)

var ckCols = []string{
	"id", "token", "label", "used", "locked", "locked_at", "created_by", "created_at",
}

func keyTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.ClientKeys.Prefix = "wdk_"
	return cfg
}

// asAdmin seeds the request context the way the auth middleware would for an
// administrator session.
func asAdmin(c *gin.Context) {
	c.Set(middleware.PrincipalKey, &auth.Principal{Kind: auth.KindAdmin, UserID: "admin-1"})
	c.Next()
}

func newKeyRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewClientKeyHandlers(keyTestConfig(), db)

	r := gin.New()
	g := r.Group("/admin", asAdmin)
	g.POST("/client-keys", h.GenerateKeyHandler())
	g.GET("/client-keys", h.ListKeysHandler())
	g.GET("/client-keys/:id", h.GetKeyHandler())
	g.POST("/client-keys/:id/unlock", h.ForceUnlockHandler())
	g.DELETE("/client-keys/:id", h.DeleteKeyHandler())
	return mock, r
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerateKey(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectQuery(`INSERT INTO client_keys`).
		WithArgs(sqlmock.AnyArg(), "Acme Corp", "admin-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/client-keys",
		bytes.NewBufferString(`{"label":"Acme Corp"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"token":"wdk_`)) {
		t.Errorf("token missing configured prefix: %s", w.Body.String())
	}
}

func TestGenerateKey_MissingLabel(t *testing.T) {
	_, r := newKeyRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/client-keys", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Unlock
// ---------------------------------------------------------------------------

func TestForceUnlock(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectExec(`UPDATE client_keys\s+SET locked = false, locked_at = NULL\s+WHERE id`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/admin/client-keys/7/unlock", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestForceUnlock_UnknownKey(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectExec(`UPDATE client_keys\s+SET locked = false`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/admin/client-keys/99/unlock", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestForceUnlock_BadID(t *testing.T) {
	_, r := newKeyRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/admin/client-keys/abc/unlock", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDeleteKey_RefusedWhileReferenced(t *testing.T) {
	mock, r := newKeyRouter(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM client_keys WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(ckCols).
			AddRow(int64(7), "wdk_abc", "Acme Corp", true, false, nil, "admin-1", now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM projects WHERE tenant_id`).
		WithArgs("wdk_abc").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/admin/client-keys/7", nil))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 while projects reference the key", w.Code)
	}
}

func TestDeleteKey_NotFound(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectQuery(`SELECT .+ FROM client_keys WHERE id`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(ckCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/admin/client-keys/99", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
