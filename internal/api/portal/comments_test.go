package portal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/config"
)

var commentCols = []string{
	"id", "project_id", "task_id", "parent_id", "body", "author_user_id", "author_tenant_id", "created_at",
}

func newCommentRouter(t *testing.T, principal gin.HandlerFunc) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewCommentHandlers(&config.Config{}, db)

	r := gin.New()
	g := r.Group("/", principal)
	g.POST("/projects/:projectID/comments", h.CreateProjectCommentHandler())
	g.DELETE("/comments/:commentID", h.DeleteCommentHandler())
	g.POST("/comments/:commentID/reactions", h.ToggleReactionHandler())
	return mock, r
}

func postComment(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Dual attribution
// ---------------------------------------------------------------------------

func TestCreateComment_ClientStoresTenantAttribution(t *testing.T) {
	mock, r := newCommentRouter(t, asClient("wdk_abc"))

	// author_user_id nil, author_tenant_id = the principal's tenant.
	mock.ExpectExec(`INSERT INTO comments`).
		WithArgs(sqlmock.AnyArg(), "p-1", nil, nil, "hello", nil, "wdk_abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postComment(t, r, "/projects/p-1/comments", `{"body":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Comment struct {
			AuthorUserID   *string `json:"author_user_id"`
			AuthorTenantID *string `json:"author_tenant_id"`
		} `json:"comment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Comment.AuthorUserID != nil {
		t.Error("client comment must not carry a user id")
	}
	if resp.Comment.AuthorTenantID == nil || *resp.Comment.AuthorTenantID != "wdk_abc" {
		t.Errorf("author_tenant_id = %v, want wdk_abc", resp.Comment.AuthorTenantID)
	}
}

func TestCreateComment_AdminStoresUserAttribution(t *testing.T) {
	mock, r := newCommentRouter(t, asAdmin)

	mock.ExpectExec(`INSERT INTO comments`).
		WithArgs(sqlmock.AnyArg(), "p-1", nil, nil, "hello", "admin-1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postComment(t, r, "/projects/p-1/comments", `{"body":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("admin attribution not stored: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Delete ownership
// ---------------------------------------------------------------------------

func expectCommentWithProject(mock sqlmock.Sqlmock, authorUser, authorTenant interface{}, projectTenant string) {
	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM comments WHERE id`).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c-1", "p-1", nil, nil, "hello", authorUser, authorTenant, now))
	mock.ExpectQuery(`SELECT tenant_id FROM projects WHERE id`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(projectTenant))
}

func TestDeleteComment_AuthorTenantMayDelete(t *testing.T) {
	mock, r := newCommentRouter(t, asClient("wdk_abc"))
	expectCommentWithProject(mock, nil, "wdk_abc", "wdk_abc")
	mock.ExpectExec(`DELETE FROM comments WHERE id`).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/comments/c-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestDeleteComment_ClientCannotDeleteAdminComment(t *testing.T) {
	mock, r := newCommentRouter(t, asClient("wdk_abc"))
	expectCommentWithProject(mock, "admin-1", nil, "wdk_abc")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/comments/c-1", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestDeleteComment_AdminMayDeleteAny(t *testing.T) {
	mock, r := newCommentRouter(t, asAdmin)
	expectCommentWithProject(mock, nil, "wdk_abc", "wdk_abc")
	mock.ExpectExec(`DELETE FROM comments WHERE id`).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/comments/c-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestDeleteComment_ForeignTenantBlocked(t *testing.T) {
	mock, r := newCommentRouter(t, asClient("wdk_other"))
	expectCommentWithProject(mock, nil, "wdk_abc", "wdk_abc")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/comments/c-1", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 before any ownership check", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Reactions
// ---------------------------------------------------------------------------

func TestToggleReaction_ClientAttribution(t *testing.T) {
	mock, r := newCommentRouter(t, asClient("wdk_abc"))
	expectCommentWithProject(mock, "admin-1", nil, "wdk_abc")
	mock.ExpectExec(`INSERT INTO comment_reactions`).
		WithArgs(sqlmock.AnyArg(), "c-1", "👍", nil, "wdk_abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postComment(t, r, "/comments/c-1/reactions", `{"emoji":"👍"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"added":true`)) {
		t.Errorf("added flag missing: %s", w.Body.String())
	}
}
