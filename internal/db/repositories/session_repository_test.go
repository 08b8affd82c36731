package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/workdesk/workdesk/internal/db/models"
)

func newSessionRepo(t *testing.T) (sqlmock.Sqlmock, *SessionRepository) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewSessionRepository(db)
}

var sessionCols = []string{
	"id", "token_hash", "user_id", "is_client", "tenant_id", "created_at", "expires_at",
}

func TestCreateSession_HashesToken(t *testing.T) {
	mock, repo := newSessionRepo(t)
	tenant := "wdk_abc"

	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sess := &models.Session{
		UserID:    "user-1",
		IsClient:  true,
		TenantID:  &tenant,
		ExpiresAt: time.Now().Add(12 * time.Hour),
	}
	if err := repo.CreateSession(context.Background(), sess, "raw-token"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.TokenHash == "raw-token" || sess.TokenHash == "" {
		t.Errorf("token stored unhashed or empty: %q", sess.TokenHash)
	}
	if sess.TokenHash != HashSessionToken("raw-token") {
		t.Error("stored hash does not match HashSessionToken of the raw token")
	}
}

func TestGetSessionByToken_Found(t *testing.T) {
	mock, repo := newSessionRepo(t)
	tenant := "wdk_abc"

	mock.ExpectQuery(`SELECT \* FROM sessions WHERE token_hash`).
		WithArgs(HashSessionToken("raw-token")).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("sess-1", HashSessionToken("raw-token"), "user-1", true, &tenant,
				time.Now(), time.Now().Add(time.Hour)))

	sess, err := repo.GetSessionByToken(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("GetSessionByToken: %v", err)
	}
	if sess == nil {
		t.Fatal("session = nil, want row")
	}
	if sess.TenantID == nil || *sess.TenantID != "wdk_abc" {
		t.Errorf("TenantID = %v, want wdk_abc", sess.TenantID)
	}
}

func TestGetSessionByToken_NotFound(t *testing.T) {
	mock, repo := newSessionRepo(t)

	mock.ExpectQuery(`SELECT \* FROM sessions WHERE token_hash`).
		WithArgs(HashSessionToken("nope")).
		WillReturnRows(sqlmock.NewRows(sessionCols))

	sess, err := repo.GetSessionByToken(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSessionByToken: %v", err)
	}
	if sess != nil {
		t.Errorf("session = %+v, want nil", sess)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	mock, repo := newSessionRepo(t)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))

	removed, err := repo.DeleteExpiredSessions(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}
}

func TestCountActiveClientSessions(t *testing.T) {
	mock, repo := newSessionRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions WHERE is_client`).
		WithArgs("wdk_abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveClientSessions(context.Background(), "wdk_abc", now)
	if err != nil {
		t.Fatalf("CountActiveClientSessions: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
