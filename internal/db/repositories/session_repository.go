package repositories

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workdesk/workdesk/internal/db/models"
)

// SessionRepository handles server-side session database operations. Session
// tokens are stored hashed; lookups hash the presented token first.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: sqlx.NewDb(db, "postgres")}
}

// HashSessionToken returns the hex SHA-256 of a session token
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateSession inserts a session row, hashing the supplied token. The
// tenant scope of a client login is captured here, once, at login time.
func (r *SessionRepository) CreateSession(ctx context.Context, sess *models.Session, token string) error {
	sess.ID = uuid.New().String()
	sess.TokenHash = HashSessionToken(token)
	sess.CreatedAt = time.Now()

	query := `
		INSERT INTO sessions (id, token_hash, user_id, is_client, tenant_id, created_at, expires_at)
		VALUES (:id, :token_hash, :user_id, :is_client, :tenant_id, :created_at, :expires_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, sess)
	return err
}

// GetSessionByID retrieves a session by id
func (r *SessionRepository) GetSessionByID(ctx context.Context, id string) (*models.Session, error) {
	sess := &models.Session{}
	err := r.db.GetContext(ctx, sess, `SELECT * FROM sessions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSessionByToken retrieves a session by its plaintext token
func (r *SessionRepository) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	sess := &models.Session{}
	err := r.db.GetContext(ctx, sess, `SELECT * FROM sessions WHERE token_hash = $1`, HashSessionToken(token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessionsForUser returns a user's sessions, newest first
func (r *SessionRepository) ListSessionsForUser(ctx context.Context, userID string) ([]*models.Session, error) {
	var sessions []*models.Session
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT * FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session by id
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteExpiredSessions removes all sessions past their expiry as of now and
// returns how many were removed
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountActiveClientSessions returns the number of unexpired client sessions
// for a tenant. Used at logout to decide whether the tenant's key can be
// unlocked.
func (r *SessionRepository) CountActiveClientSessions(ctx context.Context, tenantID string, now time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM sessions WHERE is_client = true AND tenant_id = $1 AND expires_at >= $2`,
		tenantID, now)
	return count, err
}
