package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/workdesk/workdesk/internal/db/models"
)

// ErrKeyNotFound is returned by DeleteKey when the id does not exist.
var ErrKeyNotFound = errors.New("client key not found")

// ErrKeyReferenced is returned by DeleteKey when the key's tenant token still
// scopes live projects.
var ErrKeyReferenced = errors.New("client key is still referenced by tenant data")

// ClientKeyRepository handles client key database operations.
//
// Consume, Unlock, and ReleaseStaleLocks are the three state transitions of a
// key's lifecycle; each is a single conditional UPDATE so concurrent logins
// against the same token resolve at the database rather than in Go.
type ClientKeyRepository struct {
	db *sql.DB
}

// NewClientKeyRepository creates a new ClientKeyRepository
func NewClientKeyRepository(db *sql.DB) *ClientKeyRepository {
	return &ClientKeyRepository{db: db}
}

const clientKeyColumns = `id, token, label, used, locked, locked_at, created_by, created_at`

// CreateKey inserts a freshly generated key. The caller supplies the token;
// the database assigns the id.
func (r *ClientKeyRepository) CreateKey(ctx context.Context, key *models.ClientKey) error {
	key.CreatedAt = time.Now()

	query := `
		INSERT INTO client_keys (token, label, used, locked, created_by, created_at)
		VALUES ($1, $2, false, false, $3, $4)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		key.Token,
		key.Label,
		key.CreatedBy,
		key.CreatedAt,
	).Scan(&key.ID)
}

func scanClientKey(row *sql.Row) (*models.ClientKey, error) {
	key := &models.ClientKey{}
	err := row.Scan(
		&key.ID,
		&key.Token,
		&key.Label,
		&key.Used,
		&key.Locked,
		&key.LockedAt,
		&key.CreatedBy,
		&key.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetKeyByID retrieves a key by its numeric id
func (r *ClientKeyRepository) GetKeyByID(ctx context.Context, id int64) (*models.ClientKey, error) {
	query := `SELECT ` + clientKeyColumns + ` FROM client_keys WHERE id = $1`
	return scanClientKey(r.db.QueryRowContext(ctx, query, id))
}

// GetKeyByToken retrieves a key by its token value
func (r *ClientKeyRepository) GetKeyByToken(ctx context.Context, token string) (*models.ClientKey, error) {
	query := `SELECT ` + clientKeyColumns + ` FROM client_keys WHERE token = $1`
	return scanClientKey(r.db.QueryRowContext(ctx, query, token))
}

// ListKeys returns all keys ordered newest first
func (r *ClientKeyRepository) ListKeys(ctx context.Context, limit, offset int) ([]*models.ClientKey, error) {
	query := `
		SELECT ` + clientKeyColumns + `
		FROM client_keys
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.ClientKey
	for rows.Next() {
		key := &models.ClientKey{}
		if err := rows.Scan(
			&key.ID,
			&key.Token,
			&key.Label,
			&key.Used,
			&key.Locked,
			&key.LockedAt,
			&key.CreatedBy,
			&key.CreatedAt,
		); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// Consume marks an unused key as used and locked in one atomic statement.
// Returns true if this call won the key, false if the token does not exist or
// was already used. Two concurrent logins with the same token race on the
// used = false predicate; exactly one sees RowsAffected = 1.
func (r *ClientKeyRepository) Consume(ctx context.Context, token string) (bool, error) {
	query := `
		UPDATE client_keys
		SET used = true, locked = true, locked_at = NOW()
		WHERE token = $1 AND used = false
	`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// Lock re-locks a used key for a returning login session
func (r *ClientKeyRepository) Lock(ctx context.Context, token string) error {
	query := `
		UPDATE client_keys
		SET locked = true, locked_at = NOW()
		WHERE token = $1
	`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// Unlock clears the lock on a key, typically at logout. Used stays true; the
// lock and the used latch move independently.
func (r *ClientKeyRepository) Unlock(ctx context.Context, token string) error {
	query := `
		UPDATE client_keys
		SET locked = false, locked_at = NULL
		WHERE token = $1
	`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// ForceUnlock clears the lock on a key by id regardless of state. Admin-only
// recovery for sessions that ended without a logout.
func (r *ClientKeyRepository) ForceUnlock(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE client_keys
		SET locked = false, locked_at = NULL
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ReleaseStaleLocks unlocks every key whose lock is older than timeout as of
// now and returns how many were released. Idempotent: a second sweep over the
// same state releases nothing.
func (r *ClientKeyRepository) ReleaseStaleLocks(ctx context.Context, now time.Time, timeout time.Duration) (int64, error) {
	query := `
		UPDATE client_keys
		SET locked = false, locked_at = NULL
		WHERE locked = true AND locked_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, now.Add(-timeout))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// KeyUsageCounts returns the total number of keys plus how many are used and
// how many are currently locked, in one query.
func (r *ClientKeyRepository) KeyUsageCounts(ctx context.Context) (total, used, locked int, err error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE used),
		       COUNT(*) FILTER (WHERE locked)
		FROM client_keys
	`
	err = r.db.QueryRowContext(ctx, query).Scan(&total, &used, &locked)
	return total, used, locked, err
}

// DeleteKey removes a key. Keys whose tenant token still scopes live data are
// protected: deleting one would orphan every project under that tenant, so
// the delete is refused while references exist.
func (r *ClientKeyRepository) DeleteKey(ctx context.Context, id int64) error {
	key, err := r.GetKeyByID(ctx, id)
	if err != nil {
		return err
	}
	if key == nil {
		return ErrKeyNotFound
	}

	var refs int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE tenant_id = $1`,
		key.Token,
	).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: %d project(s)", ErrKeyReferenced, refs)
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM client_keys WHERE id = $1`, id)
	return err
}
