package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workdesk/workdesk/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog records an audit event
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	query := `
		INSERT INTO audit_logs (id, action, user_id, tenant_id, resource_type, resource_id, ip_address, auth_method, status_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.Action,
		log.UserID,
		log.TenantID,
		log.ResourceType,
		log.ResourceID,
		log.IPAddress,
		log.AuthMethod,
		log.StatusCode,
		log.CreatedAt,
	)

	return err
}

// AuditLogFilter narrows ListAuditLogs results. Zero values mean no filter.
type AuditLogFilter struct {
	Action   string
	UserID   string
	TenantID string
	Since    time.Time
}

// ListAuditLogs returns audit events matching the filter, newest first
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filter AuditLogFilter, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, action, user_id, tenant_id, resource_type, resource_id, ip_address, auth_method, status_code, created_at
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		if err := rows.Scan(
			&log.ID,
			&log.Action,
			&log.UserID,
			&log.TenantID,
			&log.ResourceType,
			&log.ResourceID,
			&log.IPAddress,
			&log.AuthMethod,
			&log.StatusCode,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// PurgeAuditLogsBefore removes audit events older than the cutoff and
// returns how many were removed
func (r *AuditRepository) PurgeAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
