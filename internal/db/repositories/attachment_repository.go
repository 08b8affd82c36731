package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workdesk/workdesk/internal/db/models"
)

// AttachmentRepository handles attachment metadata database operations. The
// file bytes themselves live in a storage backend; rows here only reference
// them by storage path.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository creates a new AttachmentRepository
func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: sqlx.NewDb(db, "postgres")}
}

// CreateAttachment inserts an attachment metadata row
func (r *AttachmentRepository) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	att.ID = uuid.New().String()
	att.CreatedAt = time.Now()

	query := `
		INSERT INTO attachments (id, tenant_id, entity_type, entity_id, filename, content_type, size_bytes, checksum, storage_path, uploaded_by_user_id, uploaded_by_tenant_id, created_at)
		VALUES (:id, :tenant_id, :entity_type, :entity_id, :filename, :content_type, :size_bytes, :checksum, :storage_path, :uploaded_by_user_id, :uploaded_by_tenant_id, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, att)
	return err
}

// GetAttachmentByID retrieves an attachment by ID
func (r *AttachmentRepository) GetAttachmentByID(ctx context.Context, id string) (*models.Attachment, error) {
	att := &models.Attachment{}
	err := r.db.GetContext(ctx, att, `SELECT * FROM attachments WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return att, nil
}

// ListAttachmentsForEntity returns an entity's attachments, oldest first
func (r *AttachmentRepository) ListAttachmentsForEntity(ctx context.Context, entityType, entityID string) ([]*models.Attachment, error) {
	var atts []*models.Attachment
	err := r.db.SelectContext(ctx, &atts, `
		SELECT * FROM attachments
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return atts, nil
}

// DeleteAttachment removes an attachment metadata row. The caller removes
// the stored bytes separately.
func (r *AttachmentRepository) DeleteAttachment(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	return err
}

// TotalSizeForTenant returns the total stored bytes attributed to a tenant
func (r *AttachmentRepository) TotalSizeForTenant(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM attachments WHERE tenant_id = $1`, tenantID)
	return total, err
}
