// attachment.go defines the Attachment model: file uploads bound to a project,
// task, or comment, stored through a pluggable storage backend.
package models

import "time"

// Attachment entity types.
const (
	AttachProject = "project"
	AttachTask    = "task"
	AttachComment = "comment"
)

// ValidAttachmentEntity reports whether t is an attachable entity type.
func ValidAttachmentEntity(t string) bool {
	return t == AttachProject || t == AttachTask || t == AttachComment
}

// Attachment represents an uploaded file. TenantID is nil for files attached
// by admins to entities they do not tenant-stamp (the entity's own tenant
// still governs read access).
type Attachment struct {
	ID                 string    `json:"id" db:"id"`
	TenantID           *string   `json:"tenant_id,omitempty" db:"tenant_id"`
	EntityType         string    `json:"entity_type" db:"entity_type"`
	EntityID           string    `json:"entity_id" db:"entity_id"`
	Filename           string    `json:"filename" db:"filename"`
	ContentType        string    `json:"content_type" db:"content_type"`
	SizeBytes          int64     `json:"size_bytes" db:"size_bytes"`
	Checksum           string    `json:"checksum" db:"checksum"`
	StoragePath        string    `json:"-" db:"storage_path"`
	UploadedByUserID   *string   `json:"uploaded_by_user_id,omitempty" db:"uploaded_by_user_id"`
	UploadedByTenantID *string   `json:"uploaded_by_tenant_id,omitempty" db:"uploaded_by_tenant_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
