// attachments.go implements file attachments on projects, tasks, and
// comments, stored through the pluggable storage backend. Access to an
// attachment follows the tenant of the entity it is bound to.
package portal

import (
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
	"github.com/workdesk/workdesk/internal/storage"
	"github.com/workdesk/workdesk/internal/telemetry"
)

// signedURLTTL is how long S3 download links stay valid.
const signedURLTTL = 15 * time.Minute

// AttachmentHandlers handles attachment endpoints
type AttachmentHandlers struct {
	cfg            *config.Config
	store          storage.Storage
	attachmentRepo *repositories.AttachmentRepository
	projectRepo    *repositories.ProjectRepository
	taskRepo       *repositories.TaskRepository
	commentRepo    *repositories.CommentRepository
}

// NewAttachmentHandlers creates a new AttachmentHandlers instance
func NewAttachmentHandlers(cfg *config.Config, db *sql.DB, store storage.Storage) *AttachmentHandlers {
	return &AttachmentHandlers{
		cfg:            cfg,
		store:          store,
		attachmentRepo: repositories.NewAttachmentRepository(db),
		projectRepo:    repositories.NewProjectRepository(db),
		taskRepo:       repositories.NewTaskRepository(db),
		commentRepo:    repositories.NewCommentRepository(db),
	}
}

// entityTenant resolves the tenant owning an attachable entity. Returns ""
// when the entity does not exist.
func (h *AttachmentHandlers) entityTenant(c *gin.Context, entityType, entityID string) (string, error) {
	ctx := c.Request.Context()
	switch entityType {
	case models.AttachProject:
		return h.projectRepo.ProjectTenant(ctx, entityID)
	case models.AttachTask:
		task, err := h.taskRepo.GetTaskByID(ctx, entityID)
		if err != nil || task == nil {
			return "", err
		}
		return task.TenantID, nil
	case models.AttachComment:
		comment, err := h.commentRepo.GetCommentByID(ctx, entityID)
		if err != nil || comment == nil {
			return "", err
		}
		if comment.ProjectID != nil {
			return h.projectRepo.ProjectTenant(ctx, *comment.ProjectID)
		}
		if comment.TaskID != nil {
			task, err := h.taskRepo.GetTaskByID(ctx, *comment.TaskID)
			if err != nil || task == nil {
				return "", err
			}
			return task.TenantID, nil
		}
	}
	return "", nil
}

// authorizeEntity resolves and authorizes the tenant of an attachable entity.
// Writes the error response and returns "" when access is denied or the
// entity is gone.
func (h *AttachmentHandlers) authorizeEntity(c *gin.Context, entityType, entityID string) string {
	tenant, err := h.entityTenant(c, entityType, entityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve entity"})
		return ""
	}
	if tenant == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return ""
	}

	_, p := tenantScope(c)
	if err := auth.AuthorizeTenantAccess(p, tenant); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return ""
	}
	return tenant
}

// UploadAttachmentHandler accepts a multipart upload bound to a project,
// task, or comment
// POST /api/v1/attachments  (form fields: entity_type, entity_id, file)
func (h *AttachmentHandlers) UploadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		backend := h.cfg.Storage.DefaultBackend

		entityType := c.PostForm("entity_type")
		entityID := c.PostForm("entity_id")
		if !models.ValidAttachmentEntity(entityType) || entityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type must be project, task, or comment, and entity_id is required"})
			return
		}

		tenant := h.authorizeEntity(c, entityType, entityID)
		if tenant == "" {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A file is required"})
			return
		}
		if max := h.cfg.Storage.MaxUploadBytes; max > 0 && fileHeader.Size > max {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("File exceeds the %d byte upload limit", max),
			})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
			return
		}
		defer file.Close()

		filename := filepath.Base(fileHeader.Filename)
		path := fmt.Sprintf("attachments/%s/%s/%s-%s", entityType, entityID, uuid.New().String(), filename)

		result, err := h.store.Upload(c.Request.Context(), path, file, fileHeader.Size)
		if err != nil {
			telemetry.AttachmentUploadsTotal.WithLabelValues(backend, "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
			return
		}

		_, p := tenantScope(c)
		att := &models.Attachment{
			TenantID:    &tenant,
			EntityType:  entityType,
			EntityID:    entityID,
			Filename:    filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			SizeBytes:   result.Size,
			Checksum:    result.Checksum,
			StoragePath: result.Path,
		}
		if p.Kind == auth.KindClient {
			t := p.TenantID
			att.UploadedByTenantID = &t
		} else {
			u := p.UserID
			att.UploadedByUserID = &u
		}

		if err := h.attachmentRepo.CreateAttachment(c.Request.Context(), att); err != nil {
			// Best effort: do not leave an orphaned object behind.
			_ = h.store.Delete(c.Request.Context(), result.Path)
			telemetry.AttachmentUploadsTotal.WithLabelValues(backend, "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attachment"})
			return
		}

		telemetry.AttachmentUploadsTotal.WithLabelValues(backend, "success").Inc()
		c.JSON(http.StatusCreated, gin.H{"attachment": att})
	}
}

// ListAttachmentsHandler lists the attachments bound to one entity
// GET /api/v1/attachments?entity_type=task&entity_id=...
func (h *AttachmentHandlers) ListAttachmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entityType := c.Query("entity_type")
		entityID := c.Query("entity_id")
		if !models.ValidAttachmentEntity(entityType) || entityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type and entity_id are required"})
			return
		}

		if tenant := h.authorizeEntity(c, entityType, entityID); tenant == "" {
			return
		}

		attachments, err := h.attachmentRepo.ListAttachmentsForEntity(c.Request.Context(), entityType, entityID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attachments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"attachments": attachments})
	}
}

// getAuthorizedAttachment loads an attachment by the :attachmentID param and
// verifies tenant access. Writes the error response and returns nil when not.
func (h *AttachmentHandlers) getAuthorizedAttachment(c *gin.Context) *models.Attachment {
	att, err := h.attachmentRepo.GetAttachmentByID(c.Request.Context(), c.Param("attachmentID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve attachment"})
		return nil
	}
	if att == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
		return nil
	}

	tenant := ""
	if att.TenantID != nil {
		tenant = *att.TenantID
	}
	if tenant == "" {
		// Older rows without a stamp fall back to the entity's tenant.
		tenant, err = h.entityTenant(c, att.EntityType, att.EntityID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve attachment"})
			return nil
		}
	}
	if tenant == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
		return nil
	}

	_, p := tenantScope(c)
	if err := auth.AuthorizeTenantAccess(p, tenant); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil
	}
	return att
}

// GetAttachmentHandler returns an attachment's metadata
// GET /api/v1/attachments/:attachmentID
func (h *AttachmentHandlers) GetAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		att := h.getAuthorizedAttachment(c)
		if att == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"attachment": att})
	}
}

// DownloadAttachmentHandler serves an attachment's content: a direct stream
// for local storage, a redirect to a signed URL for S3.
// GET /api/v1/attachments/:attachmentID/download
func (h *AttachmentHandlers) DownloadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		att := h.getAuthorizedAttachment(c)
		if att == nil {
			return
		}

		if h.cfg.Storage.DefaultBackend == "s3" {
			url, err := h.store.GetURL(c.Request.Context(), att.StoragePath, signedURLTTL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download URL"})
				return
			}
			c.Redirect(http.StatusFound, url)
			return
		}

		reader, err := h.store.Download(c.Request.Context(), att.StoragePath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
			return
		}
		defer reader.Close()

		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
		c.DataFromReader(http.StatusOK, att.SizeBytes, contentType, reader, nil)
	}
}

// DeleteAttachmentHandler removes an attachment's row and stored object
// DELETE /api/v1/attachments/:attachmentID
func (h *AttachmentHandlers) DeleteAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		att := h.getAuthorizedAttachment(c)
		if att == nil {
			return
		}

		if err := h.store.Delete(c.Request.Context(), att.StoragePath); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
			return
		}
		if err := h.attachmentRepo.DeleteAttachment(c.Request.Context(), att.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete attachment"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted"})
	}
}
