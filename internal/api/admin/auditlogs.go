// auditlogs.go exposes the audit trail to administrators: filtered listing
// and retention purges.
package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// AuditLogHandlers handles audit trail endpoints
type AuditLogHandlers struct {
	cfg       *config.Config
	auditRepo *repositories.AuditRepository
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(cfg *config.Config, db *sql.DB) *AuditLogHandlers {
	return &AuditLogHandlers{
		cfg:       cfg,
		auditRepo: repositories.NewAuditRepository(db),
	}
}

// ListAuditLogsHandler lists audit events, newest first. Filters combine:
// action, user_id, tenant_id, and since (RFC 3339).
// GET /api/v1/admin/audit-logs?action=&user_id=&tenant_id=&since=&page=1&per_page=50
func (h *AuditLogHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 200 {
			perPage = 50
		}

		filter := repositories.AuditLogFilter{
			Action:   c.Query("action"),
			UserID:   c.Query("user_id"),
			TenantID: c.Query("tenant_id"),
		}
		if since := c.Query("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
				return
			}
			filter.Since = t
		}

		logs, err := h.auditRepo.ListAuditLogs(c.Request.Context(), filter, perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// PurgeAuditLogsHandler removes audit events older than the given cutoff
// DELETE /api/v1/admin/audit-logs?before=2026-01-01T00:00:00Z
func (h *AuditLogHandlers) PurgeAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		before := c.Query("before")
		if before == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before is required"})
			return
		}
		cutoff, err := time.Parse(time.RFC3339, before)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC 3339 timestamp"})
			return
		}

		purged, err := h.auditRepo.PurgeAuditLogsBefore(c.Request.Context(), cutoff)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"purged": purged})
	}
}
