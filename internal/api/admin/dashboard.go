// dashboard.go implements the cross-tenant statistics endpoint backing the
// admin dashboard.
package admin

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// DashboardHandlers handles the admin statistics endpoint
type DashboardHandlers struct {
	cfg         *config.Config
	keyRepo     *repositories.ClientKeyRepository
	userRepo    *repositories.UserRepository
	projectRepo *repositories.ProjectRepository
	taskRepo    *repositories.TaskRepository
	invoiceRepo *repositories.InvoiceRepository
}

// NewDashboardHandlers creates a new DashboardHandlers instance
func NewDashboardHandlers(cfg *config.Config, db *sql.DB) *DashboardHandlers {
	return &DashboardHandlers{
		cfg:         cfg,
		keyRepo:     repositories.NewClientKeyRepository(db),
		userRepo:    repositories.NewUserRepository(db),
		projectRepo: repositories.NewProjectRepository(db),
		taskRepo:    repositories.NewTaskRepository(db),
		invoiceRepo: repositories.NewInvoiceRepository(db),
	}
}

// StatsHandler returns portal-wide counts. All queries run unscoped — the
// empty tenant argument means every tenant, a reading only the admin surface
// is allowed to make.
// GET /api/v1/admin/stats
func (h *DashboardHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		totalKeys, usedKeys, lockedKeys, err := h.keyRepo.KeyUsageCounts(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}

		admins, err := h.userRepo.CountAdmins(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}

		projectCounts, err := h.projectRepo.ProjectStatusCounts(ctx, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}

		taskCounts, err := h.taskRepo.TaskStatusCounts(ctx, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}

		outstanding, err := h.invoiceRepo.OutstandingCents(ctx, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"client_keys": gin.H{
				"total":  totalKeys,
				"used":   usedKeys,
				"locked": lockedKeys,
			},
			"admins":            admins,
			"projects":          projectCounts,
			"tasks":             taskCounts,
			"outstanding_cents": outstanding,
		})
	}
}
