// dashboard.go implements the role-scoped dashboard endpoint: clients see
// their tenant's numbers, admins see portal-wide ones.
package portal

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// upcomingWindow is how far ahead the dashboard looks for due tasks.
const upcomingWindow = 7 * 24 * time.Hour

// DashboardHandlers handles the portal dashboard endpoint
type DashboardHandlers struct {
	cfg         *config.Config
	projectRepo *repositories.ProjectRepository
	taskRepo    *repositories.TaskRepository
	invoiceRepo *repositories.InvoiceRepository
}

// NewDashboardHandlers creates a new DashboardHandlers instance
func NewDashboardHandlers(cfg *config.Config, db *sql.DB) *DashboardHandlers {
	return &DashboardHandlers{
		cfg:         cfg,
		projectRepo: repositories.NewProjectRepository(db),
		taskRepo:    repositories.NewTaskRepository(db),
		invoiceRepo: repositories.NewInvoiceRepository(db),
	}
}

// DashboardHandler returns counts scoped to the caller: a client's tenant,
// or everything for an admin
// GET /api/v1/dashboard
func (h *DashboardHandlers) DashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, p := tenantScope(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		ctx := c.Request.Context()

		projectCounts, err := h.projectRepo.ProjectStatusCounts(ctx, scope)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
			return
		}

		taskCounts, err := h.taskRepo.TaskStatusCounts(ctx, scope)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
			return
		}

		upcoming, err := h.taskRepo.ListTasksDueBefore(ctx, scope, time.Now().Add(upcomingWindow), 10)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
			return
		}

		outstanding, err := h.invoiceRepo.OutstandingCents(ctx, scope)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"projects":          projectCounts,
			"tasks":             taskCounts,
			"upcoming_tasks":    upcoming,
			"outstanding_cents": outstanding,
		})
	}
}
