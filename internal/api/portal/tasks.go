// tasks.go implements task endpoints. Tasks live under a project; the tenant
// is stamped from the owning project at creation and never changes.
package portal

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// TaskHandlers handles task endpoints
type TaskHandlers struct {
	cfg         *config.Config
	taskRepo    *repositories.TaskRepository
	projectRepo *repositories.ProjectRepository
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(cfg *config.Config, db *sql.DB) *TaskHandlers {
	return &TaskHandlers{
		cfg:         cfg,
		taskRepo:    repositories.NewTaskRepository(db),
		projectRepo: repositories.NewProjectRepository(db),
	}
}

// ListTasksHandler lists the tasks of a project. The project route guard has
// already verified tenant access.
// GET /api/v1/projects/:projectID/tasks
func (h *TaskHandlers) ListTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		tasks, err := h.taskRepo.ListTasksByProject(c.Request.Context(), c.Param("projectID"), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"tasks": tasks,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// CreateTaskRequest is the body for creating a task.
type CreateTaskRequest struct {
	Title   string     `json:"title" binding:"required"`
	Details string     `json:"details"`
	Status  string     `json:"status"`
	DueAt   *time.Time `json:"due_at"`
}

// CreateTaskHandler creates a task under a project, stamping the project's
// tenant onto the task
// POST /api/v1/projects/:projectID/tasks
func (h *TaskHandlers) CreateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
			return
		}
		if req.Status != "" && !models.ValidTaskStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task status"})
			return
		}

		project, err := h.projectRepo.GetProjectByID(c.Request.Context(), c.Param("projectID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		task := &models.Task{
			ProjectID: project.ID,
			TenantID:  project.TenantID,
			Title:     req.Title,
			Details:   req.Details,
			Status:    req.Status,
			DueAt:     req.DueAt,
		}
		if err := h.taskRepo.CreateTask(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"task": task})
	}
}

// getAuthorizedTask loads a task by the :taskID param and verifies the caller
// may touch its tenant. Writes the error response and returns nil when not.
func (h *TaskHandlers) getAuthorizedTask(c *gin.Context) *models.Task {
	task, err := h.taskRepo.GetTaskByID(c.Request.Context(), c.Param("taskID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		return nil
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return nil
	}

	_, p := tenantScope(c)
	if err := auth.AuthorizeTenantAccess(p, task.TenantID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil
	}
	return task
}

// GetTaskHandler retrieves one task
// GET /api/v1/tasks/:taskID
func (h *TaskHandlers) GetTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		task := h.getAuthorizedTask(c)
		if task == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"task": task})
	}
}

// UpdateTaskRequest is the body for updating a task. Empty fields are left
// unchanged; DueAt is cleared by clear_due_at since null means "no change".
type UpdateTaskRequest struct {
	Title      string     `json:"title"`
	Details    *string    `json:"details"`
	Status     string     `json:"status"`
	DueAt      *time.Time `json:"due_at"`
	ClearDueAt bool       `json:"clear_due_at"`
}

// UpdateTaskHandler updates a task
// PUT /api/v1/tasks/:taskID
func (h *TaskHandlers) UpdateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Status != "" && !models.ValidTaskStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task status"})
			return
		}

		task := h.getAuthorizedTask(c)
		if task == nil {
			return
		}

		if req.Title != "" {
			task.Title = req.Title
		}
		if req.Details != nil {
			task.Details = *req.Details
		}
		if req.Status != "" {
			task.Status = req.Status
		}
		if req.DueAt != nil {
			task.DueAt = req.DueAt
		}
		if req.ClearDueAt {
			task.DueAt = nil
		}

		if err := h.taskRepo.UpdateTask(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"task": task})
	}
}

// DeleteTaskHandler removes a task
// DELETE /api/v1/tasks/:taskID
func (h *TaskHandlers) DeleteTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		task := h.getAuthorizedTask(c)
		if task == nil {
			return
		}

		if err := h.taskRepo.DeleteTask(c.Request.Context(), task.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
	}
}
