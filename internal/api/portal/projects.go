// Package portal implements the tenant-facing API surface: projects, tasks,
// threaded comments, invoices, attachments, and the role-scoped dashboard.
//
// Every handler works from the Principal the auth middleware resolved — it
// never re-derives identity from tokens or account rows. Reads pass the
// principal's tenant scope into the repository (empty scope for admins means
// unscoped); writes verify the target's tenant with auth.AuthorizeTenantAccess
// before touching anything.
package portal

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
	"github.com/workdesk/workdesk/internal/middleware"
)

// ProjectHandlers handles project endpoints
type ProjectHandlers struct {
	cfg         *config.Config
	projectRepo *repositories.ProjectRepository
}

// NewProjectHandlers creates a new ProjectHandlers instance
func NewProjectHandlers(cfg *config.Config, db *sql.DB) *ProjectHandlers {
	return &ProjectHandlers{
		cfg:         cfg,
		projectRepo: repositories.NewProjectRepository(db),
	}
}

// tenantScope returns the repository scope for the request principal: the
// client's tenant, or "" for admins (unscoped).
func tenantScope(c *gin.Context) (string, *auth.Principal) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		return "", nil
	}
	if p.Kind == auth.KindClient {
		return p.TenantID, p
	}
	return "", p
}

// pagination parses page/per_page query params with the portal defaults.
func pagination(c *gin.Context) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}

// ListProjectsHandler lists projects visible to the caller. Admins may narrow
// with ?tenant_id=; clients are always pinned to their own tenant.
// GET /api/v1/projects
func (h *ProjectHandlers) ListProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, p := tenantScope(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if p.IsAdmin() {
			scope = c.Query("tenant_id")
		}

		page, perPage, offset := pagination(c)
		projects, err := h.projectRepo.ListProjects(c.Request.Context(), scope, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"projects": projects,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// CreateProjectRequest is the body for creating a project. TenantID is only
// honored for admins; a client's project is always stamped with the client's
// own tenant.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	TenantID    string `json:"tenant_id"`
}

// CreateProjectHandler creates a project
// POST /api/v1/projects
func (h *ProjectHandlers) CreateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
			return
		}

		scope, p := tenantScope(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		tenantID := scope
		if p.IsAdmin() {
			tenantID = req.TenantID
		}
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
			return
		}

		project := &models.Project{
			TenantID:    tenantID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := h.projectRepo.CreateProject(c.Request.Context(), project); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"project": project})
	}
}

// GetProjectHandler retrieves one project. Tenant access is enforced by the
// route guard before this runs.
// GET /api/v1/projects/:projectID
func (h *ProjectHandlers) GetProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := h.projectRepo.GetProjectByID(c.Request.Context(), c.Param("projectID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"project": project})
	}
}

// UpdateProjectRequest is the body for updating a project. Empty fields are
// left unchanged.
type UpdateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
}

// UpdateProjectHandler updates a project's name, description, or status
// PUT /api/v1/projects/:projectID
func (h *ProjectHandlers) UpdateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if req.Status != "" && req.Status != models.ProjectActive &&
			req.Status != models.ProjectPaused && req.Status != models.ProjectArchived {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project status"})
			return
		}

		project, err := h.projectRepo.GetProjectByID(c.Request.Context(), c.Param("projectID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		if req.Name != "" {
			project.Name = req.Name
		}
		if req.Description != nil {
			project.Description = *req.Description
		}
		if req.Status != "" {
			project.Status = req.Status
		}

		if err := h.projectRepo.UpdateProject(c.Request.Context(), project); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"project": project})
	}
}

// DeleteProjectHandler removes a project and its dependent rows
// DELETE /api/v1/projects/:projectID
func (h *ProjectHandlers) DeleteProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.projectRepo.DeleteProject(c.Request.Context(), c.Param("projectID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
	}
}

// ProjectTenantLookup returns the route-guard lookup resolving a project's
// owning tenant from the :projectID path param.
func ProjectTenantLookup(projectRepo *repositories.ProjectRepository) func(c *gin.Context) (string, error) {
	return func(c *gin.Context) (string, error) {
		return projectRepo.ProjectTenant(c.Request.Context(), c.Param("projectID"))
	}
}
