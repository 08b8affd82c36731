// comments.go implements threaded comments and reactions on projects and
// tasks.
//
// Attribution is dual-mode and exactly one author field is ever set: a client
// comment stores the tenant token (clients share one generic account row, so
// a user id would not distinguish tenants), an admin comment stores the
// admin's user id. Ownership checks honor both modes; admins may additionally
// delete any comment.
package portal

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// CommentHandlers handles comment and reaction endpoints
type CommentHandlers struct {
	cfg         *config.Config
	commentRepo *repositories.CommentRepository
	projectRepo *repositories.ProjectRepository
	taskRepo    *repositories.TaskRepository
}

// NewCommentHandlers creates a new CommentHandlers instance
func NewCommentHandlers(cfg *config.Config, db *sql.DB) *CommentHandlers {
	return &CommentHandlers{
		cfg:         cfg,
		commentRepo: repositories.NewCommentRepository(db),
		projectRepo: repositories.NewProjectRepository(db),
		taskRepo:    repositories.NewTaskRepository(db),
	}
}

// CreateCommentRequest is the body for creating a comment. ParentID makes the
// comment a reply; the parent must live on the same entity.
type CreateCommentRequest struct {
	Body     string  `json:"body" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// stampAuthor sets exactly one author field from the principal.
func stampAuthor(comment *models.Comment, p *auth.Principal) {
	if p.Kind == auth.KindClient {
		tenant := p.TenantID
		comment.AuthorTenantID = &tenant
		return
	}
	userID := p.UserID
	comment.AuthorUserID = &userID
}

// validateParent checks that a reply's parent exists on the same entity.
// Returns false after writing the error response.
func (h *CommentHandlers) validateParent(c *gin.Context, parentID string, projectID, taskID *string) bool {
	parent, err := h.commentRepo.GetCommentByID(c.Request.Context(), parentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return false
	}
	if parent == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parent comment not found"})
		return false
	}
	sameProject := projectID != nil && parent.ProjectID != nil && *parent.ProjectID == *projectID
	sameTask := taskID != nil && parent.TaskID != nil && *parent.TaskID == *taskID
	if !sameProject && !sameTask {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parent comment belongs to a different thread"})
		return false
	}
	return true
}

// ListProjectCommentsHandler returns a project's comment thread, replies
// nested under their parents. The project route guard has already verified
// tenant access.
// GET /api/v1/projects/:projectID/comments
func (h *CommentHandlers) ListProjectCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		comments, err := h.commentRepo.ListCommentsForProject(c.Request.Context(), c.Param("projectID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list comments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"comments": comments})
	}
}

// CreateProjectCommentHandler adds a comment (or reply) to a project
// POST /api/v1/projects/:projectID/comments
func (h *CommentHandlers) CreateProjectCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Body is required"})
			return
		}

		_, p := tenantScope(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		projectID := c.Param("projectID")
		if req.ParentID != nil && !h.validateParent(c, *req.ParentID, &projectID, nil) {
			return
		}

		comment := &models.Comment{
			ProjectID: &projectID,
			ParentID:  req.ParentID,
			Body:      req.Body,
		}
		stampAuthor(comment, p)

		if err := h.commentRepo.CreateComment(c.Request.Context(), comment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"comment": comment})
	}
}

// authorizedTask loads a task and verifies tenant access for comment routes.
func (h *CommentHandlers) authorizedTask(c *gin.Context) *models.Task {
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

// ListTaskCommentsHandler returns a task's comment thread
// GET /api/v1/tasks/:taskID/comments
func (h *CommentHandlers) ListTaskCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		task := h.authorizedTask(c)
		if task == nil {
			return
		}

		comments, err := h.commentRepo.ListCommentsForTask(c.Request.Context(), task.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list comments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"comments": comments})
	}
}

// CreateTaskCommentHandler adds a comment (or reply) to a task
// POST /api/v1/tasks/:taskID/comments
func (h *CommentHandlers) CreateTaskCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Body is required"})
			return
		}

		task := h.authorizedTask(c)
		if task == nil {
			return
		}
		if req.ParentID != nil && !h.validateParent(c, *req.ParentID, nil, &task.ID) {
			return
		}

		_, p := tenantScope(c)
		comment := &models.Comment{
			TaskID:   &task.ID,
			ParentID: req.ParentID,
			Body:     req.Body,
		}
		stampAuthor(comment, p)

		if err := h.commentRepo.CreateComment(c.Request.Context(), comment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"comment": comment})
	}
}

// commentTenant resolves the tenant owning the entity a comment hangs off.
// Returns "" when the entity is gone.
func (h *CommentHandlers) commentTenant(c *gin.Context, comment *models.Comment) (string, error) {
	if comment.ProjectID != nil {
		return h.projectRepo.ProjectTenant(c.Request.Context(), *comment.ProjectID)
	}
	if comment.TaskID != nil {
		task, err := h.taskRepo.GetTaskByID(c.Request.Context(), *comment.TaskID)
		if err != nil || task == nil {
			return "", err
		}
		return task.TenantID, nil
	}
	return "", nil
}

// getAuthorizedComment loads a comment by the :commentID param and verifies
// the caller may touch the entity it hangs off. Writes the error response and
// returns nil when not.
func (h *CommentHandlers) getAuthorizedComment(c *gin.Context) *models.Comment {
	comment, err := h.commentRepo.GetCommentByID(c.Request.Context(), c.Param("commentID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comment"})
		return nil
	}
	if comment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return nil
	}

	tenant, err := h.commentTenant(c, comment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comment"})
		return nil
	}
	if tenant == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return nil
	}

	_, p := tenantScope(c)
	if err := auth.AuthorizeTenantAccess(p, tenant); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil
	}
	return comment
}

// DeleteCommentHandler removes a comment. The author may delete their own
// comment; admins may delete any.
// DELETE /api/v1/comments/:commentID
func (h *CommentHandlers) DeleteCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		comment := h.getAuthorizedComment(c)
		if comment == nil {
			return
		}

		_, p := tenantScope(c)
		owns := comment.OwnedByAdmin(p.UserID) || comment.OwnedByTenant(p.TenantID)
		if !owns && !p.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the author may delete this comment"})
			return
		}

		if err := h.commentRepo.DeleteComment(c.Request.Context(), comment.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
	}
}

// ReactionRequest is the body for toggling a reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ToggleReactionHandler adds the caller's reaction to a comment, or removes
// it if already present. At most one reaction per reactor per emoji.
// POST /api/v1/comments/:commentID/reactions
func (h *CommentHandlers) ToggleReactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Emoji is required"})
			return
		}

		comment := h.getAuthorizedComment(c)
		if comment == nil {
			return
		}

		_, p := tenantScope(c)
		var reactorUserID, reactorTenantID *string
		if p.Kind == auth.KindClient {
			tenant := p.TenantID
			reactorTenantID = &tenant
		} else {
			userID := p.UserID
			reactorUserID = &userID
		}

		added, err := h.commentRepo.ToggleReaction(c.Request.Context(), comment.ID, req.Emoji, reactorUserID, reactorTenantID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle reaction"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"added": added})
	}
}
