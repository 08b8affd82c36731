// users.go implements admin account management: listing, creating, updating,
// and deleting administrator users. Client accounts are never managed here;
// they are created implicitly by key consumption and die with their tenant.
package admin

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

// UserHandlers handles admin account management endpoints
type UserHandlers struct {
	cfg      *config.Config
	userRepo *repositories.UserRepository
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(cfg *config.Config, db *sql.DB) *UserHandlers {
	return &UserHandlers{
		cfg:      cfg,
		userRepo: repositories.NewUserRepository(db),
	}
}

// ListAdminsHandler lists administrator accounts with pagination
// GET /api/v1/admin/users?page=1&per_page=20
func (h *UserHandlers) ListAdminsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		users, err := h.userRepo.ListAdmins(c.Request.Context(), perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
			return
		}

		total, err := h.userRepo.CountAdmins(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"users": users,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// GetUserHandler retrieves a specific user by ID
// GET /api/v1/admin/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.userRepo.GetUserByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// CreateAdminRequest is the body for creating a new administrator.
type CreateAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=12"`
}

// CreateAdminHandler creates a new administrator account
// POST /api/v1/admin/users
func (h *UserHandlers) CreateAdminHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAdminRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email, name, and a password of at least 12 characters are required"})
			return
		}

		existing, err := h.userRepo.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "A user with that email already exists"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}

		user := &models.User{
			Email:        req.Email,
			Name:         req.Name,
			Role:         models.RoleAdmin,
			PasswordHash: &hash,
		}
		if err := h.userRepo.CreateUser(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// UpdateUserRequest is the body for updating an administrator. Empty fields
// are left unchanged.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UpdateUserHandler updates an administrator's name or password
// PUT /api/v1/admin/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if !user.IsAdmin() {
			c.JSON(http.StatusConflict, gin.H{"error": "Client accounts cannot be edited"})
			return
		}

		if req.Name != "" {
			user.Name = req.Name
		}
		if req.Password != "" {
			if len(req.Password) < 12 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 12 characters"})
				return
			}
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
				return
			}
			user.PasswordHash = &hash
		}

		if err := h.userRepo.UpdateUser(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// DeleteUserHandler deletes an administrator account. Self-deletion is
// refused so the caller cannot strand an active session, and the last admin
// cannot be removed.
// DELETE /api/v1/admin/users/:id
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		if p := middleware.GetPrincipal(c); p != nil && p.UserID == userID {
			c.JSON(http.StatusConflict, gin.H{"error": "You cannot delete your own account"})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		if user.IsAdmin() {
			total, err := h.userRepo.CountAdmins(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
				return
			}
			if total <= 1 {
				c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete the last administrator"})
				return
			}
		}

		if err := h.userRepo.DeleteUser(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}
