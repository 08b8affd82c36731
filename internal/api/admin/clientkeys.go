// Package admin implements the administrator-only API surface: client key
// issuance and lifecycle, admin account management, cross-tenant statistics,
// and the audit trail. Every route in this package sits behind
// middleware.RequireAdmin.
package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
	"github.com/workdesk/workdesk/internal/middleware"
)

// ClientKeyHandlers handles client key management endpoints
type ClientKeyHandlers struct {
	cfg     *config.Config
	keyRepo *repositories.ClientKeyRepository
}

// NewClientKeyHandlers creates a new ClientKeyHandlers instance
func NewClientKeyHandlers(cfg *config.Config, db *sql.DB) *ClientKeyHandlers {
	return &ClientKeyHandlers{
		cfg:     cfg,
		keyRepo: repositories.NewClientKeyRepository(db),
	}
}

// GenerateKeyRequest is the body for creating a new client key.
type GenerateKeyRequest struct {
	Label string `json:"label" binding:"required"`
}

// GenerateKeyHandler mints a new single-use client key. The token is returned
// here and on later listings; it is handed to the client out-of-band and
// doubles as the tenant identifier once consumed.
// POST /api/v1/admin/client-keys
func (h *ClientKeyHandlers) GenerateKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GenerateKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Label is required"})
			return
		}

		token, err := auth.GenerateClientKey(h.cfg.Auth.ClientKeys.Prefix)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate key"})
			return
		}

		key := &models.ClientKey{
			Token: token,
			Label: req.Label,
		}
		if p := middleware.GetPrincipal(c); p != nil {
			key.CreatedBy = &p.UserID
		}

		if err := h.keyRepo.CreateKey(c.Request.Context(), key); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store key"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"key": key})
	}
}

// ListKeysHandler lists all client keys, newest first
// GET /api/v1/admin/client-keys?page=1&per_page=20
func (h *ClientKeyHandlers) ListKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		keys, err := h.keyRepo.ListKeys(c.Request.Context(), perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list keys"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"keys": keys,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// GetKeyHandler retrieves one client key by id
// GET /api/v1/admin/client-keys/:id
func (h *ClientKeyHandlers) GetKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key id"})
			return
		}

		key, err := h.keyRepo.GetKeyByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve key"})
			return
		}
		if key == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client key not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"key": key})
	}
}

// ForceUnlockHandler clears the lock on a key whose session ended without a
// logout. It touches only the lock: a used key stays used and can never log
// in again.
// POST /api/v1/admin/client-keys/:id/unlock
func (h *ClientKeyHandlers) ForceUnlockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key id"})
			return
		}

		unlocked, err := h.keyRepo.ForceUnlock(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unlock key"})
			return
		}
		if !unlocked {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client key not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Key unlocked"})
	}
}

// DeleteKeyHandler removes a client key. Keys whose tenant still owns projects
// are refused: deleting the key would orphan that tenant's data.
// DELETE /api/v1/admin/client-keys/:id
func (h *ClientKeyHandlers) DeleteKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key id"})
			return
		}

		switch err := h.keyRepo.DeleteKey(c.Request.Context(), id); {
		case err == nil:
		case errors.Is(err, repositories.ErrKeyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Client key not found"})
			return
		case errors.Is(err, repositories.ErrKeyReferenced):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete key"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Key deleted"})
	}
}
