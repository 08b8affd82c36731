// invoices.go implements invoice and payment endpoints. Amounts are integer
// cents throughout. Clients get read-only access to their tenant's invoices;
// all mutations are admin routes.
package portal

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// InvoiceHandlers handles invoice and payment endpoints
type InvoiceHandlers struct {
	cfg         *config.Config
	invoiceRepo *repositories.InvoiceRepository
}

// NewInvoiceHandlers creates a new InvoiceHandlers instance
func NewInvoiceHandlers(cfg *config.Config, db *sql.DB) *InvoiceHandlers {
	return &InvoiceHandlers{
		cfg:         cfg,
		invoiceRepo: repositories.NewInvoiceRepository(db),
	}
}

func validInvoiceStatus(s string) bool {
	return s == models.InvoiceDraft || s == models.InvoiceSent ||
		s == models.InvoicePaid || s == models.InvoiceVoid
}

// ListInvoicesHandler lists invoices visible to the caller. Admins may narrow
// with ?tenant_id=; clients are pinned to their own tenant.
// GET /api/v1/invoices
func (h *InvoiceHandlers) ListInvoicesHandler() gin.HandlerFunc {
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
		invoices, err := h.invoiceRepo.ListInvoices(c.Request.Context(), scope, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invoices"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"invoices": invoices,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// getAuthorizedInvoice loads an invoice by the :invoiceID param and verifies
// tenant access. Writes the error response and returns nil when not allowed.
func (h *InvoiceHandlers) getAuthorizedInvoice(c *gin.Context) *models.Invoice {
	invoice, err := h.invoiceRepo.GetInvoiceByID(c.Request.Context(), c.Param("invoiceID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve invoice"})
		return nil
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return nil
	}

	_, p := tenantScope(c)
	if err := auth.AuthorizeTenantAccess(p, invoice.TenantID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil
	}
	return invoice
}

// GetInvoiceHandler retrieves one invoice with its paid total
// GET /api/v1/invoices/:invoiceID
func (h *InvoiceHandlers) GetInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoice := h.getAuthorizedInvoice(c)
		if invoice == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"invoice":          invoice,
			"amount_due_cents": invoice.AmountDueCents(),
		})
	}
}

// ListPaymentsHandler lists the payments recorded against an invoice
// GET /api/v1/invoices/:invoiceID/payments
func (h *InvoiceHandlers) ListPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoice := h.getAuthorizedInvoice(c)
		if invoice == nil {
			return
		}

		payments, err := h.invoiceRepo.ListPayments(c.Request.Context(), invoice.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payments": payments})
	}
}

// CreateInvoiceRequest is the body for creating an invoice.
type CreateInvoiceRequest struct {
	TenantID    string     `json:"tenant_id" binding:"required"`
	ProjectID   *string    `json:"project_id"`
	Number      string     `json:"number" binding:"required"`
	Currency    string     `json:"currency"`
	AmountCents int64      `json:"amount_cents" binding:"required,gt=0"`
	IssuedAt    *time.Time `json:"issued_at"`
	DueAt       *time.Time `json:"due_at"`
}

// CreateInvoiceHandler creates an invoice. Admin route.
// POST /api/v1/invoices
func (h *InvoiceHandlers) CreateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateInvoiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id, number, and a positive amount_cents are required"})
			return
		}

		invoice := &models.Invoice{
			TenantID:    req.TenantID,
			ProjectID:   req.ProjectID,
			Number:      req.Number,
			Currency:    req.Currency,
			AmountCents: req.AmountCents,
			IssuedAt:    req.IssuedAt,
			DueAt:       req.DueAt,
		}
		if err := h.invoiceRepo.CreateInvoice(c.Request.Context(), invoice); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invoice"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
	}
}

// UpdateInvoiceRequest is the body for updating an invoice. Empty fields are
// left unchanged.
type UpdateInvoiceRequest struct {
	Status      string     `json:"status"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	IssuedAt    *time.Time `json:"issued_at"`
	DueAt       *time.Time `json:"due_at"`
}

// UpdateInvoiceHandler updates an invoice's status, amount, or dates. Admin
// route.
// PUT /api/v1/invoices/:invoiceID
func (h *InvoiceHandlers) UpdateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateInvoiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Status != "" && !validInvoiceStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice status"})
			return
		}

		invoice := h.getAuthorizedInvoice(c)
		if invoice == nil {
			return
		}

		if req.Status != "" {
			invoice.Status = req.Status
		}
		if req.AmountCents > 0 {
			invoice.AmountCents = req.AmountCents
		}
		if req.Currency != "" {
			invoice.Currency = req.Currency
		}
		if req.IssuedAt != nil {
			invoice.IssuedAt = req.IssuedAt
		}
		if req.DueAt != nil {
			invoice.DueAt = req.DueAt
		}

		if err := h.invoiceRepo.UpdateInvoice(c.Request.Context(), invoice); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update invoice"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"invoice": invoice})
	}
}

// AddPaymentRequest is the body for recording a payment.
type AddPaymentRequest struct {
	AmountCents int64      `json:"amount_cents" binding:"required,gt=0"`
	Method      string     `json:"method"`
	Reference   string     `json:"reference"`
	PaidAt      *time.Time `json:"paid_at"`
}

// AddPaymentHandler records a payment against an invoice; the invoice flips
// to paid once payments cover the amount. Admin route.
// POST /api/v1/invoices/:invoiceID/payments
func (h *InvoiceHandlers) AddPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A positive amount_cents is required"})
			return
		}

		invoice := h.getAuthorizedInvoice(c)
		if invoice == nil {
			return
		}

		payment := &models.Payment{
			InvoiceID:   invoice.ID,
			AmountCents: req.AmountCents,
			Method:      req.Method,
			Reference:   req.Reference,
		}
		if req.PaidAt != nil {
			payment.PaidAt = *req.PaidAt
		}

		if err := h.invoiceRepo.AddPayment(c.Request.Context(), payment); err != nil {
			if errors.Is(err, repositories.ErrInvoiceVoid) {
				c.JSON(http.StatusConflict, gin.H{"error": "Cannot record a payment against a void invoice"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"payment": payment})
	}
}

// DeleteInvoiceHandler removes an invoice and its payments. Admin route.
// DELETE /api/v1/invoices/:invoiceID
func (h *InvoiceHandlers) DeleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoice := h.getAuthorizedInvoice(c)
		if invoice == nil {
			return
		}

		if err := h.invoiceRepo.DeleteInvoice(c.Request.Context(), invoice.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete invoice"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted"})
	}
}
