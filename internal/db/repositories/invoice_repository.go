package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workdesk/workdesk/internal/db/models"
)

// ErrInvoiceVoid is returned by AddPayment when the target invoice is void.
var ErrInvoiceVoid = errors.New("cannot record payment on a void invoice")

// InvoiceRepository handles invoice and payment database operations. All
// amounts are integer cents; the paid total is aggregated from the payments
// table rather than denormalized on the invoice row.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository creates a new InvoiceRepository
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `i.id, i.tenant_id, i.project_id, i.number, i.status, i.currency, i.amount_cents, i.issued_at, i.due_at, i.created_at, i.updated_at`

const invoiceSelect = `
	SELECT ` + invoiceColumns + `,
	       COALESCE((SELECT SUM(p.amount_cents) FROM payments p WHERE p.invoice_id = i.id), 0) AS paid_cents
	FROM invoices i
`

// CreateInvoice creates a new invoice in draft status
func (r *InvoiceRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	invoice.ID = uuid.New().String()
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = time.Now()
	if invoice.Status == "" {
		invoice.Status = models.InvoiceDraft
	}
	if invoice.Currency == "" {
		invoice.Currency = "USD"
	}

	query := `
		INSERT INTO invoices (id, tenant_id, project_id, number, status, currency, amount_cents, issued_at, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		invoice.ID,
		invoice.TenantID,
		invoice.ProjectID,
		invoice.Number,
		invoice.Status,
		invoice.Currency,
		invoice.AmountCents,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)

	return err
}

func scanInvoiceRow(scan func(dest ...interface{}) error) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	err := scan(
		&invoice.ID,
		&invoice.TenantID,
		&invoice.ProjectID,
		&invoice.Number,
		&invoice.Status,
		&invoice.Currency,
		&invoice.AmountCents,
		&invoice.IssuedAt,
		&invoice.DueAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
		&invoice.PaidCents,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetInvoiceByID retrieves an invoice with its paid total
func (r *InvoiceRepository) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := invoiceSelect + ` WHERE i.id = $1`
	return scanInvoiceRow(r.db.QueryRowContext(ctx, query, id).Scan)
}

// ListInvoices returns invoices in the given tenant scope, newest first. An
// empty tenantID lists all invoices.
func (r *InvoiceRepository) ListInvoices(ctx context.Context, tenantID string, limit, offset int) ([]*models.Invoice, error) {
	query := invoiceSelect + `
		WHERE ($1 = '' OR i.tenant_id = $1)
		ORDER BY i.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoiceRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}

	return invoices, rows.Err()
}

// UpdateInvoice updates an invoice's mutable fields. Paid invoices are
// immutable except for voiding.
func (r *InvoiceRepository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now()

	query := `
		UPDATE invoices
		SET number = $2, status = $3, currency = $4, amount_cents = $5, issued_at = $6, due_at = $7, updated_at = $8
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		invoice.ID,
		invoice.Number,
		invoice.Status,
		invoice.Currency,
		invoice.AmountCents,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.UpdatedAt,
	)

	return err
}

// AddPayment records a payment against an invoice inside a transaction and
// flips the invoice to paid when the running total covers the amount. The
// aggregate and the status change commit together or not at all.
func (r *InvoiceRepository) AddPayment(ctx context.Context, payment *models.Payment) error {
	payment.ID = uuid.New().String()
	payment.CreatedAt = time.Now()
	if payment.PaidAt.IsZero() {
		payment.PaidAt = payment.CreatedAt
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var amountCents, paidCents int64
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT i.amount_cents, i.status,
		       COALESCE((SELECT SUM(p.amount_cents) FROM payments p WHERE p.invoice_id = i.id), 0)
		FROM invoices i
		WHERE i.id = $1
		FOR UPDATE
	`, payment.InvoiceID).Scan(&amountCents, &status, &paidCents)
	if err == sql.ErrNoRows {
		return fmt.Errorf("invoice not found")
	}
	if err != nil {
		return err
	}
	if status == models.InvoiceVoid {
		return ErrInvoiceVoid
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount_cents, method, reference, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		payment.ID,
		payment.InvoiceID,
		payment.AmountCents,
		payment.Method,
		payment.Reference,
		payment.PaidAt,
		payment.CreatedAt,
	)
	if err != nil {
		return err
	}

	if paidCents+payment.AmountCents >= amountCents && status != models.InvoicePaid {
		_, err = tx.ExecContext(ctx,
			`UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`,
			payment.InvoiceID, models.InvoicePaid, time.Now())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListPayments returns an invoice's payments, oldest first
func (r *InvoiceRepository) ListPayments(ctx context.Context, invoiceID string) ([]*models.Payment, error) {
	query := `
		SELECT id, invoice_id, amount_cents, method, reference, paid_at, created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY paid_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		if err := rows.Scan(
			&payment.ID,
			&payment.InvoiceID,
			&payment.AmountCents,
			&payment.Method,
			&payment.Reference,
			&payment.PaidAt,
			&payment.CreatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// DeleteInvoice removes an invoice and its payments
func (r *InvoiceRepository) DeleteInvoice(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

// OutstandingCents returns the sum of unpaid amounts across sent invoices in
// the given tenant scope. An empty tenantID spans all tenants.
func (r *InvoiceRepository) OutstandingCents(ctx context.Context, tenantID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(i.amount_cents - COALESCE(p.paid, 0)), 0)
		FROM invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount_cents) AS paid
			FROM payments
			GROUP BY invoice_id
		) p ON p.invoice_id = i.id
		WHERE ($1 = '' OR i.tenant_id = $1)
		  AND i.status = 'sent'
	`

	var cents int64
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&cents)
	return cents, err
}
