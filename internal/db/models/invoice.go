// invoice.go defines the Invoice and Payment models. Amounts are integer cents;
// float arithmetic never touches money.
package models

import "time"

// Invoice statuses.
const (
	InvoiceDraft = "draft"
	InvoiceSent  = "sent"
	InvoicePaid  = "paid"
	InvoiceVoid  = "void"
)

// Invoice represents a tenant-billed invoice.
type Invoice struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	Currency    string     `json:"currency"`
	AmountCents int64      `json:"amount_cents"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	// PaidCents is the sum of recorded payments, populated by reads that
	// aggregate the payments table.
	PaidCents int64 `json:"paid_cents"`
}

// AmountDueCents returns the outstanding balance, never negative.
func (i *Invoice) AmountDueCents() int64 {
	due := i.AmountCents - i.PaidCents
	if due < 0 {
		return 0
	}
	return due
}

// FullyPaid reports whether recorded payments cover the invoice amount.
func (i *Invoice) FullyPaid() bool {
	return i.PaidCents >= i.AmountCents
}

// Payment represents a payment recorded against an invoice.
type Payment struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference"`
	PaidAt      time.Time `json:"paid_at"`
	CreatedAt   time.Time `json:"created_at"`
}
