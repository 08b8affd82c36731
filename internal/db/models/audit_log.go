// audit_log.go defines the AuditLog model for the security audit trail.
package models

import "time"

// AuditLog represents one recorded security-relevant action.
type AuditLog struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	UserID       *string   `json:"user_id,omitempty"`
	TenantID     *string   `json:"tenant_id,omitempty"`
	ResourceType *string   `json:"resource_type,omitempty"`
	ResourceID   *string   `json:"resource_id,omitempty"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	AuthMethod   *string   `json:"auth_method,omitempty"`
	StatusCode   *int      `json:"status_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
