// audit.go records authenticated write operations to the audit trail, with
// optional shipping to external destinations.
package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/audit"
	"github.com/workdesk/workdesk/internal/db/models"
	"github.com/workdesk/workdesk/internal/db/repositories"
)

// AuditMiddleware logs to the database only
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil)
}

// AuditMiddlewareWithShipper logs write operations to the database and ships
// them to external destinations. Records are written asynchronously so audit
// persistence never adds latency to the request path.
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == "OPTIONS" || c.Request.Method == "GET" {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}

		action := fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		ipAddress := c.ClientIP()
		statusCode := c.Writer.Status()

		auditLog := &models.AuditLog{
			Action:     action,
			IPAddress:  &ipAddress,
			StatusCode: &statusCode,
		}

		if p := GetPrincipal(c); p != nil {
			method := principalModelRole(p)
			auditLog.AuthMethod = &method
			if p.UserID != "" {
				uid := p.UserID
				auditLog.UserID = &uid
			}
			if p.TenantID != "" {
				tid := p.TenantID
				auditLog.TenantID = &tid
			}
		}

		if resourceType := resourceTypeFromPath(c.Request.URL.Path); resourceType != "" {
			auditLog.ResourceType = &resourceType
			if id := c.Param("id"); id != "" {
				auditLog.ResourceID = &id
			}
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				auditRepo.CreateAuditLog(ctx, auditLog)
			}
			if shipper != nil {
				entry := &audit.LogEntry{
					Timestamp:  time.Now(),
					Action:     auditLog.Action,
					IPAddress:  ipAddress,
					StatusCode: statusCode,
				}
				if auditLog.UserID != nil {
					entry.UserID = *auditLog.UserID
				}
				if auditLog.TenantID != nil {
					entry.TenantID = *auditLog.TenantID
				}
				if auditLog.ResourceType != nil {
					entry.ResourceType = *auditLog.ResourceType
				}
				if auditLog.ResourceID != nil {
					entry.ResourceID = *auditLog.ResourceID
				}
				if auditLog.AuthMethod != nil {
					entry.AuthMethod = *auditLog.AuthMethod
				}
				shipper.Ship(ctx, entry)
			}
		}()
	}
}

func resourceTypeFromPath(path string) string {
	switch {
	case strings.Contains(path, "/client-keys"):
		return "client_key"
	case strings.Contains(path, "/projects"):
		return "project"
	case strings.Contains(path, "/tasks"):
		return "task"
	case strings.Contains(path, "/comments"):
		return "comment"
	case strings.Contains(path, "/invoices"):
		return "invoice"
	case strings.Contains(path, "/attachments"):
		return "attachment"
	case strings.Contains(path, "/users"):
		return "user"
	case strings.Contains(path, "/auth"):
		return "session"
	default:
		return ""
	}
}
