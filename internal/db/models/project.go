// project.go defines the Project and Task models. Both carry the tenant token
// that scopes every read and write.
package models

import "time"

// Project statuses.
const (
	ProjectActive   = "active"
	ProjectPaused   = "paused"
	ProjectArchived = "archived"
)

// Project represents a tenant-owned project.
type Project struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Task statuses.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskDone
}

// Task represents a unit of work inside a project. The tenant is stamped from
// the owning project at creation and never changes afterwards.
type Task struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	TenantID  string     `json:"tenant_id"`
	Title     string     `json:"title"`
	Details   string     `json:"details"`
	Status    string     `json:"status"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
