// comment.go defines the threaded Comment model and its reactions.
//
// Attribution is dual-mode: a comment created by a client principal stores the
// tenant token (clients share one generic account row, so the account id would
// not distinguish tenants), while a comment created by an admin stores the
// admin's user id. Exactly one of the two author fields is ever set, and every
// ownership check must honor both modes.
package models

import "time"

// Comment is a threaded comment on a project or a task (exactly one parent
// entity). ParentID points at another comment for replies.
type Comment struct {
	ID             string    `json:"id"`
	ProjectID      *string   `json:"project_id,omitempty"`
	TaskID         *string   `json:"task_id,omitempty"`
	ParentID       *string   `json:"parent_id,omitempty"`
	Body           string    `json:"body"`
	AuthorUserID   *string   `json:"author_user_id,omitempty"`
	AuthorTenantID *string   `json:"author_tenant_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	// Reactions is populated on reads that join the reactions table.
	Reactions []CommentReaction `json:"reactions,omitempty"`
	// Replies is populated when a thread is assembled for output.
	Replies []*Comment `json:"replies,omitempty"`
}

// OwnedByAdmin reports whether the admin with userID authored this comment.
func (c *Comment) OwnedByAdmin(userID string) bool {
	return c.AuthorUserID != nil && *c.AuthorUserID == userID
}

// OwnedByTenant reports whether the tenant authored this comment. An empty
// tenant never owns anything.
func (c *Comment) OwnedByTenant(tenantID string) bool {
	return tenantID != "" && c.AuthorTenantID != nil && *c.AuthorTenantID == tenantID
}

// CommentReaction is an emoji reaction on a comment. Reactor attribution
// mirrors comment attribution: user id for admins, tenant token for clients.
// Uniqueness (one reaction per reactor per emoji) is enforced by partial
// unique indexes in the schema; the repository toggle relies on them.
type CommentReaction struct {
	ID              string    `json:"id"`
	CommentID       string    `json:"comment_id"`
	Emoji           string    `json:"emoji"`
	ReactorUserID   *string   `json:"reactor_user_id,omitempty"`
	ReactorTenantID *string   `json:"reactor_tenant_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
