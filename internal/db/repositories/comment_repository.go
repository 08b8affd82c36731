package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/workdesk/workdesk/internal/db/models"
)

// CommentRepository handles comment and reaction database operations.
//
// Comments carry dual-mode attribution (admin user id or tenant token,
// exactly one set), enforced by a schema CHECK. Reaction uniqueness per
// reactor is enforced by partial unique indexes, which lets the toggle lean
// on ON CONFLICT instead of a read-modify-write.
type CommentRepository struct {
	db *sql.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const commentColumns = `id, project_id, task_id, parent_id, body, author_user_id, author_tenant_id, created_at`

// CreateComment creates a new comment. Exactly one of AuthorUserID and
// AuthorTenantID must be set; the schema rejects anything else.
func (r *CommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.New().String()
	comment.CreatedAt = time.Now()

	query := `
		INSERT INTO comments (id, project_id, task_id, parent_id, body, author_user_id, author_tenant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.ProjectID,
		comment.TaskID,
		comment.ParentID,
		comment.Body,
		comment.AuthorUserID,
		comment.AuthorTenantID,
		comment.CreatedAt,
	)

	return err
}

// GetCommentByID retrieves a comment by ID without reactions or replies
func (r *CommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	comment := &models.Comment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID,
		&comment.ProjectID,
		&comment.TaskID,
		&comment.ParentID,
		&comment.Body,
		&comment.AuthorUserID,
		&comment.AuthorTenantID,
		&comment.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListCommentsForProject returns a project's comment thread, oldest first,
// with reactions attached and replies nested under their parents.
func (r *CommentRepository) ListCommentsForProject(ctx context.Context, projectID string) ([]*models.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE project_id = $1
		ORDER BY created_at ASC
	`
	return r.listThread(ctx, query, projectID)
}

// ListCommentsForTask returns a task's comment thread, oldest first, with
// reactions attached and replies nested under their parents.
func (r *CommentRepository) ListCommentsForTask(ctx context.Context, taskID string) ([]*models.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE task_id = $1
		ORDER BY created_at ASC
	`
	return r.listThread(ctx, query, taskID)
}

func (r *CommentRepository) listThread(ctx context.Context, query, entityID string) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*models.Comment
	byID := make(map[string]*models.Comment)
	for rows.Next() {
		comment := &models.Comment{}
		if err := rows.Scan(
			&comment.ID,
			&comment.ProjectID,
			&comment.TaskID,
			&comment.ParentID,
			&comment.Body,
			&comment.AuthorUserID,
			&comment.AuthorTenantID,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		all = append(all, comment)
		byID[comment.ID] = comment
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachReactions(ctx, all, byID); err != nil {
		return nil, err
	}

	// Nest replies under their parents; comments whose parent was deleted
	// surface at the top level rather than disappearing.
	var roots []*models.Comment
	for _, comment := range all {
		if comment.ParentID != nil {
			if parent, ok := byID[*comment.ParentID]; ok {
				parent.Replies = append(parent.Replies, comment)
				continue
			}
		}
		roots = append(roots, comment)
	}

	return roots, nil
}

func (r *CommentRepository) attachReactions(ctx context.Context, comments []*models.Comment, byID map[string]*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}

	query := `
		SELECT id, comment_id, emoji, reactor_user_id, reactor_tenant_id, created_at
		FROM comment_reactions
		WHERE comment_id = ANY($1)
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		reaction := models.CommentReaction{}
		if err := rows.Scan(
			&reaction.ID,
			&reaction.CommentID,
			&reaction.Emoji,
			&reaction.ReactorUserID,
			&reaction.ReactorTenantID,
			&reaction.CreatedAt,
		); err != nil {
			return err
		}
		if comment, ok := byID[reaction.CommentID]; ok {
			comment.Reactions = append(comment.Reactions, reaction)
		}
	}

	return rows.Err()
}

// ToggleReaction adds the reaction if the reactor has not reacted with this
// emoji yet, otherwise removes it. Returns true when the reaction is present
// after the call. Exactly one of reactorUserID and reactorTenantID must be
// non-nil.
func (r *CommentRepository) ToggleReaction(ctx context.Context, commentID, emoji string, reactorUserID, reactorTenantID *string) (bool, error) {
	insert := `
		INSERT INTO comment_reactions (id, comment_id, emoji, reactor_user_id, reactor_tenant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, insert,
		uuid.New().String(),
		commentID,
		emoji,
		reactorUserID,
		reactorTenantID,
		time.Now(),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}

	// Conflict means the reaction already exists for this reactor: remove it.
	var del string
	var reactor interface{}
	if reactorUserID != nil {
		del = `DELETE FROM comment_reactions WHERE comment_id = $1 AND emoji = $2 AND reactor_user_id = $3`
		reactor = *reactorUserID
	} else {
		del = `DELETE FROM comment_reactions WHERE comment_id = $1 AND emoji = $2 AND reactor_tenant_id = $3`
		reactor = *reactorTenantID
	}

	_, err = r.db.ExecContext(ctx, del, commentID, emoji, reactor)
	return false, err
}

// DeleteComment removes a comment; replies cascade
func (r *CommentRepository) DeleteComment(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return err
}

// CountCommentsForTenant returns how many comments exist on a tenant's
// projects and tasks
func (r *CommentRepository) CountCommentsForTenant(ctx context.Context, tenantID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM comments c
		LEFT JOIN projects p ON c.project_id = p.id
		LEFT JOIN tasks t ON c.task_id = t.id
		WHERE p.tenant_id = $1 OR t.tenant_id = $1
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&count)
	return count, err
}
