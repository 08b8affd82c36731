package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/workdesk/workdesk/internal/db/models"
)

// TaskRepository handles task database operations
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, project_id, tenant_id, title, details, status, due_at, created_at, updated_at`

// CreateTask creates a new task. The tenant is stamped from the owning
// project by the caller before insert.
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New().String()
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	if task.Status == "" {
		task.Status = models.TaskTodo
	}

	query := `
		INSERT INTO tasks (id, project_id, tenant_id, title, details, status, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.ProjectID,
		task.TenantID,
		task.Title,
		task.Details,
		task.Status,
		task.DueAt,
		task.CreatedAt,
		task.UpdatedAt,
	)

	return err
}

// GetTaskByID retrieves a task by ID
func (r *TaskRepository) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.ProjectID,
		&task.TenantID,
		&task.Title,
		&task.Details,
		&task.Status,
		&task.DueAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasksByProject returns a project's tasks ordered by creation time
func (r *TaskRepository) ListTasksByProject(ctx context.Context, projectID string, limit, offset int) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE project_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	return r.queryTasks(ctx, query, projectID, limit, offset)
}

// ListTasksDueBefore returns unfinished tasks in the given tenant scope due
// before the cutoff, soonest first. An empty tenantID spans all tenants.
func (r *TaskRepository) ListTasksDueBefore(ctx context.Context, tenantID string, cutoff time.Time, limit int) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1 = '' OR tenant_id = $1)
		  AND status != 'done'
		  AND due_at IS NOT NULL AND due_at < $2
		ORDER BY due_at ASC
		LIMIT $3
	`
	return r.queryTasks(ctx, query, tenantID, cutoff, limit)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(
			&task.ID,
			&task.ProjectID,
			&task.TenantID,
			&task.Title,
			&task.Details,
			&task.Status,
			&task.DueAt,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTask updates a task's mutable fields
func (r *TaskRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()

	query := `
		UPDATE tasks
		SET title = $2, details = $3, status = $4, due_at = $5, updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Details,
		task.Status,
		task.DueAt,
		task.UpdatedAt,
	)

	return err
}

// DeleteTask removes a task
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

// TaskStatusCounts returns task counts grouped by status within the given
// tenant scope. An empty tenantID counts across all tenants.
func (r *TaskRepository) TaskStatusCounts(ctx context.Context, tenantID string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM tasks
		WHERE ($1 = '' OR tenant_id = $1)
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}
