package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/workdesk/workdesk/internal/db/models"
)

// ProjectRepository handles project database operations. Every read takes the
// caller's tenant scope as an explicit argument; an empty scope means admin
// (unscoped) access and is only ever passed by admin handlers.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, tenant_id, name, description, status, created_at, updated_at`

// CreateProject creates a new project
func (r *ProjectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	project.ID = uuid.New().String()
	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()
	if project.Status == "" {
		project.Status = models.ProjectActive
	}

	query := `
		INSERT INTO projects (id, tenant_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.TenantID,
		project.Name,
		project.Description,
		project.Status,
		project.CreatedAt,
		project.UpdatedAt,
	)

	return err
}

func scanProject(row *sql.Row) (*models.Project, error) {
	project := &models.Project{}
	err := row.Scan(
		&project.ID,
		&project.TenantID,
		&project.Name,
		&project.Description,
		&project.Status,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProjectByID retrieves a project by ID
func (r *ProjectRepository) GetProjectByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, id))
}

// ProjectTenant returns the tenant token owning a project, or "" when the
// project does not exist. Cheap enough to run in a route guard before the
// handler loads the full row.
func (r *ProjectRepository) ProjectTenant(ctx context.Context, id string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM projects WHERE id = $1`, id).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return tenantID, err
}

// ListProjects returns projects visible in the given tenant scope, newest
// first. An empty tenantID lists all projects.
func (r *ProjectRepository) ListProjects(ctx context.Context, tenantID string, limit, offset int) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		if err := rows.Scan(
			&project.ID,
			&project.TenantID,
			&project.Name,
			&project.Description,
			&project.Status,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// UpdateProject updates a project's mutable fields
func (r *ProjectRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Status,
		project.UpdatedAt,
	)

	return err
}

// DeleteProject removes a project and, via cascades, its tasks, comments, and
// attachments rows
func (r *ProjectRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

// CountProjectsByTenant returns how many projects a tenant owns
func (r *ProjectRepository) CountProjectsByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

// ProjectStatusCounts returns project counts grouped by status within the
// given tenant scope. An empty tenantID counts across all tenants.
func (r *ProjectRepository) ProjectStatusCounts(ctx context.Context, tenantID string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM projects
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
