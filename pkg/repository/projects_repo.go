package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
)

// ProjectsRepository handles project data persistence. Projects form a
// forest via parent_id; subtree operations walk it with a recursive CTE.
type ProjectsRepository struct {
	db *sql.DB
}

// NewProjectsRepository creates a new projects repository.
func NewProjectsRepository(db *sql.DB) *ProjectsRepository {
	return &ProjectsRepository{db: db}
}

// CreateTx creates a new project within a transaction.
func (r *ProjectsRepository) CreateTx(ctx context.Context, q Querier, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, workspace_id, parent_id, name, color, is_archived, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		project.ID,
		project.WorkspaceID,
		project.ParentID,
		project.Name,
		project.Color,
		project.IsArchived,
		project.CreatedBy,
		project.CreatedAt,
		project.UpdatedAt,
	)
	return err
}

// GetByID retrieves a live project by ID.
func (r *ProjectsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, workspace_id, parent_id, name, color, is_archived, created_by, created_at, updated_at, deleted_at
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL
	`

	var project domain.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.WorkspaceID,
		&project.ParentID,
		&project.Name,
		&project.Color,
		&project.IsArchived,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}

	return &project, nil
}

// GetAnyByID retrieves a project by ID regardless of deletion state.
// Restore needs to see soft deleted rows.
func (r *ProjectsRepository) GetAnyByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, workspace_id, parent_id, name, color, is_archived, created_by, created_at, updated_at, deleted_at
		FROM projects
		WHERE id = $1
	`

	var project domain.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.WorkspaceID,
		&project.ParentID,
		&project.Name,
		&project.Color,
		&project.IsArchived,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}

	return &project, nil
}

// ExistsInWorkspace reports whether a live project exists in the workspace.
func (r *ProjectsRepository) ExistsInWorkspace(ctx context.Context, id, workspaceID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM projects
			WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, id, workspaceID).Scan(&exists)
	return exists, err
}

// ListForUser retrieves the live projects in a workspace the user is a
// member of, ordered by creation time.
func (r *ProjectsRepository) ListForUser(ctx context.Context, workspaceID, userID uuid.UUID) ([]*domain.Project, error) {
	query := `
		SELECT p.id, p.workspace_id, p.parent_id, p.name, p.color, p.is_archived, p.created_by, p.created_at, p.updated_at, p.deleted_at
		FROM projects p
		INNER JOIN project_members pm ON pm.project_id = p.id
		WHERE p.workspace_id = $1 AND pm.user_id = $2 AND p.deleted_at IS NULL
		ORDER BY p.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		err := rows.Scan(
			&p.ID, &p.WorkspaceID, &p.ParentID, &p.Name, &p.Color,
			&p.IsArchived, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

// ListByWorkspace retrieves every live project in the workspace, ordered
// by creation time.
func (r *ProjectsRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Project, error) {
	query := `
		SELECT id, workspace_id, parent_id, name, color, is_archived, created_by, created_at, updated_at, deleted_at
		FROM projects
		WHERE workspace_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		err := rows.Scan(
			&p.ID, &p.WorkspaceID, &p.ParentID, &p.Name, &p.Color,
			&p.IsArchived, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

// Update updates a project's mutable fields.
func (r *ProjectsRepository) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = $1, color = $2, is_archived = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Color,
		project.IsArchived,
		project.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// DescendantIDs returns the IDs of every project strictly below the given
// one in the tree.
func (r *ProjectsRepository) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM projects WHERE parent_id = $1
			UNION ALL
			SELECT p.id FROM projects p
			INNER JOIN subtree s ON p.parent_id = s.id
		)
		SELECT id FROM subtree
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var descID uuid.UUID
		if err := rows.Scan(&descID); err != nil {
			return nil, err
		}
		ids = append(ids, descID)
	}

	return ids, rows.Err()
}

// SoftDeleteSubtree soft deletes the project and every descendant in one
// statement, so a subtree never ends up half deleted.
func (r *ProjectsRepository) SoftDeleteSubtree(ctx context.Context, id uuid.UUID) error {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM projects WHERE id = $1
			UNION ALL
			SELECT p.id FROM projects p
			INNER JOIN subtree s ON p.parent_id = s.id
		)
		UPDATE projects
		SET deleted_at = NOW()
		FROM subtree
		WHERE projects.id = subtree.id AND projects.deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// RestoreSubtree clears deleted_at on the project and every descendant.
func (r *ProjectsRepository) RestoreSubtree(ctx context.Context, id uuid.UUID) error {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM projects WHERE id = $1
			UNION ALL
			SELECT p.id FROM projects p
			INNER JOIN subtree s ON p.parent_id = s.id
		)
		UPDATE projects
		SET deleted_at = NULL
		FROM subtree
		WHERE projects.id = subtree.id
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}
