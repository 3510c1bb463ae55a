package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
)

// WorkspacesRepository handles workspace data persistence.
type WorkspacesRepository struct {
	db *sql.DB
}

// NewWorkspacesRepository creates a new workspaces repository.
func NewWorkspacesRepository(db *sql.DB) *WorkspacesRepository {
	return &WorkspacesRepository{db: db}
}

// Create creates a new workspace.
func (r *WorkspacesRepository) Create(ctx context.Context, workspace *domain.Workspace) error {
	return r.CreateTx(ctx, r.db, workspace)
}

// CreateTx creates a new workspace within a transaction.
func (r *WorkspacesRepository) CreateTx(ctx context.Context, q Querier, workspace *domain.Workspace) error {
	query := `
		INSERT INTO workspaces (id, owner_id, name, slug, plan_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		workspace.ID,
		workspace.OwnerID,
		workspace.Name,
		workspace.Slug,
		workspace.PlanType,
		workspace.CreatedAt,
		workspace.UpdatedAt,
	)
	return err
}

// GetByID retrieves a workspace by ID.
func (r *WorkspacesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	query := `
		SELECT id, owner_id, name, slug, plan_type, created_at, updated_at, deleted_at
		FROM workspaces
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySlug retrieves a workspace by slug.
func (r *WorkspacesRepository) GetBySlug(ctx context.Context, slug string) (*domain.Workspace, error) {
	query := `
		SELECT id, owner_id, name, slug, plan_type, created_at, updated_at, deleted_at
		FROM workspaces
		WHERE slug = $1 AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, slug))
}

// ExistsBySlug reports whether any live workspace already claims the slug.
func (r *WorkspacesRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM workspaces WHERE slug = $1 AND deleted_at IS NULL
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists)
	return exists, err
}

// Update updates a workspace's name and slug.
func (r *WorkspacesRepository) Update(ctx context.Context, workspace *domain.Workspace) error {
	query := `
		UPDATE workspaces
		SET name = $1, slug = $2, updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		workspace.Name,
		workspace.Slug,
		workspace.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrWorkspaceNotFound
	}

	return nil
}

// SetOwnerTx points the workspace at its new owner within a transaction.
func (r *WorkspacesRepository) SetOwnerTx(ctx context.Context, q Querier, id, ownerID uuid.UUID) error {
	query := `
		UPDATE workspaces
		SET owner_id = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrWorkspaceNotFound
	}

	return nil
}

// SoftDelete soft deletes a workspace.
func (r *WorkspacesRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE workspaces
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
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
		return domain.ErrWorkspaceNotFound
	}

	return nil
}

func (r *WorkspacesRepository) scanOne(row *sql.Row) (*domain.Workspace, error) {
	var workspace domain.Workspace
	err := row.Scan(
		&workspace.ID,
		&workspace.OwnerID,
		&workspace.Name,
		&workspace.Slug,
		&workspace.PlanType,
		&workspace.CreatedAt,
		&workspace.UpdatedAt,
		&workspace.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &workspace, nil
}
