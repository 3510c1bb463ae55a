package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

// MembershipsRepository handles workspace membership persistence.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

// WorkspaceWithRole combines a workspace with the caller's role in it, the
// shape the membership-list endpoint returns.
type WorkspaceWithRole struct {
	Workspace domain.Workspace
	Role      rbac.WorkspaceRole
}

// Create creates a new membership.
func (r *MembershipsRepository) Create(ctx context.Context, membership *domain.Membership) error {
	return r.CreateTx(ctx, r.db, membership)
}

// CreateTx creates a new membership within a transaction.
func (r *MembershipsRepository) CreateTx(ctx context.Context, q Querier, membership *domain.Membership) error {
	query := `
		INSERT INTO workspace_members (id, workspace_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query,
		membership.ID,
		membership.WorkspaceID,
		membership.UserID,
		membership.Role,
		membership.CreatedAt,
		membership.UpdatedAt,
	)
	return err
}

// GetByWorkspaceAndUser retrieves a membership for a user in a workspace.
func (r *MembershipsRepository) GetByWorkspaceAndUser(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT id, workspace_id, user_id, role, created_at, updated_at
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`

	var membership domain.Membership
	err := r.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(
		&membership.ID,
		&membership.WorkspaceID,
		&membership.UserID,
		&membership.Role,
		&membership.CreatedAt,
		&membership.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	return &membership, nil
}

// ListWorkspacesForUser retrieves every live workspace the user belongs to,
// with the user's role, ordered by join time.
func (r *MembershipsRepository) ListWorkspacesForUser(ctx context.Context, userID uuid.UUID) ([]*WorkspaceWithRole, error) {
	query := `
		SELECT
			w.id, w.owner_id, w.name, w.slug, w.plan_type, w.created_at, w.updated_at, w.deleted_at,
			m.role
		FROM workspace_members m
		INNER JOIN workspaces w ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND w.deleted_at IS NULL
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*WorkspaceWithRole
	for rows.Next() {
		var result WorkspaceWithRole
		err := rows.Scan(
			&result.Workspace.ID,
			&result.Workspace.OwnerID,
			&result.Workspace.Name,
			&result.Workspace.Slug,
			&result.Workspace.PlanType,
			&result.Workspace.CreatedAt,
			&result.Workspace.UpdatedAt,
			&result.Workspace.DeletedAt,
			&result.Role,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, &result)
	}

	return results, rows.Err()
}

// ListMembers retrieves all members of a workspace with user details.
func (r *MembershipsRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]*domain.MemberDetails, error) {
	query := `
		SELECT m.user_id, u.email, u.full_name, m.role, m.created_at
		FROM workspace_members m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.workspace_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.MemberDetails
	for rows.Next() {
		var m domain.MemberDetails
		err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.Role, &m.JoinedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// UpdateRole updates the role of a membership.
func (r *MembershipsRepository) UpdateRole(ctx context.Context, id uuid.UUID, role rbac.WorkspaceRole) error {
	return r.UpdateRoleTx(ctx, r.db, id, role)
}

// UpdateRoleTx updates the role of a membership within a transaction.
// Ownership transfer demotes and promotes in one transaction so the
// single-OWNER invariant holds at every commit point.
func (r *MembershipsRepository) UpdateRoleTx(ctx context.Context, q Querier, id uuid.UUID, role rbac.WorkspaceRole) error {
	query := `
		UPDATE workspace_members
		SET role = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := q.ExecContext(ctx, query, role, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMembershipNotFound
	}

	return nil
}

// Delete removes a membership.
func (r *MembershipsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM workspace_members WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMembershipNotFound
	}

	return nil
}
