package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

// ProjectMembersRepository handles project membership persistence.
type ProjectMembersRepository struct {
	db *sql.DB
}

// NewProjectMembersRepository creates a new project members repository.
func NewProjectMembersRepository(db *sql.DB) *ProjectMembersRepository {
	return &ProjectMembersRepository{db: db}
}

// Create creates a new project membership.
func (r *ProjectMembersRepository) Create(ctx context.Context, member *domain.ProjectMember) error {
	return r.CreateTx(ctx, r.db, member)
}

// CreateTx creates a new project membership within a transaction.
func (r *ProjectMembersRepository) CreateTx(ctx context.Context, q Querier, member *domain.ProjectMember) error {
	query := `
		INSERT INTO project_members (id, project_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query,
		member.ID,
		member.ProjectID,
		member.UserID,
		member.Role,
		member.CreatedAt,
		member.UpdatedAt,
	)
	return err
}

// GetByProjectAndUser retrieves a membership for a user on a project.
func (r *ProjectMembersRepository) GetByProjectAndUser(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, role, created_at, updated_at
		FROM project_members
		WHERE project_id = $1 AND user_id = $2
	`

	var member domain.ProjectMember
	err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(
		&member.ID,
		&member.ProjectID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectMembershipMissing
		}
		return nil, err
	}

	return &member, nil
}

// GetOwner retrieves the project's OWNER membership record.
func (r *ProjectMembersRepository) GetOwner(ctx context.Context, projectID uuid.UUID) (*domain.ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, role, created_at, updated_at
		FROM project_members
		WHERE project_id = $1 AND role = $2
	`

	var member domain.ProjectMember
	err := r.db.QueryRowContext(ctx, query, projectID, rbac.ProjectRoleOwner).Scan(
		&member.ID,
		&member.ProjectID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectMembershipMissing
		}
		return nil, err
	}

	return &member, nil
}

// ListByProject retrieves all memberships of a project.
func (r *ProjectMembersRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, role, created_at, updated_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ListMembers retrieves all members of a project with user details.
func (r *ProjectMembersRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMemberDetails, error) {
	query := `
		SELECT pm.user_id, u.email, u.full_name, pm.role, pm.created_at
		FROM project_members pm
		INNER JOIN users u ON pm.user_id = u.id
		WHERE pm.project_id = $1
		ORDER BY pm.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.ProjectMemberDetails
	for rows.Next() {
		var m domain.ProjectMemberDetails
		err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.Role, &m.JoinedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// UpdateRoleTx updates the role of a project membership within a transaction.
func (r *ProjectMembersRepository) UpdateRoleTx(ctx context.Context, q Querier, id uuid.UUID, role rbac.ProjectRole) error {
	query := `
		UPDATE project_members
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
		return domain.ErrProjectMembershipMissing
	}

	return nil
}

// UpdateRole updates the role of a project membership.
func (r *ProjectMembersRepository) UpdateRole(ctx context.Context, id uuid.UUID, role rbac.ProjectRole) error {
	return r.UpdateRoleTx(ctx, r.db, id, role)
}

// Delete removes a project membership.
func (r *ProjectMembersRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM project_members WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProjectMembershipMissing
	}

	return nil
}

// DeleteByUserInProjects removes the user's memberships across the given
// projects. Used to cascade a removal down a subtree.
func (r *ProjectMembersRepository) DeleteByUserInProjects(ctx context.Context, userID uuid.UUID, projectIDs []uuid.UUID) error {
	if len(projectIDs) == 0 {
		return nil
	}
	query := `DELETE FROM project_members WHERE user_id = $1 AND project_id = ANY($2)`
	_, err := r.db.ExecContext(ctx, query, userID, pq.Array(projectIDs))
	return err
}
