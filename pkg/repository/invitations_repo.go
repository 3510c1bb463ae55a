package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
)

// InvitationsRepository handles workspace invitation persistence.
// Invitations are stored by token hash; the raw token only ever travels in
// the invite email.
type InvitationsRepository struct {
	db *sql.DB
}

// NewInvitationsRepository creates a new invitations repository.
func NewInvitationsRepository(db *sql.DB) *InvitationsRepository {
	return &InvitationsRepository{db: db}
}

// Create creates a new invitation.
func (r *InvitationsRepository) Create(ctx context.Context, invitation *domain.Invitation) error {
	query := `
		INSERT INTO workspace_invitations (id, workspace_id, email, role, token_hash, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		invitation.ID,
		invitation.WorkspaceID,
		invitation.Email,
		invitation.Role,
		invitation.TokenHash,
		invitation.InvitedBy,
		invitation.ExpiresAt,
		invitation.CreatedAt,
	)
	return err
}

// GetByTokenHash retrieves an invitation by its token hash.
func (r *InvitationsRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	query := `
		SELECT id, workspace_id, email, role, token_hash, invited_by, expires_at, created_at
		FROM workspace_invitations
		WHERE token_hash = $1
	`

	var invitation domain.Invitation
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&invitation.ID,
		&invitation.WorkspaceID,
		&invitation.Email,
		&invitation.Role,
		&invitation.TokenHash,
		&invitation.InvitedBy,
		&invitation.ExpiresAt,
		&invitation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}

	return &invitation, nil
}

// DeleteByWorkspaceAndEmail removes any pending invitation for the email in
// the workspace. Re-inviting replaces the outstanding token.
func (r *InvitationsRepository) DeleteByWorkspaceAndEmail(ctx context.Context, workspaceID uuid.UUID, email string) error {
	query := `DELETE FROM workspace_invitations WHERE workspace_id = $1 AND email = $2`
	_, err := r.db.ExecContext(ctx, query, workspaceID, email)
	return err
}

// DeleteTx consumes an invitation within a transaction. Consuming inside
// the same transaction that creates the membership is what makes the token
// single-use.
func (r *InvitationsRepository) DeleteTx(ctx context.Context, q Querier, id uuid.UUID) error {
	query := `DELETE FROM workspace_invitations WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInvitationNotFound
	}

	return nil
}
