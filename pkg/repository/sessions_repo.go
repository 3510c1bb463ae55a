package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
)

// SessionsRepository handles session persistence.
type SessionsRepository struct {
	db *sql.DB
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

// Create creates a new session.
func (r *SessionsRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, active_workspace_id, created_at, expires_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.ActiveWorkspaceID,
		session.CreatedAt, session.ExpiresAt, session.Metadata,
	)
	return err
}

// GetByID retrieves a session by ID.
func (r *SessionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, user_id, token_hash, active_workspace_id, created_at, expires_at, revoked_at, last_seen_at, metadata
		FROM sessions
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByTokenHash retrieves an unrevoked session by token hash.
func (r *SessionsRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, token_hash, active_workspace_id, created_at, expires_at, revoked_at, last_seen_at, metadata
		FROM sessions
		WHERE token_hash = $1 AND revoked_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

// SetActiveWorkspace updates the session's active-workspace pointer. A nil
// workspaceID clears it.
func (r *SessionsRepository) SetActiveWorkspace(ctx context.Context, id uuid.UUID, workspaceID *uuid.UUID) error {
	query := `
		UPDATE sessions
		SET active_workspace_id = $1
		WHERE id = $2 AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, workspaceID, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}

// UpdateLastSeen records session activity.
func (r *SessionsRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET last_seen_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Revoke revokes a session by ID.
func (r *SessionsRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// RevokeByTokenHash revokes a session by its refresh token hash.
func (r *SessionsRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE token_hash = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, tokenHash)
	return err
}

// RevokeAllByUserID revokes every session for a user.
func (r *SessionsRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *SessionsRepository) scanOne(row *sql.Row) (*domain.Session, error) {
	session := &domain.Session{}
	err := row.Scan(
		&session.ID, &session.UserID, &session.TokenHash, &session.ActiveWorkspaceID,
		&session.CreatedAt, &session.ExpiresAt, &session.RevokedAt,
		&session.LastSeenAt, &session.Metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}
