package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

// Membership ties a user to a workspace with exactly one workspace role.
// A workspace has exactly one OWNER membership at all times.
type Membership struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        rbac.WorkspaceRole
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MemberDetails is a membership joined with user identity, as returned by
// member-list endpoints.
type MemberDetails struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Role     rbac.WorkspaceRole
	JoinedAt time.Time
}
