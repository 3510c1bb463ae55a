package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

// Project is a node in a workspace's project forest. ParentID is nil for
// roots; parent references never form cycles. Permissions on a project are
// evaluated from the caller's role on that node alone.
type Project struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	ParentID    *uuid.UUID
	Name        string
	Color       string
	IsArchived  bool
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// ProjectMember ties a user to one project with exactly one project role,
// independent of the user's workspace role. A project has exactly one
// OWNER membership at all times.
type ProjectMember struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Role      rbac.ProjectRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectMemberDetails is a project membership joined with user identity.
type ProjectMemberDetails struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Role     rbac.ProjectRole
	JoinedAt time.Time
}
