package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

// Invitation is a single-use token binding a target workspace, target
// email, and proposed role. It is consumed exactly once by acceptance and
// is unusable after consumption or expiry.
type Invitation struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Email       string
	Role        rbac.WorkspaceRole
	TokenHash   string
	InvitedBy   uuid.UUID
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// IsExpired reports whether the invitation can no longer be accepted.
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}
