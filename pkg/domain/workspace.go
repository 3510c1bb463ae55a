package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is an isolated customer account reachable via its own
// subdomain. The slug is unique system-wide and is the sole key used for
// subdomain matching; renaming the slug moves the workspace to a new
// subdomain.
type Workspace struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Slug      string
	PlanType  string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
