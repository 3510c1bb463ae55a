package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated principal. Accounts are created on first
// federated login, so there is no local credential.
type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	AvatarURL *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
