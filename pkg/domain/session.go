package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session ties one principal to a refresh credential plus an optional
// active-workspace pointer. The pointer is only ever a workspace the user
// currently holds membership in; it is cleared on the next refresh when
// membership is revoked.
type Session struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TokenHash         string
	ActiveWorkspaceID *uuid.UUID
	CreatedAt         time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	LastSeenAt        *time.Time
	Metadata          json.RawMessage
}

// SessionMetadata holds optional session context.
type SessionMetadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// IsValid checks if the session is valid (not expired and not revoked).
func (s *Session) IsValid() bool {
	if s.RevokedAt != nil {
		return false
	}
	return time.Now().Before(s.ExpiresAt)
}

// TokenPair represents the access and refresh token pair.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int       `json:"expiresIn"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
