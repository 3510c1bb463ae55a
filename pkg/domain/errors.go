package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrInvalidToken       = errors.New("invalid token")
)

// Workspace errors
var (
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrSlugTaken          = errors.New("slug already exists")
	ErrMembershipNotFound = errors.New("not a member of this workspace")
	ErrAlreadyMember      = errors.New("user is already a member")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrOwnerImmutable     = errors.New("ownership changes must go through transfer")
	ErrOwnerCannotLeave   = errors.New("owner cannot leave workspace; delete it or transfer ownership first")
)

// Invitation errors
var (
	ErrInvitationNotFound = errors.New("invalid or expired invitation")
	ErrInvitationExpired  = errors.New("invitation expired")
)

// Project errors
var (
	ErrProjectNotFound          = errors.New("project not found")
	ErrParentProjectNotFound    = errors.New("parent project not found in this workspace")
	ErrProjectMembershipMissing = errors.New("not a member of this project")
	ErrProjectMemberExists      = errors.New("user is already a project member")
	ErrNotInWorkspace           = errors.New("user must be a member of the workspace first")
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrEmptyName    = errors.New("name must not be empty")
)
