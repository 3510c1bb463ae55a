package rbac

import (
	"errors"
	"strings"
)

// ErrInvalidRole is returned when request input names a role outside the
// closed enumerations.
var ErrInvalidRole = errors.New("invalid role")

// ParseWorkspaceRole normalizes and validates a role value from request
// input. OWNER is a valid stored role but is never assignable through
// invite or role-update paths; callers enforce that separately so the
// error message can say why.
func ParseWorkspaceRole(s string) (WorkspaceRole, error) {
	role := WorkspaceRole(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// ParseProjectRole normalizes and validates a project role value from
// request input.
func ParseProjectRole(s string) (ProjectRole, error) {
	role := ProjectRole(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}
