// Package rbac implements the two-level role-based access control model:
// workspace roles govern tenant-wide actions, project roles govern actions
// on a single project node. Both namespaces are closed enumerations with
// static permission tables, so every check here is a pure lookup.
package rbac

// WorkspaceRole is a member's role within a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleOwner  WorkspaceRole = "OWNER"
	WorkspaceRoleAdmin  WorkspaceRole = "ADMIN"
	WorkspaceRoleMember WorkspaceRole = "MEMBER"
)

// ProjectRole is a member's role on one project, independent of their
// workspace role.
type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "OWNER"
	ProjectRoleAdmin  ProjectRole = "ADMIN"
	ProjectRoleEditor ProjectRole = "EDITOR"
	ProjectRoleViewer ProjectRole = "VIEWER"
)

// WorkspacePermission is an atomic workspace-level capability.
type WorkspacePermission string

const (
	PermUpdateWorkspace        WorkspacePermission = "UPDATE_WORKSPACE"
	PermDeleteWorkspace        WorkspacePermission = "DELETE_WORKSPACE"
	PermInviteMember           WorkspacePermission = "INVITE_MEMBER"
	PermInviteAdmin            WorkspacePermission = "INVITE_ADMIN"
	PermRemoveMember           WorkspacePermission = "REMOVE_MEMBER"
	PermUpdateMemberRole       WorkspacePermission = "UPDATE_MEMBER_ROLE"
	PermAccessSettings         WorkspacePermission = "ACCESS_SETTINGS"
	PermViewWorkspace          WorkspacePermission = "VIEW_WORKSPACE"
	PermViewMembers            WorkspacePermission = "VIEW_MEMBERS"
)

// ProjectPermission is an atomic project-level capability.
type ProjectPermission string

const (
	PermUpdateProject           ProjectPermission = "UPDATE_PROJECT"
	PermDeleteProject           ProjectPermission = "DELETE_PROJECT"
	PermCreateSubproject        ProjectPermission = "CREATE_SUBPROJECT"
	PermAddProjectMember        ProjectPermission = "ADD_PROJECT_MEMBER"
	PermRemoveProjectMember     ProjectPermission = "REMOVE_PROJECT_MEMBER"
	PermUpdateProjectMemberRole ProjectPermission = "UPDATE_PROJECT_MEMBER_ROLE"
	PermViewProject             ProjectPermission = "VIEW_PROJECT"
	PermViewProjectMembers      ProjectPermission = "VIEW_PROJECT_MEMBERS"
)

// workspacePermissions is the single source of truth for workspace grants.
var workspacePermissions = map[WorkspaceRole]map[WorkspacePermission]bool{
	WorkspaceRoleOwner: {
		PermUpdateWorkspace:  true,
		PermDeleteWorkspace:  true,
		PermInviteMember:     true,
		PermInviteAdmin:      true,
		PermRemoveMember:     true,
		PermUpdateMemberRole: true,
		PermAccessSettings:   true,
		PermViewWorkspace:    true,
		PermViewMembers:      true,
	},
	WorkspaceRoleAdmin: {
		PermUpdateWorkspace: true,
		PermInviteMember:    true,
		PermAccessSettings:  true,
		PermViewWorkspace:   true,
		PermViewMembers:     true,
	},
	WorkspaceRoleMember: {
		PermViewWorkspace: true,
		PermViewMembers:   true,
	},
}

// projectPermissions is the single source of truth for project grants.
var projectPermissions = map[ProjectRole]map[ProjectPermission]bool{
	ProjectRoleOwner: {
		PermUpdateProject:           true,
		PermDeleteProject:           true,
		PermCreateSubproject:        true,
		PermAddProjectMember:        true,
		PermRemoveProjectMember:     true,
		PermUpdateProjectMemberRole: true,
		PermViewProject:             true,
		PermViewProjectMembers:      true,
	},
	ProjectRoleAdmin: {
		PermUpdateProject:           true,
		PermCreateSubproject:        true,
		PermAddProjectMember:        true,
		PermRemoveProjectMember:     true,
		PermUpdateProjectMemberRole: true,
		PermViewProject:             true,
		PermViewProjectMembers:      true,
	},
	ProjectRoleEditor: {
		PermCreateSubproject:   true,
		PermViewProject:        true,
		PermViewProjectMembers: true,
	},
	ProjectRoleViewer: {
		PermViewProject:        true,
		PermViewProjectMembers: true,
	},
}

var workspaceRoleRank = map[WorkspaceRole]int{
	WorkspaceRoleOwner:  3,
	WorkspaceRoleAdmin:  2,
	WorkspaceRoleMember: 1,
}

var projectRoleRank = map[ProjectRole]int{
	ProjectRoleOwner:  4,
	ProjectRoleAdmin:  3,
	ProjectRoleEditor: 2,
	ProjectRoleViewer: 1,
}

// Rank returns the role's position in the OWNER > ADMIN > MEMBER hierarchy;
// zero for an unknown role.
func (r WorkspaceRole) Rank() int { return workspaceRoleRank[r] }

// Rank returns the role's position in the OWNER > ADMIN > EDITOR > VIEWER
// hierarchy; zero for an unknown role.
func (r ProjectRole) Rank() int { return projectRoleRank[r] }

// Valid reports whether the role is one of the closed set.
func (r WorkspaceRole) Valid() bool { return workspaceRoleRank[r] != 0 }

// Valid reports whether the role is one of the closed set.
func (r ProjectRole) Valid() bool { return projectRoleRank[r] != 0 }

// HasPermission reports whether the role grants the permission. The empty
// role (no membership) grants nothing.
func HasPermission(role WorkspaceRole, perm WorkspacePermission) bool {
	return workspacePermissions[role][perm]
}

// HasAnyPermission reports whether the role grants at least one of perms.
func HasAnyPermission(role WorkspaceRole, perms ...WorkspacePermission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the role grants every one of perms.
func HasAllPermissions(role WorkspaceRole, perms ...WorkspacePermission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// HasMinimumRole reports whether role is at least as powerful as required.
// The empty role never satisfies any requirement.
func HasMinimumRole(role, required WorkspaceRole) bool {
	if !role.Valid() {
		return false
	}
	return role.Rank() >= required.Rank()
}

// HasProjectPermission reports whether the project role grants the
// permission. The empty role grants nothing.
func HasProjectPermission(role ProjectRole, perm ProjectPermission) bool {
	return projectPermissions[role][perm]
}

// HasAnyProjectPermission reports whether the role grants at least one of perms.
func HasAnyProjectPermission(role ProjectRole, perms ...ProjectPermission) bool {
	for _, p := range perms {
		if HasProjectPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllProjectPermissions reports whether the role grants every one of perms.
func HasAllProjectPermissions(role ProjectRole, perms ...ProjectPermission) bool {
	for _, p := range perms {
		if !HasProjectPermission(role, p) {
			return false
		}
	}
	return true
}

// HasMinimumProjectRole reports whether role is at least as powerful as required.
func HasMinimumProjectRole(role, required ProjectRole) bool {
	if !role.Valid() {
		return false
	}
	return role.Rank() >= required.Rank()
}
