// Package project implements the project tree inside a workspace:
// creation with member snapshots, per-project roles, and subtree
// soft delete and restore. Workspace OWNER and ADMIN hold admin access
// to every project in their workspace, whether or not they appear in
// project_members.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/repository"
)

const defaultColor = "#6366f1"

// Service orchestrates project operations.
type Service struct {
	db          *sql.DB
	projects    *repository.ProjectsRepository
	members     *repository.ProjectMembersRepository
	memberships *repository.MembershipsRepository
}

// NewService creates a new project service.
func NewService(
	db *sql.DB,
	projects *repository.ProjectsRepository,
	members *repository.ProjectMembersRepository,
	memberships *repository.MembershipsRepository,
) *Service {
	return &Service{
		db:          db,
		projects:    projects,
		members:     members,
		memberships: memberships,
	}
}

// CreateParams describes a new project.
type CreateParams struct {
	WorkspaceID uuid.UUID
	ParentID    *uuid.UUID
	Name        string
	Color       string
}

// Create creates a project. The creator becomes its OWNER. When a parent
// is given, the parent's members are copied onto the new project as they
// stand at creation time; later changes to the parent do not propagate.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*domain.Project, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.ErrEmptyName
	}
	if _, err := s.workspaceRole(ctx, params.WorkspaceID, userID); err != nil {
		return nil, err
	}

	var inherited []*domain.ProjectMember
	if params.ParentID != nil {
		ok, err := s.projects.ExistsInWorkspace(ctx, *params.ParentID, params.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrParentProjectNotFound
		}
		role, err := s.accessRole(ctx, params.WorkspaceID, *params.ParentID, userID)
		if err != nil {
			return nil, err
		}
		if !rbac.HasProjectPermission(role, rbac.PermCreateSubproject) {
			return nil, domain.ErrForbidden
		}
		inherited, err = s.members.ListByProject(ctx, *params.ParentID)
		if err != nil {
			return nil, err
		}
	}

	color := params.Color
	if color == "" {
		color = defaultColor
	}

	now := time.Now()
	project := &domain.Project{
		ID:          uuid.New(),
		WorkspaceID: params.WorkspaceID,
		ParentID:    params.ParentID,
		Name:        strings.TrimSpace(params.Name),
		Color:       color,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.projects.CreateTx(ctx, tx, project); err != nil {
			return err
		}
		owner := &domain.ProjectMember{
			ID:        uuid.New(),
			ProjectID: project.ID,
			UserID:    userID,
			Role:      rbac.ProjectRoleOwner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.members.CreateTx(ctx, tx, owner); err != nil {
			return err
		}
		for _, m := range inherited {
			if m.UserID == userID {
				continue
			}
			role := m.Role
			// The snapshot must not carry a second OWNER into the child.
			if role == rbac.ProjectRoleOwner {
				role = rbac.ProjectRoleAdmin
			}
			member := &domain.ProjectMember{
				ID:        uuid.New(),
				ProjectID: project.ID,
				UserID:    m.UserID,
				Role:      role,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.members.CreateTx(ctx, tx, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	return project, nil
}

// List returns the workspace's projects visible to the user. Workspace
// OWNER and ADMIN see every project; everyone else sees the projects they
// are a member of.
func (s *Service) List(ctx context.Context, userID, workspaceID uuid.UUID) ([]*domain.Project, error) {
	role, err := s.workspaceRole(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if rbac.HasMinimumRole(role, rbac.WorkspaceRoleAdmin) {
		return s.projects.ListByWorkspace(ctx, workspaceID)
	}
	return s.projects.ListForUser(ctx, workspaceID, userID)
}

// Get returns a project if the user can view it.
func (s *Service) Get(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role, err := s.accessRole(ctx, project.WorkspaceID, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasProjectPermission(role, rbac.PermViewProject) {
		return nil, domain.ErrForbidden
	}
	return project, nil
}

// UpdateParams carries optional project field updates. Nil means leave
// the field alone.
type UpdateParams struct {
	Name       *string
	Color      *string
	IsArchived *bool
}

// Update modifies a project's name, color, or archived flag.
func (s *Service) Update(ctx context.Context, userID, projectID uuid.UUID, params UpdateParams) (*domain.Project, error) {
	project, err := s.requireWithPermission(ctx, userID, projectID, rbac.PermUpdateProject)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return nil, domain.ErrEmptyName
		}
		project.Name = strings.TrimSpace(*params.Name)
	}
	if params.Color != nil {
		project.Color = *params.Color
	}
	if params.IsArchived != nil {
		project.IsArchived = *params.IsArchived
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft deletes the project and its whole subtree.
func (s *Service) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	if _, err := s.requireWithPermission(ctx, userID, projectID, rbac.PermDeleteProject); err != nil {
		return err
	}
	return s.projects.SoftDeleteSubtree(ctx, projectID)
}

// Restore undeletes a soft deleted project and its subtree.
func (s *Service) Restore(ctx context.Context, userID, projectID uuid.UUID) error {
	project, err := s.projects.GetAnyByID(ctx, projectID)
	if err != nil {
		return err
	}
	role, err := s.accessRole(ctx, project.WorkspaceID, projectID, userID)
	if err != nil {
		return err
	}
	if !rbac.HasProjectPermission(role, rbac.PermDeleteProject) {
		return domain.ErrForbidden
	}
	return s.projects.RestoreSubtree(ctx, projectID)
}

// Members lists project members with user details.
func (s *Service) Members(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.ProjectMemberDetails, error) {
	if _, err := s.requireWithPermission(ctx, userID, projectID, rbac.PermViewProjectMembers); err != nil {
		return nil, err
	}
	return s.members.ListMembers(ctx, projectID)
}

// AddMember adds a workspace member to a project. OWNER is only ever
// granted at creation or through TransferOwnership.
func (s *Service) AddMember(ctx context.Context, requesterID, projectID, targetUserID uuid.UUID, role rbac.ProjectRole) error {
	if role == rbac.ProjectRoleOwner {
		return domain.ErrOwnerImmutable
	}
	if !role.Valid() {
		return rbac.ErrInvalidRole
	}

	project, err := s.requireWithPermission(ctx, requesterID, projectID, rbac.PermAddProjectMember)
	if err != nil {
		return err
	}

	if _, err := s.memberships.GetByWorkspaceAndUser(ctx, project.WorkspaceID, targetUserID); err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.ErrNotInWorkspace
		}
		return err
	}

	if _, err := s.members.GetByProjectAndUser(ctx, projectID, targetUserID); err == nil {
		return domain.ErrProjectMemberExists
	} else if !errors.Is(err, domain.ErrProjectMembershipMissing) {
		return err
	}

	now := time.Now()
	return s.members.Create(ctx, &domain.ProjectMember{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    targetUserID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// RemoveMember removes a user from the project and every project beneath
// it, so the subtree never holds a member its root does not. Members may
// remove themselves; removing others needs REMOVE_PROJECT_MEMBER. The
// OWNER cannot be removed either way.
func (s *Service) RemoveMember(ctx context.Context, requesterID, projectID, targetUserID uuid.UUID) error {
	target, err := s.members.GetByProjectAndUser(ctx, projectID, targetUserID)
	if err != nil {
		return err
	}
	if target.Role == rbac.ProjectRoleOwner {
		return domain.ErrOwnerImmutable
	}

	if requesterID != targetUserID {
		if _, err := s.requireWithPermission(ctx, requesterID, projectID, rbac.PermRemoveProjectMember); err != nil {
			return err
		}
	}

	if err := s.members.Delete(ctx, target.ID); err != nil {
		return err
	}

	descendants, err := s.projects.DescendantIDs(ctx, projectID)
	if err != nil {
		return err
	}
	return s.members.DeleteByUserInProjects(ctx, targetUserID, descendants)
}

// UpdateMemberRole changes a member's project role. OWNER is out of
// bounds on both sides.
func (s *Service) UpdateMemberRole(ctx context.Context, requesterID, projectID, targetUserID uuid.UUID, newRole rbac.ProjectRole) error {
	if newRole == rbac.ProjectRoleOwner {
		return domain.ErrOwnerImmutable
	}
	if !newRole.Valid() {
		return rbac.ErrInvalidRole
	}

	if _, err := s.requireWithPermission(ctx, requesterID, projectID, rbac.PermUpdateProjectMemberRole); err != nil {
		return err
	}

	target, err := s.members.GetByProjectAndUser(ctx, projectID, targetUserID)
	if err != nil {
		return err
	}
	if target.Role == rbac.ProjectRoleOwner {
		return domain.ErrOwnerImmutable
	}

	return s.members.UpdateRole(ctx, target.ID, newRole)
}

// TransferOwnership makes another member the project OWNER, demoting the
// current owner to ADMIN in the same transaction. Only the current owner
// or a workspace OWNER or ADMIN may transfer.
func (s *Service) TransferOwnership(ctx context.Context, requesterID, projectID, newOwnerID uuid.UUID) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	role, err := s.accessRole(ctx, project.WorkspaceID, projectID, requesterID)
	if err != nil {
		return err
	}
	if !rbac.HasMinimumProjectRole(role, rbac.ProjectRoleOwner) {
		wsRole, err := s.workspaceRole(ctx, project.WorkspaceID, requesterID)
		if err != nil {
			return err
		}
		if !rbac.HasMinimumRole(wsRole, rbac.WorkspaceRoleAdmin) {
			return domain.ErrForbidden
		}
	}

	currentOwner, err := s.members.GetOwner(ctx, projectID)
	if err != nil {
		return err
	}
	if currentOwner.UserID == newOwnerID {
		return nil
	}
	newOwner, err := s.members.GetByProjectAndUser(ctx, projectID, newOwnerID)
	if err != nil {
		return err
	}

	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.members.UpdateRoleTx(ctx, tx, currentOwner.ID, rbac.ProjectRoleAdmin); err != nil {
			return err
		}
		return s.members.UpdateRoleTx(ctx, tx, newOwner.ID, rbac.ProjectRoleOwner)
	})
}

// workspaceRole returns the user's workspace role, or ErrNotInWorkspace.
func (s *Service) workspaceRole(ctx context.Context, workspaceID, userID uuid.UUID) (rbac.WorkspaceRole, error) {
	membership, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return "", domain.ErrNotInWorkspace
		}
		return "", err
	}
	return membership.Role, nil
}

// accessRole resolves the user's effective role on a project. Workspace
// OWNER and ADMIN are floored at project ADMIN; a direct project role
// wins when it ranks higher. The empty role means no access.
func (s *Service) accessRole(ctx context.Context, workspaceID, projectID, userID uuid.UUID) (rbac.ProjectRole, error) {
	wsRole, err := s.workspaceRole(ctx, workspaceID, userID)
	if err != nil {
		return "", err
	}

	var effective rbac.ProjectRole
	if rbac.HasMinimumRole(wsRole, rbac.WorkspaceRoleAdmin) {
		effective = rbac.ProjectRoleAdmin
	}

	member, err := s.members.GetByProjectAndUser(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectMembershipMissing) {
			return effective, nil
		}
		return "", err
	}
	if member.Role.Rank() > effective.Rank() {
		effective = member.Role
	}
	return effective, nil
}

// requireWithPermission loads the project and checks the caller's
// effective role for the permission.
func (s *Service) requireWithPermission(ctx context.Context, userID, projectID uuid.UUID, perm rbac.ProjectPermission) (*domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role, err := s.accessRole(ctx, project.WorkspaceID, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasProjectPermission(role, rbac.PermViewProject) {
		return nil, domain.ErrProjectNotFound
	}
	if !rbac.HasProjectPermission(role, perm) {
		return nil, domain.ErrForbidden
	}
	return project, nil
}
