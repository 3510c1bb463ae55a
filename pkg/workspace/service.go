// Package workspace implements tenant lifecycle: creation, membership,
// invitations, role changes, and ownership transfer. Every mutation
// re-checks the caller's role against the permission tables here; the
// HTTP-layer guard is display-level only.
package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/auth"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/repository"
)

const inviteTokenLen = 32

const maxEmailLength = 254 // RFC 5321

// DefaultInviteTTL is how long an invitation stays acceptable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// InviteMailer delivers invitation tokens. Nil disables delivery (the
// invite is still created; useful in development).
type InviteMailer interface {
	SendWorkspaceInvite(to, workspaceName, token string) error
}

// WorkspacesStore is the slice of the workspaces repository this service
// touches. The *Tx variants run against the transaction passed in.
type WorkspacesStore interface {
	CreateTx(ctx context.Context, q repository.Querier, workspace *domain.Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Workspace, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, workspace *domain.Workspace) error
	SetOwnerTx(ctx context.Context, q repository.Querier, id, ownerID uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// MembershipsStore covers membership reads and role mutations.
type MembershipsStore interface {
	CreateTx(ctx context.Context, q repository.Querier, membership *domain.Membership) error
	GetByWorkspaceAndUser(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.Membership, error)
	ListWorkspacesForUser(ctx context.Context, userID uuid.UUID) ([]*repository.WorkspaceWithRole, error)
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]*domain.MemberDetails, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role rbac.WorkspaceRole) error
	UpdateRoleTx(ctx context.Context, q repository.Querier, id uuid.UUID, role rbac.WorkspaceRole) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvitationsStore covers the invitation token lifecycle.
type InvitationsStore interface {
	Create(ctx context.Context, invitation *domain.Invitation) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error)
	DeleteByWorkspaceAndEmail(ctx context.Context, workspaceID uuid.UUID, email string) error
	DeleteTx(ctx context.Context, q repository.Querier, id uuid.UUID) error
}

// UsersStore is the read-only user lookup the invite flow needs.
type UsersStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Service orchestrates workspace operations.
type Service struct {
	db          *sql.DB
	workspaces  WorkspacesStore
	memberships MembershipsStore
	invitations InvitationsStore
	users       UsersStore
	mailer      InviteMailer
	inviteTTL   time.Duration
}

// NewService creates a new workspace service.
func NewService(
	db *sql.DB,
	workspaces WorkspacesStore,
	memberships MembershipsStore,
	invitations InvitationsStore,
	users UsersStore,
	mailer InviteMailer,
) *Service {
	return &Service{
		db:          db,
		workspaces:  workspaces,
		memberships: memberships,
		invitations: invitations,
		users:       users,
		mailer:      mailer,
		inviteTTL:   DefaultInviteTTL,
	}
}

// SetInviteTTL overrides how long invitations stay acceptable.
func (s *Service) SetInviteTTL(d time.Duration) {
	if d > 0 {
		s.inviteTTL = d
	}
}

// Create creates a workspace and its implicit OWNER membership in one
// transaction.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string) (*domain.Workspace, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrEmptyName
	}

	slug, err := uniqueSlug(ctx, s.workspaces, slugify(name))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	workspace := &domain.Workspace{
		ID:        uuid.New(),
		OwnerID:   userID,
		Name:      strings.TrimSpace(name),
		Slug:      slug,
		PlanType:  "FREE",
		CreatedAt: now,
		UpdatedAt: now,
	}
	membership := &domain.Membership{
		ID:          uuid.New(),
		WorkspaceID: workspace.ID,
		UserID:      userID,
		Role:        rbac.WorkspaceRoleOwner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.workspaces.CreateTx(ctx, tx, workspace); err != nil {
			return err
		}
		return s.memberships.CreateTx(ctx, tx, membership)
	})
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return workspace, nil
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ListForUser returns every workspace the user belongs to with their role.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*repository.WorkspaceWithRole, error) {
	return s.memberships.ListWorkspacesForUser(ctx, userID)
}

// Get returns a live workspace by ID.
func (s *Service) Get(ctx context.Context, workspaceID uuid.UUID) (*domain.Workspace, error) {
	return s.workspaces.GetByID(ctx, workspaceID)
}

// GetBySlug returns a live workspace by its subdomain slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Workspace, error) {
	return s.workspaces.GetBySlug(ctx, slug)
}

// RoleOf returns the user's role in the workspace, or the empty role when
// they are not a member.
func (s *Service) RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (rbac.WorkspaceRole, error) {
	membership, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return "", nil
		}
		return "", err
	}
	return membership.Role, nil
}

// UpdateResult reports a workspace update plus whether the slug moved,
// which forces the caller's browser onto a new subdomain.
type UpdateResult struct {
	Workspace   *domain.Workspace
	SlugChanged bool
}

// Update renames a workspace and optionally re-slugs it. Renaming needs
// UPDATE_WORKSPACE; moving the subdomain is reserved for the owner.
func (s *Service) Update(ctx context.Context, userID, workspaceID uuid.UUID, name, slug string) (*UpdateResult, error) {
	role, err := s.requirePermission(ctx, workspaceID, userID, rbac.PermUpdateWorkspace)
	if err != nil {
		return nil, err
	}

	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		workspace.Name = strings.TrimSpace(name)
	}

	slugChanged := false
	if slug != "" && slugify(slug) != workspace.Slug {
		if !rbac.HasMinimumRole(role, rbac.WorkspaceRoleOwner) {
			return nil, domain.ErrForbidden
		}
		newSlug := slugify(slug)
		exists, err := s.workspaces.ExistsBySlug(ctx, newSlug)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrSlugTaken
		}
		workspace.Slug = newSlug
		slugChanged = true
	}

	if err := s.workspaces.Update(ctx, workspace); err != nil {
		return nil, err
	}

	return &UpdateResult{Workspace: workspace, SlugChanged: slugChanged}, nil
}

// Delete soft deletes a workspace. Owner only.
func (s *Service) Delete(ctx context.Context, userID, workspaceID uuid.UUID) error {
	if _, err := s.requirePermission(ctx, workspaceID, userID, rbac.PermDeleteWorkspace); err != nil {
		return err
	}
	return s.workspaces.SoftDelete(ctx, workspaceID)
}

// Members lists workspace members. Any member can view.
func (s *Service) Members(ctx context.Context, userID, workspaceID uuid.UUID) ([]*domain.MemberDetails, error) {
	if _, err := s.requirePermission(ctx, workspaceID, userID, rbac.PermViewMembers); err != nil {
		return nil, err
	}
	return s.memberships.ListMembers(ctx, workspaceID)
}

// InviteMember creates a single-use invitation and mails its token.
// Inviting at ADMIN level additionally needs INVITE_ADMIN (owner only).
func (s *Service) InviteMember(ctx context.Context, requesterID, workspaceID uuid.UUID, email string, role rbac.WorkspaceRole) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > maxEmailLength {
		return domain.ErrInvalidEmail
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.ErrInvalidEmail
	}
	if role == rbac.WorkspaceRoleOwner {
		return domain.ErrOwnerImmutable
	}
	if !role.Valid() {
		return rbac.ErrInvalidRole
	}

	requiredPerm := rbac.PermInviteMember
	if role == rbac.WorkspaceRoleAdmin {
		requiredPerm = rbac.PermInviteAdmin
	}
	if _, err := s.requirePermission(ctx, workspaceID, requesterID, requiredPerm); err != nil {
		return err
	}

	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}

	// An existing user who is already a member has nothing to accept.
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		if _, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, user.ID); err == nil {
			return domain.ErrAlreadyMember
		}
	}

	// Re-inviting replaces any outstanding token for this email.
	if err := s.invitations.DeleteByWorkspaceAndEmail(ctx, workspaceID, email); err != nil {
		return err
	}

	token, err := auth.GenerateToken(inviteTokenLen)
	if err != nil {
		return err
	}

	now := time.Now()
	invitation := &domain.Invitation{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		TokenHash:   auth.HashToken(token),
		InvitedBy:   requesterID,
		ExpiresAt:   now.Add(s.inviteTTL),
		CreatedAt:   now,
	}
	if err := s.invitations.Create(ctx, invitation); err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendWorkspaceInvite(email, workspace.Name, token); err != nil {
			return fmt.Errorf("send invite email: %w", err)
		}
	}

	return nil
}

// AcceptInvite consumes an invitation token and creates the membership.
// The token is validated (exists, unexpired) and consumed in the same
// transaction that creates the membership, so it can never be used twice.
func (s *Service) AcceptInvite(ctx context.Context, userID uuid.UUID, token string) (*domain.Membership, error) {
	invitation, err := s.invitations.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, err
	}
	if invitation.IsExpired() {
		return nil, domain.ErrInvitationExpired
	}

	if _, err := s.memberships.GetByWorkspaceAndUser(ctx, invitation.WorkspaceID, userID); err == nil {
		// Already a member: the token is spent either way.
		_ = s.invitations.DeleteTx(ctx, s.db, invitation.ID)
		return nil, domain.ErrAlreadyMember
	}

	now := time.Now()
	membership := &domain.Membership{
		ID:          uuid.New(),
		WorkspaceID: invitation.WorkspaceID,
		UserID:      userID,
		Role:        invitation.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.invitations.DeleteTx(ctx, tx, invitation.ID); err != nil {
			return err
		}
		return s.memberships.CreateTx(ctx, tx, membership)
	})
	if err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}

	return membership, nil
}

// RemoveMember removes a membership. Members may remove themselves
// (leave) unless they are the owner; removing anyone else needs
// REMOVE_MEMBER.
func (s *Service) RemoveMember(ctx context.Context, requesterID, workspaceID, targetUserID uuid.UUID) error {
	target, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, targetUserID)
	if err != nil {
		return err
	}

	if requesterID == targetUserID {
		if target.Role == rbac.WorkspaceRoleOwner {
			return domain.ErrOwnerCannotLeave
		}
	} else {
		if _, err := s.requirePermission(ctx, workspaceID, requesterID, rbac.PermRemoveMember); err != nil {
			return err
		}
		if target.Role == rbac.WorkspaceRoleOwner {
			return domain.ErrOwnerImmutable
		}
	}

	return s.memberships.Delete(ctx, target.ID)
}

// UpdateMemberRole changes a member's role. OWNER is never assigned or
// unassigned here; that is TransferOwnership's job.
func (s *Service) UpdateMemberRole(ctx context.Context, requesterID, workspaceID, targetUserID uuid.UUID, newRole rbac.WorkspaceRole) error {
	if newRole == rbac.WorkspaceRoleOwner {
		return domain.ErrOwnerImmutable
	}
	if !newRole.Valid() {
		return rbac.ErrInvalidRole
	}

	if _, err := s.requirePermission(ctx, workspaceID, requesterID, rbac.PermUpdateMemberRole); err != nil {
		return err
	}

	target, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, targetUserID)
	if err != nil {
		return err
	}
	if target.Role == rbac.WorkspaceRoleOwner {
		return domain.ErrOwnerImmutable
	}

	return s.memberships.UpdateRole(ctx, target.ID, newRole)
}

// TransferOwnership atomically swaps the OWNER role: the current owner is
// demoted to ADMIN and the new owner promoted, in one transaction, so the
// workspace has exactly one owner at every commit point.
func (s *Service) TransferOwnership(ctx context.Context, requesterID, workspaceID, newOwnerID uuid.UUID) error {
	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if workspace.OwnerID != requesterID {
		return domain.ErrForbidden
	}
	if requesterID == newOwnerID {
		return nil
	}

	newOwner, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, newOwnerID)
	if err != nil {
		return err
	}
	currentOwner, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, requesterID)
	if err != nil {
		return err
	}

	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.memberships.UpdateRoleTx(ctx, tx, currentOwner.ID, rbac.WorkspaceRoleAdmin); err != nil {
			return err
		}
		if err := s.memberships.UpdateRoleTx(ctx, tx, newOwner.ID, rbac.WorkspaceRoleOwner); err != nil {
			return err
		}
		return s.workspaces.SetOwnerTx(ctx, tx, workspaceID, newOwnerID)
	})
}

// requirePermission resolves the caller's membership and checks the
// permission table; it returns the caller's role for follow-up checks.
func (s *Service) requirePermission(ctx context.Context, workspaceID, userID uuid.UUID, perm rbac.WorkspacePermission) (rbac.WorkspaceRole, error) {
	membership, err := s.memberships.GetByWorkspaceAndUser(ctx, workspaceID, userID)
	if err != nil {
		return "", err
	}
	if !rbac.HasPermission(membership.Role, perm) {
		return "", domain.ErrForbidden
	}
	return membership.Role, nil
}
