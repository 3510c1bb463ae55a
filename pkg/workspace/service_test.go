package workspace

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/auth"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/repository"
)

// Input validation runs before any data access, so a zero-value service
// is enough to exercise it.

func TestInviteMember_RejectsInvalidEmail(t *testing.T) {
	svc := &Service{}

	tests := []string{
		"",
		"   ",
		"no-at-sign",
		"two@@example.com",
		"Display Name <a@example.com>",
		strings.Repeat("a", 250) + "@example.com",
	}

	for _, email := range tests {
		err := svc.InviteMember(context.Background(), uuid.New(), uuid.New(), email, rbac.WorkspaceRoleMember)
		if !errors.Is(err, domain.ErrInvalidEmail) {
			t.Errorf("InviteMember(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestInviteMember_RejectsOwnerRole(t *testing.T) {
	svc := &Service{}

	err := svc.InviteMember(context.Background(), uuid.New(), uuid.New(), "a@example.com", rbac.WorkspaceRoleOwner)
	if !errors.Is(err, domain.ErrOwnerImmutable) {
		t.Errorf("InviteMember with OWNER role = %v, want ErrOwnerImmutable", err)
	}
}

func TestInviteMember_RejectsUnknownRole(t *testing.T) {
	svc := &Service{}

	err := svc.InviteMember(context.Background(), uuid.New(), uuid.New(), "a@example.com", rbac.WorkspaceRole("SUPERUSER"))
	if !errors.Is(err, rbac.ErrInvalidRole) {
		t.Errorf("InviteMember with unknown role = %v, want ErrInvalidRole", err)
	}
}

// The deeper flows run against in-memory stores. WithTx still needs a
// real *sql.DB to hand out transactions, so the tests open one on a
// driver whose transactions do nothing; the stores ignore the Querier
// they are given.

type nopDriver struct{}

func (nopDriver) Open(string) (driver.Conn, error) { return nopConn{}, nil }

type nopConn struct{}

func (nopConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("unsupported") }
func (nopConn) Close() error                        { return nil }
func (nopConn) Begin() (driver.Tx, error)           { return nopTx{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

var registerNop sync.Once

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	registerNop.Do(func() { sql.Register("workspace-test-nop", nopDriver{}) })
	db, err := sql.Open("workspace-test-nop", "")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeWorkspaces struct {
	byID          map[uuid.UUID]*domain.Workspace
	setOwnerCalls []uuid.UUID
}

func newFakeWorkspaces(workspaces ...*domain.Workspace) *fakeWorkspaces {
	f := &fakeWorkspaces{byID: make(map[uuid.UUID]*domain.Workspace)}
	for _, w := range workspaces {
		f.byID[w.ID] = w
	}
	return f
}

func (f *fakeWorkspaces) CreateTx(_ context.Context, _ repository.Querier, w *domain.Workspace) error {
	f.byID[w.ID] = w
	return nil
}

func (f *fakeWorkspaces) GetByID(_ context.Context, id uuid.UUID) (*domain.Workspace, error) {
	w, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	return w, nil
}

func (f *fakeWorkspaces) GetBySlug(_ context.Context, slug string) (*domain.Workspace, error) {
	for _, w := range f.byID {
		if w.Slug == slug {
			return w, nil
		}
	}
	return nil, domain.ErrWorkspaceNotFound
}

func (f *fakeWorkspaces) ExistsBySlug(_ context.Context, slug string) (bool, error) {
	for _, w := range f.byID {
		if w.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWorkspaces) Update(_ context.Context, w *domain.Workspace) error {
	f.byID[w.ID] = w
	return nil
}

func (f *fakeWorkspaces) SetOwnerTx(_ context.Context, _ repository.Querier, id, ownerID uuid.UUID) error {
	w, ok := f.byID[id]
	if !ok {
		return domain.ErrWorkspaceNotFound
	}
	w.OwnerID = ownerID
	f.setOwnerCalls = append(f.setOwnerCalls, ownerID)
	return nil
}

func (f *fakeWorkspaces) SoftDelete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

type fakeMemberships struct {
	byID map[uuid.UUID]*domain.Membership
}

func newFakeMemberships(memberships ...*domain.Membership) *fakeMemberships {
	f := &fakeMemberships{byID: make(map[uuid.UUID]*domain.Membership)}
	for _, m := range memberships {
		f.byID[m.ID] = m
	}
	return f
}

func (f *fakeMemberships) CreateTx(_ context.Context, _ repository.Querier, m *domain.Membership) error {
	f.byID[m.ID] = m
	return nil
}

func (f *fakeMemberships) GetByWorkspaceAndUser(_ context.Context, workspaceID, userID uuid.UUID) (*domain.Membership, error) {
	for _, m := range f.byID {
		if m.WorkspaceID == workspaceID && m.UserID == userID {
			return m, nil
		}
	}
	return nil, domain.ErrMembershipNotFound
}

func (f *fakeMemberships) ListWorkspacesForUser(context.Context, uuid.UUID) ([]*repository.WorkspaceWithRole, error) {
	return nil, nil
}

func (f *fakeMemberships) ListMembers(context.Context, uuid.UUID) ([]*domain.MemberDetails, error) {
	return nil, nil
}

func (f *fakeMemberships) UpdateRole(_ context.Context, id uuid.UUID, role rbac.WorkspaceRole) error {
	m, ok := f.byID[id]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	m.Role = role
	return nil
}

func (f *fakeMemberships) UpdateRoleTx(ctx context.Context, _ repository.Querier, id uuid.UUID, role rbac.WorkspaceRole) error {
	return f.UpdateRole(ctx, id, role)
}

func (f *fakeMemberships) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeMemberships) ownerCount(workspaceID uuid.UUID) int {
	n := 0
	for _, m := range f.byID {
		if m.WorkspaceID == workspaceID && m.Role == rbac.WorkspaceRoleOwner {
			n++
		}
	}
	return n
}

type fakeInvitations struct {
	byID        map[uuid.UUID]*domain.Invitation
	deleteCalls int
}

func newFakeInvitations(invitations ...*domain.Invitation) *fakeInvitations {
	f := &fakeInvitations{byID: make(map[uuid.UUID]*domain.Invitation)}
	for _, inv := range invitations {
		f.byID[inv.ID] = inv
	}
	return f
}

func (f *fakeInvitations) Create(_ context.Context, inv *domain.Invitation) error {
	f.byID[inv.ID] = inv
	return nil
}

func (f *fakeInvitations) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Invitation, error) {
	for _, inv := range f.byID {
		if inv.TokenHash == tokenHash {
			return inv, nil
		}
	}
	return nil, domain.ErrInvitationNotFound
}

func (f *fakeInvitations) DeleteByWorkspaceAndEmail(_ context.Context, workspaceID uuid.UUID, email string) error {
	for id, inv := range f.byID {
		if inv.WorkspaceID == workspaceID && inv.Email == email {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeInvitations) DeleteTx(_ context.Context, _ repository.Querier, id uuid.UUID) error {
	f.deleteCalls++
	delete(f.byID, id)
	return nil
}

type fakeUsers struct {
	byID map[uuid.UUID]*domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func membershipOf(workspaceID, userID uuid.UUID, role rbac.WorkspaceRole) *domain.Membership {
	now := time.Now()
	return &domain.Membership{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestTransferOwnership(t *testing.T) {
	ownerID := uuid.New()
	adminID := uuid.New()
	memberID := uuid.New()
	workspaceID := uuid.New()

	newEnv := func() (*Service, *fakeWorkspaces, *fakeMemberships) {
		workspaces := newFakeWorkspaces(&domain.Workspace{
			ID:      workspaceID,
			OwnerID: ownerID,
			Name:    "Acme",
			Slug:    "acme",
		})
		memberships := newFakeMemberships(
			membershipOf(workspaceID, ownerID, rbac.WorkspaceRoleOwner),
			membershipOf(workspaceID, adminID, rbac.WorkspaceRoleAdmin),
			membershipOf(workspaceID, memberID, rbac.WorkspaceRoleMember),
		)
		svc := NewService(testDB(t), workspaces, memberships, newFakeInvitations(), &fakeUsers{}, nil)
		return svc, workspaces, memberships
	}

	t.Run("swaps roles and owner atomically", func(t *testing.T) {
		svc, workspaces, memberships := newEnv()

		if err := svc.TransferOwnership(context.Background(), ownerID, workspaceID, memberID); err != nil {
			t.Fatalf("TransferOwnership() = %v, want nil", err)
		}

		old, _ := memberships.GetByWorkspaceAndUser(context.Background(), workspaceID, ownerID)
		if old.Role != rbac.WorkspaceRoleAdmin {
			t.Errorf("previous owner role = %s, want ADMIN", old.Role)
		}
		promoted, _ := memberships.GetByWorkspaceAndUser(context.Background(), workspaceID, memberID)
		if promoted.Role != rbac.WorkspaceRoleOwner {
			t.Errorf("new owner role = %s, want OWNER", promoted.Role)
		}
		if got := memberships.ownerCount(workspaceID); got != 1 {
			t.Errorf("OWNER memberships after transfer = %d, want exactly 1", got)
		}

		ws, _ := workspaces.GetByID(context.Background(), workspaceID)
		if ws.OwnerID != memberID {
			t.Errorf("workspace owner = %s, want %s", ws.OwnerID, memberID)
		}
		if len(workspaces.setOwnerCalls) != 1 {
			t.Errorf("SetOwner calls = %d, want 1", len(workspaces.setOwnerCalls))
		}
	})

	t.Run("non-owner requester is forbidden", func(t *testing.T) {
		svc, _, memberships := newEnv()

		err := svc.TransferOwnership(context.Background(), adminID, workspaceID, memberID)
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("TransferOwnership() = %v, want ErrForbidden", err)
		}
		if got := memberships.ownerCount(workspaceID); got != 1 {
			t.Errorf("OWNER memberships after denied transfer = %d, want 1", got)
		}
	})

	t.Run("transfer to self is a no-op", func(t *testing.T) {
		svc, workspaces, memberships := newEnv()

		if err := svc.TransferOwnership(context.Background(), ownerID, workspaceID, ownerID); err != nil {
			t.Fatalf("TransferOwnership() = %v, want nil", err)
		}
		current, _ := memberships.GetByWorkspaceAndUser(context.Background(), workspaceID, ownerID)
		if current.Role != rbac.WorkspaceRoleOwner {
			t.Errorf("owner role after self-transfer = %s, want OWNER", current.Role)
		}
		if len(workspaces.setOwnerCalls) != 0 {
			t.Errorf("SetOwner calls = %d, want 0", len(workspaces.setOwnerCalls))
		}
	})

	t.Run("new owner must already be a member", func(t *testing.T) {
		svc, _, memberships := newEnv()

		err := svc.TransferOwnership(context.Background(), ownerID, workspaceID, uuid.New())
		if !errors.Is(err, domain.ErrMembershipNotFound) {
			t.Fatalf("TransferOwnership() = %v, want ErrMembershipNotFound", err)
		}
		if got := memberships.ownerCount(workspaceID); got != 1 {
			t.Errorf("OWNER memberships after failed transfer = %d, want 1", got)
		}
	})
}

func TestAcceptInvite(t *testing.T) {
	workspaceID := uuid.New()
	inviterID := uuid.New()

	inviteFor := func(expiresAt time.Time) (string, *domain.Invitation) {
		token := "invite-token-" + uuid.NewString()
		return token, &domain.Invitation{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Email:       "new@example.com",
			Role:        rbac.WorkspaceRoleMember,
			TokenHash:   auth.HashToken(token),
			InvitedBy:   inviterID,
			ExpiresAt:   expiresAt,
			CreatedAt:   time.Now(),
		}
	}

	t.Run("creates membership and consumes the token", func(t *testing.T) {
		token, invitation := inviteFor(time.Now().Add(time.Hour))
		invitations := newFakeInvitations(invitation)
		memberships := newFakeMemberships()
		svc := NewService(testDB(t), newFakeWorkspaces(), memberships, invitations, &fakeUsers{}, nil)

		userID := uuid.New()
		membership, err := svc.AcceptInvite(context.Background(), userID, token)
		if err != nil {
			t.Fatalf("AcceptInvite() = %v, want nil", err)
		}
		if membership.WorkspaceID != workspaceID || membership.UserID != userID {
			t.Errorf("membership = %s/%s, want %s/%s", membership.WorkspaceID, membership.UserID, workspaceID, userID)
		}
		if membership.Role != rbac.WorkspaceRoleMember {
			t.Errorf("membership role = %s, want MEMBER", membership.Role)
		}
		if invitations.deleteCalls != 1 {
			t.Errorf("invitation deletes = %d, want 1", invitations.deleteCalls)
		}

		// Replaying the same token must fail now that it is spent.
		if _, err := svc.AcceptInvite(context.Background(), uuid.New(), token); !errors.Is(err, domain.ErrInvitationNotFound) {
			t.Errorf("replayed AcceptInvite() = %v, want ErrInvitationNotFound", err)
		}
	})

	t.Run("rejects an expired token without consuming it", func(t *testing.T) {
		token, invitation := inviteFor(time.Now().Add(-time.Minute))
		invitations := newFakeInvitations(invitation)
		svc := NewService(testDB(t), newFakeWorkspaces(), newFakeMemberships(), invitations, &fakeUsers{}, nil)

		_, err := svc.AcceptInvite(context.Background(), uuid.New(), token)
		if !errors.Is(err, domain.ErrInvitationExpired) {
			t.Fatalf("AcceptInvite() = %v, want ErrInvitationExpired", err)
		}
		if invitations.deleteCalls != 0 {
			t.Errorf("invitation deletes = %d, want 0", invitations.deleteCalls)
		}
	})

	t.Run("existing member still spends the token", func(t *testing.T) {
		token, invitation := inviteFor(time.Now().Add(time.Hour))
		invitations := newFakeInvitations(invitation)
		userID := uuid.New()
		memberships := newFakeMemberships(membershipOf(workspaceID, userID, rbac.WorkspaceRoleMember))
		svc := NewService(testDB(t), newFakeWorkspaces(), memberships, invitations, &fakeUsers{}, nil)

		_, err := svc.AcceptInvite(context.Background(), userID, token)
		if !errors.Is(err, domain.ErrAlreadyMember) {
			t.Fatalf("AcceptInvite() = %v, want ErrAlreadyMember", err)
		}
		if invitations.deleteCalls != 1 {
			t.Errorf("invitation deletes = %d, want 1", invitations.deleteCalls)
		}
	})
}
