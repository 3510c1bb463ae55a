// Package workspaces exposes workspace CRUD, membership, invitation, and
// ownership endpoints.
package workspaces

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/internal/cache"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/workspace"
)

// Handler handles workspace endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *workspace.Service
	slugCache *cache.SlugCache
}

// NewHandler creates a new workspaces handler.
func NewHandler(logger *slog.Logger, service *workspace.Service, slugCache *cache.SlugCache) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		slugCache: slugCache,
	}
}

// WorkspaceResponse is the JSON shape of a workspace.
type WorkspaceResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	PlanType    string    `json:"planType"`
	Role        string    `json:"role,omitempty"`
	SlugChanged bool      `json:"slugChanged,omitempty"`
}

// MemberResponse is the JSON shape of a workspace member.
type MemberResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     string    `json:"role"`
}

// CreateRequest creates a workspace.
type CreateRequest struct {
	Name string `json:"name"`
}

// Create creates a workspace with the caller as OWNER.
// POST /api/workspaces
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := h.service.Create(r.Context(), userID, req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, WorkspaceResponse{
		ID:       ws.ID,
		Name:     ws.Name,
		Slug:     ws.Slug,
		PlanType: ws.PlanType,
		Role:     string(rbac.WorkspaceRoleOwner),
	})
}

// List returns the caller's workspaces with roles.
// GET /api/workspaces
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]WorkspaceResponse, 0, len(list))
	for _, item := range list {
		out = append(out, WorkspaceResponse{
			ID:       item.Workspace.ID,
			Name:     item.Workspace.Name,
			Slug:     item.Workspace.Slug,
			PlanType: item.Workspace.PlanType,
			Role:     string(item.Role),
		})
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Get returns one workspace. Any member can read it.
// GET /api/workspaces/{workspaceID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	role, err := h.service.RoleOf(r.Context(), workspaceID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if role == "" {
		httputil.Error(w, http.StatusNotFound, "workspace not found")
		return
	}

	ws, err := h.service.Get(r.Context(), workspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, WorkspaceResponse{
		ID:       ws.ID,
		Name:     ws.Name,
		Slug:     ws.Slug,
		PlanType: ws.PlanType,
		Role:     string(role),
	})
}

// UpdateRequest renames or re-slugs a workspace.
type UpdateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Update renames a workspace. Changing the slug moves every member onto a
// new subdomain, so it is restricted to the owner.
// PATCH /api/workspaces/{workspaceID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Remember the old slug so its cache entry can be dropped.
	before, err := h.service.Get(r.Context(), workspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), userID, workspaceID, req.Name, req.Slug)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.slugCache.Invalidate(r.Context(), before.Slug)

	httputil.JSON(w, http.StatusOK, WorkspaceResponse{
		ID:          result.Workspace.ID,
		Name:        result.Workspace.Name,
		Slug:        result.Workspace.Slug,
		PlanType:    result.Workspace.PlanType,
		SlugChanged: result.SlugChanged,
	})
}

// Delete soft deletes a workspace.
// DELETE /api/workspaces/{workspaceID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	ws, err := h.service.Get(r.Context(), workspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), userID, workspaceID); err != nil {
		h.writeError(w, err)
		return
	}

	h.slugCache.Invalidate(r.Context(), ws.Slug)

	w.WriteHeader(http.StatusNoContent)
}

// Members lists workspace members.
// GET /api/workspaces/{workspaceID}/members
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	members, err := h.service.Members(r.Context(), userID, workspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, MemberResponse{
			UserID:   m.UserID,
			Email:    m.Email,
			FullName: m.FullName,
			Role:     string(m.Role),
		})
	}
	httputil.JSON(w, http.StatusOK, out)
}

// InviteRequest creates an invitation.
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Invite creates an invitation and mails its token.
// POST /api/workspaces/{workspaceID}/invitations
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := rbac.ParseWorkspaceRole(req.Role)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := h.service.InviteMember(r.Context(), userID, workspaceID, req.Email, role); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AcceptInviteRequest consumes an invitation token.
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// AcceptInvite joins the caller to the inviting workspace.
// POST /api/workspaces/accept-invite
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AcceptInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	membership, err := h.service.AcceptInvite(r.Context(), userID, req.Token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ws, err := h.service.Get(r.Context(), membership.WorkspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, WorkspaceResponse{
		ID:       ws.ID,
		Name:     ws.Name,
		Slug:     ws.Slug,
		PlanType: ws.PlanType,
		Role:     string(membership.Role),
	})
}

// UpdateMemberRoleRequest changes a member's role.
type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

// UpdateMemberRole changes a member's role.
// PATCH /api/workspaces/{workspaceID}/members/{userID}
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req UpdateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := rbac.ParseWorkspaceRole(req.Role)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := h.service.UpdateMemberRole(r.Context(), userID, workspaceID, targetID, role); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember removes a member, or lets a non-owner leave.
// DELETE /api/workspaces/{workspaceID}/members/{userID}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.RemoveMember(r.Context(), userID, workspaceID, targetID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TransferOwnershipRequest names the next owner.
type TransferOwnershipRequest struct {
	NewOwnerID uuid.UUID `json:"newOwnerId"`
}

// TransferOwnership hands the workspace to another member.
// POST /api/workspaces/{workspaceID}/transfer-ownership
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewOwnerID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "newOwnerId is required")
		return
	}

	if err := h.service.TransferOwnership(r.Context(), userID, workspaceID, req.NewOwnerID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// scope pulls the caller and the workspace out of the request.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (userID, workspaceID uuid.UUID, ok bool) {
	userID, ok = middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid workspace id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, workspaceID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrWorkspaceNotFound):
		httputil.Error(w, http.StatusNotFound, "workspace not found")
	case errors.Is(err, domain.ErrMembershipNotFound):
		httputil.Error(w, http.StatusNotFound, "member not found")
	case errors.Is(err, domain.ErrInvitationNotFound):
		httputil.Error(w, http.StatusNotFound, "invitation not found")
	case errors.Is(err, domain.ErrInvitationExpired):
		httputil.Error(w, http.StatusGone, "invitation expired")
	case errors.Is(err, domain.ErrAlreadyMember):
		httputil.Error(w, http.StatusConflict, "already a member")
	case errors.Is(err, domain.ErrSlugTaken):
		httputil.Error(w, http.StatusConflict, "slug already in use")
	case errors.Is(err, domain.ErrOwnerImmutable):
		httputil.Error(w, http.StatusConflict, "owner role cannot be changed here")
	case errors.Is(err, domain.ErrOwnerCannotLeave):
		httputil.Error(w, http.StatusConflict, "transfer ownership before leaving")
	case errors.Is(err, domain.ErrForbidden):
		httputil.Error(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, domain.ErrInvalidEmail):
		httputil.Error(w, http.StatusBadRequest, "invalid email")
	case errors.Is(err, domain.ErrEmptyName):
		httputil.Error(w, http.StatusBadRequest, "name is required")
	case errors.Is(err, rbac.ErrInvalidRole):
		httputil.Error(w, http.StatusBadRequest, "invalid role")
	default:
		h.logger.Error("workspace operation failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
