// Package projects exposes the project tree endpoints: CRUD with subtree
// delete/restore, membership, and ownership transfer.
package projects

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/project"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

// Handler handles project endpoints.
type Handler struct {
	logger  *slog.Logger
	service *project.Service
}

// NewHandler creates a new projects handler.
func NewHandler(logger *slog.Logger, service *project.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// ProjectResponse is the JSON shape of a project.
type ProjectResponse struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspaceId"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	IsArchived  bool       `json:"isArchived"`
}

// MemberResponse is the JSON shape of a project member.
type MemberResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     string    `json:"role"`
}

// List returns the projects the caller can see in a workspace.
// GET /api/workspaces/{workspaceID}/projects
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid workspace id")
		return
	}

	list, err := h.service.List(r.Context(), userID, workspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]ProjectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProjectResponse(p))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// CreateRequest creates a project, optionally under a parent.
type CreateRequest struct {
	WorkspaceID uuid.UUID  `json:"workspaceId"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Name        string     `json:"name"`
	Color       string     `json:"color,omitempty"`
}

// Create creates a project. The caller becomes its OWNER; with a parent,
// the parent's member list is copied onto the new project.
// POST /api/projects
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkspaceID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "workspaceId is required")
		return
	}

	created, err := h.service.Create(r.Context(), userID, project.CreateParams{
		WorkspaceID: req.WorkspaceID,
		ParentID:    req.ParentID,
		Name:        req.Name,
		Color:       req.Color,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, toProjectResponse(created))
}

// Get returns one project.
// GET /api/projects/{projectID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID, projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toProjectResponse(p))
}

// UpdateRequest updates project fields. Omitted fields are unchanged.
type UpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Color      *string `json:"color,omitempty"`
	IsArchived *bool   `json:"isArchived,omitempty"`
}

// Update modifies a project.
// PATCH /api/projects/{projectID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.Update(r.Context(), userID, projectID, project.UpdateParams{
		Name:       req.Name,
		Color:      req.Color,
		IsArchived: req.IsArchived,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete soft deletes a project and its whole subtree.
// DELETE /api/projects/{projectID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, projectID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore undeletes a project subtree.
// POST /api/projects/{projectID}/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), userID, projectID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members lists project members.
// GET /api/projects/{projectID}/members
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	members, err := h.service.Members(r.Context(), userID, projectID)
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

// AddMemberRequest adds a workspace member to the project.
type AddMemberRequest struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
}

// AddMember adds a member to the project.
// POST /api/projects/{projectID}/members
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	role, err := rbac.ParseProjectRole(req.Role)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := h.service.AddMember(r.Context(), userID, projectID, req.UserID, role); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateMemberRoleRequest changes a project member's role.
type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

// UpdateMemberRole changes a member's project role.
// PATCH /api/projects/{projectID}/members/{userID}
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
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

	role, err := rbac.ParseProjectRole(req.Role)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := h.service.UpdateMemberRole(r.Context(), userID, projectID, targetID, role); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember removes a member from the project and its descendants.
// DELETE /api/projects/{projectID}/members/{userID}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.RemoveMember(r.Context(), userID, projectID, targetID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransferOwnershipRequest names the next project owner.
type TransferOwnershipRequest struct {
	NewOwnerID uuid.UUID `json:"newOwnerId"`
}

// TransferOwnership hands the project to another member.
// POST /api/projects/{projectID}/transfer-ownership
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewOwnerID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "newOwnerId is required")
		return
	}

	if err := h.service.TransferOwnership(r.Context(), userID, projectID, req.NewOwnerID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (userID, projectID uuid.UUID, ok bool) {
	userID, ok = middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, projectID, true
}

func toProjectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		ParentID:    p.ParentID,
		Name:        p.Name,
		Color:       p.Color,
		IsArchived:  p.IsArchived,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		httputil.Error(w, http.StatusNotFound, "project not found")
	case errors.Is(err, domain.ErrParentProjectNotFound):
		httputil.Error(w, http.StatusNotFound, "parent project not found")
	case errors.Is(err, domain.ErrProjectMembershipMissing):
		httputil.Error(w, http.StatusNotFound, "project member not found")
	case errors.Is(err, domain.ErrProjectMemberExists):
		httputil.Error(w, http.StatusConflict, "already a project member")
	case errors.Is(err, domain.ErrNotInWorkspace):
		httputil.Error(w, http.StatusForbidden, "not a workspace member")
	case errors.Is(err, domain.ErrOwnerImmutable):
		httputil.Error(w, http.StatusConflict, "owner role cannot be changed here")
	case errors.Is(err, domain.ErrForbidden):
		httputil.Error(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, domain.ErrEmptyName):
		httputil.Error(w, http.StatusBadRequest, "name is required")
	case errors.Is(err, rbac.ErrInvalidRole):
		httputil.Error(w, http.StatusBadRequest, "invalid role")
	default:
		h.logger.Error("project operation failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
