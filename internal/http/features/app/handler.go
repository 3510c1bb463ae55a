// Package app serves the two request surfaces the host decides between:
// workspace subdomains get the tenant surface, the root domain gets the
// workspace selection surface. Unknown subdomains and non-members are
// bounced to the root domain selector with a fully qualified redirect.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/internal/cache"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/tenant"
	"github.com/rishabhxchoudhary/fractal/pkg/workspace"
)

type contextKey string

const workspaceKey contextKey = "app_workspace"

// Handler handles the tenant and root surfaces.
type Handler struct {
	logger           *slog.Logger
	workspaceService *workspace.Service
	slugCache        *cache.SlugCache
	scheme           string
	rootDomain       string
}

// NewHandler creates a new app handler.
func NewHandler(logger *slog.Logger, workspaceService *workspace.Service, slugCache *cache.SlugCache, scheme, rootDomain string) *Handler {
	return &Handler{
		logger:           logger,
		workspaceService: workspaceService,
		slugCache:        slugCache,
		scheme:           scheme,
		rootDomain:       rootDomain,
	}
}

// WorkspaceContext resolves the subdomain slug to a workspace and the
// caller's role in it, and puts both on the context. Requests with no
// subdomain, an unknown slug, or no membership leave the tenant surface
// via a qualified redirect to the root domain selector.
func (h *Handler) WorkspaceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, ok := middleware.GetTenantSlug(r.Context())
		if !ok {
			h.toSelector(w, r)
			return
		}

		ws, err := h.lookupSlug(r.Context(), slug)
		if err != nil {
			if errors.Is(err, domain.ErrWorkspaceNotFound) {
				h.toSelector(w, r)
				return
			}
			h.logger.Error("slug lookup failed", "error", err, "slug", slug)
			httputil.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		userID, ok := middleware.GetUserID(r.Context())
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		role, err := h.workspaceService.RoleOf(r.Context(), ws.ID, userID)
		if err != nil {
			h.logger.Error("membership lookup failed", "error", err, "workspace_id", ws.ID)
			httputil.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if role == "" {
			h.toSelector(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), workspaceKey, ws)
		ctx = middleware.WithWorkspaceRole(ctx, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantResponse describes the workspace surface for the current host.
type TenantResponse struct {
	Workspace   WorkspaceInfo `json:"workspace"`
	Role        string        `json:"role"`
	Permissions []string      `json:"permissions"`
}

// WorkspaceInfo is the workspace as seen from its subdomain.
type WorkspaceInfo struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	PlanType string    `json:"planType"`
}

// Tenant returns the workspace behind the current subdomain plus the
// caller's role and effective permissions.
// GET /api/tenant
func (h *Handler) Tenant(w http.ResponseWriter, r *http.Request) {
	ws, ok := r.Context().Value(workspaceKey).(*domain.Workspace)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	role, _ := middleware.GetWorkspaceRole(r.Context())

	httputil.JSON(w, http.StatusOK, TenantResponse{
		Workspace: WorkspaceInfo{
			ID:       ws.ID,
			Name:     ws.Name,
			Slug:     ws.Slug,
			PlanType: ws.PlanType,
		},
		Role:        string(role),
		Permissions: permissionNames(role),
	})
}

// Settings serves the workspace settings surface. The route is wrapped in
// a guard requiring ACCESS_SETTINGS, so reaching here means the caller is
// allowed in.
// GET /api/tenant/settings
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	ws, ok := r.Context().Value(workspaceKey).(*domain.Workspace)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	role, _ := middleware.GetWorkspaceRole(r.Context())

	httputil.JSON(w, http.StatusOK, TenantResponse{
		Workspace: WorkspaceInfo{
			ID:       ws.ID,
			Name:     ws.Name,
			Slug:     ws.Slug,
			PlanType: ws.PlanType,
		},
		Role:        string(role),
		Permissions: permissionNames(role),
	})
}

// SelectorResponse describes the root domain surface: the places the user
// can go.
type SelectorResponse struct {
	Workspaces []SelectorWorkspace `json:"workspaces"`
}

// SelectorWorkspace is a workspace entry with its subdomain URL.
type SelectorWorkspace struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
	Role string    `json:"role"`
	URL  string    `json:"url"`
}

// Selector lists the caller's workspaces with their subdomain URLs for
// the root domain selection page.
// GET /api/app/workspaces
func (h *Handler) Selector(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.workspaceService.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list workspaces", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]SelectorWorkspace, 0, len(list))
	for _, item := range list {
		out = append(out, SelectorWorkspace{
			ID:   item.Workspace.ID,
			Name: item.Workspace.Name,
			Slug: item.Workspace.Slug,
			Role: string(item.Role),
			URL:  tenant.URL(h.scheme, item.Workspace.Slug, h.rootDomain, "/"),
		})
	}
	httputil.JSON(w, http.StatusOK, SelectorResponse{Workspaces: out})
}

// lookupSlug resolves a slug to its workspace, consulting the cache
// first. Cache misses fall through to postgres and populate the cache.
func (h *Handler) lookupSlug(ctx context.Context, slug string) (*domain.Workspace, error) {
	if ws, ok := h.slugCache.Get(ctx, slug); ok {
		return ws, nil
	}

	ws, err := h.workspaceService.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	h.slugCache.Set(ctx, ws)
	return ws, nil
}

// toSelector sends browsers to the root domain workspace selector and
// API clients a JSON 404 carrying the same target. The response is
// identical whether the slug is unknown or the caller is not a member,
// so probing subdomains reveals nothing about which workspaces exist.
func (h *Handler) toSelector(w http.ResponseWriter, r *http.Request) {
	target := tenant.URL(h.scheme, "", h.rootDomain, "/dashboard")
	if httputil.IsAPIClient(r) {
		httputil.JSON(w, http.StatusNotFound, map[string]string{
			"error":       "workspace not found",
			"redirectUrl": target,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func permissionNames(role rbac.WorkspaceRole) []string {
	all := []rbac.WorkspacePermission{
		rbac.PermUpdateWorkspace,
		rbac.PermDeleteWorkspace,
		rbac.PermInviteMember,
		rbac.PermInviteAdmin,
		rbac.PermRemoveMember,
		rbac.PermUpdateMemberRole,
		rbac.PermAccessSettings,
		rbac.PermViewWorkspace,
		rbac.PermViewMembers,
	}
	out := make([]string, 0, len(all))
	for _, p := range all {
		if rbac.HasPermission(role, p) {
			out = append(out, string(p))
		}
	}
	return out
}
