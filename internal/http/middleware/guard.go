package middleware

import (
	"context"
	"net/http"

	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/tenant"
)

const (
	// WorkspaceRoleKey is the context key for the caller's role in the
	// workspace the request is scoped to.
	WorkspaceRoleKey contextKey = "workspace_role"
)

// WithWorkspaceRole stores the caller's workspace role on the context.
// The workspace-scoping middleware sets it after the membership lookup.
func WithWorkspaceRole(ctx context.Context, role rbac.WorkspaceRole) context.Context {
	return context.WithValue(ctx, WorkspaceRoleKey, role)
}

// GetWorkspaceRole extracts the caller's workspace role from the context.
func GetWorkspaceRole(ctx context.Context) (rbac.WorkspaceRole, bool) {
	role, ok := ctx.Value(WorkspaceRoleKey).(rbac.WorkspaceRole)
	return role, ok
}

// GuardConfig describes a route-level access gate. Exactly one of the
// permission fields or MinimumRole is usually set; when several are set
// they must all pass. The gate reads the role the workspace-scoping
// middleware put on the context, so it performs no I/O itself.
type GuardConfig struct {
	// Permission is a single required permission.
	Permission rbac.WorkspacePermission
	// Permissions is a required permission set. RequireAll decides
	// between all-of and any-of semantics.
	Permissions []rbac.WorkspacePermission
	RequireAll  bool
	// MinimumRole gates on the role hierarchy instead of a permission.
	MinimumRole rbac.WorkspaceRole

	// RedirectTo, when set, turns a denial into a redirect to this path
	// instead of a 403. Browser-facing routes use it; API routes leave
	// it empty. OnRoot sends the redirect to the root domain; otherwise
	// it stays on the current workspace subdomain.
	RedirectTo string
	OnRoot     bool
	Scheme     string
	RootDomain string
}

func (cfg GuardConfig) hasCheck() bool {
	return cfg.Permission != "" || len(cfg.Permissions) > 0 || cfg.MinimumRole != ""
}

// Guard creates middleware that allows the request through only when the
// caller's workspace role satisfies the configured requirement. With no
// check configured the request always passes.
func Guard(cfg GuardConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.hasCheck() {
				next.ServeHTTP(w, r)
				return
			}
			role, ok := GetWorkspaceRole(r.Context())
			if !ok || !guardAllows(cfg, role) {
				deny(w, r, cfg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func guardAllows(cfg GuardConfig, role rbac.WorkspaceRole) bool {
	if cfg.Permission != "" && !rbac.HasPermission(role, cfg.Permission) {
		return false
	}
	if len(cfg.Permissions) > 0 {
		if cfg.RequireAll {
			if !rbac.HasAllPermissions(role, cfg.Permissions...) {
				return false
			}
		} else if !rbac.HasAnyPermission(role, cfg.Permissions...) {
			return false
		}
	}
	if cfg.MinimumRole != "" && !rbac.HasMinimumRole(role, cfg.MinimumRole) {
		return false
	}
	return true
}

// deny redirects when a target is configured, qualified with protocol and
// domain so the target survives cross subdomain navigation, and 403s
// otherwise.
func deny(w http.ResponseWriter, r *http.Request, cfg GuardConfig) {
	if cfg.RedirectTo != "" {
		slug := ""
		if !cfg.OnRoot {
			slug, _ = GetTenantSlug(r.Context())
		}
		target := tenant.URL(cfg.Scheme, slug, cfg.RootDomain, cfg.RedirectTo)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	httputil.Error(w, http.StatusForbidden, "insufficient permissions")
}
