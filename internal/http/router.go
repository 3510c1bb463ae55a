package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rishabhxchoudhary/fractal/internal/cache"
	"github.com/rishabhxchoudhary/fractal/internal/config"
	"github.com/rishabhxchoudhary/fractal/internal/http/features/app"
	authfeature "github.com/rishabhxchoudhary/fractal/internal/http/features/auth"
	"github.com/rishabhxchoudhary/fractal/internal/http/features/projects"
	"github.com/rishabhxchoudhary/fractal/internal/http/features/session"
	"github.com/rishabhxchoudhary/fractal/internal/http/features/workspaces"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/auth"
	"github.com/rishabhxchoudhary/fractal/pkg/project"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
	"github.com/rishabhxchoudhary/fractal/pkg/workspace"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger           *slog.Logger
	GoogleService    *auth.GoogleService
	SessionService   *auth.SessionService
	WorkspaceService *workspace.Service
	ProjectService   *project.Service
	SlugCache        *cache.SlugCache
	Scheme           string
	RootDomain       string
	CookieSecure     bool
	RateLimitConfig  config.RateLimitConfig
	SecurityHeaders  config.SecurityHeadersConfig
	Validation       config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))
	r.Use(middleware.Subdomain(cfg.RootDomain))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	cookieConfig := httputil.NewCookieConfig(cfg.RootDomain, cfg.CookieSecure)
	authMiddleware := middleware.Auth(cfg.SessionService)

	// OAuth login (if configured)
	if cfg.GoogleService != nil {
		authHandler := authfeature.NewHandler(
			cfg.Logger,
			cfg.GoogleService,
			cfg.SessionService,
			cfg.WorkspaceService,
			cookieConfig,
		)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["auth"])
			r.Get("/api/auth/google", authHandler.Start)
			r.Post("/api/auth/oauth/callback", authHandler.Callback)
		})
		r.With(authMiddleware).Get("/api/auth/me", authHandler.Me)
	}

	// Session routes
	sessionHandler := session.NewHandler(cfg.SessionService, cfg.WorkspaceService, cookieConfig)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["refresh"])
		r.Post("/api/auth/refresh", sessionHandler.Refresh)
	})
	r.Post("/api/auth/logout", sessionHandler.Logout)
	r.With(authMiddleware).Post("/api/auth/logout/all", sessionHandler.LogoutAll)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(rateLimiters["api"])
		r.Get("/api/session/workspace", sessionHandler.GetWorkspace)
		r.Put("/api/session/workspace", sessionHandler.SetWorkspace)
	})

	// Workspace routes
	workspacesHandler := workspaces.NewHandler(cfg.Logger, cfg.WorkspaceService, cfg.SlugCache)
	projectsHandler := projects.NewHandler(cfg.Logger, cfg.ProjectService)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(rateLimiters["api"])

		r.Post("/api/workspaces", workspacesHandler.Create)
		r.Get("/api/workspaces", workspacesHandler.List)
		r.Post("/api/workspaces/accept-invite", workspacesHandler.AcceptInvite)

		r.Route("/api/workspaces/{workspaceID}", func(r chi.Router) {
			r.Get("/", workspacesHandler.Get)
			r.Patch("/", workspacesHandler.Update)
			r.Delete("/", workspacesHandler.Delete)
			r.Get("/members", workspacesHandler.Members)
			r.Patch("/members/{userID}", workspacesHandler.UpdateMemberRole)
			r.Delete("/members/{userID}", workspacesHandler.RemoveMember)
			r.Post("/transfer-ownership", workspacesHandler.TransferOwnership)
			r.With(rateLimiters["invite"]).Post("/invitations", workspacesHandler.Invite)
			r.Get("/projects", projectsHandler.List)
		})

		// Project routes
		r.Post("/api/projects", projectsHandler.Create)
		r.Route("/api/projects/{projectID}", func(r chi.Router) {
			r.Get("/", projectsHandler.Get)
			r.Patch("/", projectsHandler.Update)
			r.Delete("/", projectsHandler.Delete)
			r.Post("/restore", projectsHandler.Restore)
			r.Get("/members", projectsHandler.Members)
			r.Post("/members", projectsHandler.AddMember)
			r.Patch("/members/{userID}", projectsHandler.UpdateMemberRole)
			r.Delete("/members/{userID}", projectsHandler.RemoveMember)
			r.Post("/transfer-ownership", projectsHandler.TransferOwnership)
		})
	})

	// Host-based surfaces: the tenant surface on workspace subdomains,
	// the workspace selector on the root domain.
	appHandler := app.NewHandler(cfg.Logger, cfg.WorkspaceService, cfg.SlugCache, cfg.Scheme, cfg.RootDomain)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(rateLimiters["api"])
		r.Get("/api/app/workspaces", appHandler.Selector)

		r.Group(func(r chi.Router) {
			r.Use(appHandler.WorkspaceContext)
			r.Get("/api/tenant", appHandler.Tenant)
			r.With(middleware.Guard(middleware.GuardConfig{
				Permission: rbac.PermAccessSettings,
				RedirectTo: "/dashboard",
				OnRoot:     true,
				Scheme:     cfg.Scheme,
				RootDomain: cfg.RootDomain,
			})).Get("/api/tenant/settings", appHandler.Settings)
		})
	})

	return r
}
