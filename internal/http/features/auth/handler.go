// Package auth exposes the OAuth login flow and the current-user
// endpoint. Login is federated only; the callback creates the account on
// first sight of a verified Google identity.
package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/auth"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/repository"
	"github.com/rishabhxchoudhary/fractal/pkg/workspace"
)

const stateTokenLen = 16

// Handler handles authentication endpoints.
type Handler struct {
	logger           *slog.Logger
	googleService    *auth.GoogleService
	sessionService   *auth.SessionService
	workspaceService *workspace.Service
	cookieConfig     httputil.CookieConfig
}

// NewHandler creates a new auth handler.
func NewHandler(
	logger *slog.Logger,
	googleService *auth.GoogleService,
	sessionService *auth.SessionService,
	workspaceService *workspace.Service,
	cookieConfig httputil.CookieConfig,
) *Handler {
	return &Handler{
		logger:           logger,
		googleService:    googleService,
		sessionService:   sessionService,
		workspaceService: workspaceService,
		cookieConfig:     cookieConfig,
	}
}

// UserResponse is the JSON shape of a user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
}

// WorkspaceResponse is the JSON shape of a workspace plus the caller's
// role in it.
type WorkspaceResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	PlanType string    `json:"planType"`
	Role     string    `json:"role,omitempty"`
}

// CallbackRequest carries the OAuth authorization code back from the
// provider redirect.
type CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// LoginResponse is returned after a successful OAuth callback.
type LoginResponse struct {
	AccessToken  string              `json:"accessToken,omitempty"`
	RefreshToken string              `json:"refreshToken,omitempty"`
	TokenType    string              `json:"tokenType"`
	ExpiresIn    int                 `json:"expiresIn"`
	User         UserResponse        `json:"user"`
	Workspaces   []WorkspaceResponse `json:"workspaces"`
	RedirectURL  string              `json:"redirectUrl"`
}

// Start begins the OAuth flow.
// GET /api/auth/google
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateToken(stateTokenLen)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.cookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.googleService.AuthURL(state), http.StatusFound)
}

// Callback completes the OAuth flow: it exchanges the code, logs the user
// in (creating the account on first login), issues a session, and tells
// the client where to land. First-time users with no workspace are sent
// to onboarding; everyone else to the dashboard.
// POST /api/auth/oauth/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if cookie, err := r.Cookie("oauth_state"); err != nil || cookie.Value == "" || cookie.Value != req.State {
		httputil.Error(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	// State is single use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	tokenResp, err := h.googleService.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", "error", err)
		httputil.Error(w, http.StatusUnauthorized, "authorization code rejected")
		return
	}

	claims, err := h.googleService.ParseIDToken(tokenResp.IDToken)
	if err != nil {
		h.logger.Warn("oauth id token rejected", "error", err)
		httputil.Error(w, http.StatusUnauthorized, "invalid identity token")
		return
	}

	user, err := h.googleService.LoginOrSignup(r.Context(), claims)
	if err != nil {
		h.logger.Error("login failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	workspaces, err := h.workspaceService.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list workspaces", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	opts := auth.IssueSessionOpts{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if len(workspaces) > 0 {
		id := workspaces[0].Workspace.ID
		opts.ActiveWorkspaceID = &id
	}

	tokens, err := h.sessionService.IssueSession(r.Context(), user.ID, opts)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	redirectURL := "/dashboard"
	if len(workspaces) == 0 {
		redirectURL = "/welcome/new-workspace"
	}

	resp := LoginResponse{
		TokenType:   tokens.TokenType,
		ExpiresIn:   tokens.ExpiresIn,
		User:        toUserResponse(user),
		Workspaces:  toWorkspaceResponses(workspaces),
		RedirectURL: redirectURL,
	}

	if httputil.IsAPIClient(r) {
		resp.AccessToken = tokens.AccessToken
		resp.RefreshToken = tokens.RefreshToken
	} else {
		httputil.SetAuthCookies(
			w,
			tokens.AccessToken,
			tokens.RefreshToken,
			h.sessionService.AccessTokenTTL(),
			h.sessionService.RefreshTokenTTL(),
			h.cookieConfig,
		)
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// MeResponse is returned by the current-user endpoint.
type MeResponse struct {
	User       UserResponse        `json:"user"`
	Workspaces []WorkspaceResponse `json:"workspaces"`
}

// Me returns the authenticated user and their workspace list.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.workspaceService.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	workspaces, err := h.workspaceService.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to load workspaces")
		return
	}

	httputil.JSON(w, http.StatusOK, MeResponse{
		User:       toUserResponse(user),
		Workspaces: toWorkspaceResponses(workspaces),
	})
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

func toWorkspaceResponses(ws []*repository.WorkspaceWithRole) []WorkspaceResponse {
	out := make([]WorkspaceResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, WorkspaceResponse{
			ID:       w.Workspace.ID,
			Name:     w.Workspace.Name,
			Slug:     w.Workspace.Slug,
			PlanType: w.Workspace.PlanType,
			Role:     string(w.Role),
		})
	}
	return out
}
