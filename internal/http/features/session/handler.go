// Package session exposes token refresh, logout, and the session's
// active-workspace pointer. The pointer is re-validated against live
// memberships on every read, so a revoked membership or deleted workspace
// can never be acted in with a stale session.
package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/internal/httputil"
	"github.com/rishabhxchoudhary/fractal/pkg/auth"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/workspace"
)

// Handler handles session endpoints.
type Handler struct {
	sessionService   *auth.SessionService
	workspaceService *workspace.Service
	cookieConfig     httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(sessionService *auth.SessionService, workspaceService *workspace.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		sessionService:   sessionService,
		workspaceService: workspaceService,
		cookieConfig:     cookieConfig,
	}
}

// RefreshRequest represents a token refresh request (for API clients).
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse represents a token response.
type TokenResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// LogoutRequest represents a logout request (for API clients).
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token for a fresh access token.
// POST /api/auth/refresh
//
// Web clients carry the refresh token in a cookie; API clients put it in
// the request body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if httputil.IsAPIClient(r) {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		refreshToken = req.RefreshToken
	} else {
		var ok bool
		refreshToken, ok = httputil.GetRefreshTokenFromCookie(r)
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "refresh token not found")
			return
		}
	}

	if refreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	tokens, err := h.sessionService.RefreshSession(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) ||
			errors.Is(err, domain.ErrSessionExpired) ||
			errors.Is(err, domain.ErrSessionRevoked) {
			if !httputil.IsAPIClient(r) {
				httputil.ClearAuthCookies(w, h.cookieConfig)
			}
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	h.writeTokenResponse(w, r, tokens)
}

// Logout revokes a session.
// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if httputil.IsAPIClient(r) {
		var req LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		refreshToken = req.RefreshToken
	} else {
		refreshToken, _ = httputil.GetRefreshTokenFromCookie(r)
	}

	if refreshToken != "" {
		// Revoke session (ignore errors to prevent enumeration attacks)
		_ = h.sessionService.RevokeSession(r.Context(), refreshToken)
	}

	if !httputil.IsAPIClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes all sessions for the current user.
// POST /api/auth/logout/all
// Requires authentication
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessionService.RevokeAllSessions(r.Context(), userID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to logout all sessions")
		return
	}

	if !httputil.IsAPIClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	w.WriteHeader(http.StatusNoContent)
}

// ActiveWorkspaceResponse describes the session's active workspace, or
// null when none is selected.
type ActiveWorkspaceResponse struct {
	Workspace *WorkspaceInfo `json:"workspace"`
}

// WorkspaceInfo is the active workspace plus the caller's role in it.
type WorkspaceInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
	Role string    `json:"role"`
}

// GetWorkspace returns the session's active workspace, re-validated
// against current memberships. A pointer to a workspace the user no
// longer belongs to, or one that was deleted, is cleared and reported as
// no selection.
// GET /api/session/workspace
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessionService.GetSession(r.Context(), sessionID)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "session not found")
		return
	}

	if session.ActiveWorkspaceID == nil {
		httputil.JSON(w, http.StatusOK, ActiveWorkspaceResponse{})
		return
	}

	info, err := h.resolveWorkspace(r, userID, *session.ActiveWorkspaceID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to load workspace")
		return
	}
	if info == nil {
		// Stale pointer; drop it so the client falls back to selection.
		_ = h.sessionService.SetActiveWorkspace(r.Context(), sessionID, nil)
		httputil.JSON(w, http.StatusOK, ActiveWorkspaceResponse{})
		return
	}

	httputil.JSON(w, http.StatusOK, ActiveWorkspaceResponse{Workspace: info})
}

// SetWorkspaceRequest selects the workspace the session acts in.
type SetWorkspaceRequest struct {
	WorkspaceID uuid.UUID `json:"workspaceId"`
}

// SetWorkspace moves the session's active-workspace pointer. The target
// must be a workspace the caller currently belongs to.
// PUT /api/session/workspace
func (h *Handler) SetWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SetWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkspaceID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "workspaceId is required")
		return
	}

	info, err := h.resolveWorkspace(r, userID, req.WorkspaceID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to load workspace")
		return
	}
	if info == nil {
		httputil.Error(w, http.StatusForbidden, "not a member of this workspace")
		return
	}

	if err := h.sessionService.SetActiveWorkspace(r.Context(), sessionID, &req.WorkspaceID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to set workspace")
		return
	}

	httputil.JSON(w, http.StatusOK, ActiveWorkspaceResponse{Workspace: info})
}

// resolveWorkspace returns the workspace info when the user is a live
// member of a live workspace, and nil otherwise.
func (h *Handler) resolveWorkspace(r *http.Request, userID, workspaceID uuid.UUID) (*WorkspaceInfo, error) {
	ws, err := h.workspaceService.Get(r.Context(), workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrWorkspaceNotFound) {
			return nil, nil
		}
		return nil, err
	}

	role, err := h.workspaceService.RoleOf(r.Context(), workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, nil
	}

	return &WorkspaceInfo{
		ID:   ws.ID,
		Name: ws.Name,
		Slug: ws.Slug,
		Role: string(role),
	}, nil
}

// writeTokenResponse writes tokens as cookies (web) or JSON (API clients).
func (h *Handler) writeTokenResponse(w http.ResponseWriter, r *http.Request, tokens *domain.TokenPair) {
	if httputil.IsAPIClient(r) {
		httputil.JSON(w, http.StatusOK, TokenResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenType:    tokens.TokenType,
			ExpiresIn:    tokens.ExpiresIn,
		})
		return
	}

	// Web: set HttpOnly cookies
	httputil.SetAuthCookies(
		w,
		tokens.AccessToken,
		tokens.RefreshToken,
		h.sessionService.AccessTokenTTL(),
		h.sessionService.RefreshTokenTTL(),
		h.cookieConfig,
	)

	httputil.JSON(w, http.StatusOK, TokenResponse{
		TokenType: tokens.TokenType,
		ExpiresIn: tokens.ExpiresIn,
	})
}
