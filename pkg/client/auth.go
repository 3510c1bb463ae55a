package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// AuthState is the lifecycle state of an AuthContext.
type AuthState int

const (
	// StateUninitialized means Initialize has not run yet.
	StateUninitialized AuthState = iota
	// StateLoading means a session check is in flight.
	StateLoading
	// StateAuthenticated means the user is signed in. Whether they have
	// a workspace is a separate axis; see HasWorkspace.
	StateAuthenticated
	// StateUnauthenticated means there is no valid session.
	StateUnauthenticated
)

// ErrCallbackInProgress is returned when the OAuth callback is invoked
// while an earlier invocation is still running or already succeeded.
// Redirect pages get rendered twice; the exchange must not be.
var ErrCallbackInProgress = errors.New("client: auth callback already handled")

// AuthContext tracks the signed-in user, their workspace list, and the
// session's active workspace. All methods are safe for concurrent use.
type AuthContext struct {
	client *Client

	mu              sync.Mutex
	state           AuthState
	user            *User
	workspaces      []Workspace
	activeWorkspace *Workspace
	callbackStarted bool
}

// NewAuthContext creates an auth context over the API client.
func NewAuthContext(c *Client) *AuthContext {
	return &AuthContext{client: c, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (a *AuthContext) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// User returns the signed-in user, or nil.
func (a *AuthContext) User() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Workspaces returns the user's workspace list.
func (a *AuthContext) Workspaces() []Workspace {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Workspace, len(a.workspaces))
	copy(out, a.workspaces)
	return out
}

// ActiveWorkspace returns the session's active workspace, or nil when
// none is selected.
func (a *AuthContext) ActiveWorkspace() *Workspace {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeWorkspace
}

// HasWorkspace reports whether the signed-in user belongs to at least
// one workspace.
func (a *AuthContext) HasWorkspace() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.workspaces) > 0
}

// LoginURL returns the URL that begins the OAuth flow.
func (a *AuthContext) LoginURL() string {
	return a.client.BaseURL() + "/api/auth/google"
}

type meResponse struct {
	User       User        `json:"user"`
	Workspaces []Workspace `json:"workspaces"`
}

type activeWorkspaceResponse struct {
	Workspace *struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
		Slug string    `json:"slug"`
		Role string    `json:"role"`
	} `json:"workspace"`
}

// Initialize resolves the session state: signed in or not, which
// workspaces, and which one the session is acting in.
func (a *AuthContext) Initialize(ctx context.Context) error {
	a.mu.Lock()
	a.state = StateLoading
	a.mu.Unlock()

	// Any fetch failure degrades to unauthenticated with cleared state;
	// the app shows the login surface and the user can retry from there.
	var me meResponse
	if err := a.client.do(ctx, "GET", "/api/auth/me", nil, &me); err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.reset()
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		return err
	}

	var active activeWorkspaceResponse
	if err := a.client.do(ctx, "GET", "/api/session/workspace", nil, &active); err != nil && !errors.Is(err, ErrUnauthorized) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.reset()
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateAuthenticated
	a.user = &me.User
	a.workspaces = me.Workspaces
	a.setActiveLocked(active)
	return nil
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type loginResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         User        `json:"user"`
	Workspaces   []Workspace `json:"workspaces"`
	RedirectURL  string      `json:"redirectUrl"`
}

// HandleAuthCallback completes the OAuth flow with the provider's code
// and returns where the app should navigate next. The guard flips before
// the network call, so a second render of the redirect page cannot spend
// the single-use authorization code twice.
func (a *AuthContext) HandleAuthCallback(ctx context.Context, code, state string) (redirectURL string, err error) {
	a.mu.Lock()
	if a.callbackStarted {
		a.mu.Unlock()
		return "", ErrCallbackInProgress
	}
	a.callbackStarted = true
	a.state = StateLoading
	a.mu.Unlock()

	var resp loginResponse
	err = a.client.do(ctx, "POST", "/api/auth/oauth/callback", callbackRequest{Code: code, State: state}, &resp)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		// A failed exchange may be retried with a fresh code.
		a.callbackStarted = false
		a.reset()
		return "", err
	}

	a.client.store.SetTokens(resp.AccessToken, resp.RefreshToken)
	a.state = StateAuthenticated
	a.user = &resp.User
	a.workspaces = resp.Workspaces
	if len(resp.Workspaces) > 0 {
		ws := resp.Workspaces[0]
		a.activeWorkspace = &ws
	}
	return resp.RedirectURL, nil
}

type setWorkspaceRequest struct {
	WorkspaceID uuid.UUID `json:"workspaceId"`
}

// SetActiveWorkspace selects the workspace the session acts in. The
// target must be in the user's workspace list.
func (a *AuthContext) SetActiveWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	a.mu.Lock()
	found := false
	for _, ws := range a.workspaces {
		if ws.ID == workspaceID {
			found = true
			break
		}
	}
	a.mu.Unlock()
	if !found {
		return errors.New("client: not a member of that workspace")
	}

	var active activeWorkspaceResponse
	if err := a.client.do(ctx, "PUT", "/api/session/workspace", setWorkspaceRequest{WorkspaceID: workspaceID}, &active); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.setActiveLocked(active)
	return nil
}

// RefreshWorkspaces re-fetches the workspace list. If the active
// workspace disappeared from it (membership revoked, workspace deleted),
// the selection is cleared rather than left dangling.
func (a *AuthContext) RefreshWorkspaces(ctx context.Context) error {
	var me meResponse
	if err := a.client.do(ctx, "GET", "/api/auth/me", nil, &me); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.reset()
		}
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.workspaces = me.Workspaces
	if a.activeWorkspace != nil {
		still := false
		for _, ws := range a.workspaces {
			if ws.ID == a.activeWorkspace.ID {
				still = true
				break
			}
		}
		if !still {
			a.activeWorkspace = nil
		}
	}
	return nil
}

// Logout revokes the session and clears all local state.
func (a *AuthContext) Logout(ctx context.Context) error {
	err := a.client.do(ctx, "POST", "/api/auth/logout", struct{}{}, nil)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.client.store.Clear()
	a.reset()
	a.callbackStarted = false
	return err
}

// reset drops user state. Callers hold the lock.
func (a *AuthContext) reset() {
	a.state = StateUnauthenticated
	a.user = nil
	a.workspaces = nil
	a.activeWorkspace = nil
}

// setActiveLocked applies the server's active-workspace answer. Callers
// hold the lock.
func (a *AuthContext) setActiveLocked(resp activeWorkspaceResponse) {
	if resp.Workspace == nil {
		a.activeWorkspace = nil
		return
	}
	a.activeWorkspace = &Workspace{
		ID:   resp.Workspace.ID,
		Name: resp.Workspace.Name,
		Slug: resp.Workspace.Slug,
		Role: resp.Workspace.Role,
	}
}
