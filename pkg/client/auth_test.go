package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func newAuthServer(t *testing.T, callbackCount *int32, workspaces []Workspace) *httptest.Server {
	t.Helper()

	user := User{ID: uuid.New(), Email: "dev@example.com", FullName: "Dev"}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(callbackCount, 1)
		redirect := "/dashboard"
		if len(workspaces) == 0 {
			redirect = "/welcome/new-workspace"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
			"user":         user,
			"workspaces":   workspaces,
			"redirectUrl":  redirect,
		})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user":       user,
			"workspaces": workspaces,
		})
	})
	mux.HandleFunc("/api/session/workspace", func(w http.ResponseWriter, r *http.Request) {
		if len(workspaces) == 0 {
			json.NewEncoder(w).Encode(map[string]interface{}{"workspace": nil})
			return
		}
		ws := workspaces[0]
		json.NewEncoder(w).Encode(map[string]interface{}{
			"workspace": map[string]interface{}{
				"id": ws.ID, "name": ws.Name, "slug": ws.Slug, "role": ws.Role,
			},
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return httptest.NewServer(mux)
}

func TestAuthContext_CallbackWithWorkspaces(t *testing.T) {
	var calls int32
	workspaces := []Workspace{{ID: uuid.New(), Name: "Acme", Slug: "acme", Role: "OWNER"}}
	srv := newAuthServer(t, &calls, workspaces)
	defer srv.Close()

	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))

	redirect, err := authCtx.HandleAuthCallback(context.Background(), "code-1", "state-1")
	if err != nil {
		t.Fatalf("HandleAuthCallback failed: %v", err)
	}
	if redirect != "/dashboard" {
		t.Errorf("redirect = %q, want /dashboard", redirect)
	}
	if authCtx.State() != StateAuthenticated {
		t.Errorf("state = %v, want StateAuthenticated", authCtx.State())
	}
	if !authCtx.HasWorkspace() {
		t.Error("HasWorkspace() = false, want true")
	}
	if active := authCtx.ActiveWorkspace(); active == nil || active.Slug != "acme" {
		t.Errorf("ActiveWorkspace = %+v, want acme", active)
	}
}

func TestAuthContext_CallbackFirstLogin(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, nil)
	defer srv.Close()

	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))

	redirect, err := authCtx.HandleAuthCallback(context.Background(), "code-1", "state-1")
	if err != nil {
		t.Fatalf("HandleAuthCallback failed: %v", err)
	}
	if redirect != "/welcome/new-workspace" {
		t.Errorf("redirect = %q, want /welcome/new-workspace", redirect)
	}
	if authCtx.HasWorkspace() {
		t.Error("HasWorkspace() = true, want false")
	}
	if authCtx.ActiveWorkspace() != nil {
		t.Error("ActiveWorkspace should be nil on first login")
	}
}

func TestAuthContext_CallbackIdempotent(t *testing.T) {
	var calls int32
	workspaces := []Workspace{{ID: uuid.New(), Name: "Acme", Slug: "acme", Role: "OWNER"}}
	srv := newAuthServer(t, &calls, workspaces)
	defer srv.Close()

	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))

	if _, err := authCtx.HandleAuthCallback(context.Background(), "code-1", "state-1"); err != nil {
		t.Fatalf("first callback failed: %v", err)
	}

	// A second render of the redirect page replays the handler; the code
	// must not be exchanged again.
	_, err := authCtx.HandleAuthCallback(context.Background(), "code-1", "state-1")
	if !errors.Is(err, ErrCallbackInProgress) {
		t.Fatalf("second callback error = %v, want ErrCallbackInProgress", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("callback endpoint hit %d times, want 1", got)
	}
}

func TestAuthContext_InitializeUnauthenticated(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, nil)
	defer srv.Close()

	// No tokens in the store, so /api/auth/me returns 401.
	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))

	if err := authCtx.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if authCtx.State() != StateUnauthenticated {
		t.Errorf("state = %v, want StateUnauthenticated", authCtx.State())
	}
}

func TestAuthContext_InitializeServerErrorDegradesToUnauthenticated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))

	if err := authCtx.Initialize(context.Background()); err == nil {
		t.Fatal("expected an error from a failed principal fetch")
	}
	if authCtx.State() != StateUnauthenticated {
		t.Errorf("state = %v, want StateUnauthenticated", authCtx.State())
	}
	if authCtx.User() != nil || authCtx.ActiveWorkspace() != nil {
		t.Error("user state should be cleared after a failed initialize")
	}
}

func TestAuthContext_InitializeWorkspaceFetchErrorDegradesToUnauthenticated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user":       User{ID: uuid.New(), Email: "dev@example.com"},
			"workspaces": []Workspace{},
		})
	})
	mux.HandleFunc("/api/session/workspace", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))

	if err := authCtx.Initialize(context.Background()); err == nil {
		t.Fatal("expected an error from a failed active-workspace fetch")
	}
	if authCtx.State() != StateUnauthenticated {
		t.Errorf("state = %v, want StateUnauthenticated", authCtx.State())
	}
	if authCtx.User() != nil {
		t.Error("user state should be cleared after a failed initialize")
	}
}

func TestAuthContext_RefreshClearsDroppedActiveWorkspace(t *testing.T) {
	acme := Workspace{ID: uuid.New(), Name: "Acme", Slug: "acme", Role: "MEMBER"}

	// The me endpoint's workspace list shrinks after the first call,
	// simulating a revoked membership.
	var meCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&meCalls, 1)
		list := []Workspace{acme}
		if n > 1 {
			list = nil
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user":       User{ID: uuid.New(), Email: "dev@example.com"},
			"workspaces": list,
		})
	})
	mux.HandleFunc("/api/session/workspace", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"workspace": map[string]interface{}{
				"id": acme.ID, "name": acme.Name, "slug": acme.Slug, "role": acme.Role,
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL}))
	if err := authCtx.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if authCtx.ActiveWorkspace() == nil {
		t.Fatal("expected an active workspace after initialize")
	}

	if err := authCtx.RefreshWorkspaces(context.Background()); err != nil {
		t.Fatalf("RefreshWorkspaces failed: %v", err)
	}
	if authCtx.ActiveWorkspace() != nil {
		t.Error("active workspace should be cleared when membership is gone")
	}
}

func TestAuthContext_Logout(t *testing.T) {
	var calls int32
	workspaces := []Workspace{{ID: uuid.New(), Name: "Acme", Slug: "acme", Role: "OWNER"}}
	srv := newAuthServer(t, &calls, workspaces)
	defer srv.Close()

	store := &MemoryStore{}
	authCtx := NewAuthContext(New(Config{BaseURL: srv.URL, Store: store}))

	if _, err := authCtx.HandleAuthCallback(context.Background(), "code-1", "state-1"); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if store.AccessToken() == "" {
		t.Fatal("expected tokens in store after login")
	}

	if err := authCtx.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if authCtx.State() != StateUnauthenticated {
		t.Errorf("state = %v, want StateUnauthenticated", authCtx.State())
	}
	if store.AccessToken() != "" {
		t.Error("store should be cleared on logout")
	}
	if authCtx.User() != nil || authCtx.ActiveWorkspace() != nil {
		t.Error("user state should be cleared on logout")
	}
}
