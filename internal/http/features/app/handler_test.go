package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func selectorHandler() *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, nil, nil, "https", "fractal.app")
}

func TestWorkspaceContext_NoSubdomainRedirectsBrowser(t *testing.T) {
	handler := selectorHandler()
	wrapped := handler.WorkspaceContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request without a tenant should not reach the tenant surface")
	}))

	// No tenant slug on the context: the request arrived on the root
	// domain.
	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusFound)
	}
	want := "https://fractal.app/dashboard"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestWorkspaceContext_NoSubdomainAPIClientGets404(t *testing.T) {
	handler := selectorHandler()
	wrapped := handler.WorkspaceContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request without a tenant should not reach the tenant surface")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Header.Set("X-Client-Type", "api")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "workspace not found" {
		t.Errorf("error = %q, want the uniform message", body["error"])
	}
	if body["redirectUrl"] != "https://fractal.app/dashboard" {
		t.Errorf("redirectUrl = %q, want the root selector", body["redirectUrl"])
	}
}
