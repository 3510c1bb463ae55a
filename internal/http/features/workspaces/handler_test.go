package workspaces

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/internal/http/middleware"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/rbac"
)

func testHandler() *Handler {
	return &Handler{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func authed(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, uuid.New())
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreate_RequiresAuth(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/workspaces", bytes.NewBufferString(`{"name":"Acme"}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGet_RejectsInvalidWorkspaceID(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/not-a-uuid", nil)
	req = authed(req)
	req = withURLParam(req, "workspaceID", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestInvite_RejectsInvalidRole(t *testing.T) {
	handler := testHandler()

	for _, role := range []string{"SUPERUSER", "", "OWNR"} {
		body := bytes.NewBufferString(`{"email":"a@b.com","role":"` + role + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/workspaces/x/invitations", body)
		req = authed(req)
		req = withURLParam(req, "workspaceID", uuid.NewString())
		rec := httptest.NewRecorder()

		handler.Invite(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("role %q: status = %d, want %d", role, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestAcceptInvite_RequiresToken(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/workspaces/accept-invite", bytes.NewBufferString(`{"token":""}`))
	req = authed(req)
	rec := httptest.NewRecorder()

	handler.AcceptInvite(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTransferOwnership_RequiresNewOwner(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/workspaces/x/transfer-ownership", bytes.NewBufferString(`{}`))
	req = authed(req)
	req = withURLParam(req, "workspaceID", uuid.NewString())
	rec := httptest.NewRecorder()

	handler.TransferOwnership(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWriteError_StatusMapping(t *testing.T) {
	handler := testHandler()

	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrWorkspaceNotFound, http.StatusNotFound},
		{domain.ErrMembershipNotFound, http.StatusNotFound},
		{domain.ErrInvitationNotFound, http.StatusNotFound},
		{domain.ErrInvitationExpired, http.StatusGone},
		{domain.ErrAlreadyMember, http.StatusConflict},
		{domain.ErrSlugTaken, http.StatusConflict},
		{domain.ErrOwnerImmutable, http.StatusConflict},
		{domain.ErrOwnerCannotLeave, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInvalidEmail, http.StatusBadRequest},
		{domain.ErrEmptyName, http.StatusBadRequest},
		{rbac.ErrInvalidRole, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.writeError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("writeError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
