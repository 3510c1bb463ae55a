package projects

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

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{"name":"Roadmap"}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreate_RequiresWorkspaceID(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{"name":"Roadmap"}`))
	req = authed(req)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGet_RejectsInvalidProjectID(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/projects/not-a-uuid", nil)
	req = authed(req)
	req = withURLParam(req, "projectID", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAddMember_RejectsInvalidRole(t *testing.T) {
	handler := testHandler()

	body := bytes.NewBufferString(`{"userId":"` + uuid.NewString() + `","role":"MAINTAINER"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/projects/x/members", body)
	req = authed(req)
	req = withURLParam(req, "projectID", uuid.NewString())
	rec := httptest.NewRecorder()

	handler.AddMember(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAddMember_RequiresUserID(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/projects/x/members", bytes.NewBufferString(`{"role":"EDITOR"}`))
	req = authed(req)
	req = withURLParam(req, "projectID", uuid.NewString())
	rec := httptest.NewRecorder()

	handler.AddMember(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTransferOwnership_RequiresNewOwner(t *testing.T) {
	handler := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/projects/x/transfer-ownership", bytes.NewBufferString(`{}`))
	req = authed(req)
	req = withURLParam(req, "projectID", uuid.NewString())
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
		{domain.ErrProjectNotFound, http.StatusNotFound},
		{domain.ErrParentProjectNotFound, http.StatusNotFound},
		{domain.ErrProjectMembershipMissing, http.StatusNotFound},
		{domain.ErrProjectMemberExists, http.StatusConflict},
		{domain.ErrNotInWorkspace, http.StatusForbidden},
		{domain.ErrOwnerImmutable, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrEmptyName, http.StatusBadRequest},
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
