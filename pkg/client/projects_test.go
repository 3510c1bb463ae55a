package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func newProjectServer(t *testing.T, workspaceID uuid.UUID, list []Project) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/api/workspaces/%s/projects", workspaceID), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		var req createProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(Project{
			ID:          uuid.New(),
			WorkspaceID: req.WorkspaceID,
			ParentID:    req.ParentID,
			Name:        req.Name,
			Color:       req.Color,
		})
	})
	mux.HandleFunc("/api/projects/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPatch:
			id, err := uuid.Parse(r.URL.Path[len("/api/projects/"):])
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			var req UpdateProjectParams
			json.NewDecoder(r.Body).Decode(&req)
			updated := Project{ID: id, WorkspaceID: workspaceID, Name: "updated"}
			if req.Name != nil {
				updated.Name = *req.Name
			}
			if req.Color != nil {
				updated.Color = *req.Color
			}
			json.NewEncoder(w).Encode(updated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return httptest.NewServer(mux)
}

func TestProjectContext_LoadAndFocus(t *testing.T) {
	workspaceID := uuid.New()
	alpha := Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Alpha"}
	beta := Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Beta"}
	srv := newProjectServer(t, workspaceID, []Project{alpha, beta})
	defer srv.Close()

	projCtx := NewProjectContext(New(Config{BaseURL: srv.URL}), workspaceID)
	if err := projCtx.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := len(projCtx.Projects()); got != 2 {
		t.Fatalf("len(Projects()) = %d, want 2", got)
	}

	projCtx.Focus(beta.ID)
	if focused := projCtx.Focused(); focused == nil || focused.Name != "Beta" {
		t.Errorf("Focused() = %+v, want Beta", focused)
	}

	// Focusing an unknown project leaves the selection alone.
	projCtx.Focus(uuid.New())
	if focused := projCtx.Focused(); focused == nil || focused.ID != beta.ID {
		t.Errorf("focus changed to %+v after focusing unknown id", focused)
	}
}

func TestProjectContext_CreateAppends(t *testing.T) {
	workspaceID := uuid.New()
	srv := newProjectServer(t, workspaceID, nil)
	defer srv.Close()

	projCtx := NewProjectContext(New(Config{BaseURL: srv.URL}), workspaceID)

	created, err := projCtx.Create(context.Background(), CreateProjectParams{Name: "Roadmap", Color: "#ff0000"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Name != "Roadmap" {
		t.Errorf("created.Name = %q, want Roadmap", created.Name)
	}

	projects := projCtx.Projects()
	if len(projects) != 1 || projects[0].ID != created.ID {
		t.Errorf("Projects() = %+v, want the created project", projects)
	}
}

func TestProjectContext_CreateFailureLeavesListUntouched(t *testing.T) {
	workspaceID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	projCtx := NewProjectContext(New(Config{BaseURL: srv.URL}), workspaceID)

	if _, err := projCtx.Create(context.Background(), CreateProjectParams{Name: "Roadmap"}); err == nil {
		t.Fatal("expected an error from a rejected create")
	}
	if got := len(projCtx.Projects()); got != 0 {
		t.Errorf("len(Projects()) = %d after failed create, want 0", got)
	}
}

func TestProjectContext_UpdateMergesServerAnswer(t *testing.T) {
	workspaceID := uuid.New()
	alpha := Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Alpha"}
	srv := newProjectServer(t, workspaceID, []Project{alpha})
	defer srv.Close()

	projCtx := NewProjectContext(New(Config{BaseURL: srv.URL}), workspaceID)
	if err := projCtx.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	name := "Alpha v2"
	updated, err := projCtx.Update(context.Background(), alpha.ID, UpdateProjectParams{Name: &name})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "Alpha v2" {
		t.Errorf("updated.Name = %q, want Alpha v2", updated.Name)
	}
	if got := projCtx.Projects()[0].Name; got != "Alpha v2" {
		t.Errorf("list entry name = %q, want Alpha v2", got)
	}
}

func TestProjectContext_DeleteRemovesSubtreeAndClearsFocus(t *testing.T) {
	workspaceID := uuid.New()
	root := Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Root"}
	child := Project{ID: uuid.New(), WorkspaceID: workspaceID, ParentID: &root.ID, Name: "Child"}
	grandchild := Project{ID: uuid.New(), WorkspaceID: workspaceID, ParentID: &child.ID, Name: "Grandchild"}
	other := Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Other"}
	srv := newProjectServer(t, workspaceID, []Project{root, child, grandchild, other})
	defer srv.Close()

	projCtx := NewProjectContext(New(Config{BaseURL: srv.URL}), workspaceID)
	if err := projCtx.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	projCtx.Focus(grandchild.ID)

	if err := projCtx.Delete(context.Background(), root.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	projects := projCtx.Projects()
	if len(projects) != 1 || projects[0].ID != other.ID {
		t.Errorf("Projects() = %+v, want only Other", projects)
	}
	if projCtx.Focused() != nil {
		t.Error("focus should be cleared when the focused project's ancestor is deleted")
	}
}

func TestProjectContext_LoadClearsStaleFocus(t *testing.T) {
	workspaceID := uuid.New()
	alpha := Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Alpha"}

	var served []Project
	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/api/workspaces/%s/projects", workspaceID), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(served)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	projCtx := NewProjectContext(New(Config{BaseURL: srv.URL}), workspaceID)

	served = []Project{alpha}
	if err := projCtx.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	projCtx.Focus(alpha.ID)

	served = nil
	if err := projCtx.Load(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if projCtx.Focused() != nil {
		t.Error("focus should be cleared when the project is gone from the list")
	}
}
