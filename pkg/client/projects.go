package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ProjectContext tracks one workspace's project list and the focused
// project. List mutations confirm with the server first and only then
// update the local list, so a failed call leaves the view untouched.
type ProjectContext struct {
	client      *Client
	workspaceID uuid.UUID

	mu       sync.Mutex
	projects []Project
	focused  *uuid.UUID
}

// NewProjectContext creates a project context for one workspace.
func NewProjectContext(c *Client, workspaceID uuid.UUID) *ProjectContext {
	return &ProjectContext{client: c, workspaceID: workspaceID}
}

// Projects returns the current project list.
func (p *ProjectContext) Projects() []Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Project, len(p.projects))
	copy(out, p.projects)
	return out
}

// Focused returns the focused project, or nil.
func (p *ProjectContext) Focused() *Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focused == nil {
		return nil
	}
	for i := range p.projects {
		if p.projects[i].ID == *p.focused {
			proj := p.projects[i]
			return &proj
		}
	}
	return nil
}

// Focus marks a project as focused. Focusing a project not in the list is
// ignored.
func (p *ProjectContext) Focus(projectID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.projects {
		if p.projects[i].ID == projectID {
			id := projectID
			p.focused = &id
			return
		}
	}
}

// Load fetches the workspace's project list from the server.
func (p *ProjectContext) Load(ctx context.Context) error {
	var list []Project
	path := fmt.Sprintf("/api/workspaces/%s/projects", p.workspaceID)
	if err := p.client.do(ctx, "GET", path, nil, &list); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.projects = list
	if p.focused != nil {
		still := false
		for i := range p.projects {
			if p.projects[i].ID == *p.focused {
				still = true
				break
			}
		}
		if !still {
			p.focused = nil
		}
	}
	return nil
}

// CreateProjectParams describes a new project.
type CreateProjectParams struct {
	Name     string     `json:"name"`
	Color    string     `json:"color,omitempty"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
}

type createProjectRequest struct {
	WorkspaceID uuid.UUID  `json:"workspaceId"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Name        string     `json:"name"`
	Color       string     `json:"color,omitempty"`
}

// Create creates a project and appends it to the local list.
func (p *ProjectContext) Create(ctx context.Context, params CreateProjectParams) (*Project, error) {
	var created Project
	err := p.client.do(ctx, "POST", "/api/projects", createProjectRequest{
		WorkspaceID: p.workspaceID,
		ParentID:    params.ParentID,
		Name:        params.Name,
		Color:       params.Color,
	}, &created)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.projects = append(p.projects, created)
	return &created, nil
}

// UpdateProjectParams carries optional field updates.
type UpdateProjectParams struct {
	Name       *string `json:"name,omitempty"`
	Color      *string `json:"color,omitempty"`
	IsArchived *bool   `json:"isArchived,omitempty"`
}

// Update modifies a project and merges the server's answer into the
// local list.
func (p *ProjectContext) Update(ctx context.Context, projectID uuid.UUID, params UpdateProjectParams) (*Project, error) {
	var updated Project
	path := fmt.Sprintf("/api/projects/%s", projectID)
	if err := p.client.do(ctx, "PATCH", path, params, &updated); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.projects {
		if p.projects[i].ID == projectID {
			p.projects[i] = updated
			break
		}
	}
	return &updated, nil
}

// Delete removes a project. The project and its descendants leave the
// local list, and the focus is cleared when it pointed into the removed
// subtree.
func (p *ProjectContext) Delete(ctx context.Context, projectID uuid.UUID) error {
	path := fmt.Sprintf("/api/projects/%s", projectID)
	if err := p.client.do(ctx, "DELETE", path, nil, nil); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := map[uuid.UUID]bool{projectID: true}
	// The list is flat; walk it repeatedly until no more descendants of
	// a removed node are found.
	for {
		grew := false
		for i := range p.projects {
			proj := p.projects[i]
			if proj.ParentID != nil && removed[*proj.ParentID] && !removed[proj.ID] {
				removed[proj.ID] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	kept := p.projects[:0]
	for _, proj := range p.projects {
		if !removed[proj.ID] {
			kept = append(kept, proj)
		}
	}
	p.projects = kept

	if p.focused != nil && removed[*p.focused] {
		p.focused = nil
	}
	return nil
}
