package http

import (
	"net/http"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/auth/ownership"
	"github.com/rhuss/missive/pkg/transport"
)

// handleListProjects handles GET /project/list/all.
func (a *Adapter) handleListProjects(w http.ResponseWriter, r *http.Request) {
	id := auth.RequireIdentity(w, r)
	if id == nil {
		return
	}

	projects, err := a.projects.ListByOwner(r.Context(), id.Subject)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*api.Project{}
	}
	transport.WriteJSON(w, http.StatusOK, projects)
}

// handleGetProject handles GET /project/{projectId}.
func (a *Adapter) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := a.projects.Get(r.Context(), r.PathValue(ownership.PathParam))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, p)
}

// handleCreateProject handles POST /project.
func (a *Adapter) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	id := auth.RequireIdentity(w, r)
	if id == nil {
		return
	}

	var req api.CreateProjectRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	p, err := a.projects.Create(r.Context(), id.Subject, req.Name)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, p)
}

// handleRenameProject handles PATCH /project/update/{projectId}.
func (a *Adapter) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateProjectRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	p, err := a.projects.Rename(r.Context(), r.PathValue(ownership.PathParam), req.Name)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, p)
}

// handleDeleteProject handles DELETE /project/{projectId}. Messages and
// attachments of the project go with it.
func (a *Adapter) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := a.projects.Delete(r.Context(), r.PathValue(ownership.PathParam)); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.StatusResponse{Message: "Project deleted successfully"})
}
