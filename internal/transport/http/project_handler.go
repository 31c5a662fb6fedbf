// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opentrusty/stride/internal/workspace"
)

// ProjectRequest represents project creation and update data
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.projectService.Create(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "tenantID"), req.Name, req.Description)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toProject(p))
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectService.ListForTenant(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(projects, toProject))
}

// JoinProject adds the caller as a Developer of the project behind the code.
func (h *Handler) JoinProject(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.projectService.Join(r.Context(), GetUserID(r.Context()), req.Code)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toProject(p))
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projectService.Get(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toProject(p))
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.projectService.Update(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"), req.Name, req.Description)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toProject(p))
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	rep, err := h.projectService.Delete(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toRemoval(rep))
}

func (h *Handler) ListProjectMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.projectService.ListMembers(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(members, func(m *workspace.ProjectMember) memberResponse {
		return memberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
	}))
}

// AddMemberRequest adds a tenant member to a project.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) AddProjectMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if !decode(w, r, &req) {
		return
	}
	role := workspace.RoleDeveloper
	if req.Role != "" {
		var err error
		if role, err = workspace.ParseRole(req.Role); err != nil {
			respondFailure(w, r, err)
			return
		}
	}

	err := h.projectService.AddMember(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"), req.UserID, role)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusCreated, "member added")
}

func (h *Handler) ChangeProjectRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := workspace.ParseRole(req.Role)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	err = h.projectService.ChangeRole(r.Context(), GetUserID(r.Context()),
		chi.URLParam(r, "projectID"), chi.URLParam(r, "userID"), role)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "role updated")
}

func (h *Handler) RemoveProjectMember(w http.ResponseWriter, r *http.Request) {
	err := h.projectService.RemoveMember(r.Context(), GetUserID(r.Context()),
		chi.URLParam(r, "projectID"), chi.URLParam(r, "userID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
