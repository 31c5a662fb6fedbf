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

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
}

// CreateTenant makes the caller the owner of a new tenant.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.tenantService.Create(r.Context(), GetUserID(r.Context()), req.Name, req.Keywords)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toTenant(t))
}

// ListTenants lists the tenants the caller belongs to.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenantService.ListForUser(r.Context(), GetUserID(r.Context()))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(tenants, toTenant))
}

// JoinRequest carries a tenant or project join code.
type JoinRequest struct {
	Code string `json:"code"`
}

// JoinTenant adds the caller as a Developer of the tenant behind the code.
func (h *Handler) JoinTenant(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.tenantService.Join(r.Context(), GetUserID(r.Context()), req.Code)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toTenant(t))
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.Get(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toTenant(t))
}

func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.tenantService.Update(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "tenantID"), req.Name, req.Keywords)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toTenant(t))
}

// DeleteTenant removes the tenant and everything under it. Owner only.
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	rep, err := h.tenantService.Delete(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toRemoval(rep))
}

func (h *Handler) ListTenantMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.tenantService.ListMembers(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(members, func(m *workspace.TenantMember) memberResponse {
		return memberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
	}))
}

// RoleRequest carries a role name: Developer, Project Manager or Admin.
type RoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) ChangeTenantRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := workspace.ParseRole(req.Role)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	err = h.tenantService.ChangeRole(r.Context(), GetUserID(r.Context()),
		chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID"), role)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "role updated")
}

func (h *Handler) RemoveTenantMember(w http.ResponseWriter, r *http.Request) {
	err := h.tenantService.RemoveMember(r.Context(), GetUserID(r.Context()),
		chi.URLParam(r, "tenantID"), chi.URLParam(r, "userID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
