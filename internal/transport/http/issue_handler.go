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
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opentrusty/stride/internal/project"
	"github.com/opentrusty/stride/internal/workspace"
)

// SprintRequest represents sprint creation and update data. Omitted fields
// keep their current values on update.
type SprintRequest struct {
	Name     string                 `json:"name"`
	Goal     string                 `json:"goal"`
	Status   workspace.SprintStatus `json:"status"`
	StartsAt *time.Time             `json:"starts_at"`
	EndsAt   *time.Time             `json:"ends_at"`
}

func (req SprintRequest) input() project.SprintInput {
	return project.SprintInput{
		Name:     req.Name,
		Goal:     req.Goal,
		Status:   req.Status,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
}

func (h *Handler) CreateSprint(w http.ResponseWriter, r *http.Request) {
	var req SprintRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.projectService.CreateSprint(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"), req.input())
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toSprint(s))
}

func (h *Handler) ListSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := h.projectService.ListSprints(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(sprints, toSprint))
}

func (h *Handler) GetSprint(w http.ResponseWriter, r *http.Request) {
	s, err := h.projectService.GetSprint(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "sprintID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toSprint(s))
}

func (h *Handler) UpdateSprint(w http.ResponseWriter, r *http.Request) {
	var req SprintRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.projectService.UpdateSprint(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "sprintID"), req.input())
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toSprint(s))
}

// DeleteSprint removes the sprint; its issues return to the backlog.
func (h *Handler) DeleteSprint(w http.ResponseWriter, r *http.Request) {
	rep, err := h.projectService.DeleteSprint(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "sprintID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toRemoval(rep))
}

// ListSprintIssues lists the sprint's issues. Developers only see the
// issues assigned to them.
func (h *Handler) ListSprintIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.projectService.ListSprintIssues(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "sprintID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(issues, toIssue))
}

func (h *Handler) ListBacklog(w http.ResponseWriter, r *http.Request) {
	issues, err := h.projectService.ListBacklog(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(issues, toIssue))
}

// IssueRequest represents issue creation and update data
type IssueRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Status      workspace.IssueStatus   `json:"status"`
	Type        workspace.IssueType     `json:"type"`
	Priority    workspace.IssuePriority `json:"priority"`
	SprintID    *string                 `json:"sprint_id"`
}

func (req IssueRequest) input() project.IssueInput {
	return project.IssueInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Type:        req.Type,
		Priority:    req.Priority,
		SprintID:    req.SprintID,
	}
}

func (h *Handler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if !decode(w, r, &req) {
		return
	}

	i, err := h.projectService.CreateIssue(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "projectID"), req.input())
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toIssue(i))
}

func (h *Handler) GetIssue(w http.ResponseWriter, r *http.Request) {
	i, err := h.projectService.GetIssue(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toIssue(i))
}

func (h *Handler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if !decode(w, r, &req) {
		return
	}

	i, err := h.projectService.UpdateIssue(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"), req.input())
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toIssue(i))
}

func (h *Handler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	rep, err := h.projectService.DeleteIssue(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toRemoval(rep))
}

// MoveIssueRequest places an issue in a sprint; a null sprint_id moves it to
// the backlog.
type MoveIssueRequest struct {
	SprintID *string `json:"sprint_id"`
}

func (h *Handler) MoveIssue(w http.ResponseWriter, r *http.Request) {
	var req MoveIssueRequest
	if !decode(w, r, &req) {
		return
	}

	i, err := h.projectService.MoveIssue(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"), req.SprintID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toIssue(i))
}

func (h *Handler) ListAssignees(w http.ResponseWriter, r *http.Request) {
	assignees, err := h.projectService.ListAssignees(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(assignees, func(a *workspace.Assignment) assigneeResponse {
		return assigneeResponse{UserID: a.UserID, AssignedAt: a.AssignedAt}
	}))
}

// AssignRequest names the user to assign.
type AssignRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) AssignIssue(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.projectService.AssignIssue(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"), req.UserID); err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusCreated, "assigned")
}

func (h *Handler) UnassignIssue(w http.ResponseWriter, r *http.Request) {
	err := h.projectService.UnassignIssue(r.Context(), GetUserID(r.Context()),
		chi.URLParam(r, "issueID"), chi.URLParam(r, "userID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CommentRequest carries a comment body.
type CommentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := h.projectService.AddComment(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"), req.Body)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, commentResponse{
		ID: c.ID, IssueID: c.IssueID, AuthorID: c.AuthorID, Body: c.Body, CreatedAt: c.CreatedAt,
	})
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.projectService.ListComments(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "issueID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(comments, func(c *workspace.Comment) commentResponse {
		return commentResponse{ID: c.ID, IssueID: c.IssueID, AuthorID: c.AuthorID, Body: c.Body, CreatedAt: c.CreatedAt}
	}))
}

// PinRequest names the object to pin. Type is one of Tenant, Project,
// Sprint or Issue, in any case.
type PinRequest struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
}

func (h *Handler) CreatePin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.pinService.Pin(r.Context(), GetUserID(r.Context()), req.Type, req.TargetID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPin(p))
}

func (h *Handler) ListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := h.pinService.List(r.Context(), GetUserID(r.Context()))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapAll(pins, toPin))
}

func (h *Handler) DeletePin(w http.ResponseWriter, r *http.Request) {
	err := h.pinService.Unpin(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "pinType"), chi.URLParam(r, "targetID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
