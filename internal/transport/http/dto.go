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
	"time"

	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/workspace"
)

type userResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	IsPremium        bool      `json:"is_premium"`
	PersonalTenantID *string   `json:"personal_tenant_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toUser(u *identity.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		IsPremium:        u.IsPremium,
		PersonalTenantID: u.PersonalTenantID,
		CreatedAt:        u.CreatedAt,
	}
}

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	JoinCode  string    `json:"join_code"`
	Keywords  string    `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTenant(t *workspace.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		OwnerID:   t.OwnerID,
		JoinCode:  t.JoinCode,
		Keywords:  t.Keywords,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type memberResponse struct {
	UserID   string         `json:"user_id"`
	Role     workspace.Role `json:"role"`
	JoinedAt time.Time      `json:"joined_at"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CreatorID   string    `json:"creator_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	JoinCode    string    `json:"join_code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProject(p *workspace.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		TenantID:    p.TenantID,
		CreatorID:   p.CreatorID,
		Name:        p.Name,
		Description: p.Description,
		JoinCode:    p.JoinCode,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type sprintResponse struct {
	ID        string                 `json:"id"`
	ProjectID string                 `json:"project_id"`
	Name      string                 `json:"name"`
	Goal      string                 `json:"goal,omitempty"`
	Status    workspace.SprintStatus `json:"status"`
	CreatedBy string                 `json:"created_by"`
	StartsAt  *time.Time             `json:"starts_at,omitempty"`
	EndsAt    *time.Time             `json:"ends_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func toSprint(s *workspace.Sprint) sprintResponse {
	return sprintResponse{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		Name:      s.Name,
		Goal:      s.Goal,
		Status:    s.Status,
		CreatedBy: s.CreatedBy,
		StartsAt:  s.StartsAt,
		EndsAt:    s.EndsAt,
		CreatedAt: s.CreatedAt,
	}
}

type issueResponse struct {
	ID          string                  `json:"id"`
	ProjectID   string                  `json:"project_id"`
	SprintID    *string                 `json:"sprint_id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Status      workspace.IssueStatus   `json:"status"`
	Type        workspace.IssueType     `json:"type"`
	Priority    workspace.IssuePriority `json:"priority"`
	CreatedBy   string                  `json:"created_by"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func toIssue(i *workspace.Issue) issueResponse {
	return issueResponse{
		ID:          i.ID,
		ProjectID:   i.ProjectID,
		SprintID:    i.SprintID,
		Title:       i.Title,
		Description: i.Description,
		Status:      i.Status,
		Type:        i.Type,
		Priority:    i.Priority,
		CreatedBy:   i.CreatedBy,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

type commentResponse struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type assigneeResponse struct {
	UserID     string    `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

type pinResponse struct {
	Type      workspace.PinType `json:"type"`
	TargetID  string            `json:"target_id"`
	TenantID  string            `json:"tenant_id"`
	ProjectID string            `json:"project_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func toPin(p *workspace.Pin) pinResponse {
	return pinResponse{
		Type:      p.Type,
		TargetID:  p.TargetID,
		TenantID:  p.TenantID,
		ProjectID: p.ProjectID,
		CreatedAt: p.CreatedAt,
	}
}

type removalResponse struct {
	Root    string           `json:"root"`
	RootID  string           `json:"root_id"`
	Deleted map[string]int64 `json:"deleted"`
	Total   int64            `json:"total"`
}

func toRemoval(rep *cascade.Report) removalResponse {
	deleted := make(map[string]int64, len(rep.Counts))
	for t, n := range rep.Counts {
		deleted[string(t)] = n
	}
	return removalResponse{
		Root:    rep.Root,
		RootID:  rep.RootID,
		Deleted: deleted,
		Total:   rep.Total(),
	}
}

// mapAll converts every element with fn.
func mapAll[T, R any](in []*T, fn func(*T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
