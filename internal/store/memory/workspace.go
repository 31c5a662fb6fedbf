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

package memory

import (
	"context"

	"github.com/opentrusty/stride/internal/workspace"
)

func byCreated[V any](created func(*V) int64, id func(*V) string) func(a, b *V) bool {
	return func(a, b *V) bool {
		ca, cb := created(a), created(b)
		if ca != cb {
			return ca < cb
		}
		return id(a) < id(b)
	}
}

var (
	tenantOrder = byCreated(
		func(t *workspace.Tenant) int64 { return t.CreatedAt.UnixNano() },
		func(t *workspace.Tenant) string { return t.ID })
	projectOrder = byCreated(
		func(p *workspace.Project) int64 { return p.CreatedAt.UnixNano() },
		func(p *workspace.Project) string { return p.ID })
	sprintOrder = byCreated(
		func(s *workspace.Sprint) int64 { return s.CreatedAt.UnixNano() },
		func(s *workspace.Sprint) string { return s.ID })
	issueOrder = byCreated(
		func(i *workspace.Issue) int64 { return i.CreatedAt.UnixNano() },
		func(i *workspace.Issue) string { return i.ID })
	commentOrder = byCreated(
		func(c *workspace.Comment) int64 { return c.CreatedAt.UnixNano() },
		func(c *workspace.Comment) string { return c.ID })
	tenantMemberOrder = byCreated(
		func(m *workspace.TenantMember) int64 { return m.JoinedAt.UnixNano() },
		func(m *workspace.TenantMember) string { return m.UserID })
	projectMemberOrder = byCreated(
		func(m *workspace.ProjectMember) int64 { return m.JoinedAt.UnixNano() },
		func(m *workspace.ProjectMember) string { return m.UserID })
	assignmentOrder = byCreated(
		func(a *workspace.Assignment) int64 { return a.AssignedAt.UnixNano() },
		func(a *workspace.Assignment) string { return a.UserID })
	pinOrder = byCreated(
		func(p *workspace.Pin) int64 { return p.CreatedAt.UnixNano() },
		func(p *workspace.Pin) string { return p.TargetID })
)

// Tenants

type tenantRepository struct {
	s *Store
}

func (r *tenantRepository) Create(ctx context.Context, t *workspace.Tenant, owner *workspace.TenantMember) error {
	return r.s.update(ctx, func(d *data) error {
		for _, other := range d.tenants {
			if other.JoinCode == t.JoinCode {
				return workspace.ErrJoinCodeTaken
			}
		}
		now := r.s.now()
		t.CreatedAt, t.UpdatedAt = now, now
		owner.JoinedAt = now
		d.tenants[t.ID] = clonePtr(t)
		d.tenantMembers[edge{t.ID, owner.UserID}] = clonePtr(owner)
		return nil
	})
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*workspace.Tenant, error) {
	var out *workspace.Tenant
	err := r.s.view(ctx, func(d *data) error {
		t, ok := d.tenants[id]
		if !ok {
			return workspace.ErrTenantNotFound
		}
		out = clonePtr(t)
		return nil
	})
	return out, err
}

func (r *tenantRepository) GetByJoinCode(ctx context.Context, code string) (*workspace.Tenant, error) {
	var out *workspace.Tenant
	err := r.s.view(ctx, func(d *data) error {
		for _, t := range d.tenants {
			if t.JoinCode == code {
				out = clonePtr(t)
				return nil
			}
		}
		return workspace.ErrTenantNotFound
	})
	return out, err
}

func (r *tenantRepository) Update(ctx context.Context, t *workspace.Tenant) error {
	return r.s.update(ctx, func(d *data) error {
		cur, ok := d.tenants[t.ID]
		if !ok {
			return workspace.ErrTenantNotFound
		}
		cur.Name = t.Name
		cur.Keywords = t.Keywords
		cur.UpdatedAt = r.s.now()
		t.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *tenantRepository) ListForUser(ctx context.Context, userID string) ([]*workspace.Tenant, error) {
	var out []*workspace.Tenant
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.tenants, func(t *workspace.Tenant) bool {
			_, ok := d.tenantMembers[edge{t.ID, userID}]
			return ok
		}, tenantOrder)
		return nil
	})
	return out, err
}

// Memberships

type membershipRepository struct {
	s *Store
}

func (r *membershipRepository) AddTenantMember(ctx context.Context, m *workspace.TenantMember) error {
	return r.s.update(ctx, func(d *data) error {
		key := edge{m.TenantID, m.UserID}
		if _, ok := d.tenantMembers[key]; ok {
			return workspace.ErrAlreadyMember
		}
		m.JoinedAt = r.s.now()
		d.tenantMembers[key] = clonePtr(m)
		return nil
	})
}

func (r *membershipRepository) GetTenantMember(ctx context.Context, tenantID, userID string) (*workspace.TenantMember, error) {
	var out *workspace.TenantMember
	err := r.s.view(ctx, func(d *data) error {
		m, ok := d.tenantMembers[edge{tenantID, userID}]
		if !ok {
			return workspace.ErrMemberNotFound
		}
		out = clonePtr(m)
		return nil
	})
	return out, err
}

func (r *membershipRepository) ListTenantMembers(ctx context.Context, tenantID string) ([]*workspace.TenantMember, error) {
	var out []*workspace.TenantMember
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.tenantMembers, func(m *workspace.TenantMember) bool {
			return m.TenantID == tenantID
		}, tenantMemberOrder)
		return nil
	})
	return out, err
}

func (r *membershipRepository) UpdateTenantRole(ctx context.Context, tenantID, userID string, role workspace.Role) error {
	return r.s.update(ctx, func(d *data) error {
		m, ok := d.tenantMembers[edge{tenantID, userID}]
		if !ok {
			return workspace.ErrMemberNotFound
		}
		m.Role = role
		return nil
	})
}

func (r *membershipRepository) RemoveTenantMember(ctx context.Context, tenantID, userID string) error {
	return r.s.update(ctx, func(d *data) error {
		key := edge{tenantID, userID}
		if _, ok := d.tenantMembers[key]; !ok {
			return workspace.ErrMemberNotFound
		}
		delete(d.tenantMembers, key)
		for k, m := range d.projectMembers {
			if m.UserID != userID {
				continue
			}
			if p, ok := d.projects[m.ProjectID]; ok && p.TenantID == tenantID {
				delete(d.projectMembers, k)
			}
		}
		return nil
	})
}

func (r *membershipRepository) AddProjectMember(ctx context.Context, m *workspace.ProjectMember) error {
	return r.s.update(ctx, func(d *data) error {
		key := edge{m.ProjectID, m.UserID}
		if _, ok := d.projectMembers[key]; ok {
			return workspace.ErrAlreadyMember
		}
		m.JoinedAt = r.s.now()
		d.projectMembers[key] = clonePtr(m)
		return nil
	})
}

func (r *membershipRepository) GetProjectMember(ctx context.Context, projectID, userID string) (*workspace.ProjectMember, error) {
	var out *workspace.ProjectMember
	err := r.s.view(ctx, func(d *data) error {
		m, ok := d.projectMembers[edge{projectID, userID}]
		if !ok {
			return workspace.ErrMemberNotFound
		}
		out = clonePtr(m)
		return nil
	})
	return out, err
}

func (r *membershipRepository) ListProjectMembers(ctx context.Context, projectID string) ([]*workspace.ProjectMember, error) {
	var out []*workspace.ProjectMember
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.projectMembers, func(m *workspace.ProjectMember) bool {
			return m.ProjectID == projectID
		}, projectMemberOrder)
		return nil
	})
	return out, err
}

func (r *membershipRepository) UpdateProjectRole(ctx context.Context, projectID, userID string, role workspace.Role) error {
	return r.s.update(ctx, func(d *data) error {
		m, ok := d.projectMembers[edge{projectID, userID}]
		if !ok {
			return workspace.ErrMemberNotFound
		}
		m.Role = role
		return nil
	})
}

func (r *membershipRepository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return r.s.update(ctx, func(d *data) error {
		key := edge{projectID, userID}
		if _, ok := d.projectMembers[key]; !ok {
			return workspace.ErrMemberNotFound
		}
		delete(d.projectMembers, key)
		return nil
	})
}

// Projects

type projectRepository struct {
	s *Store
}

func (r *projectRepository) Create(ctx context.Context, p *workspace.Project, creator *workspace.ProjectMember) error {
	return r.s.update(ctx, func(d *data) error {
		for _, other := range d.projects {
			if other.JoinCode == p.JoinCode {
				return workspace.ErrJoinCodeTaken
			}
		}
		now := r.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		creator.JoinedAt = now
		d.projects[p.ID] = clonePtr(p)
		d.projectMembers[edge{p.ID, creator.UserID}] = clonePtr(creator)
		return nil
	})
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*workspace.Project, error) {
	var out *workspace.Project
	err := r.s.view(ctx, func(d *data) error {
		p, ok := d.projects[id]
		if !ok {
			return workspace.ErrProjectNotFound
		}
		out = clonePtr(p)
		return nil
	})
	return out, err
}

func (r *projectRepository) GetByJoinCode(ctx context.Context, code string) (*workspace.Project, error) {
	var out *workspace.Project
	err := r.s.view(ctx, func(d *data) error {
		for _, p := range d.projects {
			if p.JoinCode == code {
				out = clonePtr(p)
				return nil
			}
		}
		return workspace.ErrProjectNotFound
	})
	return out, err
}

func (r *projectRepository) Update(ctx context.Context, p *workspace.Project) error {
	return r.s.update(ctx, func(d *data) error {
		cur, ok := d.projects[p.ID]
		if !ok {
			return workspace.ErrProjectNotFound
		}
		cur.Name = p.Name
		cur.Description = p.Description
		cur.UpdatedAt = r.s.now()
		p.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *projectRepository) ListByTenant(ctx context.Context, tenantID string) ([]*workspace.Project, error) {
	var out []*workspace.Project
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.projects, func(p *workspace.Project) bool {
			return p.TenantID == tenantID
		}, projectOrder)
		return nil
	})
	return out, err
}

// Sprints

type sprintRepository struct {
	s *Store
}

func (r *sprintRepository) Create(ctx context.Context, sp *workspace.Sprint) error {
	return r.s.update(ctx, func(d *data) error {
		now := r.s.now()
		sp.CreatedAt, sp.UpdatedAt = now, now
		d.sprints[sp.ID] = clonePtr(sp)
		return nil
	})
}

func (r *sprintRepository) GetByID(ctx context.Context, id string) (*workspace.Sprint, error) {
	var out *workspace.Sprint
	err := r.s.view(ctx, func(d *data) error {
		sp, ok := d.sprints[id]
		if !ok {
			return workspace.ErrSprintNotFound
		}
		out = clonePtr(sp)
		return nil
	})
	return out, err
}

func (r *sprintRepository) Update(ctx context.Context, sp *workspace.Sprint) error {
	return r.s.update(ctx, func(d *data) error {
		cur, ok := d.sprints[sp.ID]
		if !ok {
			return workspace.ErrSprintNotFound
		}
		cur.Name = sp.Name
		cur.Goal = sp.Goal
		cur.Status = sp.Status
		cur.StartsAt = sp.StartsAt
		cur.EndsAt = sp.EndsAt
		cur.UpdatedAt = r.s.now()
		sp.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *sprintRepository) ListByProject(ctx context.Context, projectID string) ([]*workspace.Sprint, error) {
	var out []*workspace.Sprint
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.sprints, func(sp *workspace.Sprint) bool {
			return sp.ProjectID == projectID
		}, sprintOrder)
		return nil
	})
	return out, err
}

// Issues

type issueRepository struct {
	s *Store
}

func (r *issueRepository) Create(ctx context.Context, i *workspace.Issue) error {
	return r.s.update(ctx, func(d *data) error {
		now := r.s.now()
		i.CreatedAt, i.UpdatedAt = now, now
		cp := clonePtr(i)
		cp.SprintID = strPtr(i.SprintID)
		d.issues[i.ID] = cp
		return nil
	})
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*workspace.Issue, error) {
	var out *workspace.Issue
	err := r.s.view(ctx, func(d *data) error {
		i, ok := d.issues[id]
		if !ok {
			return workspace.ErrIssueNotFound
		}
		out = clonePtr(i)
		out.SprintID = strPtr(i.SprintID)
		return nil
	})
	return out, err
}

func (r *issueRepository) Update(ctx context.Context, i *workspace.Issue) error {
	return r.s.update(ctx, func(d *data) error {
		cur, ok := d.issues[i.ID]
		if !ok {
			return workspace.ErrIssueNotFound
		}
		cur.SprintID = strPtr(i.SprintID)
		for _, c := range d.comments {
			if c.IssueID == i.ID {
				c.SprintID = strPtr(i.SprintID)
			}
		}
		cur.Title = i.Title
		cur.Description = i.Description
		cur.Status = i.Status
		cur.Type = i.Type
		cur.Priority = i.Priority
		cur.UpdatedAt = r.s.now()
		i.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *issueRepository) ListBySprint(ctx context.Context, sprintID string) ([]*workspace.Issue, error) {
	var out []*workspace.Issue
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.issues, func(i *workspace.Issue) bool {
			return deref(i.SprintID) == sprintID
		}, issueOrder)
		return nil
	})
	return out, err
}

func (r *issueRepository) ListBacklog(ctx context.Context, projectID string) ([]*workspace.Issue, error) {
	var out []*workspace.Issue
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.issues, func(i *workspace.Issue) bool {
			return i.ProjectID == projectID && i.SprintID == nil
		}, issueOrder)
		return nil
	})
	return out, err
}

// Assignments

type assignmentRepository struct {
	s *Store
}

func (r *assignmentRepository) Assign(ctx context.Context, a *workspace.Assignment) error {
	return r.s.update(ctx, func(d *data) error {
		key := edge{a.IssueID, a.UserID}
		if _, ok := d.assignments[key]; ok {
			return workspace.ErrAlreadyAssigned
		}
		a.AssignedAt = r.s.now()
		d.assignments[key] = clonePtr(a)
		return nil
	})
}

func (r *assignmentRepository) Unassign(ctx context.Context, issueID, userID string) error {
	return r.s.update(ctx, func(d *data) error {
		key := edge{issueID, userID}
		if _, ok := d.assignments[key]; !ok {
			return workspace.ErrAssignmentNotFound
		}
		delete(d.assignments, key)
		return nil
	})
}

func (r *assignmentRepository) IsAssigned(ctx context.Context, issueID, userID string) (bool, error) {
	var ok bool
	err := r.s.view(ctx, func(d *data) error {
		_, ok = d.assignments[edge{issueID, userID}]
		return nil
	})
	return ok, err
}

func (r *assignmentRepository) ListAssignees(ctx context.Context, issueID string) ([]*workspace.Assignment, error) {
	var out []*workspace.Assignment
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.assignments, func(a *workspace.Assignment) bool {
			return a.IssueID == issueID
		}, assignmentOrder)
		return nil
	})
	return out, err
}

func (r *assignmentRepository) AssignedIssueIDs(ctx context.Context, projectID, userID string) ([]string, error) {
	var out []string
	err := r.s.view(ctx, func(d *data) error {
		for _, a := range d.assignments {
			if a.ProjectID == projectID && a.UserID == userID {
				out = append(out, a.IssueID)
			}
		}
		return nil
	})
	return out, err
}

// Comments

type commentRepository struct {
	s *Store
}

func (r *commentRepository) Create(ctx context.Context, c *workspace.Comment) error {
	return r.s.update(ctx, func(d *data) error {
		c.CreatedAt = r.s.now()
		cp := clonePtr(c)
		cp.SprintID = strPtr(c.SprintID)
		d.comments[c.ID] = cp
		return nil
	})
}

func (r *commentRepository) ListByIssue(ctx context.Context, issueID string) ([]*workspace.Comment, error) {
	var out []*workspace.Comment
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.comments, func(c *workspace.Comment) bool {
			return c.IssueID == issueID
		}, commentOrder)
		return nil
	})
	return out, err
}

// Pins

type pinRepository struct {
	s *Store
}

func (r *pinRepository) Create(ctx context.Context, p *workspace.Pin) error {
	return r.s.update(ctx, func(d *data) error {
		key := pinKey{p.UserID, p.Type, p.TargetID}
		if _, ok := d.pins[key]; ok {
			return workspace.ErrAlreadyPinned
		}
		p.CreatedAt = r.s.now()
		d.pins[key] = clonePtr(p)
		return nil
	})
}

func (r *pinRepository) Delete(ctx context.Context, userID string, pinType workspace.PinType, targetID string) error {
	return r.s.update(ctx, func(d *data) error {
		key := pinKey{userID, pinType, targetID}
		if _, ok := d.pins[key]; !ok {
			return workspace.ErrPinNotFound
		}
		delete(d.pins, key)
		return nil
	})
}

func (r *pinRepository) ListForUser(ctx context.Context, userID string) ([]*workspace.Pin, error) {
	var out []*workspace.Pin
	err := r.s.view(ctx, func(d *data) error {
		out = sortedClones(d.pins, func(p *workspace.Pin) bool {
			return p.UserID == userID
		}, pinOrder)
		return nil
	})
	return out, err
}
