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

package project

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/stride/internal/apperr"
	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/store/memory"
	"github.com/opentrusty/stride/internal/workspace"
)

type fixture struct {
	ctx     context.Context
	svc     *Service
	repos   workspace.Repositories
	tenant  *workspace.Tenant
	project *workspace.Project
}

// newFixture seeds a tenant owned by "owner" with members "pm" and "dev",
// and a project created by the owner where pm is a ProjectManager and dev
// a Developer.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	repos := st.Workspace()
	svc := NewService(
		repos,
		authz.NewResolver(repos, audit.NopLogger{}, nil),
		cascade.NewEngine(st, audit.NopLogger{}, nil),
		audit.NopLogger{},
	)

	tn := &workspace.Tenant{ID: "t1", Name: "Acme", OwnerID: "owner", JoinCode: "ACME01"}
	require.NoError(t, repos.Tenants.Create(ctx, tn, &workspace.TenantMember{TenantID: tn.ID, UserID: "owner", Role: workspace.RoleAdmin}))
	for _, u := range []string{"pm", "dev"} {
		require.NoError(t, repos.Members.AddTenantMember(ctx, &workspace.TenantMember{TenantID: tn.ID, UserID: u, Role: workspace.RoleDeveloper}))
	}

	p, err := svc.Create(ctx, "owner", tn.ID, "Platform", "core services")
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, "owner", p.ID, "pm", workspace.RoleProjectManager))
	require.NoError(t, svc.AddMember(ctx, "owner", p.ID, "dev", workspace.RoleDeveloper))

	return &fixture{ctx: ctx, svc: svc, repos: repos, tenant: tn, project: p}
}

// TestPurpose: Validates that Developers only see issues assigned to them while managers see all.
// Scope: Unit Test
// Security: Assignment-scoped visibility for the lowest role
// Expected: With 3 issues in a sprint and 1 assigned to the Developer, the Developer lists 1 and the Project Manager lists 3.
// Test Case ID: PRJ-01
func TestService_SprintIssueVisibility(t *testing.T) {
	f := newFixture(t)

	sp, err := f.svc.CreateSprint(f.ctx, "pm", f.project.ID, SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	assert.Equal(t, workspace.SprintPlanned, sp.Status)

	var ids []string
	for _, title := range []string{"Login page", "Signup page", "Audit log"} {
		issue, err := f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: title, SprintID: &sp.ID})
		require.NoError(t, err)
		ids = append(ids, issue.ID)
	}
	require.NoError(t, f.svc.AssignIssue(f.ctx, "pm", ids[1], "dev"))

	devView, err := f.svc.ListSprintIssues(f.ctx, "dev", sp.ID)
	require.NoError(t, err)
	require.Len(t, devView, 1)
	assert.Equal(t, ids[1], devView[0].ID)

	pmView, err := f.svc.ListSprintIssues(f.ctx, "pm", sp.ID)
	require.NoError(t, err)
	assert.Len(t, pmView, 3)

	_, err = f.svc.GetIssue(f.ctx, "dev", ids[0])
	assert.ErrorIs(t, err, authz.ErrNotAssigned)
	got, err := f.svc.GetIssue(f.ctx, "dev", ids[1])
	require.NoError(t, err)
	assert.Equal(t, "Signup page", got.Title)
}

// TestPurpose: Validates the role thresholds of project operations.
// Scope: Unit Test
// Security: Ordered roles; a higher role can do everything a lower one can
// Expected: Developers cannot create sprints or issues; ProjectManagers cannot delete the project; Admins can.
// Test Case ID: PRJ-02
func TestService_RoleThresholds(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSprint(f.ctx, "dev", f.project.ID, SprintInput{Name: "Nope"})
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)
	_, err = f.svc.CreateIssue(f.ctx, "dev", f.project.ID, IssueInput{Title: "Nope"})
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)

	_, err = f.svc.Delete(f.ctx, "pm", f.project.ID)
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)
	err = f.svc.AddMember(f.ctx, "pm", f.project.ID, "dev", workspace.RoleAdmin)
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)

	// Tenant Admins without a project edge have no project authority.
	require.NoError(t, f.repos.Members.AddTenantMember(f.ctx, &workspace.TenantMember{TenantID: f.tenant.ID, UserID: "tadmin", Role: workspace.RoleAdmin}))
	_, err = f.svc.Get(f.ctx, "tadmin", f.project.ID)
	assert.ErrorIs(t, err, authz.ErrNotMember)

	issue, err := f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: "Backlog item"})
	require.NoError(t, err)
	assert.True(t, issue.InBacklog())
	assert.Equal(t, workspace.IssueTodo, issue.Status)
	assert.Equal(t, workspace.IssueTask, issue.Type)
	assert.Equal(t, workspace.PriorityMedium, issue.Priority)

	rep, err := f.svc.Delete(f.ctx, "owner", f.project.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Counts[cascade.TableProjects])
	assert.EqualValues(t, 1, rep.Counts[cascade.TableIssues])

	_, err = f.svc.Get(f.ctx, "owner", f.project.ID)
	assert.ErrorIs(t, err, workspace.ErrProjectNotFound)
}

func TestService_CreateRequiresTenantAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, "dev", f.tenant.ID, "Rogue", "")
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)
	_, err = f.svc.Create(f.ctx, "stranger", f.tenant.ID, "Rogue", "")
	assert.ErrorIs(t, err, authz.ErrNotMember)
	_, err = f.svc.Create(f.ctx, "owner", "missing", "Rogue", "")
	assert.ErrorIs(t, err, workspace.ErrTenantNotFound)
	_, err = f.svc.Create(f.ctx, "owner", f.tenant.ID, " ", "")
	assert.ErrorIs(t, err, workspace.ErrInvalidName)

	projects, err := f.svc.ListForTenant(f.ctx, "dev", f.tenant.ID)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestService_Join(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Join(f.ctx, "outsider", f.project.JoinCode)
	assert.ErrorIs(t, err, authz.ErrNotMember)

	require.NoError(t, f.repos.Members.AddTenantMember(f.ctx, &workspace.TenantMember{TenantID: f.tenant.ID, UserID: "newbie", Role: workspace.RoleDeveloper}))
	p, err := f.svc.Join(f.ctx, "newbie", f.project.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, p.ID)

	m, err := f.repos.Members.GetProjectMember(f.ctx, p.ID, "newbie")
	require.NoError(t, err)
	assert.Equal(t, workspace.RoleDeveloper, m.Role)

	_, err = f.svc.Join(f.ctx, "newbie", f.project.JoinCode)
	assert.ErrorIs(t, err, workspace.ErrAlreadyMember)

	err = f.svc.AddMember(f.ctx, "owner", f.project.ID, "outsider", workspace.RoleDeveloper)
	assert.ErrorIs(t, err, ErrNotTenantMember)
}

func TestService_Membership(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ChangeRole(f.ctx, "owner", f.project.ID, "dev", workspace.RoleProjectManager))
	_, err := f.svc.CreateSprint(f.ctx, "dev", f.project.ID, SprintInput{Name: "Promoted"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveMember(f.ctx, "dev", f.project.ID, "dev"))
	_, err = f.svc.Get(f.ctx, "dev", f.project.ID)
	assert.ErrorIs(t, err, authz.ErrNotMember)

	err = f.svc.RemoveMember(f.ctx, "pm", f.project.ID, "owner")
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)

	members, err := f.svc.ListMembers(f.ctx, "pm", f.project.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestService_Sprints(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	end := start.Add(14 * 24 * time.Hour)

	_, err := f.svc.CreateSprint(f.ctx, "pm", f.project.ID, SprintInput{Name: "Bad", StartsAt: &end, EndsAt: &start})
	assert.ErrorIs(t, err, workspace.ErrInvalidDates)

	sp, err := f.svc.CreateSprint(f.ctx, "pm", f.project.ID, SprintInput{Name: "Sprint 1", StartsAt: &start, EndsAt: &end})
	require.NoError(t, err)

	updated, err := f.svc.UpdateSprint(f.ctx, "pm", sp.ID, SprintInput{Status: workspace.SprintActive, Goal: "ship"})
	require.NoError(t, err)
	assert.Equal(t, workspace.SprintActive, updated.Status)
	assert.Equal(t, "Sprint 1", updated.Name)

	_, err = f.svc.UpdateSprint(f.ctx, "pm", sp.ID, SprintInput{Status: "paused"})
	assert.ErrorIs(t, err, workspace.ErrInvalidStatus)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	issue, err := f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: "Carry over", SprintID: &sp.ID})
	require.NoError(t, err)

	sprints, err := f.svc.ListSprints(f.ctx, "dev", f.project.ID)
	require.NoError(t, err)
	assert.Len(t, sprints, 1)

	_, err = f.svc.DeleteSprint(f.ctx, "dev", sp.ID)
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)
	_, err = f.svc.DeleteSprint(f.ctx, "pm", sp.ID)
	require.NoError(t, err)

	backlog, err := f.svc.ListBacklog(f.ctx, "pm", f.project.ID)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, issue.ID, backlog[0].ID)

	_, err = f.svc.GetSprint(f.ctx, "pm", sp.ID)
	assert.ErrorIs(t, err, workspace.ErrSprintNotFound)
}

func TestService_IssueLifecycle(t *testing.T) {
	f := newFixture(t)
	sp, err := f.svc.CreateSprint(f.ctx, "pm", f.project.ID, SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	issue, err := f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: "Fix login", Type: workspace.IssueBug})
	require.NoError(t, err)

	_, err = f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, workspace.ErrInvalidPriority)

	t.Run("developer must be assigned to update or comment", func(t *testing.T) {
		_, err := f.svc.UpdateIssue(f.ctx, "dev", issue.ID, IssueInput{Status: workspace.IssueInProgress})
		assert.ErrorIs(t, err, authz.ErrNotAssigned)
		_, err = f.svc.AddComment(f.ctx, "dev", issue.ID, "on it")
		assert.ErrorIs(t, err, authz.ErrNotAssigned)
	})

	require.NoError(t, f.svc.AssignIssue(f.ctx, "pm", issue.ID, "dev"))
	assert.ErrorIs(t, f.svc.AssignIssue(f.ctx, "pm", issue.ID, "dev"), workspace.ErrAlreadyAssigned)
	assert.ErrorIs(t, f.svc.AssignIssue(f.ctx, "pm", issue.ID, "nobody"), ErrNotProjectMember)

	updated, err := f.svc.UpdateIssue(f.ctx, "dev", issue.ID, IssueInput{Status: workspace.IssueInProgress})
	require.NoError(t, err)
	assert.Equal(t, workspace.IssueInProgress, updated.Status)
	assert.Equal(t, workspace.IssueBug, updated.Type)

	_, err = f.svc.AddComment(f.ctx, "dev", issue.ID, "   ")
	assert.ErrorIs(t, err, workspace.ErrEmptyComment)
	c, err := f.svc.AddComment(f.ctx, "dev", issue.ID, "on it")
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, c.ProjectID)
	assert.Equal(t, f.tenant.ID, c.TenantID)

	_, err = f.svc.MoveIssue(f.ctx, "dev", issue.ID, &sp.ID)
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)
	moved, err := f.svc.MoveIssue(f.ctx, "pm", issue.ID, &sp.ID)
	require.NoError(t, err)
	assert.False(t, moved.InBacklog())

	comments, err := f.svc.ListComments(f.ctx, "pm", issue.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	assignees, err := f.svc.ListAssignees(f.ctx, "pm", issue.ID)
	require.NoError(t, err)
	assert.Len(t, assignees, 1)

	require.NoError(t, f.svc.UnassignIssue(f.ctx, "pm", issue.ID, "dev"))
	_, err = f.svc.GetIssue(f.ctx, "dev", issue.ID)
	assert.ErrorIs(t, err, authz.ErrNotAssigned)

	rep, err := f.svc.DeleteIssue(f.ctx, "pm", issue.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Counts[cascade.TableComments])
	_, err = f.svc.GetIssue(f.ctx, "pm", issue.ID)
	assert.ErrorIs(t, err, workspace.ErrIssueNotFound)
}

// TestPurpose: Validates that moving an issue carries its comments to the new sprint.
// Scope: Unit Test
// Security: Sprint-scoped cleanup must reach every comment of a moved issue
// Expected: Comments follow the issue across sprints and back to the backlog; comments of other issues keep their sprint.
// Test Case ID: PRJ-03
func TestService_MoveIssueCarriesComments(t *testing.T) {
	f := newFixture(t)
	sp1, err := f.svc.CreateSprint(f.ctx, "pm", f.project.ID, SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	sp2, err := f.svc.CreateSprint(f.ctx, "pm", f.project.ID, SprintInput{Name: "Sprint 2"})
	require.NoError(t, err)

	issue, err := f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: "Fix login"})
	require.NoError(t, err)
	other, err := f.svc.CreateIssue(f.ctx, "pm", f.project.ID, IssueInput{Title: "Stay put", SprintID: &sp1.ID})
	require.NoError(t, err)
	_, err = f.svc.AddComment(f.ctx, "pm", issue.ID, "first")
	require.NoError(t, err)
	_, err = f.svc.AddComment(f.ctx, "pm", other.ID, "second")
	require.NoError(t, err)

	sprintOf := func(issueID string) []*string {
		t.Helper()
		comments, err := f.svc.ListComments(f.ctx, "pm", issueID)
		require.NoError(t, err)
		out := make([]*string, 0, len(comments))
		for _, c := range comments {
			out = append(out, c.SprintID)
		}
		return out
	}

	_, err = f.svc.MoveIssue(f.ctx, "pm", issue.ID, &sp2.ID)
	require.NoError(t, err)
	assert.Equal(t, []*string{&sp2.ID}, sprintOf(issue.ID))
	assert.Equal(t, []*string{&sp1.ID}, sprintOf(other.ID))

	_, err = f.svc.MoveIssue(f.ctx, "pm", issue.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []*string{nil}, sprintOf(issue.ID))

	_, err = f.svc.MoveIssue(f.ctx, "pm", issue.ID, &sp1.ID)
	require.NoError(t, err)
	rep, err := f.svc.DeleteSprint(f.ctx, "pm", sp1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rep.Counts[cascade.TableComments])
	assert.Equal(t, []*string{nil}, sprintOf(issue.ID))
}
