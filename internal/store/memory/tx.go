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
	"fmt"
	"sort"

	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/reset"
	"github.com/opentrusty/stride/internal/token"
	"github.com/opentrusty/stride/internal/workspace"
)

// tx implements cascade.Tx directly on the locked data.
type tx struct {
	d *data
}

func (t *tx) Exists(ctx context.Context, table cascade.Table, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	switch table {
	case cascade.TableUsers:
		_, ok = t.d.users[id]
	case cascade.TableTenants:
		_, ok = t.d.tenants[id]
	case cascade.TableProjects:
		_, ok = t.d.projects[id]
	case cascade.TableSprints:
		_, ok = t.d.sprints[id]
	case cascade.TableIssues:
		_, ok = t.d.issues[id]
	case cascade.TableComments:
		_, ok = t.d.comments[id]
	default:
		return false, fmt.Errorf("%w: exists on %s", cascade.ErrUnsupported, table)
	}
	return ok, nil
}

func (t *tx) IDs(ctx context.Context, table cascade.Table, column cascade.Column, value string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch table {
	case cascade.TableTenants:
		return idsWhere(t.d.tenants, tenantField, column, value)
	case cascade.TableProjects:
		return idsWhere(t.d.projects, projectField, column, value)
	case cascade.TableSprints:
		return idsWhere(t.d.sprints, sprintField, column, value)
	case cascade.TableIssues:
		return idsWhere(t.d.issues, issueField, column, value)
	case cascade.TableComments:
		return idsWhere(t.d.comments, commentField, column, value)
	}
	return nil, fmt.Errorf("%w: ids from %s", cascade.ErrUnsupported, table)
}

func (t *tx) Delete(ctx context.Context, table cascade.Table, column cascade.Column, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := t.d
	switch table {
	case cascade.TableUsers:
		return deleteWhere(d.users, userField, column, value)
	case cascade.TableCredentials:
		return deleteWhere(d.credentials, credentialsField, column, value)
	case cascade.TableRefreshTokens:
		return deleteWhere(d.refreshTokens, refreshField, column, value)
	case cascade.TablePasswordResets:
		return deleteWhere(d.resets, resetField, column, value)
	case cascade.TableTenants:
		return deleteWhere(d.tenants, tenantField, column, value)
	case cascade.TableTenantMembers:
		return deleteWhere(d.tenantMembers, tenantMemberField, column, value)
	case cascade.TableProjects:
		return deleteWhere(d.projects, projectField, column, value)
	case cascade.TableProjectMembers:
		return deleteWhere(d.projectMembers, projectMemberField, column, value)
	case cascade.TableSprints:
		return deleteWhere(d.sprints, sprintField, column, value)
	case cascade.TableIssues:
		return deleteWhere(d.issues, issueField, column, value)
	case cascade.TableAssignments:
		return deleteWhere(d.assignments, assignmentField, column, value)
	case cascade.TableComments:
		return deleteWhere(d.comments, commentField, column, value)
	case cascade.TablePins:
		return deleteWhere(d.pins, pinField, column, value)
	}
	return 0, fmt.Errorf("%w: delete from %s", cascade.ErrUnsupported, table)
}

func (t *tx) Detach(ctx context.Context, table cascade.Table, column cascade.Column, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	if value == "" {
		return 0, nil
	}
	switch {
	case table == cascade.TableIssues && column == cascade.ColSprintID:
		for _, i := range t.d.issues {
			if deref(i.SprintID) == value {
				i.SprintID = nil
				n++
			}
		}
	case table == cascade.TableComments && column == cascade.ColSprintID:
		for _, c := range t.d.comments {
			if deref(c.SprintID) == value {
				c.SprintID = nil
				n++
			}
		}
	case table == cascade.TableUsers && column == cascade.ColPersonalTenant:
		for _, u := range t.d.users {
			if deref(u.PersonalTenantID) == value {
				u.PersonalTenantID = nil
				n++
			}
		}
	default:
		return 0, fmt.Errorf("%w: detach %s.%s", cascade.ErrUnsupported, table, column)
	}
	return n, nil
}

func deleteWhere[K comparable, V any](m map[K]*V, field func(*V, cascade.Column) (string, bool), column cascade.Column, value string) (int64, error) {
	var zero V
	if _, ok := field(&zero, column); !ok {
		return 0, fmt.Errorf("%w: column %s", cascade.ErrUnsupported, column)
	}
	var n int64
	if value == "" {
		return 0, nil
	}
	for k, v := range m {
		if f, _ := field(v, column); f == value {
			delete(m, k)
			n++
		}
	}
	return n, nil
}

func idsWhere[K comparable, V any](m map[K]*V, field func(*V, cascade.Column) (string, bool), column cascade.Column, value string) ([]string, error) {
	var zero V
	if _, ok := field(&zero, column); !ok {
		return nil, fmt.Errorf("%w: column %s", cascade.ErrUnsupported, column)
	}
	var out []string
	if value == "" {
		return nil, nil
	}
	for _, v := range m {
		if f, _ := field(v, column); f == value {
			rowID, _ := field(v, cascade.ColID)
			out = append(out, rowID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func userField(u *identity.User, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return u.ID, true
	case cascade.ColPersonalTenant:
		return deref(u.PersonalTenantID), true
	}
	return "", false
}

func credentialsField(cr *identity.Credentials, c cascade.Column) (string, bool) {
	if c == cascade.ColUserID {
		return cr.UserID, true
	}
	return "", false
}

func refreshField(r *token.RefreshToken, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return r.ID, true
	case cascade.ColUserID:
		return r.UserID, true
	}
	return "", false
}

func resetField(r *reset.Record, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return r.ID, true
	case cascade.ColUserID:
		return r.UserID, true
	}
	return "", false
}

func tenantField(t *workspace.Tenant, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return t.ID, true
	case cascade.ColOwnerID:
		return t.OwnerID, true
	}
	return "", false
}

func tenantMemberField(m *workspace.TenantMember, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColTenantID:
		return m.TenantID, true
	case cascade.ColUserID:
		return m.UserID, true
	}
	return "", false
}

func projectField(p *workspace.Project, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return p.ID, true
	case cascade.ColTenantID:
		return p.TenantID, true
	case cascade.ColCreatorID:
		return p.CreatorID, true
	}
	return "", false
}

func projectMemberField(m *workspace.ProjectMember, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColProjectID:
		return m.ProjectID, true
	case cascade.ColUserID:
		return m.UserID, true
	}
	return "", false
}

func sprintField(s *workspace.Sprint, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return s.ID, true
	case cascade.ColProjectID:
		return s.ProjectID, true
	case cascade.ColTenantID:
		return s.TenantID, true
	case cascade.ColCreatedBy:
		return s.CreatedBy, true
	}
	return "", false
}

func issueField(i *workspace.Issue, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return i.ID, true
	case cascade.ColProjectID:
		return i.ProjectID, true
	case cascade.ColSprintID:
		return deref(i.SprintID), true
	case cascade.ColTenantID:
		return i.TenantID, true
	case cascade.ColCreatedBy:
		return i.CreatedBy, true
	}
	return "", false
}

func assignmentField(a *workspace.Assignment, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColIssueID:
		return a.IssueID, true
	case cascade.ColProjectID:
		return a.ProjectID, true
	case cascade.ColTenantID:
		return a.TenantID, true
	case cascade.ColUserID:
		return a.UserID, true
	}
	return "", false
}

func commentField(cm *workspace.Comment, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColID:
		return cm.ID, true
	case cascade.ColIssueID:
		return cm.IssueID, true
	case cascade.ColProjectID:
		return cm.ProjectID, true
	case cascade.ColSprintID:
		return deref(cm.SprintID), true
	case cascade.ColTenantID:
		return cm.TenantID, true
	case cascade.ColAuthorID:
		return cm.AuthorID, true
	}
	return "", false
}

func pinField(p *workspace.Pin, c cascade.Column) (string, bool) {
	switch c {
	case cascade.ColUserID:
		return p.UserID, true
	case cascade.ColTargetID:
		return p.TargetID, true
	case cascade.ColTenantID:
		return p.TenantID, true
	case cascade.ColProjectID:
		return p.ProjectID, true
	}
	return "", false
}
