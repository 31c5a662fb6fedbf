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

package authz

import "github.com/opentrusty/stride/internal/workspace"

// Action is something a user asks to do to a Target.
type Action string

// -----------------------------------------------------------------------------
// Tenant-scoped actions
// Resolved against the UserTenant edge of the target's tenant.
// -----------------------------------------------------------------------------

const (
	ViewTenant         Action = "ViewTenant"
	UpdateTenant       Action = "UpdateTenant"
	DeleteTenant       Action = "DeleteTenant"
	InviteTenantMember Action = "InviteTenantMember"
	ChangeTenantRole   Action = "ChangeTenantRole"
	RemoveTenantMember Action = "RemoveTenantMember"
	CreateProject      Action = "CreateProject"
)

// -----------------------------------------------------------------------------
// Project-scoped actions
// Resolved against the UserProject edge of the target's nearest project.
// -----------------------------------------------------------------------------

const (
	ViewProject          Action = "ViewProject"
	UpdateProject        Action = "UpdateProject"
	DeleteProject        Action = "DeleteProject"
	ManageProjectMembers Action = "ManageProjectMembers"

	ViewSprint   Action = "ViewSprint"
	CreateSprint Action = "CreateSprint"
	UpdateSprint Action = "UpdateSprint"
	DeleteSprint Action = "DeleteSprint"

	ListIssues   Action = "ListIssues"
	ViewIssue    Action = "ViewIssue"
	CreateIssue  Action = "CreateIssue"
	UpdateIssue  Action = "UpdateIssue"
	DeleteIssue  Action = "DeleteIssue"
	AssignIssue  Action = "AssignIssue"
	MoveIssue    Action = "MoveIssue"
	CommentIssue Action = "CommentIssue"
)

type scope int

const (
	scopeTenant scope = iota + 1
	scopeProject
)

// rule is one row of the policy table.
type rule struct {
	scope scope
	min   workspace.Role
	// read actions on issues are filtered by assignment for Developers.
	read bool
	// owner requires the caller to be the tenant owner regardless of role.
	owner bool
	// assigned requires a Developer to be assigned to the target issue.
	assigned bool
}

var policy = map[Action]rule{
	ViewTenant:         {scope: scopeTenant, min: workspace.RoleDeveloper, read: true},
	UpdateTenant:       {scope: scopeTenant, min: workspace.RoleAdmin},
	DeleteTenant:       {scope: scopeTenant, min: workspace.RoleAdmin, owner: true},
	InviteTenantMember: {scope: scopeTenant, min: workspace.RoleAdmin},
	ChangeTenantRole:   {scope: scopeTenant, min: workspace.RoleAdmin},
	RemoveTenantMember: {scope: scopeTenant, min: workspace.RoleAdmin},
	CreateProject:      {scope: scopeTenant, min: workspace.RoleAdmin},

	ViewProject:          {scope: scopeProject, min: workspace.RoleDeveloper, read: true},
	UpdateProject:        {scope: scopeProject, min: workspace.RoleAdmin},
	DeleteProject:        {scope: scopeProject, min: workspace.RoleAdmin},
	ManageProjectMembers: {scope: scopeProject, min: workspace.RoleAdmin},

	ViewSprint:   {scope: scopeProject, min: workspace.RoleDeveloper, read: true},
	CreateSprint: {scope: scopeProject, min: workspace.RoleProjectManager},
	UpdateSprint: {scope: scopeProject, min: workspace.RoleProjectManager},
	DeleteSprint: {scope: scopeProject, min: workspace.RoleProjectManager},

	ListIssues:   {scope: scopeProject, min: workspace.RoleDeveloper, read: true},
	ViewIssue:    {scope: scopeProject, min: workspace.RoleDeveloper, read: true, assigned: true},
	CreateIssue:  {scope: scopeProject, min: workspace.RoleProjectManager},
	UpdateIssue:  {scope: scopeProject, min: workspace.RoleDeveloper, assigned: true},
	DeleteIssue:  {scope: scopeProject, min: workspace.RoleProjectManager},
	AssignIssue:  {scope: scopeProject, min: workspace.RoleProjectManager},
	MoveIssue:    {scope: scopeProject, min: workspace.RoleProjectManager},
	CommentIssue: {scope: scopeProject, min: workspace.RoleDeveloper, assigned: true},
}

// MinRole returns the lowest role that may perform a.
func MinRole(a Action) (workspace.Role, bool) {
	r, ok := policy[a]
	return r.min, ok
}
