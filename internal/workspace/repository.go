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

package workspace

import "context"

// TenantRepository defines the interface for tenant persistence
type TenantRepository interface {
	// Create stores the tenant and the owner's Admin membership atomically.
	Create(ctx context.Context, t *Tenant, owner *TenantMember) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByJoinCode(ctx context.Context, code string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	// ListForUser returns every tenant the user holds a membership in.
	ListForUser(ctx context.Context, userID string) ([]*Tenant, error)
}

// MembershipRepository defines the interface for tenant and project edges
type MembershipRepository interface {
	AddTenantMember(ctx context.Context, m *TenantMember) error
	GetTenantMember(ctx context.Context, tenantID, userID string) (*TenantMember, error)
	ListTenantMembers(ctx context.Context, tenantID string) ([]*TenantMember, error)
	UpdateTenantRole(ctx context.Context, tenantID, userID string, role Role) error
	// RemoveTenantMember deletes the tenant edge and every project edge the
	// user holds under that tenant.
	RemoveTenantMember(ctx context.Context, tenantID, userID string) error

	AddProjectMember(ctx context.Context, m *ProjectMember) error
	GetProjectMember(ctx context.Context, projectID, userID string) (*ProjectMember, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]*ProjectMember, error)
	UpdateProjectRole(ctx context.Context, projectID, userID string, role Role) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error
}

// ProjectRepository defines the interface for project persistence
type ProjectRepository interface {
	// Create stores the project and the creator's Admin membership atomically.
	Create(ctx context.Context, p *Project, creator *ProjectMember) error
	GetByID(ctx context.Context, id string) (*Project, error)
	GetByJoinCode(ctx context.Context, code string) (*Project, error)
	Update(ctx context.Context, p *Project) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Project, error)
}

// SprintRepository defines the interface for sprint persistence
type SprintRepository interface {
	Create(ctx context.Context, s *Sprint) error
	GetByID(ctx context.Context, id string) (*Sprint, error)
	Update(ctx context.Context, s *Sprint) error
	ListByProject(ctx context.Context, projectID string) ([]*Sprint, error)
}

// IssueRepository defines the interface for issue persistence
type IssueRepository interface {
	Create(ctx context.Context, i *Issue) error
	GetByID(ctx context.Context, id string) (*Issue, error)
	Update(ctx context.Context, i *Issue) error
	ListBySprint(ctx context.Context, sprintID string) ([]*Issue, error)
	ListBacklog(ctx context.Context, projectID string) ([]*Issue, error)
}

// AssignmentRepository defines the interface for issue assignments
type AssignmentRepository interface {
	Assign(ctx context.Context, a *Assignment) error
	Unassign(ctx context.Context, issueID, userID string) error
	IsAssigned(ctx context.Context, issueID, userID string) (bool, error)
	ListAssignees(ctx context.Context, issueID string) ([]*Assignment, error)
	// AssignedIssueIDs returns the ids of issues in the project assigned to the user.
	AssignedIssueIDs(ctx context.Context, projectID, userID string) ([]string, error)
}

// CommentRepository defines the interface for comment persistence
type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	ListByIssue(ctx context.Context, issueID string) ([]*Comment, error)
}

// PinRepository defines the interface for pinned items
type PinRepository interface {
	Create(ctx context.Context, p *Pin) error
	Delete(ctx context.Context, userID string, pinType PinType, targetID string) error
	ListForUser(ctx context.Context, userID string) ([]*Pin, error)
}

// Repositories bundles the workspace repositories of one store.
type Repositories struct {
	Tenants     TenantRepository
	Members     MembershipRepository
	Projects    ProjectRepository
	Sprints     SprintRepository
	Issues      IssueRepository
	Assignments AssignmentRepository
	Comments    CommentRepository
	Pins        PinRepository
}
