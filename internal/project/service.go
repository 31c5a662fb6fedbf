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

// Package project implements projects, sprints, issues and comments inside a
// tenant. Every operation is authorized through the authz resolver first.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opentrusty/stride/internal/apperr"
	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/id"
	"github.com/opentrusty/stride/internal/workspace"
)

const (
	joinCodeLength = 8
	maxNameLength  = 120
)

var (
	ErrNotTenantMember  = apperr.New(apperr.KindValidation, "user is not a member of the tenant")
	ErrNotProjectMember = apperr.New(apperr.KindValidation, "user is not a member of the project")
)

// Service provides project, sprint, issue and comment operations.
type Service struct {
	repos       workspace.Repositories
	resolver    *authz.Resolver
	engine      *cascade.Engine
	auditLogger audit.Logger
}

// NewService creates a new project service
func NewService(
	repos workspace.Repositories,
	resolver *authz.Resolver,
	engine *cascade.Engine,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		repos:       repos,
		resolver:    resolver,
		engine:      engine,
		auditLogger: auditLogger,
	}
}

// Create adds a project to a tenant. The creator becomes the project's Admin.
func (s *Service) Create(ctx context.Context, actorID, tenantID, name, description string) (*workspace.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, workspace.ErrInvalidName
	}
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.CreateProject); err != nil {
		return nil, err
	}

	p := &workspace.Project{
		ID:          id.NewUUIDv7(),
		TenantID:    tenantID,
		CreatorID:   actorID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	creator := &workspace.ProjectMember{ProjectID: p.ID, UserID: actorID, Role: workspace.RoleAdmin}

	err := workspace.WithJoinCode(joinCodeLength, func(code string) error {
		p.JoinCode = code
		return s.repos.Projects.Create(ctx, p, creator)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProjectCreated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "project:" + p.ID,
	})
	return p, nil
}

// Get returns a project the actor belongs to.
func (s *Service) Get(ctx context.Context, actorID, projectID string) (*workspace.Project, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.ViewProject); err != nil {
		return nil, err
	}
	return s.repos.Projects.GetByID(ctx, projectID)
}

// ListForTenant lists the tenant's projects for any tenant member.
func (s *Service) ListForTenant(ctx context.Context, actorID, tenantID string) ([]*workspace.Project, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.ViewTenant); err != nil {
		return nil, err
	}
	return s.repos.Projects.ListByTenant(ctx, tenantID)
}

// Update changes name and description. Empty name keeps the current one.
func (s *Service) Update(ctx context.Context, actorID, projectID, name, description string) (*workspace.Project, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.UpdateProject); err != nil {
		return nil, err
	}
	p, err := s.repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		if len(name) > maxNameLength {
			return nil, workspace.ErrInvalidName
		}
		p.Name = name
	}
	p.Description = strings.TrimSpace(description)
	if err := s.repos.Projects.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// Join adds userID as a Developer of the project behind code. The user must
// already belong to the project's tenant.
func (s *Service) Join(ctx context.Context, userID, code string) (*workspace.Project, error) {
	p, err := s.repos.Projects.GetByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Members.GetTenantMember(ctx, p.TenantID, userID); err != nil {
		if errors.Is(err, workspace.ErrMemberNotFound) {
			return nil, authz.ErrNotMember
		}
		return nil, fmt.Errorf("failed to load tenant membership: %w", err)
	}
	if err := s.repos.Members.AddProjectMember(ctx, &workspace.ProjectMember{
		ProjectID: p.ID,
		UserID:    userID,
		Role:      workspace.RoleDeveloper,
	}); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProjectJoined,
		TenantID: p.TenantID,
		ActorID:  userID,
		Resource: "project:" + p.ID,
	})
	return p, nil
}

// AddMember grants a tenant member a role in the project.
func (s *Service) AddMember(ctx context.Context, actorID, projectID, userID string, role workspace.Role) error {
	if !role.Valid() {
		return workspace.ErrInvalidRole
	}
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.ManageProjectMembers)
	if err != nil {
		return err
	}
	if _, err := s.repos.Members.GetTenantMember(ctx, v.TenantID, userID); err != nil {
		if errors.Is(err, workspace.ErrMemberNotFound) {
			return ErrNotTenantMember
		}
		return fmt.Errorf("failed to load tenant membership: %w", err)
	}
	if err := s.repos.Members.AddProjectMember(ctx, &workspace.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}); err != nil {
		return err
	}
	s.membershipChanged(ctx, v, actorID, userID, role.String())
	return nil
}

// ListMembers returns the project's memberships.
func (s *Service) ListMembers(ctx context.Context, actorID, projectID string) ([]*workspace.ProjectMember, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.ViewProject); err != nil {
		return nil, err
	}
	return s.repos.Members.ListProjectMembers(ctx, projectID)
}

// ChangeRole sets a member's project role.
func (s *Service) ChangeRole(ctx context.Context, actorID, projectID, userID string, role workspace.Role) error {
	if !role.Valid() {
		return workspace.ErrInvalidRole
	}
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.ManageProjectMembers)
	if err != nil {
		return err
	}
	if err := s.repos.Members.UpdateProjectRole(ctx, projectID, userID, role); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleChanged,
		TenantID: v.TenantID,
		ActorID:  actorID,
		Resource: "project_member:" + userID,
		Metadata: map[string]any{audit.AttrRole: role.String(), audit.AttrTarget: projectID},
	})
	return nil
}

// RemoveMember drops userID from the project. Members may remove
// themselves; removing others requires Admin.
func (s *Service) RemoveMember(ctx context.Context, actorID, projectID, userID string) error {
	action := authz.ManageProjectMembers
	if actorID == userID {
		action = authz.ViewProject
	}
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), action)
	if err != nil {
		return err
	}
	if err := s.repos.Members.RemoveProjectMember(ctx, projectID, userID); err != nil {
		return err
	}
	s.membershipChanged(ctx, v, actorID, userID, "removed")
	return nil
}

// Delete removes the project with its sprints, issues, comments,
// assignments, memberships and pins.
func (s *Service) Delete(ctx context.Context, actorID, projectID string) (*cascade.Report, error) {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.DeleteProject)
	if err != nil {
		return nil, err
	}
	rep, err := s.engine.RemoveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProjectDeleted,
		TenantID: v.TenantID,
		ActorID:  actorID,
		Resource: "project:" + projectID,
	})
	return rep, nil
}

func (s *Service) membershipChanged(ctx context.Context, v authz.Verdict, actorID, userID, change string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMembershipChanged,
		TenantID: v.TenantID,
		ActorID:  actorID,
		Resource: "project_member:" + userID,
		Metadata: map[string]any{audit.AttrRole: change, audit.AttrTarget: v.ProjectID},
	})
}
