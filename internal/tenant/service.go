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

// Package tenant implements tenant lifecycle and membership operations.
package tenant

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
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/workspace"
)

const (
	joinCodeLength = 6
	maxNameLength  = 120
)

var ErrOwnerImmutable = apperr.New(apperr.KindPermission, "the tenant owner's membership cannot be changed")

// Accounts is the slice of the identity service tenants need.
type Accounts interface {
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	SetPersonalTenant(ctx context.Context, userID, tenantID string) error
}

// Service provides tenant management business logic
type Service struct {
	repos       workspace.Repositories
	resolver    *authz.Resolver
	engine      *cascade.Engine
	accounts    Accounts
	auditLogger audit.Logger
}

// NewService creates a new tenant service
func NewService(
	repos workspace.Repositories,
	resolver *authz.Resolver,
	engine *cascade.Engine,
	accounts Accounts,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		repos:       repos,
		resolver:    resolver,
		engine:      engine,
		accounts:    accounts,
		auditLogger: auditLogger,
	}
}

// Create makes ownerID the owner and first Admin of a new tenant. The first
// tenant a user creates becomes their personal tenant.
func (s *Service) Create(ctx context.Context, ownerID, name, keywords string) (*workspace.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, workspace.ErrInvalidName
	}
	owner, err := s.accounts.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	t := &workspace.Tenant{
		ID:       id.NewUUIDv7(),
		Name:     name,
		OwnerID:  ownerID,
		Keywords: strings.TrimSpace(keywords),
	}
	member := &workspace.TenantMember{TenantID: t.ID, UserID: ownerID, Role: workspace.RoleAdmin}

	err = workspace.WithJoinCode(joinCodeLength, func(code string) error {
		t.JoinCode = code
		return s.repos.Tenants.Create(ctx, t, member)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	if owner.PersonalTenantID == nil {
		if err := s.accounts.SetPersonalTenant(ctx, ownerID, t.ID); err != nil {
			return nil, err
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		ActorID:  ownerID,
		Resource: "tenant",
	})
	return t, nil
}

// Get returns a tenant the actor is a member of.
func (s *Service) Get(ctx context.Context, actorID, tenantID string) (*workspace.Tenant, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.ViewTenant); err != nil {
		return nil, err
	}
	return s.repos.Tenants.GetByID(ctx, tenantID)
}

// ListForUser returns the tenants the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*workspace.Tenant, error) {
	tenants, err := s.repos.Tenants.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// Update changes name and keywords. Empty name keeps the current one.
func (s *Service) Update(ctx context.Context, actorID, tenantID, name, keywords string) (*workspace.Tenant, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.UpdateTenant); err != nil {
		return nil, err
	}
	t, err := s.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		if len(name) > maxNameLength {
			return nil, workspace.ErrInvalidName
		}
		t.Name = name
	}
	t.Keywords = strings.TrimSpace(keywords)

	if err := s.repos.Tenants.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return t, nil
}

// Join adds userID as a Developer of the tenant behind code.
func (s *Service) Join(ctx context.Context, userID, code string) (*workspace.Tenant, error) {
	t, err := s.repos.Tenants.GetByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	err = s.repos.Members.AddTenantMember(ctx, &workspace.TenantMember{
		TenantID: t.ID,
		UserID:   userID,
		Role:     workspace.RoleDeveloper,
	})
	if err != nil {
		if errors.Is(err, workspace.ErrAlreadyMember) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to join tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantJoined,
		TenantID: t.ID,
		ActorID:  userID,
		Resource: "tenant",
	})
	return t, nil
}

// ListMembers returns the tenant's memberships.
func (s *Service) ListMembers(ctx context.Context, actorID, tenantID string) ([]*workspace.TenantMember, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.ViewTenant); err != nil {
		return nil, err
	}
	return s.repos.Members.ListTenantMembers(ctx, tenantID)
}

// ChangeRole sets a member's tenant role. The owner's role is fixed.
func (s *Service) ChangeRole(ctx context.Context, actorID, tenantID, userID string, role workspace.Role) error {
	if !role.Valid() {
		return workspace.ErrInvalidRole
	}
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.ChangeTenantRole); err != nil {
		return err
	}
	if err := s.guardOwner(ctx, tenantID, userID); err != nil {
		return err
	}
	if err := s.repos.Members.UpdateTenantRole(ctx, tenantID, userID, role); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleChanged,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "tenant_member:" + userID,
		Metadata: map[string]any{audit.AttrRole: role.String()},
	})
	return nil
}

// RemoveMember removes userID from the tenant and from every project under
// it. Members may remove themselves; removing others requires Admin. The
// owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actorID, tenantID, userID string) error {
	action := authz.RemoveTenantMember
	if actorID == userID {
		action = authz.ViewTenant
	}
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), action); err != nil {
		return err
	}
	if err := s.guardOwner(ctx, tenantID, userID); err != nil {
		return err
	}
	if err := s.repos.Members.RemoveTenantMember(ctx, tenantID, userID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMemberRemoved,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "tenant_member:" + userID,
	})
	return nil
}

// Delete removes the tenant and everything under it. Only the owner may.
func (s *Service) Delete(ctx context.Context, actorID, tenantID string) (*cascade.Report, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Tenant(tenantID), authz.DeleteTenant); err != nil {
		return nil, err
	}
	rep, err := s.engine.RemoveTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantDeleted,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "tenant",
	})
	return rep, nil
}

func (s *Service) guardOwner(ctx context.Context, tenantID, userID string) error {
	t, err := s.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.OwnerID == userID {
		return ErrOwnerImmutable
	}
	return nil
}
