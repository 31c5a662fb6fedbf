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

// Package pin manages a user's pinned tenants, projects, sprints and issues.
package pin

import (
	"context"
	"fmt"

	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/workspace"
)

// Service provides pinned item operations
type Service struct {
	repo     workspace.PinRepository
	resolver *authz.Resolver
}

// NewService creates a new pin service
func NewService(repo workspace.PinRepository, resolver *authz.Resolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// Pin adds a shortcut for the user. The target must exist and be viewable by
// the user.
func (s *Service) Pin(ctx context.Context, userID, pinType, targetID string) (*workspace.Pin, error) {
	pt, err := workspace.ParsePinType(pinType)
	if err != nil {
		return nil, err
	}
	target, action := targetFor(pt, targetID)
	v, err := s.resolver.Authorize(ctx, userID, target, action)
	if err != nil {
		return nil, err
	}

	p := &workspace.Pin{
		UserID:   userID,
		Type:     pt,
		TargetID: targetID,
		TenantID: v.TenantID,
	}
	if pt != workspace.PinTenant {
		p.ProjectID = v.ProjectID
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Unpin removes a shortcut.
func (s *Service) Unpin(ctx context.Context, userID, pinType, targetID string) error {
	pt, err := workspace.ParsePinType(pinType)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID, pt, targetID)
}

// List returns the user's pins, oldest first.
func (s *Service) List(ctx context.Context, userID string) ([]*workspace.Pin, error) {
	pins, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return pins, nil
}

func targetFor(pt workspace.PinType, targetID string) (authz.Target, authz.Action) {
	switch pt {
	case workspace.PinTenant:
		return authz.Tenant(targetID), authz.ViewTenant
	case workspace.PinProject:
		return authz.Project(targetID), authz.ViewProject
	case workspace.PinSprint:
		return authz.Sprint(targetID), authz.ViewSprint
	default:
		return authz.Issue(targetID), authz.ViewIssue
	}
}
