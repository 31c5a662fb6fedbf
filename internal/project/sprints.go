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
	"fmt"
	"strings"
	"time"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/id"
	"github.com/opentrusty/stride/internal/workspace"
)

// SprintInput carries sprint fields. On update, zero values keep the
// current ones.
type SprintInput struct {
	Name     string
	Goal     string
	Status   workspace.SprintStatus
	StartsAt *time.Time
	EndsAt   *time.Time
}

// CreateSprint adds a planned sprint to the project.
func (s *Service) CreateSprint(ctx context.Context, actorID, projectID string, in SprintInput) (*workspace.Sprint, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, workspace.ErrInvalidName
	}
	if err := checkDates(in.StartsAt, in.EndsAt); err != nil {
		return nil, err
	}
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.CreateSprint)
	if err != nil {
		return nil, err
	}

	sp := &workspace.Sprint{
		ID:        id.NewUUIDv7(),
		ProjectID: projectID,
		TenantID:  v.TenantID,
		Name:      name,
		Goal:      strings.TrimSpace(in.Goal),
		Status:    workspace.SprintPlanned,
		CreatedBy: actorID,
		StartsAt:  in.StartsAt,
		EndsAt:    in.EndsAt,
	}
	if err := s.repos.Sprints.Create(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to create sprint: %w", err)
	}
	return sp, nil
}

// GetSprint returns a sprint of a project the actor belongs to.
func (s *Service) GetSprint(ctx context.Context, actorID, sprintID string) (*workspace.Sprint, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Sprint(sprintID), authz.ViewSprint); err != nil {
		return nil, err
	}
	return s.repos.Sprints.GetByID(ctx, sprintID)
}

// ListSprints returns the project's sprints.
func (s *Service) ListSprints(ctx context.Context, actorID, projectID string) ([]*workspace.Sprint, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.ViewSprint); err != nil {
		return nil, err
	}
	return s.repos.Sprints.ListByProject(ctx, projectID)
}

// UpdateSprint changes name, goal, status and dates.
func (s *Service) UpdateSprint(ctx context.Context, actorID, sprintID string, in SprintInput) (*workspace.Sprint, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, workspace.ErrInvalidStatus
	}
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Sprint(sprintID), authz.UpdateSprint); err != nil {
		return nil, err
	}
	sp, err := s.repos.Sprints.GetByID(ctx, sprintID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		if len(name) > maxNameLength {
			return nil, workspace.ErrInvalidName
		}
		sp.Name = name
	}
	if goal := strings.TrimSpace(in.Goal); goal != "" {
		sp.Goal = goal
	}
	if in.Status != "" {
		sp.Status = in.Status
	}
	if in.StartsAt != nil {
		sp.StartsAt = in.StartsAt
	}
	if in.EndsAt != nil {
		sp.EndsAt = in.EndsAt
	}
	if err := checkDates(sp.StartsAt, sp.EndsAt); err != nil {
		return nil, err
	}

	if err := s.repos.Sprints.Update(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to update sprint: %w", err)
	}
	return sp, nil
}

// DeleteSprint removes a sprint. Its issues move back to the backlog.
func (s *Service) DeleteSprint(ctx context.Context, actorID, sprintID string) (*cascade.Report, error) {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Sprint(sprintID), authz.DeleteSprint)
	if err != nil {
		return nil, err
	}
	rep, err := s.engine.RemoveSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSprintDeleted,
		TenantID: v.TenantID,
		ActorID:  actorID,
		Resource: "sprint:" + sprintID,
	})
	return rep, nil
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return workspace.ErrInvalidDates
	}
	return nil
}
