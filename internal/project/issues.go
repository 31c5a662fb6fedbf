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
	"errors"
	"fmt"
	"strings"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/id"
	"github.com/opentrusty/stride/internal/workspace"
)

const maxTitleLength = 200

// IssueInput carries issue fields. On update, zero values keep the current
// ones.
type IssueInput struct {
	Title       string
	Description string
	Status      workspace.IssueStatus
	Type        workspace.IssueType
	Priority    workspace.IssuePriority
	// SprintID is only read on create; use MoveIssue afterwards.
	SprintID *string
}

func (in IssueInput) validate() error {
	if in.Status != "" && !in.Status.Valid() {
		return workspace.ErrInvalidStatus
	}
	if in.Type != "" && !in.Type.Valid() {
		return workspace.ErrInvalidType
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return workspace.ErrInvalidPriority
	}
	if len(in.Title) > maxTitleLength {
		return workspace.ErrInvalidTitle
	}
	return nil
}

// CreateIssue adds an issue to the project backlog or to one of its sprints.
func (s *Service) CreateIssue(ctx context.Context, actorID, projectID string, in IssueInput) (*workspace.Issue, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, workspace.ErrInvalidTitle
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.CreateIssue)
	if err != nil {
		return nil, err
	}
	if in.SprintID != nil {
		if err := s.sprintInProject(ctx, *in.SprintID, projectID); err != nil {
			return nil, err
		}
	}

	issue := &workspace.Issue{
		ID:          id.NewUUIDv7(),
		ProjectID:   projectID,
		SprintID:    in.SprintID,
		TenantID:    v.TenantID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Status:      orDefault(in.Status, workspace.IssueTodo),
		Type:        orDefault(in.Type, workspace.IssueTask),
		Priority:    orDefault(in.Priority, workspace.PriorityMedium),
		CreatedBy:   actorID,
	}
	if err := s.repos.Issues.Create(ctx, issue); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return issue, nil
}

// GetIssue returns an issue. Developers only see issues assigned to them.
func (s *Service) GetIssue(ctx context.Context, actorID, issueID string) (*workspace.Issue, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.ViewIssue); err != nil {
		return nil, err
	}
	return s.repos.Issues.GetByID(ctx, issueID)
}

// UpdateIssue edits an issue's text and tags.
func (s *Service) UpdateIssue(ctx context.Context, actorID, issueID string, in IssueInput) (*workspace.Issue, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.UpdateIssue); err != nil {
		return nil, err
	}
	issue, err := s.repos.Issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		issue.Title = title
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		issue.Description = desc
	}
	issue.Status = orDefault(in.Status, issue.Status)
	issue.Type = orDefault(in.Type, issue.Type)
	issue.Priority = orDefault(in.Priority, issue.Priority)

	if err := s.repos.Issues.Update(ctx, issue); err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	return issue, nil
}

// MoveIssue places the issue in a sprint of the same project, or in the
// backlog when sprintID is nil.
func (s *Service) MoveIssue(ctx context.Context, actorID, issueID string, sprintID *string) (*workspace.Issue, error) {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.MoveIssue)
	if err != nil {
		return nil, err
	}
	if sprintID != nil {
		if err := s.sprintInProject(ctx, *sprintID, v.ProjectID); err != nil {
			return nil, err
		}
	}
	issue, err := s.repos.Issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	issue.SprintID = sprintID
	if err := s.repos.Issues.Update(ctx, issue); err != nil {
		return nil, fmt.Errorf("failed to move issue: %w", err)
	}
	return issue, nil
}

// DeleteIssue removes an issue with its comments, assignments and pins.
func (s *Service) DeleteIssue(ctx context.Context, actorID, issueID string) (*cascade.Report, error) {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.DeleteIssue)
	if err != nil {
		return nil, err
	}
	rep, err := s.engine.RemoveIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIssueDeleted,
		TenantID: v.TenantID,
		ActorID:  actorID,
		Resource: "issue:" + issueID,
	})
	return rep, nil
}

// AssignIssue assigns a project member to the issue.
func (s *Service) AssignIssue(ctx context.Context, actorID, issueID, userID string) error {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.AssignIssue)
	if err != nil {
		return err
	}
	if _, err := s.repos.Members.GetProjectMember(ctx, v.ProjectID, userID); err != nil {
		if errors.Is(err, workspace.ErrMemberNotFound) {
			return ErrNotProjectMember
		}
		return fmt.Errorf("failed to load project membership: %w", err)
	}
	if err := s.repos.Assignments.Assign(ctx, &workspace.Assignment{
		IssueID:   issueID,
		ProjectID: v.ProjectID,
		TenantID:  v.TenantID,
		UserID:    userID,
	}); err != nil {
		return err
	}
	s.assignmentChanged(ctx, v, actorID, issueID, userID, "assigned")
	return nil
}

// UnassignIssue removes an assignment.
func (s *Service) UnassignIssue(ctx context.Context, actorID, issueID, userID string) error {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.AssignIssue)
	if err != nil {
		return err
	}
	if err := s.repos.Assignments.Unassign(ctx, issueID, userID); err != nil {
		return err
	}
	s.assignmentChanged(ctx, v, actorID, issueID, userID, "unassigned")
	return nil
}

// ListAssignees returns who is assigned to the issue.
func (s *Service) ListAssignees(ctx context.Context, actorID, issueID string) ([]*workspace.Assignment, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.ViewIssue); err != nil {
		return nil, err
	}
	return s.repos.Assignments.ListAssignees(ctx, issueID)
}

// ListSprintIssues lists the sprint's issues, narrowed to the caller's
// assignments for Developers.
func (s *Service) ListSprintIssues(ctx context.Context, actorID, sprintID string) ([]*workspace.Issue, error) {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Sprint(sprintID), authz.ListIssues)
	if err != nil {
		return nil, err
	}
	issues, err := s.repos.Issues.ListBySprint(ctx, sprintID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return s.resolver.FilterIssues(ctx, actorID, v, issues)
}

// ListBacklog lists the project's issues outside any sprint, narrowed to the
// caller's assignments for Developers.
func (s *Service) ListBacklog(ctx context.Context, actorID, projectID string) ([]*workspace.Issue, error) {
	v, err := s.resolver.Authorize(ctx, actorID, authz.Project(projectID), authz.ListIssues)
	if err != nil {
		return nil, err
	}
	issues, err := s.repos.Issues.ListBacklog(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backlog: %w", err)
	}
	return s.resolver.FilterIssues(ctx, actorID, v, issues)
}

// AddComment posts a comment on an issue.
func (s *Service) AddComment(ctx context.Context, actorID, issueID, body string) (*workspace.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, workspace.ErrEmptyComment
	}
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.CommentIssue); err != nil {
		return nil, err
	}
	issue, err := s.repos.Issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	c := &workspace.Comment{
		ID:        id.NewUUIDv7(),
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		SprintID:  issue.SprintID,
		TenantID:  issue.TenantID,
		AuthorID:  actorID,
		Body:      body,
	}
	if err := s.repos.Comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return c, nil
}

// ListComments returns an issue's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, actorID, issueID string) ([]*workspace.Comment, error) {
	if _, err := s.resolver.Authorize(ctx, actorID, authz.Issue(issueID), authz.ViewIssue); err != nil {
		return nil, err
	}
	return s.repos.Comments.ListByIssue(ctx, issueID)
}

func (s *Service) sprintInProject(ctx context.Context, sprintID, projectID string) error {
	sp, err := s.repos.Sprints.GetByID(ctx, sprintID)
	if err != nil {
		return err
	}
	if sp.ProjectID != projectID {
		return workspace.ErrSprintNotFound
	}
	return nil
}

func (s *Service) assignmentChanged(ctx context.Context, v authz.Verdict, actorID, issueID, userID, change string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIssueReassigned,
		TenantID: v.TenantID,
		ActorID:  actorID,
		Resource: "issue:" + issueID,
		Metadata: map[string]any{"user_id": userID, "change": change},
	})
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
