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

// Package workspace holds the tenant/project hierarchy shared by the
// authorization, deletion and domain services.
//
// Ancestry is carried as explicit ids on every row. A Comment knows its issue,
// project, sprint and tenant; an Issue knows its project, optional sprint and
// tenant. Nothing here holds a pointer to a parent.
package workspace

import (
	"strings"
	"time"

	"github.com/opentrusty/stride/internal/apperr"
)

// Domain errors
var (
	ErrTenantNotFound     = apperr.New(apperr.KindNotFound, "tenant not found")
	ErrProjectNotFound    = apperr.New(apperr.KindNotFound, "project not found")
	ErrSprintNotFound     = apperr.New(apperr.KindNotFound, "sprint not found")
	ErrIssueNotFound      = apperr.New(apperr.KindNotFound, "issue not found")
	ErrCommentNotFound    = apperr.New(apperr.KindNotFound, "comment not found")
	ErrMemberNotFound     = apperr.New(apperr.KindNotFound, "membership not found")
	ErrAssignmentNotFound = apperr.New(apperr.KindNotFound, "assignment not found")
	ErrPinNotFound        = apperr.New(apperr.KindNotFound, "pin not found")

	ErrAlreadyMember   = apperr.New(apperr.KindConflict, "already a member")
	ErrAlreadyAssigned = apperr.New(apperr.KindConflict, "already assigned")
	ErrAlreadyPinned   = apperr.New(apperr.KindConflict, "already pinned")
	ErrJoinCodeTaken   = apperr.New(apperr.KindConflict, "join code already in use")

	ErrInvalidRole     = apperr.New(apperr.KindValidation, "invalid role")
	ErrInvalidPinType  = apperr.New(apperr.KindValidation, "invalid pin type")
	ErrInvalidStatus   = apperr.New(apperr.KindValidation, "invalid status")
	ErrInvalidType     = apperr.New(apperr.KindValidation, "invalid issue type")
	ErrInvalidPriority = apperr.New(apperr.KindValidation, "invalid priority")
	ErrInvalidName     = apperr.New(apperr.KindValidation, "name is required")
	ErrInvalidTitle    = apperr.New(apperr.KindValidation, "title is required")
	ErrEmptyComment    = apperr.New(apperr.KindValidation, "comment body is required")
	ErrInvalidDates    = apperr.New(apperr.KindValidation, "sprint must end after it starts")
)

// Tenant is the top-level workspace. OwnerID alone grants destructive rights.
type Tenant struct {
	ID        string
	Name      string
	OwnerID   string
	JoinCode  string
	Keywords  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project belongs to exactly one tenant.
type Project struct {
	ID          string
	TenantID    string
	CreatorID   string
	Name        string
	Description string
	JoinCode    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

func (s SprintStatus) Valid() bool {
	switch s {
	case SprintPlanned, SprintActive, SprintCompleted:
		return true
	}
	return false
}

// Sprint groups issues within a project. TenantID is denormalized.
type Sprint struct {
	ID        string
	ProjectID string
	TenantID  string
	Name      string
	Goal      string
	Status    SprintStatus
	CreatedBy string
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type IssueStatus string

const (
	IssueTodo       IssueStatus = "todo"
	IssueInProgress IssueStatus = "in_progress"
	IssueInReview   IssueStatus = "in_review"
	IssueDone       IssueStatus = "done"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case IssueTodo, IssueInProgress, IssueInReview, IssueDone:
		return true
	}
	return false
}

type IssueType string

const (
	IssueTask  IssueType = "task"
	IssueBug   IssueType = "bug"
	IssueStory IssueType = "story"
	IssueEpic  IssueType = "epic"
)

func (t IssueType) Valid() bool {
	switch t {
	case IssueTask, IssueBug, IssueStory, IssueEpic:
		return true
	}
	return false
}

type IssuePriority string

const (
	PriorityLow      IssuePriority = "low"
	PriorityMedium   IssuePriority = "medium"
	PriorityHigh     IssuePriority = "high"
	PriorityCritical IssuePriority = "critical"
)

func (p IssuePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Issue is a work item. A nil SprintID places it in the project backlog.
type Issue struct {
	ID          string
	ProjectID   string
	SprintID    *string
	TenantID    string
	Title       string
	Description string
	Status      IssueStatus
	Type        IssueType
	Priority    IssuePriority
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InBacklog reports whether the issue is outside any sprint.
func (i *Issue) InBacklog() bool {
	return i.SprintID == nil
}

// Comment carries its full ancestry so deletions can match on any level.
type Comment struct {
	ID        string
	IssueID   string
	ProjectID string
	SprintID  *string
	TenantID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// TenantMember is the UserTenant edge.
type TenantMember struct {
	TenantID string
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// ProjectMember is the UserProject edge.
type ProjectMember struct {
	ProjectID string
	UserID    string
	Role      Role
	JoinedAt  time.Time
}

// Assignment marks a user as working on an issue. ProjectID and TenantID
// are denormalized from the issue.
type Assignment struct {
	IssueID    string
	ProjectID  string
	TenantID   string
	UserID     string
	AssignedAt time.Time
}

type PinType string

const (
	PinTenant  PinType = "Tenant"
	PinProject PinType = "Project"
	PinSprint  PinType = "Sprint"
	PinIssue   PinType = "Issue"
)

// ParsePinType accepts the pin type literals in any casing.
func ParsePinType(s string) (PinType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tenant":
		return PinTenant, nil
	case "project":
		return PinProject, nil
	case "sprint":
		return PinSprint, nil
	case "issue":
		return PinIssue, nil
	default:
		return "", ErrInvalidPinType
	}
}

// Pin is a user's shortcut to a tenant, project, sprint or issue. TenantID
// and ProjectID record the target's ancestry; ProjectID is empty for tenant
// pins.
type Pin struct {
	UserID    string
	Type      PinType
	TargetID  string
	TenantID  string
	ProjectID string
	CreatedAt time.Time
}
