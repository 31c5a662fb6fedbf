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

// Package authz resolves whether a user may perform an action on a node of
// the tenant/project hierarchy.
package authz

import (
	"github.com/opentrusty/stride/internal/apperr"
	"github.com/opentrusty/stride/internal/workspace"
)

// Permission errors
var (
	ErrNotMember        = apperr.New(apperr.KindPermission, "not a member")
	ErrInsufficientRole = apperr.New(apperr.KindPermission, "insufficient role")
	ErrNotOwner         = apperr.New(apperr.KindPermission, "only the tenant owner may do this")
	ErrNotAssigned      = apperr.New(apperr.KindPermission, "issue is not assigned to you")
)

var (
	ErrUnknownAction = apperr.New(apperr.KindValidation, "unknown action")
	ErrScopeMismatch = apperr.New(apperr.KindValidation, "action does not apply to target")
)

// Decision is the outcome of a resolution.
type Decision int

const (
	DecisionAllow Decision = iota + 1
	DecisionDeny
	DecisionNotFound
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Reason explains a Deny.
type Reason string

const (
	ReasonNotMember        Reason = "not_member"
	ReasonInsufficientRole Reason = "insufficient_role"
	ReasonNotOwner         Reason = "not_owner"
	ReasonNotAssigned      Reason = "not_assigned"
)

// TargetKind names the level of the hierarchy a Target points at.
type TargetKind string

const (
	TargetTenant  TargetKind = "tenant"
	TargetProject TargetKind = "project"
	TargetSprint  TargetKind = "sprint"
	TargetIssue   TargetKind = "issue"
)

// Target is the entity an action is performed on.
type Target struct {
	Kind TargetKind
	ID   string
}

func Tenant(id string) Target  { return Target{Kind: TargetTenant, ID: id} }
func Project(id string) Target { return Target{Kind: TargetProject, ID: id} }
func Sprint(id string) Target  { return Target{Kind: TargetSprint, ID: id} }
func Issue(id string) Target   { return Target{Kind: TargetIssue, ID: id} }

// Verdict is the result of Resolve. TenantID and ProjectID are the resolved
// ancestors and Role is the role on the edge that was consulted.
type Verdict struct {
	Decision Decision
	Reason   Reason
	// Missing is the ancestor that could not be found when Decision is
	// DecisionNotFound.
	Missing   TargetKind
	TenantID  string
	ProjectID string
	Role      workspace.Role
	// AssignmentScoped is set when the caller may only see issues assigned
	// to them.
	AssignmentScoped bool
}

// Allowed reports whether the verdict permits the action.
func (v Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}

// Err returns nil for Allow and the matching domain error otherwise.
func (v Verdict) Err() error {
	switch v.Decision {
	case DecisionAllow:
		return nil
	case DecisionNotFound:
		switch v.Missing {
		case TargetTenant:
			return workspace.ErrTenantNotFound
		case TargetProject:
			return workspace.ErrProjectNotFound
		case TargetSprint:
			return workspace.ErrSprintNotFound
		default:
			return workspace.ErrIssueNotFound
		}
	}
	switch v.Reason {
	case ReasonNotMember:
		return ErrNotMember
	case ReasonNotOwner:
		return ErrNotOwner
	case ReasonNotAssigned:
		return ErrNotAssigned
	default:
		return ErrInsufficientRole
	}
}
