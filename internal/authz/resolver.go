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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/observability/metrics"
	"github.com/opentrusty/stride/internal/observability/tracing"
	"github.com/opentrusty/stride/internal/workspace"
)

// Resolver decides (user, target, action) triples. It holds no per-call
// state and never writes.
type Resolver struct {
	repos       workspace.Repositories
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	tracer      trace.Tracer
}

// NewResolver creates a new authorization resolver
func NewResolver(repos workspace.Repositories, auditLogger audit.Logger, instruments *metrics.Instruments) *Resolver {
	return &Resolver{
		repos:       repos,
		auditLogger: auditLogger,
		metrics:     instruments,
		tracer:      tracing.Named("authz"),
	}
}

// ancestry is the resolved chain from the target up to its tenant.
type ancestry struct {
	tenantID  string
	projectID string
	issueID   string
}

// Resolve walks the target's ancestry and checks the relevant membership
// edge. Missing ancestors produce DecisionNotFound before any membership is
// consulted. The error return is reserved for storage failures and invalid
// (action, target) combinations.
func (r *Resolver) Resolve(ctx context.Context, userID string, target Target, action Action) (Verdict, error) {
	ctx, span := r.tracer.Start(ctx, "authz.Resolve", trace.WithAttributes(
		attribute.String("authz.action", string(action)),
		attribute.String("authz.target", string(target.Kind)),
	))
	defer span.End()

	v, err := r.resolve(ctx, userID, target, action)
	if err != nil {
		tracing.Fail(span, err, "")
		return Verdict{}, err
	}

	span.SetAttributes(attribute.String("authz.decision", v.Decision.String()))
	r.metrics.AuthzDecision(ctx, string(action), v.Decision.String())
	if v.Decision == DecisionDeny {
		slog.DebugContext(ctx, "access denied",
			logger.UserID(userID),
			logger.TenantID(v.TenantID),
			logger.ProjectID(v.ProjectID),
			logger.Role(v.Role.String()),
			logger.Reason(string(v.Reason)),
		)
		r.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccessDenied,
			TenantID: v.TenantID,
			ActorID:  userID,
			Resource: string(target.Kind) + ":" + target.ID,
			Metadata: map[string]any{
				audit.AttrReason: string(v.Reason),
				"action":         string(action),
			},
		})
	}
	return v, nil
}

// Authorize is Resolve with the verdict folded into an error.
func (r *Resolver) Authorize(ctx context.Context, userID string, target Target, action Action) (Verdict, error) {
	v, err := r.Resolve(ctx, userID, target, action)
	if err != nil {
		return v, err
	}
	return v, v.Err()
}

func (r *Resolver) resolve(ctx context.Context, userID string, target Target, action Action) (Verdict, error) {
	rl, ok := policy[action]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if rl.scope == scopeProject && target.Kind == TargetTenant {
		return Verdict{}, fmt.Errorf("%w: %s on %s", ErrScopeMismatch, action, target.Kind)
	}
	if rl.assigned && target.Kind != TargetIssue {
		return Verdict{}, fmt.Errorf("%w: %s on %s", ErrScopeMismatch, action, target.Kind)
	}

	anc, missing, err := r.ancestors(ctx, target)
	if err != nil {
		return Verdict{}, err
	}
	if missing != "" {
		return Verdict{Decision: DecisionNotFound, Missing: missing}, nil
	}

	if rl.scope == scopeTenant {
		return r.resolveTenant(ctx, userID, anc, rl)
	}
	return r.resolveProject(ctx, userID, anc, rl)
}

func (r *Resolver) resolveTenant(ctx context.Context, userID string, anc ancestry, rl rule) (Verdict, error) {
	v := Verdict{TenantID: anc.tenantID, ProjectID: anc.projectID}

	tenant, err := r.repos.Tenants.GetByID(ctx, anc.tenantID)
	if err != nil {
		if errors.Is(err, workspace.ErrTenantNotFound) {
			return Verdict{Decision: DecisionNotFound, Missing: TargetTenant}, nil
		}
		return Verdict{}, fmt.Errorf("failed to load tenant: %w", err)
	}

	member, err := r.repos.Members.GetTenantMember(ctx, anc.tenantID, userID)
	if err != nil {
		if errors.Is(err, workspace.ErrMemberNotFound) {
			return deny(v, ReasonNotMember), nil
		}
		return Verdict{}, fmt.Errorf("failed to load tenant membership: %w", err)
	}
	v.Role = member.Role

	// Ownership is authoritative: no recorded role substitutes for it.
	if rl.owner {
		if tenant.OwnerID != userID {
			return deny(v, ReasonNotOwner), nil
		}
		v.Decision = DecisionAllow
		return v, nil
	}
	if !member.Role.AtLeast(rl.min) {
		return deny(v, ReasonInsufficientRole), nil
	}
	v.Decision = DecisionAllow
	return v, nil
}

func (r *Resolver) resolveProject(ctx context.Context, userID string, anc ancestry, rl rule) (Verdict, error) {
	v := Verdict{TenantID: anc.tenantID, ProjectID: anc.projectID}

	member, err := r.repos.Members.GetProjectMember(ctx, anc.projectID, userID)
	if err != nil {
		if errors.Is(err, workspace.ErrMemberNotFound) {
			return deny(v, ReasonNotMember), nil
		}
		return Verdict{}, fmt.Errorf("failed to load project membership: %w", err)
	}
	v.Role = member.Role

	if !member.Role.AtLeast(rl.min) {
		return deny(v, ReasonInsufficientRole), nil
	}

	if member.Role == workspace.RoleDeveloper {
		if rl.assigned {
			ok, err := r.repos.Assignments.IsAssigned(ctx, anc.issueID, userID)
			if err != nil {
				return Verdict{}, fmt.Errorf("failed to check assignment: %w", err)
			}
			if !ok {
				return deny(v, ReasonNotAssigned), nil
			}
		}
		v.AssignmentScoped = rl.read
	}

	v.Decision = DecisionAllow
	return v, nil
}

// ancestors resolves the target up to its tenant. A non-empty TargetKind
// names the first ancestor that does not exist.
func (r *Resolver) ancestors(ctx context.Context, target Target) (ancestry, TargetKind, error) {
	var anc ancestry
	projectID := ""

	switch target.Kind {
	case TargetTenant:
		anc.tenantID = target.ID
		return anc, "", nil

	case TargetProject:
		projectID = target.ID

	case TargetSprint:
		sprint, err := r.repos.Sprints.GetByID(ctx, target.ID)
		if err != nil {
			if errors.Is(err, workspace.ErrSprintNotFound) {
				return anc, TargetSprint, nil
			}
			return anc, "", fmt.Errorf("failed to load sprint: %w", err)
		}
		projectID = sprint.ProjectID

	case TargetIssue:
		issue, err := r.repos.Issues.GetByID(ctx, target.ID)
		if err != nil {
			if errors.Is(err, workspace.ErrIssueNotFound) {
				return anc, TargetIssue, nil
			}
			return anc, "", fmt.Errorf("failed to load issue: %w", err)
		}
		anc.issueID = issue.ID
		projectID = issue.ProjectID
		if issue.SprintID != nil {
			sprint, err := r.repos.Sprints.GetByID(ctx, *issue.SprintID)
			if err != nil {
				if errors.Is(err, workspace.ErrSprintNotFound) {
					return anc, TargetSprint, nil
				}
				return anc, "", fmt.Errorf("failed to load sprint: %w", err)
			}
			projectID = sprint.ProjectID
		}

	default:
		return anc, "", fmt.Errorf("%w: target kind %q", ErrScopeMismatch, target.Kind)
	}

	project, err := r.repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, workspace.ErrProjectNotFound) {
			return anc, TargetProject, nil
		}
		return anc, "", fmt.Errorf("failed to load project: %w", err)
	}
	anc.projectID = project.ID
	anc.tenantID = project.TenantID
	return anc, "", nil
}

// FilterIssues narrows issues to those assigned to userID when the verdict
// is assignment-scoped. Other verdicts pass issues through unchanged.
func (r *Resolver) FilterIssues(ctx context.Context, userID string, v Verdict, issues []*workspace.Issue) ([]*workspace.Issue, error) {
	if !v.AssignmentScoped {
		return issues, nil
	}

	ids, err := r.repos.Assignments.AssignedIssueIDs(ctx, v.ProjectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	assigned := make(map[string]struct{}, len(ids))
	for _, issueID := range ids {
		assigned[issueID] = struct{}{}
	}

	out := make([]*workspace.Issue, 0, len(ids))
	for _, issue := range issues {
		if _, ok := assigned[issue.ID]; ok {
			out = append(out, issue)
		}
	}
	slog.DebugContext(ctx, "issues filtered by assignment",
		logger.UserID(userID),
		logger.ProjectID(v.ProjectID),
		slog.Int("visible", len(out)),
		slog.Int("total", len(issues)),
	)
	return out, nil
}

func deny(v Verdict, reason Reason) Verdict {
	v.Decision = DecisionDeny
	v.Reason = reason
	return v
}
