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

package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/observability/metrics"
	"github.com/opentrusty/stride/internal/observability/tracing"
	"github.com/opentrusty/stride/internal/workspace"
)

// Root kinds, used in reports, spans and metrics.
const (
	RootTenant  = "tenant"
	RootProject = "project"
	RootSprint  = "sprint"
	RootIssue   = "issue"
	RootUser    = "user"
)

// step deletes rows of table whose column equals the root id.
type step struct {
	table  Table
	column Column
}

// Children strictly before parents.
var projectSteps = []step{
	{TableComments, ColProjectID},
	{TableAssignments, ColProjectID},
	{TableIssues, ColProjectID},
	{TableSprints, ColProjectID},
	{TableProjectMembers, ColProjectID},
	{TablePins, ColProjectID},
	{TableProjects, ColID},
}

var issueSteps = []step{
	{TableComments, ColIssueID},
	{TableAssignments, ColIssueID},
	{TablePins, ColTargetID},
	{TableIssues, ColID},
}

// Rows that only reference the user, removed after every owned root.
var userSteps = []step{
	{TableComments, ColAuthorID},
	{TableAssignments, ColUserID},
	{TableProjectMembers, ColUserID},
	{TableTenantMembers, ColUserID},
	{TablePins, ColUserID},
	{TableRefreshTokens, ColUserID},
	{TablePasswordResets, ColUserID},
	{TableCredentials, ColUserID},
	{TableUsers, ColID},
}

// Engine runs cascade removals.
type Engine struct {
	store       Store
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	tracer      trace.Tracer
}

// NewEngine creates a new cascade engine
func NewEngine(store Store, auditLogger audit.Logger, instruments *metrics.Instruments) *Engine {
	return &Engine{
		store:       store,
		auditLogger: auditLogger,
		metrics:     instruments,
		tracer:      tracing.Named("cascade"),
	}
}

// RemoveProject deletes a project and its full dependent closure.
func (e *Engine) RemoveProject(ctx context.Context, projectID string) (*Report, error) {
	return e.run(ctx, RootProject, projectID, func(ctx context.Context, tx Tx, rep *Report) error {
		if err := mustExist(ctx, tx, TableProjects, projectID, workspace.ErrProjectNotFound); err != nil {
			return err
		}
		return removeProject(ctx, tx, rep, projectID)
	})
}

// RemoveTenant deletes every project of the tenant with its closure, then the
// tenant's memberships, pins and the tenant itself.
func (e *Engine) RemoveTenant(ctx context.Context, tenantID string) (*Report, error) {
	return e.run(ctx, RootTenant, tenantID, func(ctx context.Context, tx Tx, rep *Report) error {
		if err := mustExist(ctx, tx, TableTenants, tenantID, workspace.ErrTenantNotFound); err != nil {
			return err
		}
		return removeTenant(ctx, tx, rep, tenantID)
	})
}

// RemoveSprint deletes a sprint. Its issues return to the project backlog.
func (e *Engine) RemoveSprint(ctx context.Context, sprintID string) (*Report, error) {
	return e.run(ctx, RootSprint, sprintID, func(ctx context.Context, tx Tx, rep *Report) error {
		if err := mustExist(ctx, tx, TableSprints, sprintID, workspace.ErrSprintNotFound); err != nil {
			return err
		}
		return removeSprint(ctx, tx, rep, sprintID)
	})
}

// RemoveIssue deletes an issue with its comments, assignments and pins.
func (e *Engine) RemoveIssue(ctx context.Context, issueID string) (*Report, error) {
	return e.run(ctx, RootIssue, issueID, func(ctx context.Context, tx Tx, rep *Report) error {
		if err := mustExist(ctx, tx, TableIssues, issueID, workspace.ErrIssueNotFound); err != nil {
			return err
		}
		return apply(ctx, tx, rep, issueSteps, issueID)
	})
}

// RemoveUserAccount deletes the user's owned tenants and created projects
// (each with its full closure), authored issues and sprints, every edge and
// row referencing the user, and finally the identity record.
func (e *Engine) RemoveUserAccount(ctx context.Context, userID string) (*Report, error) {
	return e.run(ctx, RootUser, userID, func(ctx context.Context, tx Tx, rep *Report) error {
		if err := mustExist(ctx, tx, TableUsers, userID, identity.ErrUserNotFound); err != nil {
			return err
		}

		tenants, err := tx.IDs(ctx, TableTenants, ColOwnerID, userID)
		if err != nil {
			return err
		}
		for _, tenantID := range tenants {
			if err := removeTenant(ctx, tx, rep, tenantID); err != nil {
				return err
			}
		}

		projects, err := tx.IDs(ctx, TableProjects, ColCreatorID, userID)
		if err != nil {
			return err
		}
		for _, projectID := range projects {
			if err := removeProject(ctx, tx, rep, projectID); err != nil {
				return err
			}
		}

		issues, err := tx.IDs(ctx, TableIssues, ColCreatedBy, userID)
		if err != nil {
			return err
		}
		for _, issueID := range issues {
			if err := apply(ctx, tx, rep, issueSteps, issueID); err != nil {
				return err
			}
		}

		sprints, err := tx.IDs(ctx, TableSprints, ColCreatedBy, userID)
		if err != nil {
			return err
		}
		for _, sprintID := range sprints {
			if err := removeSprint(ctx, tx, rep, sprintID); err != nil {
				return err
			}
		}

		return apply(ctx, tx, rep, userSteps, userID)
	})
}

func (e *Engine) run(ctx context.Context, root, rootID string, fn func(context.Context, Tx, *Report) error) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.Remove", trace.WithAttributes(
		attribute.String("cascade.root", root),
		attribute.String("cascade.root_id", rootID),
	))
	defer span.End()

	start := time.Now()
	var rep *Report
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		rep = &Report{Root: root, RootID: rootID, Counts: make(map[Table]int64)}
		return fn(ctx, tx, rep)
	})
	if err != nil {
		tracing.Fail(span, err, "cascade rolled back")
		slog.WarnContext(ctx, "cascade removal rolled back",
			logger.Target(root, rootID),
			logger.Error(err),
		)
		return nil, err
	}

	elapsed := time.Since(start)
	total := rep.Total()
	span.SetAttributes(attribute.Int64("cascade.rows", total))
	e.metrics.CascadeDeleted(ctx, root, total, float64(elapsed.Microseconds())/1000)
	e.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCascadeCompleted,
		Resource: root + ":" + rootID,
		Metadata: map[string]any{audit.AttrCounts: rep.counts()},
	})
	slog.InfoContext(ctx, "cascade removal committed",
		logger.Target(root, rootID),
		logger.RowsAffected(total),
		logger.Duration(elapsed.Milliseconds()),
	)
	return rep, nil
}

func removeProject(ctx context.Context, tx Tx, rep *Report, projectID string) error {
	return apply(ctx, tx, rep, projectSteps, projectID)
}

func removeTenant(ctx context.Context, tx Tx, rep *Report, tenantID string) error {
	projects, err := tx.IDs(ctx, TableProjects, ColTenantID, tenantID)
	if err != nil {
		return err
	}
	for _, projectID := range projects {
		if err := removeProject(ctx, tx, rep, projectID); err != nil {
			return err
		}
	}

	if err := apply(ctx, tx, rep, []step{
		{TableTenantMembers, ColTenantID},
		{TablePins, ColTenantID},
	}, tenantID); err != nil {
		return err
	}
	n, err := tx.Detach(ctx, TableUsers, ColPersonalTenant, tenantID)
	if err != nil {
		return fmt.Errorf("failed to detach personal tenant: %w", err)
	}
	rep.add(TableUsers, n)
	return apply(ctx, tx, rep, []step{{TableTenants, ColID}}, tenantID)
}

func removeSprint(ctx context.Context, tx Tx, rep *Report, sprintID string) error {
	for _, t := range []Table{TableIssues, TableComments} {
		n, err := tx.Detach(ctx, t, ColSprintID, sprintID)
		if err != nil {
			return fmt.Errorf("failed to detach %s from sprint: %w", t, err)
		}
		rep.add(t, n)
	}
	return apply(ctx, tx, rep, []step{
		{TablePins, ColTargetID},
		{TableSprints, ColID},
	}, sprintID)
}

func apply(ctx context.Context, tx Tx, rep *Report, steps []step, value string) error {
	for _, s := range steps {
		n, err := tx.Delete(ctx, s.table, s.column, value)
		if err != nil {
			return fmt.Errorf("failed to delete from %s by %s: %w", s.table, s.column, err)
		}
		rep.add(s.table, n)
	}
	return nil
}

func mustExist(ctx context.Context, tx Tx, table Table, rootID string, notFound error) error {
	ok, err := tx.Exists(ctx, table, rootID)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", table, err)
	}
	if !ok {
		return notFound
	}
	return nil
}
