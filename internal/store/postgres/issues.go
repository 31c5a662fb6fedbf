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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/stride/internal/workspace"
)

// IssueRepository implements workspace.IssueRepository
type IssueRepository struct {
	db *DB
}

const issueColumns = `id, project_id, sprint_id, tenant_id, title, description,
	status, type, priority, created_by, created_at, updated_at`

// Create inserts an issue
func (r *IssueRepository) Create(ctx context.Context, i *workspace.Issue) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO issues (id, project_id, sprint_id, tenant_id, title, description,
			status, type, priority, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, i.ID, i.ProjectID, i.SprintID, i.TenantID, i.Title, i.Description,
		string(i.Status), string(i.Type), string(i.Priority), i.CreatedBy, now)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	i.CreatedAt, i.UpdatedAt = now, now
	return nil
}

// GetByID retrieves an issue by ID
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*workspace.Issue, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	i, err := scanIssue(r.db.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	return i, nil
}

// Update writes the sprint placement, text and tags. The issue's comments
// are moved to the same sprint in the same transaction.
func (r *IssueRepository) Update(ctx context.Context, i *workspace.Issue) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE issues SET
				sprint_id = $2,
				title = $3,
				description = $4,
				status = $5,
				type = $6,
				priority = $7,
				updated_at = $8
			WHERE id = $1
		`, i.ID, i.SprintID, i.Title, i.Description, string(i.Status), string(i.Type), string(i.Priority), now)
		if err != nil {
			return fmt.Errorf("failed to update issue: %w", err)
		}
		if result.RowsAffected() == 0 {
			return workspace.ErrIssueNotFound
		}
		if _, err := tx.Exec(ctx,
			`UPDATE comments SET sprint_id = $2 WHERE issue_id = $1 AND sprint_id IS DISTINCT FROM $2`,
			i.ID, i.SprintID); err != nil {
			return fmt.Errorf("failed to move issue comments: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	i.UpdatedAt = now
	return nil
}

// ListBySprint lists a sprint's issues, oldest first
func (r *IssueRepository) ListBySprint(ctx context.Context, sprintID string) ([]*workspace.Issue, error) {
	return r.list(ctx, `SELECT `+issueColumns+` FROM issues WHERE sprint_id = $1 ORDER BY created_at, id`, sprintID)
}

// ListBacklog lists a project's issues outside any sprint, oldest first
func (r *IssueRepository) ListBacklog(ctx context.Context, projectID string) ([]*workspace.Issue, error) {
	return r.list(ctx, `SELECT `+issueColumns+` FROM issues WHERE project_id = $1 AND sprint_id IS NULL ORDER BY created_at, id`, projectID)
}

func (r *IssueRepository) list(ctx context.Context, query, arg string) ([]*workspace.Issue, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Issue, error) {
		return scanIssue(row)
	})
}

func scanIssue(row pgx.Row) (*workspace.Issue, error) {
	var (
		i                        workspace.Issue
		status, typ, priority string
	)
	err := row.Scan(&i.ID, &i.ProjectID, &i.SprintID, &i.TenantID, &i.Title, &i.Description,
		&status, &typ, &priority, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = workspace.IssueStatus(status)
	i.Type = workspace.IssueType(typ)
	i.Priority = workspace.IssuePriority(priority)
	return &i, nil
}

// AssignmentRepository implements workspace.AssignmentRepository
type AssignmentRepository struct {
	db *DB
}

// Assign inserts an assignment
func (r *AssignmentRepository) Assign(ctx context.Context, a *workspace.Assignment) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO issue_assignments (issue_id, project_id, tenant_id, user_id, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.IssueID, a.ProjectID, a.TenantID, a.UserID, now)
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "issue_assignments_pkey" {
			return workspace.ErrAlreadyAssigned
		}
		return fmt.Errorf("failed to assign issue: %w", err)
	}
	a.AssignedAt = now
	return nil
}

// Unassign deletes an assignment
func (r *AssignmentRepository) Unassign(ctx context.Context, issueID, userID string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM issue_assignments WHERE issue_id = $1 AND user_id = $2
	`, issueID, userID)
	if err != nil {
		return fmt.Errorf("failed to unassign issue: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrAssignmentNotFound
	}
	return nil
}

// IsAssigned reports whether the user is assigned to the issue
func (r *AssignmentRepository) IsAssigned(ctx context.Context, issueID, userID string) (bool, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	var ok bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM issue_assignments WHERE issue_id = $1 AND user_id = $2)
	`, issueID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return ok, nil
}

// ListAssignees lists an issue's assignments, oldest first
func (r *AssignmentRepository) ListAssignees(ctx context.Context, issueID string) ([]*workspace.Assignment, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT issue_id, project_id, tenant_id, user_id, assigned_at
		FROM issue_assignments
		WHERE issue_id = $1
		ORDER BY assigned_at, user_id
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignees: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Assignment, error) {
		var a workspace.Assignment
		if err := row.Scan(&a.IssueID, &a.ProjectID, &a.TenantID, &a.UserID, &a.AssignedAt); err != nil {
			return nil, err
		}
		return &a, nil
	})
}

// AssignedIssueIDs lists the ids of the user's assigned issues in a project
func (r *AssignmentRepository) AssignedIssueIDs(ctx context.Context, projectID, userID string) ([]string, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT issue_id FROM issue_assignments
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned issues: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan assigned issues: %w", err)
	}
	return ids, nil
}

// CommentRepository implements workspace.CommentRepository
type CommentRepository struct {
	db *DB
}

// Create inserts a comment
func (r *CommentRepository) Create(ctx context.Context, c *workspace.Comment) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO comments (id, issue_id, project_id, sprint_id, tenant_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.IssueID, c.ProjectID, c.SprintID, c.TenantID, c.AuthorID, c.Body, now)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	c.CreatedAt = now
	return nil
}

// ListByIssue lists an issue's comments, oldest first
func (r *CommentRepository) ListByIssue(ctx context.Context, issueID string) ([]*workspace.Comment, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, issue_id, project_id, sprint_id, tenant_id, author_id, body, created_at
		FROM comments
		WHERE issue_id = $1
		ORDER BY created_at, id
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Comment, error) {
		var c workspace.Comment
		err := row.Scan(&c.ID, &c.IssueID, &c.ProjectID, &c.SprintID, &c.TenantID, &c.AuthorID, &c.Body, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &c, nil
	})
}

// PinRepository implements workspace.PinRepository
type PinRepository struct {
	db *DB
}

// Create inserts a pin
func (r *PinRepository) Create(ctx context.Context, p *workspace.Pin) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO pins (user_id, pin_type, target_id, tenant_id, project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.UserID, string(p.Type), p.TargetID, p.TenantID, nullable(p.ProjectID), now)
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "pins_pkey" {
			return workspace.ErrAlreadyPinned
		}
		return fmt.Errorf("failed to create pin: %w", err)
	}
	p.CreatedAt = now
	return nil
}

// Delete removes a pin
func (r *PinRepository) Delete(ctx context.Context, userID string, pinType workspace.PinType, targetID string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM pins WHERE user_id = $1 AND pin_type = $2 AND target_id = $3
	`, userID, string(pinType), targetID)
	if err != nil {
		return fmt.Errorf("failed to delete pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrPinNotFound
	}
	return nil
}

// ListForUser lists the user's pins, oldest first
func (r *PinRepository) ListForUser(ctx context.Context, userID string) ([]*workspace.Pin, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT user_id, pin_type, target_id, tenant_id, project_id, created_at
		FROM pins
		WHERE user_id = $1
		ORDER BY created_at, target_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Pin, error) {
		var (
			p         workspace.Pin
			pinType   string
			projectID *string
		)
		if err := row.Scan(&p.UserID, &pinType, &p.TargetID, &p.TenantID, &projectID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Type = workspace.PinType(pinType)
		p.ProjectID = deref(projectID)
		return &p, nil
	})
}
