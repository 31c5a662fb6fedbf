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

// ProjectRepository implements workspace.ProjectRepository
type ProjectRepository struct {
	db *DB
}

const projectColumns = `id, tenant_id, creator_id, name, description, join_code, created_at, updated_at`

// Create inserts the project and the creator's membership in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, p *workspace.Project, creator *workspace.ProjectMember) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO projects (id, tenant_id, creator_id, name, description, join_code, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, p.ID, p.TenantID, p.CreatorID, p.Name, p.Description, p.JoinCode, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO project_members (project_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, p.ID, creator.UserID, creator.Role.String(), now)
		return err
	})
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "projects_join_code_key" {
			return workspace.ErrJoinCodeTaken
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	creator.JoinedAt = now
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*workspace.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

// GetByJoinCode retrieves a project by its join code
func (r *ProjectRepository) GetByJoinCode(ctx context.Context, code string) (*workspace.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE join_code = $1`, code)
}

func (r *ProjectRepository) getOne(ctx context.Context, query, arg string) (*workspace.Project, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	p, err := scanProject(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// Update writes name and description
func (r *ProjectRepository) Update(ctx context.Context, p *workspace.Project) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE projects SET name = $2, description = $3, updated_at = $4 WHERE id = $1
	`, p.ID, p.Name, p.Description, now)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrProjectNotFound
	}
	p.UpdatedAt = now
	return nil
}

// ListByTenant lists a tenant's projects, oldest first
func (r *ProjectRepository) ListByTenant(ctx context.Context, tenantID string) ([]*workspace.Project, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Project, error) {
		return scanProject(row)
	})
}

func scanProject(row pgx.Row) (*workspace.Project, error) {
	var p workspace.Project
	err := row.Scan(&p.ID, &p.TenantID, &p.CreatorID, &p.Name, &p.Description, &p.JoinCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SprintRepository implements workspace.SprintRepository
type SprintRepository struct {
	db *DB
}

const sprintColumns = `id, project_id, tenant_id, name, goal, status, created_by,
	starts_at, ends_at, created_at, updated_at`

// Create inserts a sprint
func (r *SprintRepository) Create(ctx context.Context, sp *workspace.Sprint) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO sprints (id, project_id, tenant_id, name, goal, status, created_by,
			starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, sp.ID, sp.ProjectID, sp.TenantID, sp.Name, sp.Goal, string(sp.Status), sp.CreatedBy,
		sp.StartsAt, sp.EndsAt, now)
	if err != nil {
		return fmt.Errorf("failed to create sprint: %w", err)
	}
	sp.CreatedAt, sp.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a sprint by ID
func (r *SprintRepository) GetByID(ctx context.Context, id string) (*workspace.Sprint, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	sp, err := scanSprint(r.db.pool.QueryRow(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrSprintNotFound
		}
		return nil, fmt.Errorf("failed to get sprint: %w", err)
	}
	return sp, nil
}

// Update writes name, goal, status and dates
func (r *SprintRepository) Update(ctx context.Context, sp *workspace.Sprint) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE sprints SET
			name = $2,
			goal = $3,
			status = $4,
			starts_at = $5,
			ends_at = $6,
			updated_at = $7
		WHERE id = $1
	`, sp.ID, sp.Name, sp.Goal, string(sp.Status), sp.StartsAt, sp.EndsAt, now)
	if err != nil {
		return fmt.Errorf("failed to update sprint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrSprintNotFound
	}
	sp.UpdatedAt = now
	return nil
}

// ListByProject lists a project's sprints, oldest first
func (r *SprintRepository) ListByProject(ctx context.Context, projectID string) ([]*workspace.Sprint, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+sprintColumns+` FROM sprints
		WHERE project_id = $1
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Sprint, error) {
		return scanSprint(row)
	})
}

func scanSprint(row pgx.Row) (*workspace.Sprint, error) {
	var (
		sp     workspace.Sprint
		status string
	)
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.TenantID, &sp.Name, &sp.Goal, &status, &sp.CreatedBy,
		&sp.StartsAt, &sp.EndsAt, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sp.Status = workspace.SprintStatus(status)
	return &sp, nil
}
