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

// TenantRepository implements workspace.TenantRepository
type TenantRepository struct {
	db *DB
}

const tenantColumns = `id, name, owner_id, join_code, keywords, created_at, updated_at`

// Create inserts the tenant and the owner's membership in one transaction.
func (r *TenantRepository) Create(ctx context.Context, t *workspace.Tenant, owner *workspace.TenantMember) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tenants (id, name, owner_id, join_code, keywords, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, t.ID, t.Name, t.OwnerID, t.JoinCode, t.Keywords, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO tenant_members (tenant_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, t.ID, owner.UserID, owner.Role.String(), now)
		return err
	})
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "tenants_join_code_key" {
			return workspace.ErrJoinCodeTaken
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	owner.JoinedAt = now
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*workspace.Tenant, error) {
	return r.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

// GetByJoinCode retrieves a tenant by its join code
func (r *TenantRepository) GetByJoinCode(ctx context.Context, code string) (*workspace.Tenant, error) {
	return r.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE join_code = $1`, code)
}

func (r *TenantRepository) getOne(ctx context.Context, query, arg string) (*workspace.Tenant, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	t, err := scanTenant(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// Update writes name and keywords
func (r *TenantRepository) Update(ctx context.Context, t *workspace.Tenant) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET name = $2, keywords = $3, updated_at = $4 WHERE id = $1
	`, t.ID, t.Name, t.Keywords, now)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrTenantNotFound
	}
	t.UpdatedAt = now
	return nil
}

// ListForUser lists the tenants the user is a member of
func (r *TenantRepository) ListForUser(ctx context.Context, userID string) ([]*workspace.Tenant, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT t.id, t.name, t.owner_id, t.join_code, t.keywords, t.created_at, t.updated_at
		FROM tenants t
		JOIN tenant_members m ON m.tenant_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.created_at, t.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.Tenant, error) {
		return scanTenant(row)
	})
}

func scanTenant(row pgx.Row) (*workspace.Tenant, error) {
	var t workspace.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.JoinCode, &t.Keywords, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// MembershipRepository implements workspace.MembershipRepository
type MembershipRepository struct {
	db *DB
}

// AddTenantMember inserts a tenant edge
func (r *MembershipRepository) AddTenantMember(ctx context.Context, m *workspace.TenantMember) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, m.TenantID, m.UserID, m.Role.String(), now)
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "tenant_members_pkey" {
			return workspace.ErrAlreadyMember
		}
		return fmt.Errorf("failed to add tenant member: %w", err)
	}
	m.JoinedAt = now
	return nil
}

// GetTenantMember retrieves a tenant edge
func (r *MembershipRepository) GetTenantMember(ctx context.Context, tenantID, userID string) (*workspace.TenantMember, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	m, err := scanTenantMember(r.db.pool.QueryRow(ctx, `
		SELECT tenant_id, user_id, role, joined_at
		FROM tenant_members
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get tenant member: %w", err)
	}
	return m, nil
}

// ListTenantMembers lists a tenant's edges, oldest first
func (r *MembershipRepository) ListTenantMembers(ctx context.Context, tenantID string) ([]*workspace.TenantMember, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT tenant_id, user_id, role, joined_at
		FROM tenant_members
		WHERE tenant_id = $1
		ORDER BY joined_at, user_id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant members: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.TenantMember, error) {
		return scanTenantMember(row)
	})
}

// UpdateTenantRole sets the role on a tenant edge
func (r *MembershipRepository) UpdateTenantRole(ctx context.Context, tenantID, userID string, role workspace.Role) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenant_members SET role = $3 WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID, role.String())
	if err != nil {
		return fmt.Errorf("failed to update tenant role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrMemberNotFound
	}
	return nil
}

// RemoveTenantMember deletes the tenant edge and the user's project edges
// under that tenant.
func (r *MembershipRepository) RemoveTenantMember(ctx context.Context, tenantID, userID string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			DELETE FROM tenant_members WHERE tenant_id = $1 AND user_id = $2
		`, tenantID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove tenant member: %w", err)
		}
		if result.RowsAffected() == 0 {
			return workspace.ErrMemberNotFound
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM project_members
			WHERE user_id = $2
			  AND project_id IN (SELECT id FROM projects WHERE tenant_id = $1)
		`, tenantID, userID); err != nil {
			return fmt.Errorf("failed to remove project memberships: %w", err)
		}
		return nil
	})
}

// AddProjectMember inserts a project edge
func (r *MembershipRepository) AddProjectMember(ctx context.Context, m *workspace.ProjectMember) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, m.ProjectID, m.UserID, m.Role.String(), now)
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "project_members_pkey" {
			return workspace.ErrAlreadyMember
		}
		return fmt.Errorf("failed to add project member: %w", err)
	}
	m.JoinedAt = now
	return nil
}

// GetProjectMember retrieves a project edge
func (r *MembershipRepository) GetProjectMember(ctx context.Context, projectID, userID string) (*workspace.ProjectMember, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	m, err := scanProjectMember(r.db.pool.QueryRow(ctx, `
		SELECT project_id, user_id, role, joined_at
		FROM project_members
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get project member: %w", err)
	}
	return m, nil
}

// ListProjectMembers lists a project's edges, oldest first
func (r *MembershipRepository) ListProjectMembers(ctx context.Context, projectID string) ([]*workspace.ProjectMember, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT project_id, user_id, role, joined_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY joined_at, user_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (*workspace.ProjectMember, error) {
		return scanProjectMember(row)
	})
}

// UpdateProjectRole sets the role on a project edge
func (r *MembershipRepository) UpdateProjectRole(ctx context.Context, projectID, userID string, role workspace.Role) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE project_members SET role = $3 WHERE project_id = $1 AND user_id = $2
	`, projectID, userID, role.String())
	if err != nil {
		return fmt.Errorf("failed to update project role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrMemberNotFound
	}
	return nil
}

// RemoveProjectMember deletes a project edge
func (r *MembershipRepository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return workspace.ErrMemberNotFound
	}
	return nil
}

func scanTenantMember(row pgx.Row) (*workspace.TenantMember, error) {
	var (
		m    workspace.TenantMember
		role string
		err  error
	)
	if err = row.Scan(&m.TenantID, &m.UserID, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	if m.Role, err = workspace.ParseRole(role); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanProjectMember(row pgx.Row) (*workspace.ProjectMember, error) {
	var (
		m    workspace.ProjectMember
		role string
		err  error
	)
	if err = row.Scan(&m.ProjectID, &m.UserID, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	if m.Role, err = workspace.ParseRole(role); err != nil {
		return nil, err
	}
	return &m, nil
}
