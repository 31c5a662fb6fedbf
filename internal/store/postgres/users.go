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

	"github.com/opentrusty/stride/internal/identity"
)

const userColumns = `id, email, username, display_name, is_premium, personal_tenant_id,
	failed_login_attempts, locked_until, created_at, updated_at`

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores the user and its credentials in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *identity.User, credentials *identity.Credentials) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (
				id, email, username, display_name, is_premium, personal_tenant_id,
				failed_login_attempts, locked_until, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, 0, NULL, $7, $7)
		`,
			user.ID, user.Email, user.Username, user.DisplayName, user.IsPremium, user.PersonalTenantID, now,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO credentials (user_id, password_hash, updated_at)
			VALUES ($1, $2, $3)
		`, credentials.UserID, credentials.PasswordHash, now)
		return err
	})
	if err != nil {
		if name, ok := constraintOf(err); ok {
			switch name {
			case "users_email_key":
				return identity.ErrEmailTaken
			case "users_username_key":
				return identity.ErrUsernameTaken
			}
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.CreatedAt, user.UpdatedAt = now, now
	credentials.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by normalised email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*identity.User, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	user, err := scanUser(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Update updates profile fields
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	now := time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			username = $2,
			display_name = $3,
			is_premium = $4,
			updated_at = $5
		WHERE id = $1
	`, user.ID, user.Username, user.DisplayName, user.IsPremium, now)
	if err != nil {
		if name, ok := constraintOf(err); ok && name == "users_username_key" {
			return identity.ErrUsernameTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	user.UpdatedAt = now
	return nil
}

// UpdateLockout updates user lockout status
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	_, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`, failedAttempts, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to update user lockout status: %w", err)
	}
	return nil
}

// SetPersonalTenant sets or clears the user's personal tenant
func (r *UserRepository) SetPersonalTenant(ctx context.Context, userID string, tenantID *string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET personal_tenant_id = $2, updated_at = NOW() WHERE id = $1
	`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to set personal tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// GetCredentials retrieves user credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	var creds identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&creds.UserID, &creds.PasswordHash, &creds.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &creds, nil
}

// UpdatePassword updates user password
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials
		SET password_hash = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var u identity.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.IsPremium, &u.PersonalTenantID,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
