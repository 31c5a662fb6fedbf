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
	"github.com/opentrusty/stride/internal/reset"
)

// ResetRepository implements reset.Repository
type ResetRepository struct {
	db *DB
}

// NewResetRepository creates a new password reset repository
func NewResetRepository(db *DB) *ResetRepository {
	return &ResetRepository{db: db}
}

// Replace drops the user's unfinished workflows and inserts rec.
func (r *ResetRepository) Replace(ctx context.Context, rec *reset.Record) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM password_resets WHERE user_id = $1 AND step < $2
		`, rec.UserID, reset.StepCompleted); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO password_resets (id, user_id, step, otp_hash, attempts, created_at, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, rec.ID, rec.UserID, rec.Step, rec.OTPHash, rec.Attempts, rec.CreatedAt, rec.ExpiresAt, rec.UpdatedAt)
		return err
	})
	if err != nil {
		if _, ok := constraintOf(err); ok {
			return reset.ErrStepConflict
		}
		return fmt.Errorf("failed to replace password reset: %w", err)
	}
	return nil
}

// GetActive returns the user's record at step
func (r *ResetRepository) GetActive(ctx context.Context, userID string, step reset.Step) (*reset.Record, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	var rec reset.Record
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, step, otp_hash, attempts, created_at, expires_at, updated_at
		FROM password_resets
		WHERE user_id = $1 AND step = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, step).Scan(&rec.ID, &rec.UserID, &rec.Step, &rec.OTPHash, &rec.Attempts, &rec.CreatedAt, &rec.ExpiresAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reset.ErrNoActiveReset
		}
		return nil, fmt.Errorf("failed to get password reset: %w", err)
	}
	return &rec, nil
}

// Advance moves the record forward only if it is still at from.
func (r *ResetRepository) Advance(ctx context.Context, id string, from, to reset.Step) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE password_resets SET step = $3, updated_at = NOW()
		WHERE id = $1 AND step = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to advance password reset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return reset.ErrStepConflict
	}
	return nil
}

// Complete finishes a Verified record and writes the new password hash in
// the same transaction.
func (r *ResetRepository) Complete(ctx context.Context, id, userID, passwordHash string) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE password_resets SET step = $3, updated_at = NOW()
			WHERE id = $1 AND user_id = $2 AND step = $4
		`, id, userID, reset.StepCompleted, reset.StepVerified)
		if err != nil {
			return fmt.Errorf("failed to complete password reset: %w", err)
		}
		if result.RowsAffected() == 0 {
			return reset.ErrStepConflict
		}

		result, err = tx.Exec(ctx, `
			UPDATE credentials SET password_hash = $2, updated_at = NOW()
			WHERE user_id = $1
		`, userID, passwordHash)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if result.RowsAffected() == 0 {
			return identity.ErrUserNotFound
		}
		return nil
	})
}

// RecordFailure counts a wrong code with a conditional update and deletes
// the record once the count reaches maxAttempts.
func (r *ResetRepository) RecordFailure(ctx context.Context, id string, step reset.Step, maxAttempts int) (bool, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	var exhausted bool
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var attempts int
		err := tx.QueryRow(ctx, `
			UPDATE password_resets SET attempts = attempts + 1, updated_at = NOW()
			WHERE id = $1 AND step = $2
			RETURNING attempts
		`, id, step).Scan(&attempts)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reset.ErrStepConflict
			}
			return fmt.Errorf("failed to count reset attempt: %w", err)
		}
		if attempts < maxAttempts {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM password_resets WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to discard password reset: %w", err)
		}
		exhausted = true
		return nil
	})
	return exhausted, err
}

// DeleteStale removes completed records and those that expired before the cutoff
func (r *ResetRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM password_resets WHERE step = $1 OR expires_at < $2
	`, reset.StepCompleted, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale password resets: %w", err)
	}
	return result.RowsAffected(), nil
}
