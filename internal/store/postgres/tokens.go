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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opentrusty/stride/internal/token"
)

// TokenRepository implements token.Repository
type TokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new refresh token repository
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a refresh token row
func (r *TokenRepository) Create(ctx context.Context, t *token.RefreshToken) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	if err := insertRefresh(ctx, r.db.pool, t); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetByHash retrieves a refresh token row by digest
func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*token.RefreshToken, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	var t token.RefreshToken
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, chain_id, token_hash, issued_at, expires_at, valid
		FROM refresh_tokens
		WHERE token_hash = $1
	`, hash).Scan(&t.ID, &t.UserID, &t.ChainID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.Valid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, token.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &t, nil
}

// Rotate invalidates currentID only if it is still valid, then inserts next.
// The conditional UPDATE serialises concurrent rotations: the loser sees zero
// affected rows.
func (r *TokenRepository) Rotate(ctx context.Context, currentID string, next *token.RefreshToken) error {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE refresh_tokens SET valid = FALSE
			WHERE id = $1 AND valid
		`, currentID)
		if err != nil {
			return fmt.Errorf("failed to invalidate refresh token: %w", err)
		}
		if result.RowsAffected() == 0 {
			return token.ErrRotationConflict
		}
		if err := insertRefresh(ctx, tx, next); err != nil {
			if _, ok := constraintOf(err); ok {
				return token.ErrRotationConflict
			}
			return fmt.Errorf("failed to insert rotated token: %w", err)
		}
		return nil
	})
}

// RevokeChain invalidates every live row of the chain
func (r *TokenRepository) RevokeChain(ctx context.Context, userID, chainID string) (int64, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET valid = FALSE
		WHERE user_id = $1 AND chain_id = $2 AND valid
	`, userID, chainID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke chain: %w", err)
	}
	return result.RowsAffected(), nil
}

// ActiveChains lists the user's chains that still hold a valid row
func (r *TokenRepository) ActiveChains(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT chain_id FROM refresh_tokens
		WHERE user_id = $1 AND valid
		ORDER BY chain_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	chains, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan chains: %w", err)
	}
	return chains, nil
}

// DeleteExpired removes rows that expired before the cutoff
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.db.timeout(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRefresh(ctx context.Context, db execer, t *token.RefreshToken) error {
	_, err := db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, chain_id, token_hash, issued_at, expires_at, valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.UserID, t.ChainID, t.TokenHash, t.IssuedAt, t.ExpiresAt, t.Valid)
	return err
}
