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

// Package token issues signed access tokens and rotates the opaque refresh
// tokens that back them.
//
// Every session is a chain identified by the access token's jti. Each
// rotation invalidates the presented refresh row and inserts its successor
// under the same jti, so at most one row per (user, chain) is valid at a time.
package token

import (
	"context"
	"time"

	"github.com/opentrusty/stride/internal/apperr"
)

// Auth failures. All are terminal for the chain they concern.
var (
	ErrInvalidToken   = apperr.New(apperr.KindAuth, "invalid token")
	ErrExpired        = apperr.New(apperr.KindAuth, "token expired")
	ErrReplayDetected = apperr.New(apperr.KindAuth, "refresh token reuse detected")
	ErrRevoked        = apperr.New(apperr.KindAuth, "token revoked")
)

// Repository errors
var (
	ErrTokenNotFound    = apperr.New(apperr.KindNotFound, "refresh token not found")
	ErrRotationConflict = apperr.New(apperr.KindConflict, "refresh token already rotated")
)

// RefreshToken is one row of a chain. Only the SHA-256 digest of the opaque
// value is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	ChainID   string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Valid     bool
}

// Subject is the identity embedded in an access token.
type Subject struct {
	UserID      string
	Email       string
	DisplayName string
}

// Pair is what a client holds after login or rotation.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ChainID          string    `json:"-"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Repository defines the interface for refresh chain persistence
type Repository interface {
	Create(ctx context.Context, t *RefreshToken) error

	// GetByHash returns the row for a token digest regardless of validity.
	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)

	// Rotate flips currentID from valid to invalid and inserts next in one
	// transaction. If currentID was no longer valid nothing is written and
	// ErrRotationConflict is returned.
	Rotate(ctx context.Context, currentID string, next *RefreshToken) error

	// RevokeChain invalidates every row of the chain.
	RevokeChain(ctx context.Context, userID, chainID string) (int64, error)

	// ActiveChains lists chain ids of the user that still have a valid row.
	ActiveChains(ctx context.Context, userID string) ([]string, error)

	// DeleteExpired removes rows whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
