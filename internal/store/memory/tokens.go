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

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/opentrusty/stride/internal/token"
)

type tokenRepository struct {
	s *Store
}

func (r *tokenRepository) Create(ctx context.Context, t *token.RefreshToken) error {
	return r.s.update(ctx, func(d *data) error {
		d.refreshTokens[t.ID] = clonePtr(t)
		return nil
	})
}

func (r *tokenRepository) GetByHash(ctx context.Context, hash string) (*token.RefreshToken, error) {
	var out *token.RefreshToken
	err := r.s.view(ctx, func(d *data) error {
		for _, t := range d.refreshTokens {
			if t.TokenHash == hash {
				out = clonePtr(t)
				return nil
			}
		}
		return token.ErrTokenNotFound
	})
	return out, err
}

func (r *tokenRepository) Rotate(ctx context.Context, currentID string, next *token.RefreshToken) error {
	return r.s.update(ctx, func(d *data) error {
		cur, ok := d.refreshTokens[currentID]
		if !ok || !cur.Valid {
			return token.ErrRotationConflict
		}
		cur.Valid = false
		d.refreshTokens[next.ID] = clonePtr(next)
		return nil
	})
}

func (r *tokenRepository) RevokeChain(ctx context.Context, userID, chainID string) (int64, error) {
	var n int64
	err := r.s.update(ctx, func(d *data) error {
		for _, t := range d.refreshTokens {
			if t.UserID == userID && t.ChainID == chainID && t.Valid {
				t.Valid = false
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *tokenRepository) ActiveChains(ctx context.Context, userID string) ([]string, error) {
	var out []string
	err := r.s.view(ctx, func(d *data) error {
		seen := map[string]bool{}
		for _, t := range d.refreshTokens {
			if t.UserID == userID && t.Valid && !seen[t.ChainID] {
				seen[t.ChainID] = true
				out = append(out, t.ChainID)
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.s.update(ctx, func(d *data) error {
		for rowID, t := range d.refreshTokens {
			if t.ExpiresAt.Before(before) {
				delete(d.refreshTokens, rowID)
				n++
			}
		}
		return nil
	})
	return n, err
}
