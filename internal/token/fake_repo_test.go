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

package token

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeRepo is an in-package Repository with the same conditional semantics
// as the real stores.
type fakeRepo struct {
	mu     sync.Mutex
	rows   map[string]*RefreshToken
	byHash map[string]string
	err    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*RefreshToken{}, byHash: map[string]string{}}
}

func (r *fakeRepo) Create(ctx context.Context, t *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *t
	r.rows[t.ID] = &cp
	r.byHash[t.TokenHash] = t.ID
	return nil
}

func (r *fakeRepo) GetByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rowID, ok := r.byHash[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *r.rows[rowID]
	return &cp, nil
}

func (r *fakeRepo) Rotate(ctx context.Context, currentID string, next *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cur, ok := r.rows[currentID]
	if !ok || !cur.Valid {
		return ErrRotationConflict
	}
	cur.Valid = false
	cp := *next
	r.rows[next.ID] = &cp
	r.byHash[next.TokenHash] = next.ID
	return nil
}

func (r *fakeRepo) RevokeChain(ctx context.Context, userID, chainID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID && row.ChainID == chainID && row.Valid {
			row.Valid = false
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ActiveChains(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, row := range r.rows {
		if row.UserID == userID && row.Valid && !seen[row.ChainID] {
			seen[row.ChainID] = true
			out = append(out, row.ChainID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for rowID, row := range r.rows {
		if row.ExpiresAt.Before(before) {
			delete(r.rows, rowID)
			delete(r.byHash, row.TokenHash)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) validInChain(userID, chainID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.UserID == userID && row.ChainID == chainID && row.Valid {
			n++
		}
	}
	return n
}
