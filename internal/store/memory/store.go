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

// Package memory is an in-process store implementing every repository with
// the same atomicity guarantees as the postgres store. Each call holds one
// mutex; WithinTx holds it for the whole transaction and restores a snapshot
// on failure.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/reset"
	"github.com/opentrusty/stride/internal/token"
	"github.com/opentrusty/stride/internal/workspace"
)

var (
	_ cascade.Store             = (*Store)(nil)
	_ identity.UserRepository   = (*userRepository)(nil)
	_ token.Repository          = (*tokenRepository)(nil)
	_ reset.Repository          = (*resetRepository)(nil)
	_ workspace.PinRepository   = (*pinRepository)(nil)
	_ workspace.IssueRepository = (*issueRepository)(nil)
)

var errDryRun = errors.New("dry run")

type edge struct {
	parent string
	user   string
}

type pinKey struct {
	user     string
	pinType  workspace.PinType
	targetID string
}

type data struct {
	users          map[string]*identity.User
	credentials    map[string]*identity.Credentials
	refreshTokens  map[string]*token.RefreshToken
	resets         map[string]*reset.Record
	tenants        map[string]*workspace.Tenant
	tenantMembers  map[edge]*workspace.TenantMember
	projects       map[string]*workspace.Project
	projectMembers map[edge]*workspace.ProjectMember
	sprints        map[string]*workspace.Sprint
	issues         map[string]*workspace.Issue
	assignments    map[edge]*workspace.Assignment
	comments       map[string]*workspace.Comment
	pins           map[pinKey]*workspace.Pin
}

func newData() *data {
	return &data{
		users:          map[string]*identity.User{},
		credentials:    map[string]*identity.Credentials{},
		refreshTokens:  map[string]*token.RefreshToken{},
		resets:         map[string]*reset.Record{},
		tenants:        map[string]*workspace.Tenant{},
		tenantMembers:  map[edge]*workspace.TenantMember{},
		projects:       map[string]*workspace.Project{},
		projectMembers: map[edge]*workspace.ProjectMember{},
		sprints:        map[string]*workspace.Sprint{},
		issues:         map[string]*workspace.Issue{},
		assignments:    map[edge]*workspace.Assignment{},
		comments:       map[string]*workspace.Comment{},
		pins:           map[pinKey]*workspace.Pin{},
	}
}

func (d *data) clone() *data {
	return &data{
		users:          cloneMap(d.users),
		credentials:    cloneMap(d.credentials),
		refreshTokens:  cloneMap(d.refreshTokens),
		resets:         cloneMap(d.resets),
		tenants:        cloneMap(d.tenants),
		tenantMembers:  cloneMap(d.tenantMembers),
		projects:       cloneMap(d.projects),
		projectMembers: cloneMap(d.projectMembers),
		sprints:        cloneMap(d.sprints),
		issues:         cloneMap(d.issues),
		assignments:    cloneMap(d.assignments),
		comments:       cloneMap(d.comments),
		pins:           cloneMap(d.pins),
	}
}

// Store is the in-memory backing for all repositories.
type Store struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newData(), now: time.Now}
}

func (s *Store) Users() identity.UserRepository { return &userRepository{s} }
func (s *Store) Tokens() token.Repository       { return &tokenRepository{s} }
func (s *Store) Resets() reset.Repository       { return &resetRepository{s} }

// Workspace returns the tenant/project hierarchy repositories.
func (s *Store) Workspace() workspace.Repositories {
	return workspace.Repositories{
		Tenants:     &tenantRepository{s},
		Members:     &membershipRepository{s},
		Projects:    &projectRepository{s},
		Sprints:     &sprintRepository{s},
		Issues:      &issueRepository{s},
		Assignments: &assignmentRepository{s},
		Comments:    &commentRepository{s},
		Pins:        &pinRepository{s},
	}
}

// Reset drops every row.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newData()
}

// WithinTx runs fn against a snapshot-protected view of the store. The
// snapshot is restored if fn fails or ctx is done before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx cascade.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(ctx, &tx{d: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.data = snapshot
		return fmt.Errorf("transaction aborted: %w", err)
	}
	return nil
}

// Count returns how many rows of table have column equal to value. It runs
// the matching delete inside a transaction that is always rolled back.
func (s *Store) Count(ctx context.Context, table cascade.Table, column cascade.Column, value string) (int64, error) {
	var n int64
	err := s.WithinTx(ctx, func(ctx context.Context, tx cascade.Tx) error {
		var err error
		if n, err = tx.Delete(ctx, table, column, value); err != nil {
			return err
		}
		return errDryRun
	})
	if errors.Is(err, errDryRun) {
		return n, nil
	}
	return 0, err
}

// update runs fn under the store lock, rolling back on error.
func (s *Store) update(ctx context.Context, fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(s.data); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// view runs fn under the store lock.
func (s *Store) view(ctx context.Context, fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.data)
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func clonePtr[V any](v *V) *V {
	cp := *v
	return &cp
}

func strPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sortedClones copies the matching values and orders them by key.
func sortedClones[K comparable, V any](m map[K]*V, match func(*V) bool, less func(a, b *V) bool) []*V {
	out := make([]*V, 0)
	for _, v := range m {
		if match(v) {
			out = append(out, clonePtr(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
