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

// Package cascade removes a tenant, project, sprint, issue or user account
// together with every row that references it, inside one transaction.
//
// The closure is computed as a sequence of id-scoped deletes (children
// before parents) rather than by walking an object graph.
package cascade

import (
	"context"

	"github.com/opentrusty/stride/internal/apperr"
)

// ErrUnsupported is returned by stores for a table/column pair they do not
// know.
var ErrUnsupported = apperr.New(apperr.KindInternal, "unsupported cascade statement")

// Table names a relation the engine may delete from.
type Table string

const (
	TableUsers          Table = "users"
	TableCredentials    Table = "credentials"
	TableRefreshTokens  Table = "refresh_tokens"
	TablePasswordResets Table = "password_resets"
	TableTenants        Table = "tenants"
	TableTenantMembers  Table = "tenant_members"
	TableProjects       Table = "projects"
	TableProjectMembers Table = "project_members"
	TableSprints        Table = "sprints"
	TableIssues         Table = "issues"
	TableAssignments    Table = "issue_assignments"
	TableComments       Table = "comments"
	TablePins           Table = "pins"
)

// Column names a reference column. Not every column exists on every table;
// stores reject unsupported pairs.
type Column string

const (
	ColID             Column = "id"
	ColUserID         Column = "user_id"
	ColTenantID       Column = "tenant_id"
	ColProjectID      Column = "project_id"
	ColSprintID       Column = "sprint_id"
	ColIssueID        Column = "issue_id"
	ColTargetID       Column = "target_id"
	ColOwnerID        Column = "owner_id"
	ColCreatorID      Column = "creator_id"
	ColCreatedBy      Column = "created_by"
	ColAuthorID       Column = "author_id"
	ColPersonalTenant Column = "personal_tenant_id"
)

// Tx is the set of id-scoped statements a removal is built from. All calls
// made through one Tx commit or roll back together.
type Tx interface {
	// Exists reports whether table has a row with the given id.
	Exists(ctx context.Context, table Table, id string) (bool, error)

	// IDs returns the ids of rows in table whose column equals value.
	IDs(ctx context.Context, table Table, column Column, value string) ([]string, error)

	// Delete removes rows in table whose column equals value.
	Delete(ctx context.Context, table Table, column Column, value string) (int64, error)

	// Detach sets a nullable reference column to NULL where it equals value.
	Detach(ctx context.Context, table Table, column Column, value string) (int64, error)
}

// Store runs fn in a single transaction. Any error returned by fn, or
// cancellation of ctx, rolls back every statement fn issued.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Report lists how many rows each table lost in one removal.
type Report struct {
	Root   string
	RootID string
	Counts map[Table]int64
}

// Total is the number of rows removed or detached across all tables.
func (r *Report) Total() int64 {
	var n int64
	for _, c := range r.Counts {
		n += c
	}
	return n
}

func (r *Report) add(t Table, n int64) {
	if n == 0 {
		return
	}
	r.Counts[t] += n
}

// counts flattens the report into string keys for audit metadata.
func (r *Report) counts() map[string]int64 {
	out := make(map[string]int64, len(r.Counts))
	for t, n := range r.Counts {
		out[string(t)] = n
	}
	return out
}
