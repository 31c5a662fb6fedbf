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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/stride/internal/cascade"
)

// columns lists, per table, the columns the cascade engine may filter on.
// Statements are only ever built from these identifiers.
var columns = map[cascade.Table][]cascade.Column{
	cascade.TableUsers:          {cascade.ColID, cascade.ColPersonalTenant},
	cascade.TableCredentials:    {cascade.ColUserID},
	cascade.TableRefreshTokens:  {cascade.ColID, cascade.ColUserID},
	cascade.TablePasswordResets: {cascade.ColID, cascade.ColUserID},
	cascade.TableTenants:        {cascade.ColID, cascade.ColOwnerID},
	cascade.TableTenantMembers:  {cascade.ColTenantID, cascade.ColUserID},
	cascade.TableProjects:       {cascade.ColID, cascade.ColTenantID, cascade.ColCreatorID},
	cascade.TableProjectMembers: {cascade.ColProjectID, cascade.ColUserID},
	cascade.TableSprints:        {cascade.ColID, cascade.ColProjectID, cascade.ColTenantID, cascade.ColCreatedBy},
	cascade.TableIssues: {
		cascade.ColID, cascade.ColProjectID, cascade.ColSprintID, cascade.ColTenantID, cascade.ColCreatedBy,
	},
	cascade.TableAssignments: {cascade.ColIssueID, cascade.ColProjectID, cascade.ColTenantID, cascade.ColUserID},
	cascade.TableComments: {
		cascade.ColID, cascade.ColIssueID, cascade.ColProjectID, cascade.ColSprintID, cascade.ColTenantID, cascade.ColAuthorID,
	},
	cascade.TablePins: {cascade.ColUserID, cascade.ColTargetID, cascade.ColTenantID, cascade.ColProjectID},
}

// nullableRefs are the columns Detach may clear.
var nullableRefs = map[cascade.Table]cascade.Column{
	cascade.TableUsers:    cascade.ColPersonalTenant,
	cascade.TableIssues:   cascade.ColSprintID,
	cascade.TableComments: cascade.ColSprintID,
}

// WithinTx implements cascade.Store.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx cascade.Tx) error) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &cascadeTx{tx: tx})
	})
}

type cascadeTx struct {
	tx pgx.Tx
}

func (c *cascadeTx) Exists(ctx context.Context, table cascade.Table, id string) (bool, error) {
	t, col, err := identifiers(table, cascade.ColID)
	if err != nil {
		return false, err
	}
	var ok bool
	err = c.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+t+` WHERE `+col+` = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return ok, nil
}

func (c *cascadeTx) IDs(ctx context.Context, table cascade.Table, column cascade.Column, value string) ([]string, error) {
	t, col, err := identifiers(table, column)
	if err != nil {
		return nil, err
	}
	idCol, _, _ := identifiers(table, cascade.ColID)
	if idCol == "" {
		return nil, fmt.Errorf("%w: %s has no id", cascade.ErrUnsupported, table)
	}
	rows, err := c.tx.Query(ctx, `SELECT id FROM `+t+` WHERE `+col+` = $1 ORDER BY id`, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (c *cascadeTx) Delete(ctx context.Context, table cascade.Table, column cascade.Column, value string) (int64, error) {
	t, col, err := identifiers(table, column)
	if err != nil {
		return 0, err
	}
	result, err := c.tx.Exec(ctx, `DELETE FROM `+t+` WHERE `+col+` = $1`, value)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (c *cascadeTx) Detach(ctx context.Context, table cascade.Table, column cascade.Column, value string) (int64, error) {
	if ref, ok := nullableRefs[table]; !ok || ref != column {
		return 0, fmt.Errorf("%w: %s.%s is not nullable", cascade.ErrUnsupported, table, column)
	}
	t, col, err := identifiers(table, column)
	if err != nil {
		return 0, err
	}
	result, err := c.tx.Exec(ctx, `UPDATE `+t+` SET `+col+` = NULL WHERE `+col+` = $1`, value)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// identifiers returns the quoted table and column names, or ErrUnsupported
// when the pair is not whitelisted.
func identifiers(table cascade.Table, column cascade.Column) (string, string, error) {
	cols, ok := columns[table]
	if !ok {
		return "", "", fmt.Errorf("%w: table %s", cascade.ErrUnsupported, table)
	}
	for _, c := range cols {
		if c == column {
			return pgx.Identifier{string(table)}.Sanitize(), pgx.Identifier{string(column)}.Sanitize(), nil
		}
	}
	return "", "", fmt.Errorf("%w: column %s.%s", cascade.ErrUnsupported, table, column)
}
