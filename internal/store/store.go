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

// Package store selects the persistence backend named by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/config"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/reset"
	"github.com/opentrusty/stride/internal/store/memory"
	"github.com/opentrusty/stride/internal/store/postgres"
	"github.com/opentrusty/stride/internal/token"
	"github.com/opentrusty/stride/internal/workspace"
)

// Backend bundles every repository of one storage driver.
type Backend struct {
	Users     identity.UserRepository
	Tokens    token.Repository
	Resets    reset.Repository
	Workspace workspace.Repositories
	Cascade   cascade.Store

	// DB is set for the postgres driver only.
	DB    *postgres.DB
	close func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the configured driver.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		slog.WarnContext(ctx, "using in-memory storage; data is lost on exit", logger.Component("store"))
		st := memory.New()
		return &Backend{
			Users:     st.Users(),
			Tokens:    st.Tokens(),
			Resets:    st.Resets(),
			Workspace: st.Workspace(),
			Cascade:   st,
		}, nil

	case config.DriverPostgres:
		db, err := OpenPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Users:     postgres.NewUserRepository(db),
			Tokens:    postgres.NewTokenRepository(db),
			Resets:    postgres.NewResetRepository(db),
			Workspace: db.Workspace(),
			Cascade:   db,
			DB:        db,
			close:     db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// OpenPostgres connects with the database section of the configuration.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		QueryTimeout:    cfg.QueryTimeout,
	})
}
