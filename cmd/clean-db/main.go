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

// Command clean-db empties every stride table. It refuses to run unless
// invoked with --yes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/stride/internal/config"
	"github.com/opentrusty/stride/internal/store"
)

// Children before parents.
var tables = []string{
	"pins",
	"comments",
	"issue_assignments",
	"issues",
	"sprints",
	"project_members",
	"projects",
	"tenant_members",
	"tenants",
	"password_resets",
	"refresh_tokens",
	"credentials",
	"users",
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "--yes" {
		fmt.Fprintln(os.Stderr, "usage: clean-db --yes")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := store.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("Cleaning database...")

	for _, table := range tables {
		stmt := "TRUNCATE TABLE " + pgx.Identifier{table}.Sanitize()
		if _, err := db.Pool().Exec(ctx, stmt); err != nil {
			fmt.Printf("Warning: failed to truncate %s: %v\n", table, err)
			continue
		}
		fmt.Printf("Cleared %s\n", table)
	}

	fmt.Println("Database cleaned.")
}
