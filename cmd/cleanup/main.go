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

// Command cleanup purges expired refresh tokens and stale password
// resets once and exits. Schedule it when the server's own cleanup loop
// is not enough.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/stride/internal/config"
	"github.com/opentrusty/stride/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open storage: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	now := time.Now()

	tokens, err := backend.Tokens.DeleteExpired(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Purging refresh tokens failed: %v\n", err)
		os.Exit(1)
	}

	resets, err := backend.Resets.DeleteStale(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Purging password resets failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Purged %d refresh tokens and %d password resets.\n", tokens, resets)
}
