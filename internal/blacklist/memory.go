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

package blacklist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opentrusty/stride/internal/observability/logger"
)

// MemoryGuard is a process-local Guard. It is only correct for a single
// server instance; use RedisGuard when instances share traffic.
type MemoryGuard struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryGuard creates an empty in-process guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (g *MemoryGuard) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || jti == "" {
		return nil
	}
	until := g.now().Add(ttl)

	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.entries[jti]; !ok || until.After(cur) {
		g.entries[jti] = until
	}
	return nil
}

func (g *MemoryGuard) IsRevoked(ctx context.Context, jti string) (bool, error) {
	g.mu.RLock()
	until, ok := g.entries[jti]
	g.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if g.now().Before(until) {
		return true, nil
	}

	g.mu.Lock()
	if cur, ok := g.entries[jti]; ok && !g.now().Before(cur) {
		delete(g.entries, jti)
	}
	g.mu.Unlock()
	return false, nil
}

// Sweep drops expired entries and returns how many were removed.
func (g *MemoryGuard) Sweep() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for jti, until := range g.entries {
		if !now.Before(until) {
			delete(g.entries, jti)
			removed++
		}
	}
	return removed
}

// Len returns the number of live or not-yet-swept entries.
func (g *MemoryGuard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Run sweeps every interval until ctx is done.
func (g *MemoryGuard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				slog.DebugContext(ctx, "blacklist sweep", logger.Component("blacklist"), slog.Int("removed", n))
			}
		}
	}
}
