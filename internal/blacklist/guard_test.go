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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemoryGuard() (*MemoryGuard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryGuard()
	g.now = clock.Now
	return g, clock
}

func newTestRedisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGuard(client, ""), mr
}

// TestPurpose: Validates that a revoked jti is denied until its entry self-expires.
// Scope: Unit Test
// Security: Logged-out access tokens cannot be replayed within their signed lifetime
// Expected: Unknown jti passes, revoked jti is denied, and passes again once the ttl elapses.
// Test Case ID: BL-01
func TestMemoryGuard_RevokeUntilExpiry(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestMemoryGuard()

	revoked, err := g.IsRevoked(ctx, "jti-x")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, g.Revoke(ctx, "jti-x", 30*time.Minute))
	revoked, _ = g.IsRevoked(ctx, "jti-x")
	assert.True(t, revoked)

	revoked, _ = g.IsRevoked(ctx, "jti-y")
	assert.False(t, revoked)

	clock.Advance(29 * time.Minute)
	revoked, _ = g.IsRevoked(ctx, "jti-x")
	assert.True(t, revoked)

	clock.Advance(time.Minute)
	revoked, _ = g.IsRevoked(ctx, "jti-x")
	assert.False(t, revoked)
	assert.Equal(t, 0, g.Len())
}

// TestPurpose: Validates that memory stays bounded by token lifetime rather than by request volume.
// Scope: Unit Test
// Expected: Sweep removes only expired entries; non-positive ttls never create entries.
// Test Case ID: BL-02
func TestMemoryGuard_SweepAndNoop(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestMemoryGuard()

	for i := range 100 {
		require.NoError(t, g.Revoke(ctx, fmt.Sprintf("short-%d", i), time.Minute))
	}
	require.NoError(t, g.Revoke(ctx, "long", time.Hour))
	require.NoError(t, g.Revoke(ctx, "expired", 0))
	require.NoError(t, g.Revoke(ctx, "negative", -time.Second))
	assert.Equal(t, 101, g.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 100, g.Sweep())
	assert.Equal(t, 1, g.Len())

	revoked, _ := g.IsRevoked(ctx, "long")
	assert.True(t, revoked)
}

func TestMemoryGuard_KeepsLongestExpiry(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestMemoryGuard()

	require.NoError(t, g.Revoke(ctx, "j", time.Hour))
	require.NoError(t, g.Revoke(ctx, "j", time.Minute))

	clock.Advance(10 * time.Minute)
	revoked, _ := g.IsRevoked(ctx, "j")
	assert.True(t, revoked)
}

func TestMemoryGuard_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jti := fmt.Sprintf("j-%d", i%4)
			_ = g.Revoke(ctx, jti, time.Minute)
			revoked, err := g.IsRevoked(ctx, jti)
			assert.NoError(t, err)
			assert.True(t, revoked)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, g.Len())
}

func TestMemoryGuard_RunStopsOnCancel(t *testing.T) {
	g := NewMemoryGuard()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestPurpose: Validates the shared Redis guard denies revoked jtis across clients until the key TTL elapses.
// Scope: Integration Test (miniredis)
// Security: Multi-instance blacklist correctness
// Expected: A second guard on the same server observes the revocation; FastForward past the TTL clears it.
// Test Case ID: BL-03
func TestRedisGuard_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a, mr := newTestRedisGuard(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	b := NewRedisGuard(other, "")

	require.NoError(t, a.Revoke(ctx, "jti-x", 30*time.Minute))

	revoked, err := b.IsRevoked(ctx, "jti-x")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists(defaultKeyPrefix+"jti-x"))

	mr.FastForward(31 * time.Minute)
	revoked, err = b.IsRevoked(ctx, "jti-x")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisGuard_KeepsLongestTTL(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestRedisGuard(t)

	require.NoError(t, g.Revoke(ctx, "j", time.Hour))
	require.NoError(t, g.Revoke(ctx, "j", time.Minute))
	assert.Greater(t, mr.TTL(defaultKeyPrefix+"j"), 50*time.Minute)

	require.NoError(t, g.Revoke(ctx, "noop", 0))
	assert.False(t, mr.Exists(defaultKeyPrefix+"noop"))
}

func TestRedisGuard_Unavailable(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestRedisGuard(t)
	mr.Close()

	_, err := g.IsRevoked(ctx, "j")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, g.Revoke(ctx, "j", time.Minute), ErrUnavailable)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
