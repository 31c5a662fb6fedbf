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
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "stride:blacklist:"

// revokeScript sets the entry unless a longer-lived one already exists.
var revokeScript = redis.NewScript(`
local cur = redis.call('PTTL', KEYS[1])
local ttl = tonumber(ARGV[1])
if cur < ttl then
  redis.call('SET', KEYS[1], '1', 'PX', ttl)
  return 1
end
return 0
`)

// RedisGuard keeps entries in Redis with a native TTL so every server
// instance sees the same denylist.
type RedisGuard struct {
	redis  *redis.Client
	prefix string
}

// NewRedisGuard wraps an existing client. An empty prefix uses the default.
func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisGuard{redis: client, prefix: prefix}
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (g *RedisGuard) key(jti string) string {
	return g.prefix + jti
}

func (g *RedisGuard) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || jti == "" {
		return nil
	}
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := revokeScript.Run(ctx, g.redis, []string{g.key(jti)}, ms).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (g *RedisGuard) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := g.redis.Exists(ctx, g.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
