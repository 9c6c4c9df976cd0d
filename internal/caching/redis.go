/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWorker is a cache backed by Redis. Expiry is enforced server-side
// through per-key TTLs, so instances sharing a Redis deployment also share
// the cache.
type RedisWorker struct {
	client  redis.UniversalClient
	ttl     time.Duration
	maxSize int64
}

// RedisOption customizes a RedisWorker.
type RedisOption func(*RedisWorker)

// WithRedisTTL overrides the default entry TTL.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(w *RedisWorker) { w.ttl = ttl }
}

// WithRedisMaxObjectSize overrides the maximum serialized object size.
func WithRedisMaxObjectSize(size int64) RedisOption {
	return func(w *RedisWorker) { w.maxSize = size }
}

// NewRedisWorker creates a Redis-backed cache on an existing client. The
// worker does not own the client; Close is a no-op so the same connection
// can back the session manager.
func NewRedisWorker(client redis.UniversalClient, opts ...RedisOption) *RedisWorker {
	w := &RedisWorker{
		client:  client,
		ttl:     DefaultTTL,
		maxSize: DefaultMaxObjectSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Get loads the value at key into dst. redis.Nil is a miss, which also
// covers server-side expiry.
func (w *RedisWorker) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := w.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cached object %s: %w", key, err)
	}
	return true, nil
}

// Put stores a value under key with the configured TTL.
func (w *RedisWorker) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode object for %s: %w", key, err)
	}
	if int64(len(data)) > w.maxSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, key, len(data))
	}

	if err := w.client.Set(ctx, key, data, w.ttl).Err(); err != nil {
		return fmt.Errorf("failed to put %s into redis: %w", key, err)
	}
	return nil
}

// Delete removes an entry if present.
func (w *RedisWorker) Delete(ctx context.Context, key string) error {
	if err := w.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// Exists reports whether an entry is present.
func (w *RedisWorker) Exists(ctx context.Context, key string) (bool, error) {
	n, err := w.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s in redis: %w", key, err)
	}
	return n > 0, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (w *RedisWorker) Close() error { return nil }

// Ensure RedisWorker implements Worker.
var _ Worker = (*RedisWorker)(nil)
