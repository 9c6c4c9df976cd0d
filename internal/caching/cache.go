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

// Package caching provides a typed key/value cache with TTL and object-size
// limits, in two variants: an in-process map and a Redis-backed worker.
package caching

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Defaults shared by both cache variants.
const (
	// DefaultTTL is how long entries live after their last write.
	DefaultTTL = 15 * time.Minute
	// DefaultMaxObjectSize is the largest serialized value accepted by Put.
	DefaultMaxObjectSize = 1 << 20 // 1 MiB
)

// ErrObjectTooLarge is returned when a serialized value exceeds the
// configured maximum object size.
var ErrObjectTooLarge = errors.New("cached object exceeds maximum size")

// Worker is the cache contract. Values are serialized as JSON; Get must
// never return an expired entry. Implementations must be safe for
// concurrent use.
type Worker interface {
	// Get loads the value at key into dst, reporting whether a fresh
	// entry was found.
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Put stores value until the TTL elapses. Returns ErrObjectTooLarge
	// when the serialized value exceeds the maximum object size.
	Put(ctx context.Context, key string, value any) error

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a fresh entry is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the worker.
	Close() error
}

// Key joins parts into a hierarchical cache key ("users:1234").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
