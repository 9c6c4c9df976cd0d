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
	"fmt"
	"sync"
	"time"
)

// memoryEntry is a serialized value plus its expiry deadline.
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryWorker is a process-local cache backed by a map with a background
// sweeper that evicts expired entries.
type InMemoryWorker struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	ttl     time.Duration
	maxSize int64
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

// InMemoryOption customizes an InMemoryWorker.
type InMemoryOption func(*InMemoryWorker)

// WithInMemoryTTL overrides the default entry TTL.
func WithInMemoryTTL(ttl time.Duration) InMemoryOption {
	return func(w *InMemoryWorker) { w.ttl = ttl }
}

// WithInMemoryMaxObjectSize overrides the maximum serialized object size.
func WithInMemoryMaxObjectSize(size int64) InMemoryOption {
	return func(w *InMemoryWorker) { w.maxSize = size }
}

// NewInMemoryWorker creates an in-process cache and starts its sweeper.
func NewInMemoryWorker(opts ...InMemoryOption) *InMemoryWorker {
	w := &InMemoryWorker{
		entries: make(map[string]memoryEntry),
		ttl:     DefaultTTL,
		maxSize: DefaultMaxObjectSize,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.sweep()
	return w
}

// sweep periodically evicts expired entries so the map does not grow
// unbounded between reads.
func (w *InMemoryWorker) sweep() {
	defer close(w.done)

	interval := w.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			now := w.now()
			w.mu.Lock()
			for key, entry := range w.entries {
				if now.After(entry.expiresAt) {
					delete(w.entries, key)
				}
			}
			w.mu.Unlock()
		}
	}
}

// Get loads a fresh entry into dst. Expired entries are treated as misses
// and removed eagerly.
func (w *InMemoryWorker) Get(_ context.Context, key string, dst any) (bool, error) {
	w.mu.RLock()
	entry, ok := w.entries[key]
	w.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if w.now().After(entry.expiresAt) {
		w.mu.Lock()
		delete(w.entries, key)
		w.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cached object %s: %w", key, err)
	}
	return true, nil
}

// Put stores a value under key, resetting its TTL.
func (w *InMemoryWorker) Put(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode object for %s: %w", key, err)
	}
	if int64(len(data)) > w.maxSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, key, len(data))
	}

	w.mu.Lock()
	w.entries[key] = memoryEntry{data: data, expiresAt: w.now().Add(w.ttl)}
	w.mu.Unlock()
	return nil
}

// Delete removes an entry if present.
func (w *InMemoryWorker) Delete(_ context.Context, key string) error {
	w.mu.Lock()
	delete(w.entries, key)
	w.mu.Unlock()
	return nil
}

// Exists reports whether a fresh entry is present.
func (w *InMemoryWorker) Exists(ctx context.Context, key string) (bool, error) {
	var discard json.RawMessage
	return w.Get(ctx, key, &discard)
}

// Close stops the sweeper and waits for it to exit.
func (w *InMemoryWorker) Close() error {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
	return nil
}

// Ensure InMemoryWorker implements Worker.
var _ Worker = (*InMemoryWorker)(nil)
