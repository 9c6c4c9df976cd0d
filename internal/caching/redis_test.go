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
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisWorker(t *testing.T, opts ...RedisOption) (*RedisWorker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWorker(client, opts...), mr
}

func TestRedisWorker_PutGet(t *testing.T) {
	worker, _ := newTestRedisWorker(t)
	ctx := context.Background()

	want := cachedUser{ID: 1234, Username: "noel"}
	if err := worker.Put(ctx, Key("users", "1234"), want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got cachedUser
	found, err := worker.Get(ctx, Key("users", "1234"), &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Get did not find entry")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestRedisWorker_ServerSideExpiry(t *testing.T) {
	worker, mr := newTestRedisWorker(t, WithRedisTTL(time.Minute))
	ctx := context.Background()

	if err := worker.Put(ctx, "users:1", cachedUser{ID: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ttl := mr.TTL("users:1"); ttl != time.Minute {
		t.Errorf("TTL = %v, want %v", ttl, time.Minute)
	}

	mr.FastForward(2 * time.Minute)

	var got cachedUser
	found, err := worker.Get(ctx, "users:1", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Get returned an expired entry")
	}
}

func TestRedisWorker_ObjectTooLarge(t *testing.T) {
	worker, _ := newTestRedisWorker(t, WithRedisMaxObjectSize(64))

	big := make([]byte, 128)
	err := worker.Put(context.Background(), "big", big)
	if !errors.Is(err, ErrObjectTooLarge) {
		t.Errorf("Put = %v, want ErrObjectTooLarge", err)
	}
}

func TestRedisWorker_DeleteAndExists(t *testing.T) {
	worker, _ := newTestRedisWorker(t)
	ctx := context.Background()

	if err := worker.Put(ctx, "users:1", cachedUser{ID: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := worker.Exists(ctx, "users:1")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}

	if err := worker.Delete(ctx, "users:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := worker.Delete(ctx, "users:1"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	exists, err = worker.Exists(ctx, "users:1")
	if err != nil || exists {
		t.Errorf("Exists after delete = %v, %v; want false, nil", exists, err)
	}
}
