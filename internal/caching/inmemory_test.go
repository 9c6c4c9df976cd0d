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
)

type cachedUser struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

func TestInMemoryWorker_PutGet(t *testing.T) {
	worker := NewInMemoryWorker()
	defer func() { _ = worker.Close() }()
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

func TestInMemoryWorker_GetMissing(t *testing.T) {
	worker := NewInMemoryWorker()
	defer func() { _ = worker.Close() }()

	var got cachedUser
	found, err := worker.Get(context.Background(), Key("users", "999"), &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Get found a missing entry")
	}
}

func TestInMemoryWorker_Expiry(t *testing.T) {
	worker := NewInMemoryWorker(WithInMemoryTTL(time.Minute))
	defer func() { _ = worker.Close() }()
	ctx := context.Background()

	current := time.Unix(1700000000, 0)
	worker.now = func() time.Time { return current }

	if err := worker.Put(ctx, "users:1", cachedUser{ID: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Advance past the TTL; the entry must be treated as a miss even
	// before the sweeper runs.
	current = current.Add(2 * time.Minute)

	var got cachedUser
	found, err := worker.Get(ctx, "users:1", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Get returned an expired entry")
	}

	exists, err := worker.Exists(ctx, "users:1")
	if err != nil || exists {
		t.Errorf("Exists after expiry = %v, %v; want false, nil", exists, err)
	}
}

func TestInMemoryWorker_ObjectTooLarge(t *testing.T) {
	worker := NewInMemoryWorker(WithInMemoryMaxObjectSize(64))
	defer func() { _ = worker.Close() }()

	big := make([]byte, 128)
	err := worker.Put(context.Background(), "big", big)
	if !errors.Is(err, ErrObjectTooLarge) {
		t.Errorf("Put = %v, want ErrObjectTooLarge", err)
	}
}

func TestInMemoryWorker_DeleteIdempotent(t *testing.T) {
	worker := NewInMemoryWorker()
	defer func() { _ = worker.Close() }()
	ctx := context.Background()

	if err := worker.Put(ctx, "users:1", cachedUser{ID: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := worker.Delete(ctx, "users:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := worker.Delete(ctx, "users:1"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	exists, err := worker.Exists(ctx, "users:1")
	if err != nil || exists {
		t.Errorf("Exists after delete = %v, %v; want false, nil", exists, err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("repositories", "releases", "42"); got != "repositories:releases:42" {
		t.Errorf("Key = %q, want %q", got, "repositories:releases:42")
	}
}
