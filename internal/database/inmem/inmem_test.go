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

package inmem

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

func seedUsers(t *testing.T, n int) *Users {
	t.Helper()
	store := NewUsers()
	for i := 1; i <= n; i++ {
		name, err := types.NewName(fmt.Sprintf("user%d", i))
		if err != nil {
			t.Fatal(err)
		}
		err = store.Create(context.Background(), database.CreateUserPayload{}, &database.User{
			ID:       uint64(i * 100),
			Username: name,
			Email:    fmt.Sprintf("user%d@example.com", i),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	return store
}

// walk follows page cursors until exhaustion and returns every id seen.
func walk(t *testing.T, store *Users, order database.SortOrder, perPage int) []uint64 {
	t.Helper()

	var ids []uint64
	req := database.PaginationRequest{PerPage: perPage, Order: order}
	for {
		page, err := store.Paginate(context.Background(), req)
		if err != nil {
			t.Fatalf("Paginate failed: %v", err)
		}
		for _, user := range page.Data {
			ids = append(ids, user.ID)
		}
		if page.PageInfo.Cursor == nil {
			return ids
		}
		req.Cursor = *page.PageInfo.Cursor
	}
}

func TestPaginate_Completeness(t *testing.T) {
	store := seedUsers(t, 10)

	asc := walk(t, store, database.OrderAscending, 3)
	if len(asc) != 10 {
		t.Fatalf("ascending walk yielded %d rows, want 10", len(asc))
	}
	for i, id := range asc {
		if want := uint64((i + 1) * 100); id != want {
			t.Errorf("asc[%d] = %d, want %d", i, id, want)
		}
	}

	desc := walk(t, store, database.OrderDescending, 4)
	if len(desc) != 10 {
		t.Fatalf("descending walk yielded %d rows, want 10", len(desc))
	}
	for i, id := range desc {
		if want := uint64((10 - i) * 100); id != want {
			t.Errorf("desc[%d] = %d, want %d", i, id, want)
		}
	}
}

func TestPaginate_ExactPageBoundary(t *testing.T) {
	store := seedUsers(t, 6)

	page, err := store.Paginate(context.Background(), database.PaginationRequest{PerPage: 6})
	if err != nil {
		t.Fatalf("Paginate failed: %v", err)
	}
	if len(page.Data) != 6 {
		t.Errorf("len(data) = %d, want 6", len(page.Data))
	}
	if page.PageInfo.Cursor != nil {
		t.Errorf("cursor = %v, want absent on final page", *page.PageInfo.Cursor)
	}
}

func TestUsers_CreateDuplicate(t *testing.T) {
	store := seedUsers(t, 1)
	name, _ := types.NewName("user1")

	err := store.Create(context.Background(), database.CreateUserPayload{}, &database.User{
		ID:       999,
		Username: name,
		Email:    "other@example.com",
	})
	if !errors.Is(err, database.ErrAlreadyExists) {
		t.Errorf("Create = %v, want ErrAlreadyExists", err)
	}
}

func TestUsers_PatchEmptyStringClearsColumn(t *testing.T) {
	store := seedUsers(t, 1)
	ctx := context.Background()

	display := "Noel"
	if err := store.Patch(ctx, 100, database.PatchUserPayload{DisplayName: &display}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	user, _ := store.Get(ctx, 100)
	if user.DisplayName == nil || *user.DisplayName != "Noel" {
		t.Fatalf("DisplayName = %v, want Noel", user.DisplayName)
	}

	empty := ""
	if err := store.Patch(ctx, 100, database.PatchUserPayload{DisplayName: &empty}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	user, _ = store.Get(ctx, 100)
	if user.DisplayName != nil {
		t.Errorf("DisplayName = %q, want cleared", *user.DisplayName)
	}
}

func TestApiKeys_TokenHashing(t *testing.T) {
	store := NewApiKeys()
	ctx := context.Background()
	name, _ := types.NewName("ci")

	err := store.Create(ctx, database.CreateApiKeyPayload{}, &database.ApiKey{
		ID:    1,
		Owner: 100,
		Name:  name,
		Token: "plaintext-token",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	key, err := store.GetByToken(ctx, "plaintext-token")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if key == nil || key.ID != 1 {
		t.Fatalf("GetByToken = %+v, want key 1", key)
	}
	if key.Token != "" {
		t.Error("store leaked the stored token digest")
	}

	if key, _ := store.GetByToken(ctx, "wrong-token"); key != nil {
		t.Error("GetByToken matched a wrong token")
	}
}
