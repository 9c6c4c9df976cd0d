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

	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

// Users implements database.UserStore on a map.
type Users struct {
	table[database.User]
}

// NewUsers creates an empty user store.
func NewUsers() *Users {
	return &Users{table: newTable[database.User]()}
}

func (s *Users) Get(_ context.Context, id uint64) (*database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.items[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (s *Users) GetBy(ctx context.Context, ref types.NameOrID) (*database.User, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.items {
		if user.Username == ref.Name() {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.items {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Users) Create(_ context.Context, _ database.CreateUserPayload, skeleton *database.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.items {
		if user.Username == skeleton.Username || user.Email == skeleton.Email {
			return database.ErrAlreadyExists
		}
	}
	s.items[skeleton.ID] = *skeleton
	return nil
}

func (s *Users) Patch(_ context.Context, id uint64, payload database.PatchUserPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.items[id]
	if !ok {
		return nil
	}

	if payload.Username != nil {
		name, err := types.NewName(*payload.Username)
		if err != nil {
			return err
		}
		for otherID, other := range s.items {
			if otherID != id && other.Username == name {
				return database.ErrAlreadyExists
			}
		}
		user.Username = name
	}
	if payload.Email != nil {
		user.Email = *payload.Email
	}
	if payload.Password != nil {
		password := *payload.Password
		user.Password = &password
	}
	applyNullable(&user.DisplayName, payload.DisplayName)
	applyNullable(&user.Description, payload.Description)
	applyNullable(&user.GravatarEmail, payload.GravatarEmail)

	s.items[id] = user
	return nil
}

func (s *Users) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Users) Exists(_ context.Context, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *Users) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	user, err := s.GetBy(ctx, ref)
	return user != nil, err
}

func (s *Users) Paginate(_ context.Context, req database.PaginationRequest) (*database.Pagination[database.User], error) {
	return paginate(s.snapshot(), req, func(u *database.User) uint64 { return u.ID }), nil
}

// Ensure Users implements database.UserStore.
var _ database.UserStore = (*Users)(nil)
