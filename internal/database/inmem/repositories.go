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

// Repositories implements database.RepositoryStore on a map.
type Repositories struct {
	table[database.Repository]
}

// NewRepositories creates an empty repository store.
func NewRepositories() *Repositories {
	return &Repositories{table: newTable[database.Repository]()}
}

func (s *Repositories) Get(_ context.Context, id uint64) (*database.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if repo, ok := s.items[id]; ok {
		return &repo, nil
	}
	return nil, nil
}

func (s *Repositories) GetBy(ctx context.Context, ref types.NameOrID) (*database.Repository, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *database.Repository
	for _, repo := range s.items {
		if repo.Name == ref.Name() && (found == nil || repo.ID < found.ID) {
			r := repo
			found = &r
		}
	}
	return found, nil
}

func (s *Repositories) GetByOwnerAndName(_ context.Context, owner uint64, name types.Name) (*database.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, repo := range s.items {
		if repo.Owner == owner && repo.Name == name {
			r := repo
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Repositories) Create(_ context.Context, _ database.CreateRepositoryPayload, skeleton *database.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, repo := range s.items {
		if repo.Owner == skeleton.Owner && repo.Name == skeleton.Name {
			return database.ErrAlreadyExists
		}
	}
	s.items[skeleton.ID] = *skeleton
	return nil
}

func (s *Repositories) Patch(_ context.Context, id uint64, payload database.PatchRepositoryPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.items[id]
	if !ok {
		return nil
	}

	if payload.Name != nil {
		name, err := types.NewName(*payload.Name)
		if err != nil {
			return err
		}
		for otherID, other := range s.items {
			if otherID != id && other.Owner == repo.Owner && other.Name == name {
				return database.ErrAlreadyExists
			}
		}
		repo.Name = name
	}
	applyNullable(&repo.Description, payload.Description)
	applyNullable(&repo.IconHash, payload.IconHash)
	if payload.Type != nil {
		repo.Type = *payload.Type
	}
	if payload.Private != nil {
		repo.Private = *payload.Private
	}
	if payload.Deprecated != nil {
		repo.Deprecated = *payload.Deprecated
	}

	s.items[id] = repo
	return nil
}

func (s *Repositories) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Repositories) Exists(_ context.Context, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *Repositories) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	repo, err := s.GetBy(ctx, ref)
	return repo != nil, err
}

func (s *Repositories) Paginate(_ context.Context, req database.PaginationRequest) (*database.Pagination[database.Repository], error) {
	items := s.snapshot()
	if req.OwnerID != 0 {
		kept := items[:0]
		for _, repo := range items {
			if repo.Owner == req.OwnerID {
				kept = append(kept, repo)
			}
		}
		items = kept
	}
	return paginate(items, req, func(r *database.Repository) uint64 { return r.ID }), nil
}

// Ensure Repositories implements database.RepositoryStore.
var _ database.RepositoryStore = (*Repositories)(nil)
