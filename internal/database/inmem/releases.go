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

// Releases implements database.RepositoryReleaseStore on a map.
type Releases struct {
	table[database.RepositoryRelease]
}

// NewReleases creates an empty release store.
func NewReleases() *Releases {
	return &Releases{table: newTable[database.RepositoryRelease]()}
}

func (s *Releases) Get(_ context.Context, id uint64) (*database.RepositoryRelease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if release, ok := s.items[id]; ok {
		return &release, nil
	}
	return nil, nil
}

func (s *Releases) GetBy(ctx context.Context, ref types.NameOrID) (*database.RepositoryRelease, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}
	return nil, nil
}

func (s *Releases) GetByTag(_ context.Context, repository uint64, tag string) (*database.RepositoryRelease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, release := range s.items {
		if release.Repository == repository && release.Tag == tag {
			r := release
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Releases) Create(_ context.Context, _ database.CreateRepositoryReleasePayload, skeleton *database.RepositoryRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, release := range s.items {
		if release.Repository == skeleton.Repository && release.Tag == skeleton.Tag {
			return database.ErrAlreadyExists
		}
	}
	s.items[skeleton.ID] = *skeleton
	return nil
}

func (s *Releases) Patch(_ context.Context, id uint64, payload database.PatchRepositoryReleasePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, ok := s.items[id]
	if !ok {
		return nil
	}
	applyNullable(&release.UpdateText, payload.UpdateText)
	s.items[id] = release
	return nil
}

func (s *Releases) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Releases) Exists(_ context.Context, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *Releases) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	if !ref.IsID() {
		return false, nil
	}
	return s.Exists(ctx, ref.ID())
}

func (s *Releases) Paginate(_ context.Context, req database.PaginationRequest) (*database.Pagination[database.RepositoryRelease], error) {
	items := s.snapshot()
	if repo, ok := req.Metadata["repository"]; ok && repo != 0 {
		kept := items[:0]
		for _, release := range items {
			if release.Repository == repo {
				kept = append(kept, release)
			}
		}
		items = kept
	}
	return paginate(items, req, func(r *database.RepositoryRelease) uint64 { return r.ID }), nil
}

// Ensure Releases implements database.RepositoryReleaseStore.
var _ database.RepositoryReleaseStore = (*Releases)(nil)
