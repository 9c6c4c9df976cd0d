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

// Organizations implements database.OrganizationStore on a map.
type Organizations struct {
	table[database.Organization]
}

// NewOrganizations creates an empty organization store.
func NewOrganizations() *Organizations {
	return &Organizations{table: newTable[database.Organization]()}
}

func (s *Organizations) Get(_ context.Context, id uint64) (*database.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if org, ok := s.items[id]; ok {
		return &org, nil
	}
	return nil, nil
}

func (s *Organizations) GetBy(ctx context.Context, ref types.NameOrID) (*database.Organization, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.items {
		if org.Name == ref.Name() {
			o := org
			return &o, nil
		}
	}
	return nil, nil
}

func (s *Organizations) Create(_ context.Context, _ database.CreateOrganizationPayload, skeleton *database.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, org := range s.items {
		if org.Name == skeleton.Name {
			return database.ErrAlreadyExists
		}
	}
	s.items[skeleton.ID] = *skeleton
	return nil
}

func (s *Organizations) Patch(_ context.Context, id uint64, payload database.PatchOrganizationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.items[id]
	if !ok {
		return nil
	}

	if payload.Name != nil {
		name, err := types.NewName(*payload.Name)
		if err != nil {
			return err
		}
		for otherID, other := range s.items {
			if otherID != id && other.Name == name {
				return database.ErrAlreadyExists
			}
		}
		org.Name = name
	}
	applyNullable(&org.DisplayName, payload.DisplayName)
	applyNullable(&org.GravatarEmail, payload.GravatarEmail)
	if payload.Private != nil {
		org.Private = *payload.Private
	}

	s.items[id] = org
	return nil
}

func (s *Organizations) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Organizations) Exists(_ context.Context, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *Organizations) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	org, err := s.GetBy(ctx, ref)
	return org != nil, err
}

func (s *Organizations) Paginate(_ context.Context, req database.PaginationRequest) (*database.Pagination[database.Organization], error) {
	items := s.snapshot()
	if req.OwnerID != 0 {
		kept := items[:0]
		for _, org := range items {
			if org.Owner == req.OwnerID {
				kept = append(kept, org)
			}
		}
		items = kept
	}
	return paginate(items, req, func(o *database.Organization) uint64 { return o.ID }), nil
}

// Ensure Organizations implements database.OrganizationStore.
var _ database.OrganizationStore = (*Organizations)(nil)
