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
	"crypto/sha256"
	"encoding/hex"

	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

// ApiKeys implements database.ApiKeyStore on a map. Like the relational
// store it persists a SHA-256 digest of the token.
type ApiKeys struct {
	table[database.ApiKey]
}

// NewApiKeys creates an empty API key store.
func NewApiKeys() *ApiKeys {
	return &ApiKeys{table: newTable[database.ApiKey]()}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// sanitize strips the stored hash before a key leaves the store.
func sanitize(key database.ApiKey) *database.ApiKey {
	key.Token = ""
	return &key
}

func (s *ApiKeys) Get(_ context.Context, id uint64) (*database.ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.items[id]; ok {
		return sanitize(key), nil
	}
	return nil, nil
}

func (s *ApiKeys) GetBy(ctx context.Context, ref types.NameOrID) (*database.ApiKey, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *database.ApiKey
	for _, key := range s.items {
		if key.Name == ref.Name() && (found == nil || key.ID < found.ID) {
			found = sanitize(key)
		}
	}
	return found, nil
}

func (s *ApiKeys) GetByOwnerAndName(_ context.Context, owner uint64, name types.Name) (*database.ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.items {
		if key.Owner == owner && key.Name == name {
			return sanitize(key), nil
		}
	}
	return nil, nil
}

func (s *ApiKeys) GetByToken(_ context.Context, token string) (*database.ApiKey, error) {
	hashed := hashToken(token)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.items {
		if key.Token == hashed {
			return sanitize(key), nil
		}
	}
	return nil, nil
}

func (s *ApiKeys) Create(_ context.Context, _ database.CreateApiKeyPayload, skeleton *database.ApiKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.items {
		if key.Owner == skeleton.Owner && key.Name == skeleton.Name {
			return database.ErrAlreadyExists
		}
	}
	stored := *skeleton
	stored.Token = hashToken(skeleton.Token)
	s.items[skeleton.ID] = stored
	return nil
}

func (s *ApiKeys) Patch(_ context.Context, id uint64, payload database.PatchApiKeyPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.items[id]
	if !ok {
		return nil
	}

	if payload.Name != nil {
		name, err := types.NewName(*payload.Name)
		if err != nil {
			return err
		}
		for otherID, other := range s.items {
			if otherID != id && other.Owner == key.Owner && other.Name == name {
				return database.ErrAlreadyExists
			}
		}
		key.Name = name
	}
	applyNullable(&key.Description, payload.Description)

	s.items[id] = key
	return nil
}

func (s *ApiKeys) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *ApiKeys) Exists(_ context.Context, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *ApiKeys) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	key, err := s.GetBy(ctx, ref)
	return key != nil, err
}

func (s *ApiKeys) Paginate(_ context.Context, req database.PaginationRequest) (*database.Pagination[database.ApiKey], error) {
	items := s.snapshot()
	kept := items[:0]
	for _, key := range items {
		if req.OwnerID != 0 && key.Owner != req.OwnerID {
			continue
		}
		kept = append(kept, *sanitize(key))
	}
	return paginate(kept, req, func(k *database.ApiKey) uint64 { return k.ID }), nil
}

// Ensure ApiKeys implements database.ApiKeyStore.
var _ database.ApiKeyStore = (*ApiKeys)(nil)
