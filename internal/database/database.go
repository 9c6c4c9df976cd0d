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

// Package database defines the registry's entity model and the store
// contracts the HTTP layer consumes. The postgres subpackage provides the
// relational implementation.
package database

import (
	"context"
	"errors"

	"github.com/charted-dev/charted/internal/types"
)

// ErrAlreadyExists is returned when an insert or patch violates a
// uniqueness constraint (username, email, owner+name, repository+tag).
var ErrAlreadyExists = errors.New("entity already exists")

// SortOrder is the pagination direction by id.
type SortOrder string

// Sort orders.
const (
	OrderAscending  SortOrder = "asc"
	OrderDescending SortOrder = "desc"
)

// Pagination limits.
const (
	DefaultPerPage = 32
	MaxPerPage     = 100
)

// PaginationRequest describes one page of a cursor walk.
type PaginationRequest struct {
	// PerPage is clamped to [1, MaxPerPage]; zero means DefaultPerPage.
	PerPage int

	// Order defaults to ascending when empty.
	Order SortOrder

	// Cursor is the id to resume from; zero starts from the beginning.
	Cursor uint64

	// OwnerID scopes owner-keyed tables; zero means unscoped.
	OwnerID uint64

	// Metadata carries table-specific filters, e.g. "repository" when
	// paginating releases.
	Metadata map[string]uint64
}

// Normalize clamps PerPage and defaults the order.
func (r PaginationRequest) Normalize() PaginationRequest {
	if r.PerPage <= 0 {
		r.PerPage = DefaultPerPage
	}
	if r.PerPage > MaxPerPage {
		r.PerPage = MaxPerPage
	}
	if r.Order != OrderDescending {
		r.Order = OrderAscending
	}
	return r
}

// PageInfo carries the cursor for the next page, absent on the last page.
type PageInfo struct {
	Cursor *uint64 `json:"cursor,omitempty"`
}

// Pagination is one page of entities.
type Pagination[E any] struct {
	Data     []E      `json:"data"`
	PageInfo PageInfo `json:"page_info"`
}

// Store is the generic entity contract. Get and GetBy return (nil, nil)
// when the entity does not exist. Reads go through the cache keyed by id;
// name lookups bypass it. A committed Patch evicts the cache entry before
// returning.
type Store[E any, C any, P any] interface {
	Get(ctx context.Context, id uint64) (*E, error)
	GetBy(ctx context.Context, ref types.NameOrID) (*E, error)
	Create(ctx context.Context, payload C, skeleton *E) error
	Patch(ctx context.Context, id uint64, payload P) error
	Delete(ctx context.Context, id uint64) error
	Exists(ctx context.Context, id uint64) (bool, error)
	ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error)
	Paginate(ctx context.Context, req PaginationRequest) (*Pagination[E], error)
}

// UserStore manages users.
type UserStore interface {
	Store[User, CreateUserPayload, PatchUserPayload]

	// GetByEmail looks a user up by email, bypassing the cache.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// OrganizationStore manages organizations.
type OrganizationStore interface {
	Store[Organization, CreateOrganizationPayload, PatchOrganizationPayload]
}

// RepositoryStore manages repositories. GetBy resolves names within the
// owner passed through PaginationRequest-style scoping, so the interface
// adds an owner-qualified lookup.
type RepositoryStore interface {
	Store[Repository, CreateRepositoryPayload, PatchRepositoryPayload]

	// GetByOwnerAndName resolves (owner, name), which is the unique key.
	GetByOwnerAndName(ctx context.Context, owner uint64, name types.Name) (*Repository, error)
}

// RepositoryReleaseStore manages releases.
type RepositoryReleaseStore interface {
	Store[RepositoryRelease, CreateRepositoryReleasePayload, PatchRepositoryReleasePayload]

	// GetByTag resolves (repository, tag), which is the unique key.
	GetByTag(ctx context.Context, repository uint64, tag string) (*RepositoryRelease, error)
}

// ApiKeyStore manages API keys.
type ApiKeyStore interface {
	Store[ApiKey, CreateApiKeyPayload, PatchApiKeyPayload]

	// GetByToken resolves a key from its plaintext token.
	GetByToken(ctx context.Context, token string) (*ApiKey, error)

	// GetByOwnerAndName resolves (owner, name); key names are only unique
	// within one owner.
	GetByOwnerAndName(ctx context.Context, owner uint64, name types.Name) (*ApiKey, error)
}
