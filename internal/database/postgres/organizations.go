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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/charted-dev/charted/internal/caching"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

const organizationColumns = `id, name, display_name, owner, gravatar_email, icon_hash,
	private, verified_publisher, created_at, updated_at`

// Organizations implements database.OrganizationStore.
type Organizations struct {
	pool   *pgxpool.Pool
	cache  caching.Worker
	logger logr.Logger
}

// NewOrganizations creates the organization store.
func NewOrganizations(pool *pgxpool.Pool, cache caching.Worker, logger logr.Logger) *Organizations {
	return &Organizations{pool: pool, cache: cache, logger: logger.WithName("organizations")}
}

func organizationCacheKey(id uint64) string {
	return caching.Key("organizations", fmt.Sprintf("%d", id))
}

func scanOrganization(row pgx.Row) (*database.Organization, error) {
	var o database.Organization
	err := row.Scan(
		&o.ID, &o.Name, &o.DisplayName, &o.Owner, &o.GravatarEmail, &o.IconHash,
		&o.Private, &o.VerifiedPublisher, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Get reads an organization through the cache.
func (s *Organizations) Get(ctx context.Context, id uint64) (*database.Organization, error) {
	key := organizationCacheKey(id)

	var cached database.Organization
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Error(err, "cache read failed", "key", key)
	} else if found {
		return &cached, nil
	}

	row := s.pool.QueryRow(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE id = $1", int64(id))
	org, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %d: %w", id, err)
	}

	if err := s.cache.Put(ctx, key, org); err != nil {
		s.logger.Error(err, "cache write failed", "key", key)
	}
	return org, nil
}

// GetBy resolves an organization by id or name.
func (s *Organizations) GetBy(ctx context.Context, ref types.NameOrID) (*database.Organization, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}

	row := s.pool.QueryRow(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE name = $1", ref.Name().String())
	org, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %q: %w", ref, err)
	}
	return org, nil
}

// Create inserts a fully-formed skeleton.
func (s *Organizations) Create(ctx context.Context, _ database.CreateOrganizationPayload, skeleton *database.Organization) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO organizations
		(id, name, display_name, owner, gravatar_email, icon_hash, private,
		 verified_publisher, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		int64(skeleton.ID), skeleton.Name.String(), skeleton.DisplayName, int64(skeleton.Owner),
		skeleton.GravatarEmail, skeleton.IconHash, skeleton.Private, skeleton.VerifiedPublisher,
		skeleton.CreatedAt, skeleton.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapError(err))
	}
	return nil
}

// Patch applies the payload in a transaction and evicts the cache entry
// after commit.
func (s *Organizations) Patch(ctx context.Context, id uint64, payload database.PatchOrganizationPayload) error {
	var b patchBuilder
	b.setString("name", payload.Name)
	b.setNullableString("display_name", payload.DisplayName)
	b.setNullableString("gravatar_email", payload.GravatarEmail)
	b.setBool("private", payload.Private)
	if b.empty() {
		return nil
	}

	query, args := b.build("organizations", id)
	if err := execPatch(ctx, s.pool, query, args); err != nil {
		return fmt.Errorf("failed to patch organization %d: %w", id, mapError(err))
	}

	if err := s.cache.Delete(ctx, organizationCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "organization", id)
	}
	return nil
}

// Delete evicts the cache entry, then removes the row.
func (s *Organizations) Delete(ctx context.Context, id uint64) error {
	if err := s.cache.Delete(ctx, organizationCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "organization", id)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM organizations WHERE id = $1", int64(id)); err != nil {
		return fmt.Errorf("failed to delete organization %d: %w", id, err)
	}
	return nil
}

// Exists reports whether the organization is present.
func (s *Organizations) Exists(ctx context.Context, id uint64) (bool, error) {
	if found, err := s.cache.Exists(ctx, organizationCacheKey(id)); err == nil && found {
		return true, nil
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)", int64(id))
}

// ExistsBy reports whether an organization with the given id or name exists.
func (s *Organizations) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	if ref.IsID() {
		return s.Exists(ctx, ref.ID())
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM organizations WHERE name = $1)", ref.Name().String())
}

// Paginate walks organizations ordered by id, optionally scoped to an
// owning user.
func (s *Organizations) Paginate(ctx context.Context, req database.PaginationRequest) (*database.Pagination[database.Organization], error) {
	var filters map[string]uint64
	if req.OwnerID != 0 {
		filters = map[string]uint64{"owner": req.OwnerID}
	}
	return paginate(ctx, s.pool, req, "organizations", organizationColumns, filters,
		func(rows pgx.Rows) (*database.Organization, error) { return scanOrganization(rows) },
		func(o *database.Organization) uint64 { return o.ID },
	)
}

// Ensure Organizations implements database.OrganizationStore.
var _ database.OrganizationStore = (*Organizations)(nil)
