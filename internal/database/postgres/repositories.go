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

const repositoryColumns = `id, name, owner, description, icon_hash, type,
	private, deprecated, created_at, updated_at`

// Repositories implements database.RepositoryStore.
type Repositories struct {
	pool   *pgxpool.Pool
	cache  caching.Worker
	logger logr.Logger
}

// NewRepositories creates the repository store.
func NewRepositories(pool *pgxpool.Pool, cache caching.Worker, logger logr.Logger) *Repositories {
	return &Repositories{pool: pool, cache: cache, logger: logger.WithName("repositories")}
}

func repositoryCacheKey(id uint64) string {
	return caching.Key("repositories", fmt.Sprintf("%d", id))
}

func scanRepository(row pgx.Row) (*database.Repository, error) {
	var r database.Repository
	err := row.Scan(
		&r.ID, &r.Name, &r.Owner, &r.Description, &r.IconHash, &r.Type,
		&r.Private, &r.Deprecated, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Get reads a repository through the cache.
func (s *Repositories) Get(ctx context.Context, id uint64) (*database.Repository, error) {
	key := repositoryCacheKey(id)

	var cached database.Repository
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Error(err, "cache read failed", "key", key)
	} else if found {
		return &cached, nil
	}

	row := s.pool.QueryRow(ctx, "SELECT "+repositoryColumns+" FROM repositories WHERE id = $1", int64(id))
	repo, err := scanRepository(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %d: %w", id, err)
	}

	if err := s.cache.Put(ctx, key, repo); err != nil {
		s.logger.Error(err, "cache write failed", "key", key)
	}
	return repo, nil
}

// GetBy resolves a repository by id or bare name. Repository names are
// only unique per owner, so bare-name lookups return the first match;
// handlers resolve through GetByOwnerAndName.
func (s *Repositories) GetBy(ctx context.Context, ref types.NameOrID) (*database.Repository, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}

	row := s.pool.QueryRow(ctx,
		"SELECT "+repositoryColumns+" FROM repositories WHERE name = $1 ORDER BY id ASC LIMIT 1",
		ref.Name().String())
	repo, err := scanRepository(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %q: %w", ref, err)
	}
	return repo, nil
}

// GetByOwnerAndName resolves (owner, name), the unique key.
func (s *Repositories) GetByOwnerAndName(ctx context.Context, owner uint64, name types.Name) (*database.Repository, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+repositoryColumns+" FROM repositories WHERE owner = $1 AND name = $2",
		int64(owner), name.String())
	repo, err := scanRepository(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %d/%s: %w", owner, name, err)
	}
	return repo, nil
}

// Create inserts a fully-formed skeleton.
func (s *Repositories) Create(ctx context.Context, _ database.CreateRepositoryPayload, skeleton *database.Repository) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO repositories
		(id, name, owner, description, icon_hash, type, private, deprecated,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		int64(skeleton.ID), skeleton.Name.String(), int64(skeleton.Owner), skeleton.Description,
		skeleton.IconHash, string(skeleton.Type), skeleton.Private, skeleton.Deprecated,
		skeleton.CreatedAt, skeleton.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", mapError(err))
	}
	return nil
}

// Patch applies the payload in a transaction and evicts the cache entry
// after commit.
func (s *Repositories) Patch(ctx context.Context, id uint64, payload database.PatchRepositoryPayload) error {
	var b patchBuilder
	b.setString("name", payload.Name)
	b.setNullableString("description", payload.Description)
	b.setNullableString("icon_hash", payload.IconHash)
	if payload.Type != nil {
		b.set("type", string(*payload.Type))
	}
	b.setBool("private", payload.Private)
	b.setBool("deprecated", payload.Deprecated)
	if b.empty() {
		return nil
	}

	query, args := b.build("repositories", id)
	if err := execPatch(ctx, s.pool, query, args); err != nil {
		return fmt.Errorf("failed to patch repository %d: %w", id, mapError(err))
	}

	if err := s.cache.Delete(ctx, repositoryCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "repository", id)
	}
	return nil
}

// Delete evicts the cache entry, then removes the row. Releases cascade.
func (s *Repositories) Delete(ctx context.Context, id uint64) error {
	if err := s.cache.Delete(ctx, repositoryCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "repository", id)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM repositories WHERE id = $1", int64(id)); err != nil {
		return fmt.Errorf("failed to delete repository %d: %w", id, err)
	}
	return nil
}

// Exists reports whether the repository is present.
func (s *Repositories) Exists(ctx context.Context, id uint64) (bool, error) {
	if found, err := s.cache.Exists(ctx, repositoryCacheKey(id)); err == nil && found {
		return true, nil
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM repositories WHERE id = $1)", int64(id))
}

// ExistsBy reports whether a repository with the given id or name exists.
func (s *Repositories) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	if ref.IsID() {
		return s.Exists(ctx, ref.ID())
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM repositories WHERE name = $1)", ref.Name().String())
}

// Paginate walks repositories ordered by id, optionally scoped to an owner.
func (s *Repositories) Paginate(ctx context.Context, req database.PaginationRequest) (*database.Pagination[database.Repository], error) {
	var filters map[string]uint64
	if req.OwnerID != 0 {
		filters = map[string]uint64{"owner": req.OwnerID}
	}
	return paginate(ctx, s.pool, req, "repositories", repositoryColumns, filters,
		func(rows pgx.Rows) (*database.Repository, error) { return scanRepository(rows) },
		func(r *database.Repository) uint64 { return r.ID },
	)
}

// Ensure Repositories implements database.RepositoryStore.
var _ database.RepositoryStore = (*Repositories)(nil)
