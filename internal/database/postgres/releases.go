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

const releaseColumns = `id, repository, tag, update_text, prerelease, created_at, updated_at`

// Releases implements database.RepositoryReleaseStore.
type Releases struct {
	pool   *pgxpool.Pool
	cache  caching.Worker
	logger logr.Logger
}

// NewReleases creates the release store.
func NewReleases(pool *pgxpool.Pool, cache caching.Worker, logger logr.Logger) *Releases {
	return &Releases{pool: pool, cache: cache, logger: logger.WithName("releases")}
}

func releaseCacheKey(id uint64) string {
	return caching.Key("repositories", "releases", fmt.Sprintf("%d", id))
}

func scanRelease(row pgx.Row) (*database.RepositoryRelease, error) {
	var r database.RepositoryRelease
	err := row.Scan(
		&r.ID, &r.Repository, &r.Tag, &r.UpdateText, &r.Prerelease,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Get reads a release through the cache.
func (s *Releases) Get(ctx context.Context, id uint64) (*database.RepositoryRelease, error) {
	key := releaseCacheKey(id)

	var cached database.RepositoryRelease
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Error(err, "cache read failed", "key", key)
	} else if found {
		return &cached, nil
	}

	row := s.pool.QueryRow(ctx, "SELECT "+releaseColumns+" FROM repository_releases WHERE id = $1", int64(id))
	release, err := scanRelease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release %d: %w", id, err)
	}

	if err := s.cache.Put(ctx, key, release); err != nil {
		s.logger.Error(err, "cache write failed", "key", key)
	}
	return release, nil
}

// GetBy only resolves numeric ids; releases have SemVer tags instead of
// names, so name refs never match.
func (s *Releases) GetBy(ctx context.Context, ref types.NameOrID) (*database.RepositoryRelease, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}
	return nil, nil
}

// GetByTag resolves (repository, tag), the unique key.
func (s *Releases) GetByTag(ctx context.Context, repository uint64, tag string) (*database.RepositoryRelease, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+releaseColumns+" FROM repository_releases WHERE repository = $1 AND tag = $2",
		int64(repository), tag)
	release, err := scanRelease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release %d/%s: %w", repository, tag, err)
	}
	return release, nil
}

// Create inserts a fully-formed skeleton.
func (s *Releases) Create(ctx context.Context, _ database.CreateRepositoryReleasePayload, skeleton *database.RepositoryRelease) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO repository_releases
		(id, repository, tag, update_text, prerelease, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		int64(skeleton.ID), int64(skeleton.Repository), skeleton.Tag, skeleton.UpdateText,
		skeleton.Prerelease, skeleton.CreatedAt, skeleton.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create release: %w", mapError(err))
	}
	return nil
}

// Patch applies the payload in a transaction and evicts the cache entry
// after commit.
func (s *Releases) Patch(ctx context.Context, id uint64, payload database.PatchRepositoryReleasePayload) error {
	var b patchBuilder
	b.setNullableString("update_text", payload.UpdateText)
	if b.empty() {
		return nil
	}

	query, args := b.build("repository_releases", id)
	if err := execPatch(ctx, s.pool, query, args); err != nil {
		return fmt.Errorf("failed to patch release %d: %w", id, mapError(err))
	}

	if err := s.cache.Delete(ctx, releaseCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "release", id)
	}
	return nil
}

// Delete evicts the cache entry, then removes the row. The tarball blob is
// the chart engine's responsibility.
func (s *Releases) Delete(ctx context.Context, id uint64) error {
	if err := s.cache.Delete(ctx, releaseCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "release", id)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM repository_releases WHERE id = $1", int64(id)); err != nil {
		return fmt.Errorf("failed to delete release %d: %w", id, err)
	}
	return nil
}

// Exists reports whether the release is present.
func (s *Releases) Exists(ctx context.Context, id uint64) (bool, error) {
	if found, err := s.cache.Exists(ctx, releaseCacheKey(id)); err == nil && found {
		return true, nil
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM repository_releases WHERE id = $1)", int64(id))
}

// ExistsBy only resolves numeric ids; see GetBy.
func (s *Releases) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	if ref.IsID() {
		return s.Exists(ctx, ref.ID())
	}
	return false, nil
}

// Paginate walks releases ordered by id, scoped to a repository through
// the metadata filter.
func (s *Releases) Paginate(ctx context.Context, req database.PaginationRequest) (*database.Pagination[database.RepositoryRelease], error) {
	var filters map[string]uint64
	if repo, ok := req.Metadata["repository"]; ok && repo != 0 {
		filters = map[string]uint64{"repository": repo}
	}
	return paginate(ctx, s.pool, req, "repository_releases", releaseColumns, filters,
		func(rows pgx.Rows) (*database.RepositoryRelease, error) { return scanRelease(rows) },
		func(r *database.RepositoryRelease) uint64 { return r.ID },
	)
}

// Ensure Releases implements database.RepositoryReleaseStore.
var _ database.RepositoryReleaseStore = (*Releases)(nil)
