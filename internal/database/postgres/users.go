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

const userColumns = `id, username, display_name, email, password, description,
	avatar_hash, gravatar_email, admin, verified_publisher, created_at, updated_at`

// Users implements database.UserStore.
type Users struct {
	pool   *pgxpool.Pool
	cache  caching.Worker
	logger logr.Logger
}

// NewUsers creates the user store.
func NewUsers(pool *pgxpool.Pool, cache caching.Worker, logger logr.Logger) *Users {
	return &Users{pool: pool, cache: cache, logger: logger.WithName("users")}
}

func userCacheKey(id uint64) string {
	return caching.Key("users", fmt.Sprintf("%d", id))
}

func scanUser(row pgx.Row) (*database.User, error) {
	var u database.User
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.Password, &u.Description,
		&u.AvatarHash, &u.GravatarEmail, &u.Admin, &u.VerifiedPublisher,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Get reads a user through the cache. The cached copy never carries the
// password hash; credential checks resolve users by name, which hits the
// database directly.
func (s *Users) Get(ctx context.Context, id uint64) (*database.User, error) {
	key := userCacheKey(id)

	var cached database.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Error(err, "cache read failed", "key", key)
	} else if found {
		return &cached, nil
	}

	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", int64(id))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	if err := s.cache.Put(ctx, key, user); err != nil {
		s.logger.Error(err, "cache write failed", "key", key)
	}
	return user, nil
}

// GetBy resolves a user by id or username. Name lookups bypass the cache
// since it is keyed by id.
func (s *Users) GetBy(ctx context.Context, ref types.NameOrID) (*database.User, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}

	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", ref.Name().String())
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", ref, err)
	}
	return user, nil
}

// GetByEmail resolves a user by email, bypassing the cache.
func (s *Users) GetByEmail(ctx context.Context, email string) (*database.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// Create inserts a fully-formed skeleton. The cache is not pre-populated.
func (s *Users) Create(ctx context.Context, _ database.CreateUserPayload, skeleton *database.User) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO users
		(id, username, display_name, email, password, description, avatar_hash,
		 gravatar_email, admin, verified_publisher, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		int64(skeleton.ID), skeleton.Username.String(), skeleton.DisplayName, skeleton.Email,
		skeleton.Password, skeleton.Description, skeleton.AvatarHash, skeleton.GravatarEmail,
		skeleton.Admin, skeleton.VerifiedPublisher, skeleton.CreatedAt, skeleton.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	return nil
}

// Patch applies the payload in a transaction and evicts the cache entry
// after commit.
func (s *Users) Patch(ctx context.Context, id uint64, payload database.PatchUserPayload) error {
	var b patchBuilder
	b.setString("username", payload.Username)
	b.setString("email", payload.Email)
	b.setString("password", payload.Password)
	b.setNullableString("display_name", payload.DisplayName)
	b.setNullableString("description", payload.Description)
	b.setNullableString("gravatar_email", payload.GravatarEmail)
	if b.empty() {
		return nil
	}

	query, args := b.build("users", id)
	if err := execPatch(ctx, s.pool, query, args); err != nil {
		return fmt.Errorf("failed to patch user %d: %w", id, mapError(err))
	}

	if err := s.cache.Delete(ctx, userCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "user", id)
	}
	return nil
}

// Delete evicts the cache entry, then removes the row. Cascades handle
// owned repositories, organizations, and API keys.
func (s *Users) Delete(ctx context.Context, id uint64) error {
	if err := s.cache.Delete(ctx, userCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "user", id)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", int64(id)); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return nil
}

// Exists reports whether the user is present. A cache hit short-circuits.
func (s *Users) Exists(ctx context.Context, id uint64) (bool, error) {
	if found, err := s.cache.Exists(ctx, userCacheKey(id)); err == nil && found {
		return true, nil
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", int64(id))
}

// ExistsBy reports whether a user with the given id or username exists.
func (s *Users) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	if ref.IsID() {
		return s.Exists(ctx, ref.ID())
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", ref.Name().String())
}

// Paginate walks users ordered by id.
func (s *Users) Paginate(ctx context.Context, req database.PaginationRequest) (*database.Pagination[database.User], error) {
	return paginate(ctx, s.pool, req, "users", userColumns, nil,
		func(rows pgx.Rows) (*database.User, error) { return scanUser(rows) },
		func(u *database.User) uint64 { return u.ID },
	)
}

// Ensure Users implements database.UserStore.
var _ database.UserStore = (*Users)(nil)
