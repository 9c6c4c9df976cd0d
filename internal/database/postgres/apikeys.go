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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/charted-dev/charted/internal/caching"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

const apiKeyColumns = `id, owner, name, description, token, scopes, expires_in, created_at, updated_at`

// ApiKeys implements database.ApiKeyStore. The token column stores a
// SHA-256 digest of the plaintext; the plaintext is only ever returned on
// the create response.
type ApiKeys struct {
	pool   *pgxpool.Pool
	cache  caching.Worker
	logger logr.Logger
}

// NewApiKeys creates the API key store.
func NewApiKeys(pool *pgxpool.Pool, cache caching.Worker, logger logr.Logger) *ApiKeys {
	return &ApiKeys{pool: pool, cache: cache, logger: logger.WithName("apikeys")}
}

func apiKeyCacheKey(id uint64) string {
	return caching.Key("api_keys", fmt.Sprintf("%d", id))
}

// HashToken digests a plaintext token the way the store persists it.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func scanApiKey(row pgx.Row) (*database.ApiKey, error) {
	var (
		k      database.ApiKey
		scopes int64
	)
	err := row.Scan(
		&k.ID, &k.Owner, &k.Name, &k.Description, &k.Token, &scopes,
		&k.ExpiresIn, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	k.Scopes = uint64(scopes)
	// Never surface the stored hash as a token.
	k.Token = ""
	return &k, nil
}

// Get reads an API key through the cache.
func (s *ApiKeys) Get(ctx context.Context, id uint64) (*database.ApiKey, error) {
	key := apiKeyCacheKey(id)

	var cached database.ApiKey
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Error(err, "cache read failed", "key", key)
	} else if found {
		return &cached, nil
	}

	row := s.pool.QueryRow(ctx, "SELECT "+apiKeyColumns+" FROM api_keys WHERE id = $1", int64(id))
	apiKey, err := scanApiKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key %d: %w", id, err)
	}

	if err := s.cache.Put(ctx, key, apiKey); err != nil {
		s.logger.Error(err, "cache write failed", "key", key)
	}
	return apiKey, nil
}

// GetBy resolves an API key by id or bare name. Key names are only unique
// per owner; handlers resolve through GetByOwnerAndName.
func (s *ApiKeys) GetBy(ctx context.Context, ref types.NameOrID) (*database.ApiKey, error) {
	if ref.IsID() {
		return s.Get(ctx, ref.ID())
	}

	row := s.pool.QueryRow(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE name = $1 ORDER BY id ASC LIMIT 1",
		ref.Name().String())
	apiKey, err := scanApiKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key %q: %w", ref, err)
	}
	return apiKey, nil
}

// GetByOwnerAndName resolves (owner, name), the unique key.
func (s *ApiKeys) GetByOwnerAndName(ctx context.Context, owner uint64, name types.Name) (*database.ApiKey, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE owner = $1 AND name = $2",
		int64(owner), name.String())
	apiKey, err := scanApiKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key %d/%s: %w", owner, name, err)
	}
	return apiKey, nil
}

// GetByToken resolves a key from its plaintext token, bypassing the cache.
func (s *ApiKeys) GetByToken(ctx context.Context, token string) (*database.ApiKey, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE token = $1", HashToken(token))
	apiKey, err := scanApiKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key by token: %w", err)
	}
	return apiKey, nil
}

// Create inserts a fully-formed skeleton. skeleton.Token carries the
// plaintext; the hash is what lands in the table.
func (s *ApiKeys) Create(ctx context.Context, _ database.CreateApiKeyPayload, skeleton *database.ApiKey) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO api_keys
		(id, owner, name, description, token, scopes, expires_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(skeleton.ID), int64(skeleton.Owner), skeleton.Name.String(), skeleton.Description,
		HashToken(skeleton.Token), int64(skeleton.Scopes), skeleton.ExpiresIn,
		skeleton.CreatedAt, skeleton.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", mapError(err))
	}
	return nil
}

// Patch applies the payload in a transaction and evicts the cache entry
// after commit.
func (s *ApiKeys) Patch(ctx context.Context, id uint64, payload database.PatchApiKeyPayload) error {
	var b patchBuilder
	b.setString("name", payload.Name)
	b.setNullableString("description", payload.Description)
	if b.empty() {
		return nil
	}

	query, args := b.build("api_keys", id)
	if err := execPatch(ctx, s.pool, query, args); err != nil {
		return fmt.Errorf("failed to patch api key %d: %w", id, mapError(err))
	}

	if err := s.cache.Delete(ctx, apiKeyCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "apikey", id)
	}
	return nil
}

// Delete evicts the cache entry, then removes the row.
func (s *ApiKeys) Delete(ctx context.Context, id uint64) error {
	if err := s.cache.Delete(ctx, apiKeyCacheKey(id)); err != nil {
		s.logger.Error(err, "cache eviction failed", "apikey", id)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM api_keys WHERE id = $1", int64(id)); err != nil {
		return fmt.Errorf("failed to delete api key %d: %w", id, err)
	}
	return nil
}

// Exists reports whether the key is present.
func (s *ApiKeys) Exists(ctx context.Context, id uint64) (bool, error) {
	if found, err := s.cache.Exists(ctx, apiKeyCacheKey(id)); err == nil && found {
		return true, nil
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = $1)", int64(id))
}

// ExistsBy reports whether a key with the given id or name exists.
func (s *ApiKeys) ExistsBy(ctx context.Context, ref types.NameOrID) (bool, error) {
	if ref.IsID() {
		return s.Exists(ctx, ref.ID())
	}
	return existsQuery(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM api_keys WHERE name = $1)", ref.Name().String())
}

// Paginate walks keys ordered by id, scoped to the owning user.
func (s *ApiKeys) Paginate(ctx context.Context, req database.PaginationRequest) (*database.Pagination[database.ApiKey], error) {
	var filters map[string]uint64
	if req.OwnerID != 0 {
		filters = map[string]uint64{"owner": req.OwnerID}
	}
	return paginate(ctx, s.pool, req, "api_keys", apiKeyColumns, filters,
		func(rows pgx.Rows) (*database.ApiKey, error) { return scanApiKey(rows) },
		func(k *database.ApiKey) uint64 { return k.ID },
	)
}

// Ensure ApiKeys implements database.ApiKeyStore.
var _ database.ApiKeyStore = (*ApiKeys)(nil)
