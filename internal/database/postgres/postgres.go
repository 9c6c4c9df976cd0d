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

// Package postgres implements the database store contracts on PostgreSQL
// through pgx, with a cache worker in front of id-keyed reads.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/charted-dev/charted/internal/database"
)

// Config holds connection pool settings.
type Config struct {
	// URL is a postgres connection string.
	URL string

	// Username and Password override credentials in the URL when set.
	Username string
	Password string

	// Schema sets the search_path when non-empty.
	Schema string

	// MaxConns bounds the pool; zero keeps the pgxpool default.
	MaxConns int32

	// ConnectTimeout bounds the initial dial; zero keeps the default.
	ConnectTimeout time.Duration
}

// Connect builds a pgx pool from cfg and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.Username != "" {
		poolCfg.ConnConfig.User = cfg.Username
	}
	if cfg.Password != "" {
		poolCfg.ConnConfig.Password = cfg.Password
	}
	if cfg.Schema != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// mapError translates constraint violations into the database package's
// sentinel errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return database.ErrAlreadyExists
	}
	return err
}

// execPatch runs an UPDATE inside a transaction so concurrent patches to
// the same row serialize at the database.
func execPatch(ctx context.Context, pool *pgxpool.Pool, query string, args []any) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// existsQuery runs a SELECT EXISTS probe.
func existsQuery(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) (bool, error) {
	var exists bool
	if err := pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

// paginate runs the cursor-probe query shared by every store: select up to
// per_page+1 rows from the cursor onward, and when the extra row comes back
// its id becomes the next cursor.
func paginate[E any](
	ctx context.Context,
	pool *pgxpool.Pool,
	req database.PaginationRequest,
	table, columns string,
	filters map[string]uint64,
	scan func(pgx.Rows) (*E, error),
	id func(*E) uint64,
) (*database.Pagination[E], error) {
	req = req.Normalize()

	query := "SELECT " + columns + " FROM " + table
	var args []any
	var conds []string

	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		args = append(args, int64(filters[col]))
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Cursor != 0 {
		op := ">="
		if req.Order == database.OrderDescending {
			op = "<="
		}
		args = append(args, int64(req.Cursor))
		conds = append(conds, fmt.Sprintf("id %s $%d", op, len(args)))
	}

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	direction := "ASC"
	if req.Order == database.OrderDescending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY id %s LIMIT %d", direction, req.PerPage+1)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to paginate %s: %w", table, err)
	}
	defer rows.Close()

	var entities []E
	for rows.Next() {
		entity, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to paginate %s: %w", table, err)
	}

	page := &database.Pagination[E]{Data: entities}
	if len(entities) == req.PerPage+1 {
		next := id(&entities[req.PerPage])
		page.Data = entities[:req.PerPage]
		page.PageInfo.Cursor = &next
	}
	return page, nil
}
