/*
 * Fabric
 * Copyright (C) 2025  Capmesh, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package contextdb stores context entries in postgres.
package contextdb

import (
	"context"
	"errors"

	"github.com/gravitational/trace"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capmesh/fabric/api/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS context_entries (
    context_key TEXT PRIMARY KEY,
    value BYTEA NOT NULL,
    metadata TEXT[] NOT NULL DEFAULT '{}'
)`

// Store reads and writes context entries through a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to postgres at url, ensures the schema exists and returns
// the store.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, trace.BadParameter("parsing postgres URL: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, trace.ConnectionProblem(err, "connecting to postgres")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, trace.ConnectionProblem(err, "ensuring context schema")
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Get returns the entry stored under key. An absent key returns ok=false
// with no error.
func (s *Store) Get(ctx context.Context, key string) (entry types.ContextEntry, ok bool, err error) {
	entry.Key = key
	row := s.pool.QueryRow(ctx,
		"SELECT value, metadata FROM context_entries WHERE context_key = $1", key)
	if err := row.Scan(&entry.Value, &entry.Metadata); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ContextEntry{Key: key}, false, nil
		}
		return types.ContextEntry{}, false, trace.ConnectionProblem(err, "reading context entry %q", key)
	}
	return entry, true, nil
}

// Put upserts an entry.
func (s *Store) Put(ctx context.Context, entry types.ContextEntry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO context_entries (context_key, value, metadata) VALUES ($1, $2, $3)
ON CONFLICT (context_key) DO UPDATE SET value = $2, metadata = $3`,
		entry.Key, entry.Value, entry.Metadata)
	if err != nil {
		return trace.ConnectionProblem(err, "writing context entry %q", entry.Key)
	}
	return nil
}
