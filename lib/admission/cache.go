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

package admission

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ResponseCache is a per-process TTL cache of handler responses, keyed by a
// canonical operation key. Values are immutable snapshots of handler
// output. Concurrent writes to the same key are last-writer-wins; the cache
// is an optimization, not a source of truth.
type ResponseCache struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// NewResponseCache returns an empty cache aged by clock.
func NewResponseCache(clock clockwork.Clock) *ResponseCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResponseCache{
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the value cached under key, if present and not expired.
// Expired entries are dropped lazily.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.insertedAt.Add(e.ttl)) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set installs value under key for ttl.
func (c *ResponseCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:      value,
		insertedAt: c.clock.Now(),
		ttl:        ttl,
	}
}

// Len returns the number of entries currently held, including entries that
// expired but have not been dropped yet.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
