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

// Package keyset caches the identity provider's public key set. The set is
// fetched lazily from <issuer>/.well-known/jwks.json, kept for a TTL, and
// re-fetched on demand when a token names an unknown key.
package keyset

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/lib/defaults"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// Config holds parameters of a key set Cache.
type Config struct {
	// IssuerURL is the identity provider base URL; keys are discovered at
	// IssuerURL + "/.well-known/jwks.json".
	IssuerURL string
	// Client is the HTTP client used for fetches. Defaults to
	// http.DefaultClient.
	Client *http.Client
	// Clock is used to age the cache. Defaults to a real clock.
	Clock clockwork.Clock
	// TTL is the maximum age of a cached set.
	TTL time.Duration
	// FetchTimeout bounds a single discovery fetch.
	FetchTimeout time.Duration
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.IssuerURL == "" {
		return trace.BadParameter("missing parameter IssuerURL")
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.TTL <= 0 {
		c.TTL = defaults.KeySetTTL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaults.KeySetFetchTimeout
	}
	return nil
}

// Cache is a TTL cache of the issuer's JSON web key set. Concurrent callers
// that miss the cache coalesce into a single in-flight fetch; the cache
// mutex is never held across the network call.
type Cache struct {
	cfg    Config
	logger interface {
		DebugContext(ctx context.Context, msg string, args ...any)
	}

	group singleflight.Group

	mu        sync.Mutex
	keys      *jose.JSONWebKeySet
	lastFetch time.Time
}

// NewCache returns an empty Cache for the given config.
func NewCache(cfg Config) (*Cache, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Cache{
		cfg:    cfg,
		logger: logutils.NewPackageLogger(fabric.ComponentKey, fabric.ComponentKeySet, "issuer", cfg.IssuerURL),
	}, nil
}

// Keys returns the cached key set, fetching a fresh one when the cache is
// empty or stale. A non-success response from the discovery endpoint is a
// transient error (trace.ConnectionProblem).
func (c *Cache) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	c.mu.Lock()
	if c.keys != nil && c.cfg.Clock.Now().Sub(c.lastFetch) <= c.cfg.TTL {
		ks := c.keys
		c.mu.Unlock()
		return ks, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan("jwks", func() (any, error) {
		return c.fetch()
	})
	select {
	case <-ctx.Done():
		return nil, trace.Wrap(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, trace.Wrap(res.Err)
		}
		return res.Val.(*jose.JSONWebKeySet), nil
	}
}

// ForceRefresh marks the cached set stale so the next Keys call fetches a
// fresh one. Used when a token names a key identifier the cached set does
// not contain.
func (c *Cache) ForceRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFetch = time.Time{}
}

func (c *Cache) fetch() (*jose.JSONWebKeySet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
	defer cancel()

	url := c.cfg.IssuerURL + defaults.JWKSPath
	c.logger.DebugContext(ctx, "Fetching key set", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, trace.ConnectionProblem(err, "fetching key set from %v", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, trace.ConnectionProblem(nil, "key set endpoint %v returned status %v", url, resp.StatusCode)
	}

	var ks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&ks); err != nil {
		return nil, trace.ConnectionProblem(err, "decoding key set from %v", url)
	}

	c.mu.Lock()
	c.keys = &ks
	c.lastFetch = c.cfg.Clock.Now()
	c.mu.Unlock()

	return &ks, nil
}
