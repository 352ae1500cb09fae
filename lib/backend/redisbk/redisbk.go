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

// Package redisbk backs the registry keyspace and the pub/sub broker with
// redis. The backend is shared across service replicas; nothing here
// assumes exclusive access.
package redisbk

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"

	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/lib/defaults"
)

// Backend wraps a redis client with the fabric keyspace conventions.
type Backend struct {
	client *redis.Client
}

// New returns a Backend over an existing client.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// Open connects to the redis instance at url (redis://...) and verifies the
// connection.
func Open(ctx context.Context, url string) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, trace.BadParameter("parsing redis URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, trace.ConnectionProblem(err, "connecting to redis at %v", opts.Addr)
	}
	return &Backend{client: client}, nil
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return trace.Wrap(b.client.Close())
}

// PutRecord writes a registry record under "fabric:registry:<name>".
func (b *Backend) PutRecord(ctx context.Context, name string, rec types.RegistryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := b.client.Set(ctx, defaults.RegistryKeyPrefix+name, data, 0).Err(); err != nil {
		return trace.ConnectionProblem(err, "writing registry record for %q", name)
	}
	return nil
}

// Records scans the registry keyspace and returns all records by server
// name. Records that fail to decode are skipped.
func (b *Backend) Records(ctx context.Context) (map[string]types.RegistryRecord, error) {
	out := make(map[string]types.RegistryRecord)
	iter := b.client.Scan(ctx, 0, defaults.RegistryKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := b.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, trace.ConnectionProblem(err, "reading registry record %q", key)
		}
		var rec types.RegistryRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out[strings.TrimPrefix(key, defaults.RegistryKeyPrefix)] = rec
	}
	if err := iter.Err(); err != nil {
		return nil, trace.ConnectionProblem(err, "scanning registry keyspace")
	}
	return out, nil
}

// Publish sends payload on a broker channel. Delivery is best-effort
// pub/sub; there is no durability.
func (b *Backend) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return trace.ConnectionProblem(err, "publishing to %q", channel)
	}
	return nil
}

// Subscription is a live broker subscription. Messages are delivered on
// Messages until Close or broker failure.
type Subscription struct {
	ps *redis.PubSub
}

// Messages returns the delivery channel. It is closed when the
// subscription ends.
func (s *Subscription) Messages() <-chan *redis.Message {
	return s.ps.Channel()
}

// Close unsubscribes and releases the subscription.
func (s *Subscription) Close() error {
	return trace.Wrap(s.ps.Close())
}

// Subscribe opens an exact-channel subscription.
func (b *Backend) Subscribe(ctx context.Context, channel string) *Subscription {
	return &Subscription{ps: b.client.Subscribe(ctx, channel)}
}

// PSubscribe opens a pattern subscription ('*' glob, used for trailing
// wildcard topic filters).
func (b *Backend) PSubscribe(ctx context.Context, pattern string) *Subscription {
	return &Subscription{ps: b.client.PSubscribe(ctx, pattern)}
}
