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

package types

// RegistryRecord is the stored form of a registered service endpoint,
// persisted under "fabric:registry:<name>" in the KV backend.
type RegistryRecord struct {
	// GRPCURL is the dialable address of the registered service.
	GRPCURL string `json:"grpc_url"`
	// Capabilities are the capability strings the endpoint serves.
	Capabilities []string `json:"capabilities"`
	// RegisteredAt is the registration time in seconds since epoch.
	RegisteredAt int64 `json:"registered_at"`
}

// EventEnvelope is the serialized message the event bus forwards to
// subscribers on channel "fabric:event:<topic>".
type EventEnvelope struct {
	// Topic the event was published to.
	Topic string `json:"topic"`
	// Payload is the opaque event body.
	Payload []byte `json:"payload"`
	// SequenceID is strictly monotonic per topic within a publisher
	// process lifetime.
	SequenceID uint64 `json:"sequence_id"`
	// Timestamp is the publish time in milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`
}

// ContextEntry is a row of the context store.
type ContextEntry struct {
	// Key identifies the entry.
	Key string
	// Value is the serialized entry body.
	Value []byte
	// Metadata carries entry annotations, e.g. provenance timestamps.
	Metadata []string
}
