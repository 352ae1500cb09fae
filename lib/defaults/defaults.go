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

// Package defaults holds tunables shared across the fabric services.
package defaults

import "time"

const (
	// KeySetTTL is the maximum age of a cached identity provider key set
	// before it is re-fetched.
	KeySetTTL = time.Hour

	// KeySetFetchTimeout bounds a single fetch of the key discovery
	// endpoint.
	KeySetFetchTimeout = 5 * time.Second

	// ClockSkew is the tolerance applied to the issued-at claim when
	// verifying tokens. Expiry is checked without leeway.
	ClockSkew = time.Minute

	// BreakerThreshold is the number of consecutive handler failures that
	// trips a service's circuit breaker.
	BreakerThreshold = 3

	// BreakerRecoveryTime is how long a tripped breaker rejects calls
	// before admitting a single probe.
	BreakerRecoveryTime = 30 * time.Second

	// ResponseCacheTTL is the lifetime of a cached cacheable response.
	ResponseCacheTTL = time.Minute
)

// Default listen addresses for the three services.
const (
	RegistryListenAddr    = ":50050"
	ContextToolListenAddr = ":50051"
	EventBusListenAddr    = ":50052"
)

// Keyspace prefixes in the shared backends.
const (
	// RegistryKeyPrefix prefixes registry records in the KV backend.
	RegistryKeyPrefix = "fabric:registry:"
	// EventChannelPrefix prefixes event bus channels on the broker.
	EventChannelPrefix = "fabric:event:"
	// TelemetryChannelPrefix prefixes telemetry channels on the broker.
	TelemetryChannelPrefix = "fabric:telemetry:"
)

// JWKSPath is the well-known path of the identity provider's public key set,
// relative to the issuer URL.
const JWKSPath = "/.well-known/jwks.json"
