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

import "time"

// TokenCarrier is implemented by request messages that carry the capability
// token in a payload field.
type TokenCarrier interface {
	GetCapabilityToken() string
}

// DelegationCarrier is implemented by request messages that may carry a
// delegation proof alongside the capability token.
type DelegationCarrier interface {
	GetAgentDelegationProof() string
}

// OpSpec configures the admission pipeline for one RPC. The pipeline is
// data-driven: each service declares a table of OpSpecs keyed by full
// method name.
type OpSpec struct {
	// Capability returns the capability required to invoke the operation,
	// possibly derived from the request (e.g. "tool:<tool_name>").
	Capability func(req any) string

	// WildcardCapability, when set, returns the wildcard form retried
	// after the exact capability is denied (e.g.
	// "event:publish:<first-segment>*").
	WildcardCapability func(req any) string

	// MetadataTokenKey, when set, names the call metadata key carrying
	// the token. When empty the token is extracted from the request
	// payload, which must implement TokenCarrier.
	MetadataTokenKey string

	// AllowDelegation enables the delegation proof re-check when the
	// capability is denied and the request carries a proof.
	AllowDelegation bool

	// CacheTTL marks the operation cacheable when positive.
	CacheTTL time.Duration

	// CacheKey returns the canonical cache key for a request. Required
	// when CacheTTL is set. The key never includes the caller identity:
	// every caller passing the same authorization gate receives the same
	// answer.
	CacheKey func(req any) string
}
