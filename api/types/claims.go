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

// Package types defines the data model shared by the fabric services:
// verified token claims, registry records and event envelopes.
package types

import (
	"encoding/json"
	"time"

	"github.com/gravitational/trace"
)

// Audience is the aud claim of a capability token. The wire form may be a
// single string or an ordered list of strings; both decode into the list
// form.
type Audience []string

// UnmarshalJSON accepts either a JSON string or a JSON array of strings.
func (a *Audience) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Audience{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return trace.BadParameter("audience claim is neither a string nor a list of strings")
	}
	*a = Audience(list)
	return nil
}

// MarshalJSON emits the scalar form for a single-element audience, matching
// the common issuer encoding.
func (a Audience) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// Claims is the parsed and verified claim set of a capability token.
// Unknown claims are preserved in Extra but never consulted by the core.
type Claims struct {
	// Issuer is the identity provider that signed the token.
	Issuer string
	// Subject is the stable subject identifier of the principal.
	Subject string
	// Audience names the services the token is intended for.
	Audience Audience
	// Expiry is when the token stops being valid.
	Expiry time.Time
	// IssuedAt is when the token was minted.
	IssuedAt time.Time
	// Capabilities are the granted permission strings; each entry is
	// either exact or a wildcard with a trailing '*'.
	Capabilities []string
	// Delegatee is set on delegation tokens and names the one service
	// allowed to act under the token.
	Delegatee string
	// Extra holds custom claims the core ignores.
	Extra map[string]any
}

// HasSuperCapability reports whether the claim set carries a bare "*"
// capability, which grants everything. Callers should log such tokens
// prominently.
func (c *Claims) HasSuperCapability() bool {
	for _, cap := range c.Capabilities {
		if cap == "*" {
			return true
		}
	}
	return false
}
