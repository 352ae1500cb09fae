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

package capauth

import (
	"strings"

	"github.com/capmesh/fabric/api/types"
)

// MatchCapability reports whether required is granted by any entry of
// granted. An entry grants either by exact equality or, when it ends with
// '*', by prefix: "db:inventory:*" grants any capability starting with
// "db:inventory:". A bare "*" grants everything. No other wildcard forms
// are supported.
func MatchCapability(granted []string, required string) bool {
	for _, cap := range granted {
		if cap == required {
			return true
		}
		if strings.HasSuffix(cap, "*") && strings.HasPrefix(required, cap[:len(cap)-1]) {
			return true
		}
	}
	return false
}

// MatchAudience reports whether target is named by the audience claim,
// applying the same exact-or-suffix-wildcard rule as MatchCapability. The
// registry's Lookup uses this to drop endpoints the caller's audience does
// not name.
func MatchAudience(aud types.Audience, target string) bool {
	return MatchCapability([]string(aud), target)
}
