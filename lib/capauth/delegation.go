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
	"context"

	"github.com/gravitational/trace"

	"github.com/capmesh/fabric/api/types"
)

// VerifyDelegation validates a delegation proof against the already
// verified claims of the delegating principal. On success the returned
// claims carry the parent's subject and issuer and a capability set no
// broader than the parent's.
//
// The subset check applies the capability-match rule for each delegated
// entry against the parent list, so a parent wildcard like "tool:*" covers
// a delegated "tool:compute_pricing".
func (v *Verifier) VerifyDelegation(ctx context.Context, delegationToken, selfName string, parent *types.Claims) (*types.Claims, error) {
	claims, err := v.Verify(ctx, delegationToken, selfName)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	if claims.Issuer != parent.Issuer {
		return nil, trace.AccessDenied("delegation proof issuer does not match the delegating token")
	}
	if claims.Subject != parent.Subject {
		return nil, trace.AccessDenied("delegation proof subject does not match the delegating token")
	}
	if claims.Delegatee != selfName {
		return nil, trace.AccessDenied("delegation proof is not intended for %q", selfName)
	}
	for _, cap := range claims.Capabilities {
		if !MatchCapability(parent.Capabilities, cap) {
			return nil, trace.AccessDenied("capability escalation: delegated capability %q exceeds the delegating token", cap)
		}
	}

	return claims, nil
}
