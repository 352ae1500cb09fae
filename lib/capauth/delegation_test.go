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
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/capmesh/fabric/api/types"
)

func TestVerifyDelegation(t *testing.T) {
	ik := newIssuerKeys(t, "key-1")
	source := &staticKeySource{keys: ik.keySet("key-1")}
	clock := clockwork.NewFakeClock()
	v := newTestVerifier(t, source, clock)

	parent := &types.Claims{
		Issuer:       testIssuer,
		Subject:      "orchestrator-1",
		Capabilities: []string{"tool:*", "db:inventory:read"},
	}

	sign := func(spec tokenSpec) string {
		spec.kid = "key-1"
		spec.issuer = testIssuer
		spec.audience = []string{"ContextToolServer"}
		spec.expiry = clock.Now().Add(time.Hour)
		return ik.sign(t, spec)
	}

	t.Run("valid subset under wildcard parent", func(t *testing.T) {
		proof := sign(tokenSpec{
			subject:      "orchestrator-1",
			delegatee:    "ContextToolServer",
			capabilities: []string{"tool:compute_pricing"},
		})
		claims, err := v.VerifyDelegation(context.Background(), proof, "ContextToolServer", parent)
		require.NoError(t, err)
		require.Equal(t, []string{"tool:compute_pricing"}, claims.Capabilities)
		require.Equal(t, "ContextToolServer", claims.Delegatee)
	})

	t.Run("escalation is denied", func(t *testing.T) {
		proof := sign(tokenSpec{
			subject:      "orchestrator-1",
			delegatee:    "ContextToolServer",
			capabilities: []string{"tool:compute_pricing", "event:publish:inventory"},
		})
		_, err := v.VerifyDelegation(context.Background(), proof, "ContextToolServer", parent)
		require.True(t, trace.IsAccessDenied(err))
		require.ErrorContains(t, err, "escalation")
	})

	t.Run("subject mismatch is denied", func(t *testing.T) {
		proof := sign(tokenSpec{
			subject:      "someone-else",
			delegatee:    "ContextToolServer",
			capabilities: []string{"tool:compute_pricing"},
		})
		_, err := v.VerifyDelegation(context.Background(), proof, "ContextToolServer", parent)
		require.True(t, trace.IsAccessDenied(err))
		require.ErrorContains(t, err, "subject")
	})

	t.Run("delegatee mismatch is denied", func(t *testing.T) {
		proof := sign(tokenSpec{
			subject:      "orchestrator-1",
			delegatee:    "SomeOtherServer",
			capabilities: []string{"tool:compute_pricing"},
		})
		_, err := v.VerifyDelegation(context.Background(), proof, "ContextToolServer", parent)
		require.True(t, trace.IsAccessDenied(err))
		require.ErrorContains(t, err, "not intended for")
	})

	t.Run("missing delegatee is denied", func(t *testing.T) {
		proof := sign(tokenSpec{
			subject:      "orchestrator-1",
			capabilities: []string{"tool:compute_pricing"},
		})
		_, err := v.VerifyDelegation(context.Background(), proof, "ContextToolServer", parent)
		require.True(t, trace.IsAccessDenied(err))
	})

	t.Run("expired proof is denied", func(t *testing.T) {
		proof := ik.sign(t, tokenSpec{
			kid:          "key-1",
			issuer:       testIssuer,
			subject:      "orchestrator-1",
			audience:     []string{"ContextToolServer"},
			expiry:       clock.Now().Add(-time.Minute),
			delegatee:    "ContextToolServer",
			capabilities: []string{"tool:compute_pricing"},
		})
		_, err := v.VerifyDelegation(context.Background(), proof, "ContextToolServer", parent)
		require.True(t, trace.IsAccessDenied(err))
	})
}
