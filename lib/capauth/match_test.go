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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capmesh/fabric/api/types"
)

func TestMatchCapability(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{
			name:     "exact match",
			granted:  []string{"db:inventory:read"},
			required: "db:inventory:read",
			want:     true,
		},
		{
			name:     "exact mismatch",
			granted:  []string{"db:inventory:read"},
			required: "db:inventory:write",
			want:     false,
		},
		{
			name:     "trailing wildcard grants prefix",
			granted:  []string{"db:inventory:*"},
			required: "db:inventory:read",
			want:     true,
		},
		{
			name:     "wildcard prefix includes the boundary",
			granted:  []string{"db:inventory:*"},
			required: "db:inventory:",
			want:     true,
		},
		{
			name:     "wildcard does not cross prefixes",
			granted:  []string{"db:inventory:*"},
			required: "db:orders:read",
			want:     false,
		},
		{
			name:     "bare star grants everything",
			granted:  []string{"*"},
			required: "anything:at:all",
			want:     true,
		},
		{
			name:     "mid-string star is not a wildcard",
			granted:  []string{"db:*:read"},
			required: "db:inventory:read",
			want:     false,
		},
		{
			name:     "question mark is not a wildcard",
			granted:  []string{"db:inventory:rea?"},
			required: "db:inventory:read",
			want:     false,
		},
		{
			name:     "any entry may grant",
			granted:  []string{"telemetry:read", "event:publish:inventory:*"},
			required: "event:publish:inventory:prod_1:low_stock",
			want:     true,
		},
		{
			name:     "empty grant set denies",
			granted:  nil,
			required: "db:inventory:read",
			want:     false,
		},
		{
			name:     "wildcard shorter than required prefix denies",
			granted:  []string{"event:publish:inv*"},
			required: "event:publish:orders",
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MatchCapability(tt.granted, tt.required))
		})
	}
}

func TestMatchAudience(t *testing.T) {
	require.True(t, MatchAudience(types.Audience{"ContextToolServer"}, "ContextToolServer"))
	require.True(t, MatchAudience(types.Audience{"RegistryServer", "InventoryDB_Primary"}, "InventoryDB_Primary"))
	require.True(t, MatchAudience(types.Audience{"InventoryDB_*"}, "InventoryDB_Primary"))
	require.False(t, MatchAudience(types.Audience{"EventBusServer"}, "ContextToolServer"))
	require.False(t, MatchAudience(nil, "ContextToolServer"))
}
