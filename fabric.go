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

// Package fabric holds identifiers shared across the fabric services.
package fabric

import "strings"

// ComponentKey is the name of the log attribute identifying the component
// that emitted a record.
const ComponentKey = "component"

// MetricNamespace is the prometheus namespace for all fabric metrics.
const MetricNamespace = "fabric"

// Component generates a component name joining parts with a colon.
func Component(parts ...string) string {
	return strings.Join(parts, ":")
}

// Component names used in logs and metrics.
const (
	// ComponentRegistry is the discovery registry service.
	ComponentRegistry = "registry"
	// ComponentContextTool is the context/tool service.
	ComponentContextTool = "contexttool"
	// ComponentEventBus is the event bus service.
	ComponentEventBus = "eventbus"
	// ComponentKeySet is the identity provider key set cache.
	ComponentKeySet = "keyset"
	// ComponentAdmission is the per-call admission pipeline.
	ComponentAdmission = "admission"
)

// Well-known server names. A capability token is only accepted by a service
// whose name appears in the token's audience claim.
const (
	// RegistryServerName is the audience the discovery registry accepts.
	RegistryServerName = "RegistryServer"
	// ContextToolServerName is the audience the context/tool server accepts.
	ContextToolServerName = "ContextToolServer"
	// EventBusServerName is the audience the event bus accepts.
	EventBusServerName = "EventBusServer"
)
