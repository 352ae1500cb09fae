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

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/capmesh/fabric"
)

var calls = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: fabric.MetricNamespace,
	Subsystem: "admission",
	Name:      "calls_total",
	Help:      "Calls seen by the admission pipeline, by method and final status.",
}, []string{"method", "status"})

var cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: fabric.MetricNamespace,
	Subsystem: "admission",
	Name:      "cache_lookups_total",
	Help:      "Response cache lookups for cacheable operations, by outcome.",
}, []string{"outcome"})

var breakerRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: fabric.MetricNamespace,
	Subsystem: "admission",
	Name:      "breaker_rejections_total",
	Help:      "Calls rejected because the service circuit breaker was open.",
}, []string{"method"})

var registerOnce sync.Once

func ensureRegistered() {
	registerOnce.Do(func() {
		prometheus.MustRegister(calls, cacheLookups, breakerRejections)
	})
}
