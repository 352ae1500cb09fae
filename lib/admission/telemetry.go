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
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Telemetry call statuses.
const (
	StatusSuccess          = "success"
	StatusUnauthenticated  = "unauthenticated"
	StatusPermissionDenied = "permission_denied"
	StatusCircuitOpen      = "circuit_open"
	StatusFailure          = "failure"
)

// Record describes one admitted or rejected call. Exactly one record is
// emitted per call, after all state mutations of the call complete.
type Record struct {
	// ID uniquely identifies the record.
	ID string
	// Method is the full RPC method name.
	Method string
	// Client identifies the caller: the token subject once authenticated,
	// the transport peer address otherwise.
	Client string
	// Status is one of the Status* constants.
	Status string
	// Error carries the internal failure detail. It is logged and never
	// returned to callers.
	Error string
	// CacheHit is set when the response was served from the response
	// cache.
	CacheHit bool
	// LatencyMS is the call duration in milliseconds.
	LatencyMS int64
}

// Sink receives telemetry records.
type Sink interface {
	Emit(ctx context.Context, r Record)
}

// SlogSink emits telemetry records to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s SlogSink) Emit(ctx context.Context, r Record) {
	s.Logger.InfoContext(ctx, "telemetry",
		"id", r.ID,
		"method", r.Method,
		"client", r.Client,
		"status", r.Status,
		"error", r.Error,
		"cache_hit", r.CacheHit,
		"latency_ms", r.LatencyMS,
	)
}

func newRecord(method string) *Record {
	return &Record{
		ID:     uuid.NewString(),
		Method: method,
	}
}
