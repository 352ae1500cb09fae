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

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/capmesh/fabric/api/types"
)

// claimedStream carries the verified claims in the stream context after a
// metadata-carrier admission.
type claimedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *claimedStream) Context() context.Context {
	return s.ctx
}

// gatedStream admits a payload-carrier stream on its first received request
// message. Until admission succeeds, RecvMsg surfaces the admission error
// and the handler never sees a request.
type gatedStream struct {
	grpc.ServerStream
	pipeline *Pipeline
	op       OpSpec
	rec      *Record
	method   string

	admitted bool
	guarded  bool
	claims   *types.Claims
}

func (s *gatedStream) Context() context.Context {
	if s.claims != nil {
		return ContextWithClaims(s.ServerStream.Context(), s.claims)
	}
	return s.ServerStream.Context()
}

func (s *gatedStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	if s.admitted {
		return nil
	}

	claims, err := s.pipeline.admit(s.ServerStream.Context(), s.op, m, s.rec)
	if err != nil {
		return err
	}
	s.claims = claims
	s.admitted = true

	if err := s.pipeline.cfg.Breaker.Allow(); err != nil {
		s.rec.Status = StatusCircuitOpen
		breakerRejections.WithLabelValues(s.method).Inc()
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	}
	s.guarded = true
	return nil
}
