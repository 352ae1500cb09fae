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
	"io"
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// fakeServerStream feeds queued request messages to RecvMsg and records
// sent responses. Only the methods the pipeline and handlers touch are
// implemented.
type fakeServerStream struct {
	grpc.ServerStream
	ctx   context.Context
	queue []*testRequest
	sent  []any
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func (s *fakeServerStream) RecvMsg(m any) error {
	if len(s.queue) == 0 {
		return io.EOF
	}
	*m.(*testRequest) = *s.queue[0]
	s.queue = s.queue[1:]
	return nil
}

func (s *fakeServerStream) SendMsg(m any) error {
	s.sent = append(s.sent, m)
	return nil
}

func streamInfo() *grpc.StreamServerInfo {
	return &grpc.StreamServerInfo{FullMethod: testMethod, IsServerStream: true}
}

func TestStreamPayloadCarrierAdmission(t *testing.T) {
	env := newTestEnv(t, staticOps())
	interceptor := env.pipeline.StreamInterceptor()
	token := env.signToken(t, tokenOpts{subject: "agent-1", capabilities: []string{"db:inventory:read"}})

	ss := &fakeServerStream{
		ctx:   context.Background(),
		queue: []*testRequest{{Name: "stream-1", Token: token}},
	}
	err := interceptor(nil, ss, streamInfo(), func(srv any, stream grpc.ServerStream) error {
		var req testRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		claims, ok := ClaimsFromContext(stream.Context())
		require.True(t, ok)
		require.Equal(t, "agent-1", claims.Subject)
		return stream.SendMsg("frame")
	})
	require.NoError(t, err)
	require.Len(t, ss.sent, 1)

	require.Len(t, env.sink.records, 1)
	require.Equal(t, StatusSuccess, env.sink.records[0].Status)
	require.Equal(t, "agent-1", env.sink.records[0].Client)
}

func TestStreamPayloadCarrierRejectsBadToken(t *testing.T) {
	env := newTestEnv(t, staticOps())
	interceptor := env.pipeline.StreamInterceptor()
	token := env.signToken(t, tokenOpts{subject: "agent-1", capabilities: []string{"telemetry:read"}})

	ss := &fakeServerStream{
		ctx:   context.Background(),
		queue: []*testRequest{{Token: token}},
	}
	handlerSawRequest := false
	err := interceptor(nil, ss, streamInfo(), func(srv any, stream grpc.ServerStream) error {
		var req testRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		handlerSawRequest = true
		return nil
	})
	require.Equal(t, codes.PermissionDenied, status.Code(err))
	require.False(t, handlerSawRequest)
	require.Len(t, env.sink.records, 1)
	require.Equal(t, StatusPermissionDenied, env.sink.records[0].Status)
}

func TestStreamMetadataCarrierAdmission(t *testing.T) {
	ops := map[string]OpSpec{
		testMethod: {
			Capability:       func(any) string { return "tool:multimodal_exchange" },
			MetadataTokenKey: "capability_token",
		},
	}
	env := newTestEnv(t, ops)
	interceptor := env.pipeline.StreamInterceptor()
	token := env.signToken(t, tokenOpts{subject: "agent-1", capabilities: []string{"tool:multimodal_exchange"}})

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("capability_token", token))
	ss := &fakeServerStream{ctx: ctx}
	err := interceptor(nil, ss, streamInfo(), func(srv any, stream grpc.ServerStream) error {
		claims, ok := ClaimsFromContext(stream.Context())
		require.True(t, ok)
		require.Equal(t, "agent-1", claims.Subject)
		return nil
	})
	require.NoError(t, err)

	// Without the metadata key the handler never runs.
	ss = &fakeServerStream{ctx: context.Background()}
	handlerRan := false
	err = interceptor(nil, ss, streamInfo(), func(srv any, stream grpc.ServerStream) error {
		handlerRan = true
		return nil
	})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.False(t, handlerRan)
}

func TestStreamBreakerGatesFirstMessage(t *testing.T) {
	env := newTestEnv(t, staticOps())
	interceptor := env.pipeline.StreamInterceptor()
	token := env.signToken(t, tokenOpts{subject: "agent-1", capabilities: []string{"db:inventory:read"}})

	// Trip the breaker.
	env.breaker.Record(false)
	env.breaker.Record(false)
	env.breaker.Record(false)

	ss := &fakeServerStream{
		ctx:   context.Background(),
		queue: []*testRequest{{Token: token}},
	}
	err := interceptor(nil, ss, streamInfo(), func(srv any, stream grpc.ServerStream) error {
		var req testRequest
		return stream.RecvMsg(&req)
	})
	require.Equal(t, codes.Unavailable, status.Code(err))
	require.Equal(t, StatusCircuitOpen, env.sink.records[0].Status)
}

func TestStreamHandlerFailureRecorded(t *testing.T) {
	env := newTestEnv(t, staticOps())
	interceptor := env.pipeline.StreamInterceptor()
	token := env.signToken(t, tokenOpts{subject: "agent-1", capabilities: []string{"db:inventory:read"}})

	ss := &fakeServerStream{
		ctx:   context.Background(),
		queue: []*testRequest{{Token: token}},
	}
	err := interceptor(nil, ss, streamInfo(), func(srv any, stream grpc.ServerStream) error {
		var req testRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		return trace.ConnectionProblem(nil, "broker gone")
	})
	require.Error(t, err)
	require.Len(t, env.sink.records, 1)
	require.Equal(t, StatusFailure, env.sink.records[0].Status)
	require.Contains(t, env.sink.records[0].Error, "broker gone")
}

func TestResponseCacheExpiry(t *testing.T) {
	env := newTestEnv(t, staticOps())
	cache := env.cache

	cache.Set("k", "v", time.Minute)
	v, ok := cache.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	env.clock.Advance(59 * time.Second)
	_, ok = cache.Get("k")
	require.True(t, ok)

	env.clock.Advance(2 * time.Second)
	_, ok = cache.Get("k")
	require.False(t, ok)
	require.Zero(t, cache.Len())
}
