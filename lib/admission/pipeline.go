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

// Package admission implements the uniform per-call pipeline wrapped around
// every fabric RPC: extract token, authenticate, authorize, consult the
// circuit breaker and response cache, dispatch, and emit exactly one
// telemetry record. It is exposed as gRPC unary and stream interceptors
// configured by a per-operation table.
package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/breaker"
	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/lib/capauth"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// Config holds parameters of a Pipeline.
type Config struct {
	// ServerName is the service's own name; tokens must carry it in
	// their audience claim.
	ServerName string
	// Verifier validates capability tokens and delegation proofs.
	Verifier *capauth.Verifier
	// Breaker guards handler dispatch.
	Breaker *breaker.CircuitBreaker
	// Cache serves cacheable operations. Defaults to an empty cache.
	Cache *ResponseCache
	// Sink receives telemetry records. Defaults to a structured log sink.
	Sink Sink
	// Clock measures call latency. Defaults to a real clock.
	Clock clockwork.Clock
	// Ops maps full RPC method names to their admission behavior.
	Ops map[string]OpSpec
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.ServerName == "" {
		return trace.BadParameter("missing parameter ServerName")
	}
	if c.Verifier == nil {
		return trace.BadParameter("missing parameter Verifier")
	}
	if c.Breaker == nil {
		return trace.BadParameter("missing parameter Breaker")
	}
	if len(c.Ops) == 0 {
		return trace.BadParameter("missing parameter Ops")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Cache == nil {
		c.Cache = NewResponseCache(c.Clock)
	}
	if c.Sink == nil {
		c.Sink = SlogSink{Logger: logutils.NewPackageLogger(
			fabric.ComponentKey, fabric.ComponentAdmission, "server", c.ServerName)}
	}
	return nil
}

// Pipeline gates every RPC of one service.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Pipeline for the given config.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	ensureRegistered()
	return &Pipeline{
		cfg: cfg,
		logger: logutils.NewPackageLogger(
			fabric.ComponentKey, fabric.ComponentAdmission, "server", cfg.ServerName),
	}, nil
}

type contextKey int

const claimsContextKey contextKey = iota

// ClaimsFromContext returns the verified claims the pipeline attached to
// the call context. The delegation claims are attached when a delegation
// proof decided the authorization.
func ClaimsFromContext(ctx context.Context) (*types.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*types.Claims)
	return claims, ok
}

// ContextWithClaims attaches verified claims to ctx. Handlers receive this
// from the pipeline; in-process callers bypassing the pipeline attach their
// own.
func ContextWithClaims(ctx context.Context, claims *types.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// UnaryInterceptor returns the pipeline as a gRPC unary server interceptor.
func (p *Pipeline) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		op, ok := p.cfg.Ops[info.FullMethod]
		if !ok {
			return nil, status.Errorf(codes.Internal, "no admission spec configured for %v", info.FullMethod)
		}

		start := p.cfg.Clock.Now()
		rec := newRecord(info.FullMethod)
		rec.Client = peerAddr(ctx)
		defer func() {
			p.finish(ctx, rec, start)
		}()

		claims, err := p.admit(ctx, op, req, rec)
		if err != nil {
			return nil, err
		}
		ctx = ContextWithClaims(ctx, claims)

		// Guard.
		if err := p.cfg.Breaker.Allow(); err != nil {
			rec.Status = StatusCircuitOpen
			breakerRejections.WithLabelValues(info.FullMethod).Inc()
			return nil, status.Error(codes.Unavailable, "service temporarily unavailable")
		}

		// Dispatch.
		cacheable := op.CacheTTL > 0 && op.CacheKey != nil
		var cacheKey string
		if cacheable {
			cacheKey = op.CacheKey(req)
			if v, ok := p.cfg.Cache.Get(cacheKey); ok {
				p.cfg.Breaker.Release()
				cacheLookups.WithLabelValues("hit").Inc()
				rec.CacheHit = true
				rec.Status = StatusSuccess
				return v, nil
			}
			cacheLookups.WithLabelValues("miss").Inc()
		}

		resp, err = handler(ctx, req)
		p.cfg.Breaker.Record(err == nil)
		if err != nil {
			rec.Status = StatusFailure
			rec.Error = err.Error()
			return nil, toStatusError(err)
		}
		if cacheable {
			p.cfg.Cache.Set(cacheKey, resp, op.CacheTTL)
		}
		rec.Status = StatusSuccess
		return resp, nil
	}
}

// StreamInterceptor returns the pipeline as a gRPC stream server
// interceptor. Streams carrying the token in call metadata are admitted
// before the handler starts; streams carrying it in the payload are
// admitted on the first received message.
func (p *Pipeline) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		op, ok := p.cfg.Ops[info.FullMethod]
		if !ok {
			return status.Errorf(codes.Internal, "no admission spec configured for %v", info.FullMethod)
		}

		start := p.cfg.Clock.Now()
		rec := newRecord(info.FullMethod)
		rec.Client = peerAddr(ss.Context())
		defer func() {
			p.finish(ss.Context(), rec, start)
		}()

		if op.MetadataTokenKey != "" {
			claims, err := p.admit(ss.Context(), op, nil, rec)
			if err != nil {
				return err
			}
			if err := p.cfg.Breaker.Allow(); err != nil {
				rec.Status = StatusCircuitOpen
				breakerRejections.WithLabelValues(info.FullMethod).Inc()
				return status.Error(codes.Unavailable, "service temporarily unavailable")
			}
			wrapped := &claimedStream{ServerStream: ss, ctx: ContextWithClaims(ss.Context(), claims)}
			err = handler(srv, wrapped)
			p.cfg.Breaker.Record(err == nil)
			p.settleStream(rec, err)
			if err != nil {
				return toStatusError(err)
			}
			return nil
		}

		// Payload carrier: the first received request message is gated.
		gs := &gatedStream{ServerStream: ss, pipeline: p, op: op, rec: rec, method: info.FullMethod}
		err := handler(srv, gs)
		if gs.guarded {
			p.cfg.Breaker.Record(err == nil)
		}
		p.settleStream(rec, err)
		if err != nil {
			return toStatusError(err)
		}
		return nil
	}
}

// finish stamps latency, defaults the status, counts the call and emits the
// telemetry record. It runs exactly once per call, after all state
// mutations.
func (p *Pipeline) finish(ctx context.Context, rec *Record, start time.Time) {
	rec.LatencyMS = p.cfg.Clock.Now().Sub(start).Milliseconds()
	if rec.Status == "" {
		rec.Status = StatusFailure
	}
	calls.WithLabelValues(rec.Method, rec.Status).Inc()
	p.cfg.Sink.Emit(ctx, *rec)
}

func (p *Pipeline) settleStream(rec *Record, err error) {
	if err != nil {
		if rec.Status == "" || rec.Status == StatusSuccess {
			rec.Status = StatusFailure
			rec.Error = err.Error()
		}
		return
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
}

// admit runs the extract, authenticate and authorize stages. req may be nil
// when the token travels in call metadata.
func (p *Pipeline) admit(ctx context.Context, op OpSpec, req any, rec *Record) (*types.Claims, error) {
	// Extract.
	token, err := p.extractToken(ctx, op, req)
	if err != nil {
		rec.Status = StatusUnauthenticated
		rec.Error = err.Error()
		return nil, status.Error(codes.Unauthenticated, "missing capability token")
	}

	// Authenticate.
	claims, err := p.cfg.Verifier.Verify(ctx, token, p.cfg.ServerName)
	if err != nil {
		rec.Error = trace.UserMessage(err)
		if trace.IsConnectionProblem(err) {
			rec.Status = StatusFailure
			return nil, status.Error(codes.Internal, "unable to fetch identity provider keys")
		}
		rec.Status = StatusUnauthenticated
		return nil, status.Error(codes.Unauthenticated, "capability token rejected")
	}
	rec.Client = claims.Subject

	// Authorize.
	required := op.Capability(req)
	if capauth.MatchCapability(claims.Capabilities, required) {
		return claims, nil
	}
	if op.WildcardCapability != nil {
		if wc := op.WildcardCapability(req); wc != "" && capauth.MatchCapability(claims.Capabilities, wc) {
			return claims, nil
		}
	}
	if op.AllowDelegation {
		if dc, ok := req.(DelegationCarrier); ok && dc.GetAgentDelegationProof() != "" {
			delegated, err := p.cfg.Verifier.VerifyDelegation(ctx, dc.GetAgentDelegationProof(), p.cfg.ServerName, claims)
			if err != nil {
				rec.Error = trace.UserMessage(err)
				if trace.IsConnectionProblem(err) {
					rec.Status = StatusFailure
					return nil, status.Error(codes.Internal, "unable to fetch identity provider keys")
				}
				rec.Status = StatusPermissionDenied
				return nil, status.Error(codes.PermissionDenied, trace.UserMessage(err))
			}
			if capauth.MatchCapability(delegated.Capabilities, required) {
				return delegated, nil
			}
			rec.Status = StatusPermissionDenied
			rec.Error = "delegation proof does not grant " + required
			return nil, status.Errorf(codes.PermissionDenied, "delegation proof does not grant %q", required)
		}
	}
	rec.Status = StatusPermissionDenied
	rec.Error = "token does not grant " + required
	return nil, status.Errorf(codes.PermissionDenied, "token does not grant %q", required)
}

func (p *Pipeline) extractToken(ctx context.Context, op OpSpec, req any) (string, error) {
	if op.MetadataTokenKey != "" {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return "", trace.AccessDenied("call carries no metadata")
		}
		vals := md.Get(op.MetadataTokenKey)
		if len(vals) == 0 || vals[0] == "" {
			return "", trace.AccessDenied("missing %q in call metadata", op.MetadataTokenKey)
		}
		return vals[0], nil
	}
	tc, ok := req.(TokenCarrier)
	if !ok || tc.GetCapabilityToken() == "" {
		return "", trace.AccessDenied("request does not carry a capability token")
	}
	return tc.GetCapabilityToken(), nil
}

// toStatusError converts a handler error to the caller-visible gRPC status.
// Internal detail never crosses the wire; it is carried in the telemetry
// record instead.
func toStatusError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case trace.IsAccessDenied(err):
		return status.Error(codes.PermissionDenied, trace.UserMessage(err))
	case trace.IsBadParameter(err):
		return status.Error(codes.InvalidArgument, trace.UserMessage(err))
	case trace.IsNotFound(err):
		return status.Error(codes.NotFound, trace.UserMessage(err))
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func peerAddr(ctx context.Context) string {
	if pr, ok := peer.FromContext(ctx); ok && pr.Addr != nil {
		return pr.Addr.String()
	}
	return "unknown"
}
