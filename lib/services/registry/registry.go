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

// Package registry implements the discovery registry: services register
// their endpoint and capabilities, agents look up endpoints by capability.
// Lookup results are filtered to the endpoints the caller's token audience
// names, so a caller only learns about services it could actually talk to.
package registry

import (
	"context"
	"log/slog"
	"sort"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc/metadata"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/api/wire"
	"github.com/capmesh/fabric/lib/admission"
	"github.com/capmesh/fabric/lib/capauth"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// grpcURLMetadataKey carries the registrant's dialable address in call
// metadata, next to the registration token.
const grpcURLMetadataKey = "grpc-url"

// Backend persists registry records.
type Backend interface {
	PutRecord(ctx context.Context, name string, rec types.RegistryRecord) error
	Records(ctx context.Context) (map[string]types.RegistryRecord, error)
}

// Config holds parameters of a Service.
type Config struct {
	// Backend is the registry record store.
	Backend Backend
	// Clock stamps registration times. Defaults to a real clock.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Backend == nil {
		return trace.BadParameter("missing parameter Backend")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Service implements wire.DiscoveryServer.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a discovery registry service.
func New(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Service{
		cfg:    cfg,
		logger: logutils.NewPackageLogger(fabric.ComponentKey, fabric.ComponentRegistry),
	}, nil
}

// Register stores the caller's endpoint record. The dialable address
// travels in call metadata under "grpc-url"; a registration without it is
// rejected.
func (s *Service) Register(ctx context.Context, req *wire.RegisterRequest) (*wire.RegisterResponse, error) {
	if req.ServerName == "" {
		return nil, trace.BadParameter("missing server_name")
	}
	md, _ := metadata.FromIncomingContext(ctx)
	var grpcURL string
	if vals := md.Get(grpcURLMetadataKey); len(vals) > 0 {
		grpcURL = vals[0]
	}
	if grpcURL == "" {
		return nil, trace.BadParameter("missing %q in call metadata", grpcURLMetadataKey)
	}

	rec := types.RegistryRecord{
		GRPCURL:      grpcURL,
		Capabilities: req.Capabilities,
		RegisteredAt: s.cfg.Clock.Now().Unix(),
	}
	if err := s.cfg.Backend.PutRecord(ctx, req.ServerName, rec); err != nil {
		return nil, trace.Wrap(err)
	}
	s.logger.InfoContext(ctx, "Registered service endpoint.",
		"server_name", req.ServerName,
		"grpc_url", grpcURL,
		"capabilities", len(req.Capabilities))
	return &wire.RegisterResponse{
		Success: true,
		Message: "registered " + req.ServerName,
	}, nil
}

// Lookup returns the registered endpoints serving at least one of the
// requested capability filters, restricted to the services the caller's
// token audience names. Duplicate registrations collapse by server name;
// the stored record is the latest write.
func (s *Service) Lookup(ctx context.Context, req *wire.LookupRequest) (*wire.LookupResponse, error) {
	claims, ok := admission.ClaimsFromContext(ctx)
	if !ok {
		return nil, trace.AccessDenied("call context carries no verified claims")
	}

	records, err := s.cfg.Backend.Records(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	resp := &wire.LookupResponse{Endpoints: []wire.EndpointDescriptor{}}
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec := records[name]
		if !capauth.MatchAudience(claims.Audience, name) {
			continue
		}
		if !serves(rec.Capabilities, req.CapabilityFilter) {
			continue
		}
		resp.Endpoints = append(resp.Endpoints, wire.EndpointDescriptor{
			ServerName:   name,
			GRPCURL:      rec.GRPCURL,
			Capabilities: rec.Capabilities,
		})
	}
	return resp, nil
}

// serves reports whether any served capability satisfies any requested
// filter. Filters use the same trailing-wildcard grammar as token
// capabilities.
func serves(served, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		for _, c := range served {
			if capauth.MatchCapability([]string{f}, c) || capauth.MatchCapability([]string{c}, f) {
				return true
			}
		}
	}
	return false
}

// Ops is the admission table of the discovery registry.
func Ops() map[string]admission.OpSpec {
	return map[string]admission.OpSpec{
		wire.Discovery_Register_FullMethodName: {
			Capability:       func(any) string { return "registry:register" },
			MetadataTokenKey: "registration_token",
		},
		wire.Discovery_Lookup_FullMethodName: {
			Capability: func(any) string { return "registry:lookup" },
		},
	}
}
