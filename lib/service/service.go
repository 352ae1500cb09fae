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

// Package service bootstraps a fabric gRPC server: mutual TLS listener,
// capability verification, admission interceptors and graceful shutdown.
package service

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gravitational/trace"
	"google.golang.org/grpc"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/breaker"
	"github.com/capmesh/fabric/lib/admission"
	"github.com/capmesh/fabric/lib/capauth"
	"github.com/capmesh/fabric/lib/config"
	"github.com/capmesh/fabric/lib/defaults"
	"github.com/capmesh/fabric/lib/keyset"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// Config holds parameters of a fabric Server.
type Config struct {
	// ServerName is the audience this service accepts in capability
	// tokens, e.g. "RegistryServer".
	ServerName string
	// Service is the environment configuration.
	Service config.Service
	// Ops is the admission table for the service's RPCs.
	Ops map[string]admission.OpSpec
	// Register installs the service implementation on the gRPC server.
	Register func(s grpc.ServiceRegistrar)
}

// CheckAndSetDefaults validates the config.
func (c *Config) CheckAndSetDefaults() error {
	if c.ServerName == "" {
		return trace.BadParameter("missing parameter ServerName")
	}
	if len(c.Ops) == 0 {
		return trace.BadParameter("missing parameter Ops")
	}
	if c.Register == nil {
		return trace.BadParameter("missing parameter Register")
	}
	return nil
}

// Server is one running fabric service.
type Server struct {
	cfg    Config
	logger *slog.Logger

	grpcServer *grpc.Server
	listener   net.Listener
}

// New builds the server: key set cache (its outbound fetches guarded by
// their own breaker), token verifier, admission pipeline and the mTLS
// gRPC server with the service registered.
func New(cfg Config) (*Server, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	logger := logutils.NewPackageLogger(fabric.ComponentKey, cfg.ServerName)

	fetchBreaker, err := breaker.New(breaker.Config{
		Threshold:    defaults.BreakerThreshold,
		RecoveryTime: defaults.BreakerRecoveryTime,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	keys, err := keyset.NewCache(keyset.Config{
		IssuerURL: cfg.Service.IssuerURL,
		Client: &http.Client{
			Transport: breaker.NewRoundTripper(fetchBreaker, nil),
		},
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	verifier, err := capauth.NewVerifier(capauth.VerifierConfig{
		Issuer:    cfg.Service.IssuerURL,
		KeySource: keys,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	cb, err := breaker.New(breaker.Config{
		Threshold:    defaults.BreakerThreshold,
		RecoveryTime: defaults.BreakerRecoveryTime,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	pipeline, err := admission.New(admission.Config{
		ServerName: cfg.ServerName,
		Verifier:   verifier,
		Breaker:    cb,
		Ops:        cfg.Ops,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	creds, err := ServerCredentials(cfg.Service.CertsDir)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(pipeline.UnaryInterceptor()),
		grpc.ChainStreamInterceptor(pipeline.StreamInterceptor()),
	)
	cfg.Register(grpcServer)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		grpcServer: grpcServer,
	}, nil
}

// Serve listens on the configured address and serves until ctx is done or
// a termination signal arrives, then stops gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", s.cfg.Service.ListenAddr)
	if err != nil {
		return trace.Wrap(err, "listening on %v", s.cfg.Service.ListenAddr)
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(listener)
	}()
	s.logger.InfoContext(ctx, "Service started.",
		"listen_addr", listener.Addr().String(),
		"issuer", s.cfg.Service.IssuerURL)

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "Shutting down.")
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return trace.Wrap(err)
	}
}

// Addr returns the bound listen address, once serving.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
