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

// Command fabric-context runs the context/tool server.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gravitational/trace"
	"google.golang.org/grpc"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/wire"
	"github.com/capmesh/fabric/lib/backend/redisbk"
	"github.com/capmesh/fabric/lib/config"
	"github.com/capmesh/fabric/lib/defaults"
	"github.com/capmesh/fabric/lib/service"
	"github.com/capmesh/fabric/lib/services/contexttool"
	"github.com/capmesh/fabric/lib/storage/contextdb"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

func main() {
	cfg := config.FromEnv()
	logutils.Init(cfg.Debug)
	if err := run(cfg); err != nil {
		slog.Error("Context/tool service failed.", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Service) error {
	if err := cfg.CheckAndSetDefaults(defaults.ContextToolListenAddr); err != nil {
		return err
	}
	if cfg.PostgresURL == "" {
		return trace.BadParameter("missing POSTGRES_URL")
	}
	ctx := context.Background()

	store, err := contextdb.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer store.Close()

	backend, err := redisbk.Open(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc, err := contexttool.New(contexttool.Config{
		Store:  store,
		Broker: backend,
	})
	if err != nil {
		return err
	}

	// Synthetic telemetry source for local demo deployments.
	if streamID := os.Getenv("FABRIC_TELEMETRY_DEMO"); streamID != "" {
		go svc.RunDemoTelemetry(ctx, streamID, 5*time.Second)
	}

	srv, err := service.New(service.Config{
		ServerName: fabric.ContextToolServerName,
		Service:    cfg,
		Ops:        contexttool.Ops(),
		Register: func(s grpc.ServiceRegistrar) {
			wire.RegisterContextToolServer(s, svc)
		},
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
