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

// Command fabric-eventbus runs the event bus service.
package main

import (
	"context"
	"log/slog"
	"os"

	"google.golang.org/grpc"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/wire"
	"github.com/capmesh/fabric/lib/backend/redisbk"
	"github.com/capmesh/fabric/lib/config"
	"github.com/capmesh/fabric/lib/defaults"
	"github.com/capmesh/fabric/lib/service"
	"github.com/capmesh/fabric/lib/services/eventbus"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

func main() {
	cfg := config.FromEnv()
	logutils.Init(cfg.Debug)
	if err := run(cfg); err != nil {
		slog.Error("Event bus service failed.", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Service) error {
	if err := cfg.CheckAndSetDefaults(defaults.EventBusListenAddr); err != nil {
		return err
	}
	ctx := context.Background()

	backend, err := redisbk.Open(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc, err := eventbus.New(eventbus.Config{Broker: backend})
	if err != nil {
		return err
	}
	srv, err := service.New(service.Config{
		ServerName: fabric.EventBusServerName,
		Service:    cfg,
		Ops:        eventbus.Ops(),
		Register: func(s grpc.ServiceRegistrar) {
			wire.RegisterEventBusServer(s, svc)
		},
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
