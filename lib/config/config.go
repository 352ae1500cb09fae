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

// Package config reads fabric service configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/gravitational/trace"
)

// Service is the environment-derived configuration shared by the fabric
// services. Each binary fills ListenAddr with its own default before
// calling CheckAndSetDefaults.
type Service struct {
	// IssuerURL is the identity provider base URL; the key set is fetched
	// from its JWKS endpoint.
	IssuerURL string
	// ListenAddr is the gRPC listen address.
	ListenAddr string
	// CertsDir holds server.crt, server.key and ca.crt for mutual TLS.
	CertsDir string
	// RedisURL locates the shared KV/broker backend.
	RedisURL string
	// PostgresURL locates the context store. Only the context/tool server
	// needs it.
	PostgresURL string
	// Debug enables debug logging.
	Debug bool
}

// FromEnv reads the configuration from the process environment.
func FromEnv() Service {
	debug, _ := strconv.ParseBool(os.Getenv("FABRIC_DEBUG"))
	return Service{
		IssuerURL:   os.Getenv("FABRIC_ISSUER"),
		ListenAddr:  os.Getenv("FABRIC_LISTEN_ADDR"),
		CertsDir:    os.Getenv("CERTS_DIR"),
		RedisURL:    os.Getenv("REDIS_URL"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		Debug:       debug,
	}
}

// CheckAndSetDefaults validates the config and fills defaults.
// defaultListenAddr is used when FABRIC_LISTEN_ADDR is unset.
func (c *Service) CheckAndSetDefaults(defaultListenAddr string) error {
	if c.IssuerURL == "" {
		return trace.BadParameter("missing FABRIC_ISSUER")
	}
	if c.CertsDir == "" {
		return trace.BadParameter("missing CERTS_DIR")
	}
	if c.RedisURL == "" {
		c.RedisURL = "redis://localhost:6379/0"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	return nil
}
