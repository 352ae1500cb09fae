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

package service

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"
	"google.golang.org/grpc/credentials"
)

// ServerTLSConfig loads the mutual TLS material from certsDir: server.crt,
// server.key and the ca.crt that client certificates must chain to. Client
// certificates are required and verified.
func ServerTLSConfig(certsDir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(certsDir, "server.crt"),
		filepath.Join(certsDir, "server.key"))
	if err != nil {
		return nil, trace.Wrap(err, "loading server key pair from %v", certsDir)
	}
	caPEM, err := os.ReadFile(filepath.Join(certsDir, "ca.crt"))
	if err != nil {
		return nil, trace.Wrap(err, "loading CA certificate from %v", certsDir)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, trace.BadParameter("no certificates parsed from %v", filepath.Join(certsDir, "ca.crt"))
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}, nil
}

// ServerCredentials returns gRPC transport credentials enforcing mutual
// TLS with the material in certsDir.
func ServerCredentials(certsDir string) (credentials.TransportCredentials, error) {
	cfg, err := ServerTLSConfig(certsDir)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return credentials.NewTLS(cfg), nil
}
