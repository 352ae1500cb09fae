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

// Package log provides thin helpers on top of log/slog.
package log

import (
	"io"
	"log/slog"
	"os"
)

// NewPackageLogger creates a logger for a package or component. Args are
// alternating key/value pairs attached to every record.
func NewPackageLogger(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

// Init configures the process-wide default logger. Debug enables
// level=DEBUG; records go to stderr as text.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// InitForTests silences the default logger during tests unless FABRIC_DEBUG
// is set.
func InitForTests() {
	if os.Getenv("FABRIC_DEBUG") != "" {
		Init(true)
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
