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

// Package contexttool implements the context/tool server: keyed context
// reads backed by postgres, named tool invocations, telemetry streaming
// bridged from the broker, and a bidirectional media exchange.
package contexttool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/api/wire"
	"github.com/capmesh/fabric/lib/admission"
	"github.com/capmesh/fabric/lib/backend/redisbk"
	"github.com/capmesh/fabric/lib/defaults"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// Store reads context entries.
type Store interface {
	Get(ctx context.Context, key string) (entry types.ContextEntry, ok bool, err error)
}

// Broker is the pub/sub surface the telemetry bridge needs.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) *redisbk.Subscription
}

// Config holds parameters of a Service.
type Config struct {
	// Store backs RequestContext reads.
	Store Store
	// Broker carries telemetry samples between producers and streams.
	Broker Broker
	// Tools maps tool names to implementations. Defaults to the builtin
	// table.
	Tools map[string]Tool
	// Clock stamps telemetry frames. Defaults to a real clock.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Store == nil {
		return trace.BadParameter("missing parameter Store")
	}
	if c.Broker == nil {
		return trace.BadParameter("missing parameter Broker")
	}
	if c.Tools == nil {
		c.Tools = builtinTools()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Service implements wire.ContextToolServer.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a context/tool service.
func New(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Service{
		cfg:    cfg,
		logger: logutils.NewPackageLogger(fabric.ComponentKey, fabric.ComponentContextTool),
	}, nil
}

// RequestContext reads the entry stored under the request's context key.
// An absent entry returns empty bytes and empty metadata, not an error.
func (s *Service) RequestContext(ctx context.Context, req *wire.ContextRequest) (*wire.ContextResponse, error) {
	if req.ContextKey == "" {
		return nil, trace.BadParameter("missing context_key")
	}
	entry, ok, err := s.cfg.Store.Get(ctx, req.ContextKey)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !ok {
		return &wire.ContextResponse{SerializedValue: []byte{}, Metadata: []string{}}, nil
	}
	return &wire.ContextResponse{
		SerializedValue: entry.Value,
		Metadata:        entry.Metadata,
	}, nil
}

// InvokeTool runs the named tool. An unrecognized tool name is not an
// error: the call succeeds with a warning so capability probes do not trip
// the breaker.
func (s *Service) InvokeTool(ctx context.Context, req *wire.ToolRequest) (*wire.ToolResponse, error) {
	tool, ok := s.cfg.Tools[req.ToolName]
	if !ok {
		return &wire.ToolResponse{
			Success:  true,
			Outputs:  map[string][]byte{},
			Warnings: []string{"Tool '" + req.ToolName + "' not recognized"},
		}, nil
	}
	outputs, warnings, err := tool(req.Arguments)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if outputs == nil {
		outputs = map[string][]byte{}
	}
	return &wire.ToolResponse{Success: true, Outputs: outputs, Warnings: warnings}, nil
}

// SubscribeTelemetry bridges the broker channel
// "fabric:telemetry:<stream_id>" onto the calling stream until the caller
// disconnects. Frames are stamped with the forwarding time.
func (s *Service) SubscribeTelemetry(req *wire.TelemetrySubscribeRequest, stream wire.ContextTool_SubscribeTelemetryServer) error {
	if req.StreamID == "" {
		return trace.BadParameter("missing stream_id")
	}
	ctx := stream.Context()
	sub := s.cfg.Broker.Subscribe(ctx, defaults.TelemetryChannelPrefix+req.StreamID)
	defer sub.Close()

	s.logger.InfoContext(ctx, "Telemetry stream attached.", "stream_id", req.StreamID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return trace.ConnectionProblem(nil, "broker subscription closed")
			}
			frame := &wire.TelemetryFrame{
				TimestampMS: s.cfg.Clock.Now().UnixMilli(),
				Payload:     []byte(msg.Payload),
			}
			if err := stream.Send(frame); err != nil {
				return trace.Wrap(err)
			}
		}
	}
}

// MultiModalExchange echoes frames back to the sender until the client
// closes its side.
func (s *Service) MultiModalExchange(stream wire.ContextTool_MultiModalExchangeServer) error {
	for {
		frame, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return trace.Wrap(err)
		}
		if err := stream.Send(frame); err != nil {
			return trace.Wrap(err)
		}
	}
}

// PushTelemetry publishes one telemetry sample on the stream's broker
// channel. Producers co-located with the service use this instead of
// talking to the broker directly.
func (s *Service) PushTelemetry(ctx context.Context, streamID string, payload []byte) error {
	return trace.Wrap(s.cfg.Broker.Publish(ctx, defaults.TelemetryChannelPrefix+streamID, payload))
}

// CanonicalContextKey builds the response cache key for a context read:
// "context::<key>::<sorted k=v pairs>". Identity never participates, so
// every authorized caller shares the cached answer.
func CanonicalContextKey(key string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return "context::" + key + "::" + strings.Join(pairs, "&")
}

// Ops is the admission table of the context/tool server.
func Ops() map[string]admission.OpSpec {
	return map[string]admission.OpSpec{
		wire.ContextTool_RequestContext_FullMethodName: {
			Capability: func(any) string { return "db:inventory:read" },
			CacheTTL:   defaults.ResponseCacheTTL,
			CacheKey: func(req any) string {
				r := req.(*wire.ContextRequest)
				return CanonicalContextKey(r.ContextKey, r.Parameters)
			},
		},
		wire.ContextTool_SubscribeTelemetry_FullMethodName: {
			Capability: func(any) string { return "telemetry:read" },
		},
		wire.ContextTool_InvokeTool_FullMethodName: {
			Capability: func(req any) string {
				return "tool:" + req.(*wire.ToolRequest).ToolName
			},
			AllowDelegation: true,
		},
		wire.ContextTool_MultiModalExchange_FullMethodName: {
			Capability:       func(any) string { return "tool:multimodal_exchange" },
			MetadataTokenKey: "capability_token",
		},
	}
}

// RunDemoTelemetry publishes a synthetic engine-temperature sample on
// streamID every interval until ctx is done. It backs local demos and
// soak tests; production deployments have real producers.
func (s *Service) RunDemoTelemetry(ctx context.Context, streamID string, interval time.Duration) {
	ticker := s.cfg.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			temp := 65 + s.cfg.Clock.Now().Unix()%10
			payload := []byte(`{"engine_temp": ` + strconv.FormatInt(temp, 10) + `}`)
			if err := s.PushTelemetry(ctx, streamID, payload); err != nil {
				s.logger.WarnContext(ctx, "Failed to publish demo telemetry.", "error", err)
			}
		}
	}
}
