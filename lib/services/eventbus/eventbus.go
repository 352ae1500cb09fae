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

// Package eventbus implements topic-based publish/subscribe over the shared
// broker. Publishes are stamped with a per-topic sequence number that is
// strictly increasing within this process; distinct topics never serialize
// against each other.
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/api/wire"
	"github.com/capmesh/fabric/lib/admission"
	"github.com/capmesh/fabric/lib/backend/redisbk"
	"github.com/capmesh/fabric/lib/defaults"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// Broker is the pub/sub surface the event bus needs from the backend.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) *redisbk.Subscription
	PSubscribe(ctx context.Context, pattern string) *redisbk.Subscription
}

// sequencer hands out per-topic sequence numbers. A short-held mutex guards
// the counter map only; it is never held across broker I/O.
type sequencer struct {
	mu   sync.Mutex
	next map[string]uint64
}

func newSequencer() *sequencer {
	return &sequencer{next: make(map[string]uint64)}
}

// Next returns the next sequence number for topic, starting at 1.
func (s *sequencer) Next(topic string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[topic]++
	return s.next[topic]
}

// Config holds parameters of a Service.
type Config struct {
	// Broker forwards envelopes between publishers and subscribers.
	Broker Broker
	// Clock stamps envelopes. Defaults to a real clock.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Broker == nil {
		return trace.BadParameter("missing parameter Broker")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Service implements wire.EventBusServer.
type Service struct {
	cfg    Config
	seq    *sequencer
	logger *slog.Logger
}

// New returns an event bus service.
func New(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Service{
		cfg:    cfg,
		seq:    newSequencer(),
		logger: logutils.NewPackageLogger(fabric.ComponentKey, fabric.ComponentEventBus),
	}, nil
}

// Publish stamps the event with the topic's next sequence number and
// forwards the envelope to the broker on "fabric:event:<topic>".
func (s *Service) Publish(ctx context.Context, req *wire.PublishRequest) (*wire.PublishResponse, error) {
	if req.Topic == "" {
		return nil, trace.BadParameter("missing topic")
	}
	env := types.EventEnvelope{
		Topic:      req.Topic,
		Payload:    req.Payload,
		SequenceID: s.seq.Next(req.Topic),
		Timestamp:  s.cfg.Clock.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.cfg.Broker.Publish(ctx, defaults.EventChannelPrefix+req.Topic, data); err != nil {
		return nil, trace.Wrap(err)
	}
	return &wire.PublishResponse{
		Success: true,
		Message: "published to " + req.Topic,
	}, nil
}

// Subscribe forwards envelopes matching the topic filter to the caller
// until the caller disconnects. A filter with a trailing '*' subscribes to
// the matching channel pattern.
func (s *Service) Subscribe(req *wire.SubscribeRequest, stream wire.EventBus_SubscribeServer) error {
	if req.TopicFilter == "" {
		return trace.BadParameter("missing topic_filter")
	}
	ctx := stream.Context()

	var sub *redisbk.Subscription
	if strings.HasSuffix(req.TopicFilter, "*") {
		sub = s.cfg.Broker.PSubscribe(ctx, defaults.EventChannelPrefix+req.TopicFilter)
	} else {
		sub = s.cfg.Broker.Subscribe(ctx, defaults.EventChannelPrefix+req.TopicFilter)
	}
	defer sub.Close()

	s.logger.InfoContext(ctx, "Subscriber attached.", "topic_filter", req.TopicFilter)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return trace.ConnectionProblem(nil, "broker subscription closed")
			}
			ev, err := decodeEnvelope(msg)
			if err != nil {
				s.logger.WarnContext(ctx, "Dropping undecodable envelope.",
					"channel", msg.Channel, "error", err)
				continue
			}
			if err := stream.Send(ev); err != nil {
				return trace.Wrap(err)
			}
		}
	}
}

func decodeEnvelope(msg *redis.Message) (*wire.Event, error) {
	var env types.EventEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return nil, trace.Wrap(err)
	}
	return &wire.Event{
		Topic:      env.Topic,
		Payload:    env.Payload,
		SequenceID: env.SequenceID,
	}, nil
}

// firstSegmentWildcard maps "market.movers:nasdaq" to "market.movers*"
// within the given capability family. The admission pipeline retries with
// this form after the exact capability is denied.
func firstSegmentWildcard(prefix, topic string) string {
	seg := topic
	if i := strings.Index(topic, ":"); i >= 0 {
		seg = topic[:i]
	}
	return prefix + seg + "*"
}

// Ops is the admission table of the event bus.
func Ops() map[string]admission.OpSpec {
	return map[string]admission.OpSpec{
		wire.EventBus_Publish_FullMethodName: {
			Capability: func(req any) string {
				return "event:publish:" + req.(*wire.PublishRequest).Topic
			},
			WildcardCapability: func(req any) string {
				return firstSegmentWildcard("event:publish:", req.(*wire.PublishRequest).Topic)
			},
		},
		wire.EventBus_Subscribe_FullMethodName: {
			Capability: func(req any) string {
				return "event:subscribe:" + req.(*wire.SubscribeRequest).TopicFilter
			},
			WildcardCapability: func(req any) string {
				return firstSegmentWildcard("event:subscribe:", req.(*wire.SubscribeRequest).TopicFilter)
			},
		},
	}
}
