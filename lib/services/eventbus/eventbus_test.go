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

package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/api/wire"
	"github.com/capmesh/fabric/lib/backend/redisbk"
	"github.com/capmesh/fabric/lib/defaults"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

func TestMain(m *testing.M) {
	logutils.InitForTests()
	m.Run()
}

func newTestService(t *testing.T) (*Service, *redisbk.Backend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	backend := redisbk.New(client)

	svc, err := New(Config{
		Broker: backend,
		Clock:  clockwork.NewFakeClock(),
	})
	require.NoError(t, err)
	return svc, backend
}

func TestSequencerPerTopic(t *testing.T) {
	seq := newSequencer()

	for i := uint64(1); i <= 100; i++ {
		require.Equal(t, i, seq.Next("inventory:low_stock"))
	}
	// Distinct topics do not serialize against each other.
	require.Equal(t, uint64(1), seq.Next("orders:created"))
	require.Equal(t, uint64(101), seq.Next("inventory:low_stock"))
}

func TestSequencerConcurrentPublishers(t *testing.T) {
	seq := newSequencer()

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	seen := make([]map[uint64]bool, workers)
	for w := 0; w < workers; w++ {
		seen[w] = make(map[uint64]bool)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				seen[w][seq.Next("shared")] = true
			}
		}(w)
	}
	wg.Wait()

	// Every sequence number 1..N is handed out exactly once.
	all := make(map[uint64]bool)
	for _, m := range seen {
		for id := range m {
			require.False(t, all[id], "sequence %d handed out twice", id)
			all[id] = true
		}
	}
	require.Len(t, all, workers*perWorker)
}

func TestPublishStampsEnvelope(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	sub := backend.Subscribe(ctx, defaults.EventChannelPrefix+"inventory:prod_12345:low_stock")
	defer sub.Close()

	resp, err := svc.Publish(ctx, &wire.PublishRequest{
		Topic:   "inventory:prod_12345:low_stock",
		Payload: []byte(`{"current_stock": 9}`),
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	select {
	case msg := <-sub.Messages():
		var env types.EventEnvelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		require.Equal(t, "inventory:prod_12345:low_stock", env.Topic)
		require.JSONEq(t, `{"current_stock": 9}`, string(env.Payload))
		require.Equal(t, uint64(1), env.SequenceID)
	case <-time.After(5 * time.Second):
		t.Fatal("no envelope delivered")
	}

	// A second publish on the same topic carries the next sequence number.
	_, err = svc.Publish(ctx, &wire.PublishRequest{
		Topic:   "inventory:prod_12345:low_stock",
		Payload: []byte(`{"current_stock": 8}`),
	})
	require.NoError(t, err)
	select {
	case msg := <-sub.Messages():
		var env types.EventEnvelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		require.Equal(t, uint64(2), env.SequenceID)
	case <-time.After(5 * time.Second):
		t.Fatal("no envelope delivered")
	}
}

func TestPublishRequiresTopic(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Publish(context.Background(), &wire.PublishRequest{})
	require.Error(t, err)
}

// fakeEventStream collects events sent to a subscriber.
type fakeEventStream struct {
	grpc.ServerStream
	ctx    context.Context
	events chan *wire.Event
}

func (s *fakeEventStream) Context() context.Context { return s.ctx }

func (s *fakeEventStream) Send(ev *wire.Event) error {
	s.events <- ev
	return nil
}

func TestSubscribeExactTopic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &fakeEventStream{ctx: ctx, events: make(chan *wire.Event, 16)}
	done := make(chan error, 1)
	go func() {
		done <- svc.Subscribe(&wire.SubscribeRequest{TopicFilter: "inventory:prod_12345:low_stock"}, stream)
	}()

	// Give the subscription a moment to attach before publishing.
	require.Eventually(t, func() bool {
		svc.Publish(context.Background(), &wire.PublishRequest{
			Topic:   "inventory:prod_12345:low_stock",
			Payload: []byte(`{"current_stock": 9}`),
		})
		select {
		case ev := <-stream.events:
			require.Equal(t, "inventory:prod_12345:low_stock", ev.Topic)
			require.NotZero(t, ev.SequenceID)
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop on disconnect")
	}
}

func TestSubscribePatternFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &fakeEventStream{ctx: ctx, events: make(chan *wire.Event, 16)}
	done := make(chan error, 1)
	go func() {
		done <- svc.Subscribe(&wire.SubscribeRequest{TopicFilter: "inventory:*"}, stream)
	}()

	var got *wire.Event
	require.Eventually(t, func() bool {
		svc.Publish(context.Background(), &wire.PublishRequest{
			Topic:   "inventory:prod_12345:low_stock",
			Payload: []byte(`{"current_stock": 9}`),
		})
		select {
		case ev := <-stream.events:
			got = ev
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, "inventory:prod_12345:low_stock", got.Topic)

	// Non-matching topics are not delivered.
	_, err := svc.Publish(context.Background(), &wire.PublishRequest{
		Topic:   "orders:created",
		Payload: []byte(`{}`),
	})
	require.NoError(t, err)
	select {
	case ev := <-stream.events:
		require.NotEqual(t, "orders:created", ev.Topic)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop on disconnect")
	}
}

func TestSubscribeRequiresFilter(t *testing.T) {
	svc, _ := newTestService(t)
	stream := &fakeEventStream{ctx: context.Background(), events: make(chan *wire.Event, 1)}
	err := svc.Subscribe(&wire.SubscribeRequest{}, stream)
	require.Error(t, err)
}

func TestFirstSegmentWildcard(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{topic: "inventory:prod_12345:low_stock", want: "event:publish:inventory*"},
		{topic: "inventory", want: "event:publish:inventory*"},
		{topic: "market.movers:nasdaq", want: "event:publish:market.movers*"},
		{topic: ":odd", want: "event:publish:*"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, firstSegmentWildcard("event:publish:", tt.topic), "topic %q", tt.topic)
	}
}

func TestOpsDeriveCapabilities(t *testing.T) {
	ops := Ops()

	pub := ops[wire.EventBus_Publish_FullMethodName]
	req := &wire.PublishRequest{Topic: "inventory:prod_12345:low_stock"}
	require.Equal(t, "event:publish:inventory:prod_12345:low_stock", pub.Capability(req))
	require.Equal(t, "event:publish:inventory*", pub.WildcardCapability(req))

	sub := ops[wire.EventBus_Subscribe_FullMethodName]
	sreq := &wire.SubscribeRequest{TopicFilter: "inventory:*"}
	require.Equal(t, "event:subscribe:inventory:*", sub.Capability(sreq))
	require.Equal(t, "event:subscribe:inventory*", sub.WildcardCapability(sreq))
}
