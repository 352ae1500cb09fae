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

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// callOpts prepends the fabric content-subtype so servers pick the JSON
// codec.
func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// DiscoveryClient is the client API for the discovery registry.
type DiscoveryClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error)
}

type discoveryClient struct {
	cc grpc.ClientConnInterface
}

// NewDiscoveryClient returns a DiscoveryClient over cc.
func NewDiscoveryClient(cc grpc.ClientConnInterface) DiscoveryClient {
	return &discoveryClient{cc: cc}
}

func (c *discoveryClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, Discovery_Register_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *discoveryClient) Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error) {
	out := new(LookupResponse)
	if err := c.cc.Invoke(ctx, Discovery_Lookup_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// ContextToolClient is the client API for the context/tool service.
type ContextToolClient interface {
	RequestContext(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*ContextResponse, error)
	InvokeTool(ctx context.Context, in *ToolRequest, opts ...grpc.CallOption) (*ToolResponse, error)
	SubscribeTelemetry(ctx context.Context, in *TelemetrySubscribeRequest, opts ...grpc.CallOption) (ContextTool_SubscribeTelemetryClient, error)
	MultiModalExchange(ctx context.Context, opts ...grpc.CallOption) (ContextTool_MultiModalExchangeClient, error)
}

type contextToolClient struct {
	cc grpc.ClientConnInterface
}

// NewContextToolClient returns a ContextToolClient over cc.
func NewContextToolClient(cc grpc.ClientConnInterface) ContextToolClient {
	return &contextToolClient{cc: cc}
}

func (c *contextToolClient) RequestContext(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*ContextResponse, error) {
	out := new(ContextResponse)
	if err := c.cc.Invoke(ctx, ContextTool_RequestContext_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *contextToolClient) InvokeTool(ctx context.Context, in *ToolRequest, opts ...grpc.CallOption) (*ToolResponse, error) {
	out := new(ToolResponse)
	if err := c.cc.Invoke(ctx, ContextTool_InvokeTool_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// ContextTool_SubscribeTelemetryClient is the client side of the telemetry
// stream.
type ContextTool_SubscribeTelemetryClient interface {
	Recv() (*TelemetryFrame, error)
	grpc.ClientStream
}

type contextToolSubscribeTelemetryClient struct {
	grpc.ClientStream
}

func (x *contextToolSubscribeTelemetryClient) Recv() (*TelemetryFrame, error) {
	m := new(TelemetryFrame)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *contextToolClient) SubscribeTelemetry(ctx context.Context, in *TelemetrySubscribeRequest, opts ...grpc.CallOption) (ContextTool_SubscribeTelemetryClient, error) {
	stream, err := c.cc.NewStream(ctx, &ContextTool_ServiceDesc.Streams[0], ContextTool_SubscribeTelemetry_FullMethodName, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &contextToolSubscribeTelemetryClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ContextTool_MultiModalExchangeClient is the client side of the
// bidirectional exchange.
type ContextTool_MultiModalExchangeClient interface {
	Send(*MultiModalFrame) error
	Recv() (*MultiModalFrame, error)
	grpc.ClientStream
}

type contextToolMultiModalExchangeClient struct {
	grpc.ClientStream
}

func (x *contextToolMultiModalExchangeClient) Send(m *MultiModalFrame) error {
	return x.ClientStream.SendMsg(m)
}

func (x *contextToolMultiModalExchangeClient) Recv() (*MultiModalFrame, error) {
	m := new(MultiModalFrame)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *contextToolClient) MultiModalExchange(ctx context.Context, opts ...grpc.CallOption) (ContextTool_MultiModalExchangeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ContextTool_ServiceDesc.Streams[1], ContextTool_MultiModalExchange_FullMethodName, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	return &contextToolMultiModalExchangeClient{stream}, nil
}

// EventBusClient is the client API for the event bus.
type EventBusClient interface {
	Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (EventBus_SubscribeClient, error)
}

type eventBusClient struct {
	cc grpc.ClientConnInterface
}

// NewEventBusClient returns an EventBusClient over cc.
func NewEventBusClient(cc grpc.ClientConnInterface) EventBusClient {
	return &eventBusClient{cc: cc}
}

func (c *eventBusClient) Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error) {
	out := new(PublishResponse)
	if err := c.cc.Invoke(ctx, EventBus_Publish_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// EventBus_SubscribeClient is the client side of the event stream.
type EventBus_SubscribeClient interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventBusSubscribeClient struct {
	grpc.ClientStream
}

func (x *eventBusSubscribeClient) Recv() (*Event, error) {
	m := new(Event)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *eventBusClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (EventBus_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &EventBus_ServiceDesc.Streams[0], EventBus_Subscribe_FullMethodName, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &eventBusSubscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
