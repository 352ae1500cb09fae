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

// Full method names of the fabric RPC surface.
const (
	Discovery_Register_FullMethodName = "/fabric.Discovery/Register"
	Discovery_Lookup_FullMethodName   = "/fabric.Discovery/Lookup"

	ContextTool_RequestContext_FullMethodName     = "/fabric.ContextTool/RequestContext"
	ContextTool_SubscribeTelemetry_FullMethodName = "/fabric.ContextTool/SubscribeTelemetry"
	ContextTool_InvokeTool_FullMethodName         = "/fabric.ContextTool/InvokeTool"
	ContextTool_MultiModalExchange_FullMethodName = "/fabric.ContextTool/MultiModalExchange"

	EventBus_Publish_FullMethodName   = "/fabric.EventBus/Publish"
	EventBus_Subscribe_FullMethodName = "/fabric.EventBus/Subscribe"
)

// DiscoveryServer is the server API for the discovery registry.
type DiscoveryServer interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error)
}

// ContextToolServer is the server API for the context/tool service.
type ContextToolServer interface {
	RequestContext(ctx context.Context, req *ContextRequest) (*ContextResponse, error)
	InvokeTool(ctx context.Context, req *ToolRequest) (*ToolResponse, error)
	SubscribeTelemetry(req *TelemetrySubscribeRequest, stream ContextTool_SubscribeTelemetryServer) error
	MultiModalExchange(stream ContextTool_MultiModalExchangeServer) error
}

// EventBusServer is the server API for the event bus.
type EventBusServer interface {
	Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error)
	Subscribe(req *SubscribeRequest, stream EventBus_SubscribeServer) error
}

// ContextTool_SubscribeTelemetryServer is the server side of the telemetry
// stream.
type ContextTool_SubscribeTelemetryServer interface {
	Send(*TelemetryFrame) error
	grpc.ServerStream
}

type contextToolSubscribeTelemetryServer struct {
	grpc.ServerStream
}

func (x *contextToolSubscribeTelemetryServer) Send(m *TelemetryFrame) error {
	return x.ServerStream.SendMsg(m)
}

// ContextTool_MultiModalExchangeServer is the server side of the
// bidirectional exchange.
type ContextTool_MultiModalExchangeServer interface {
	Send(*MultiModalFrame) error
	Recv() (*MultiModalFrame, error)
	grpc.ServerStream
}

type contextToolMultiModalExchangeServer struct {
	grpc.ServerStream
}

func (x *contextToolMultiModalExchangeServer) Send(m *MultiModalFrame) error {
	return x.ServerStream.SendMsg(m)
}

func (x *contextToolMultiModalExchangeServer) Recv() (*MultiModalFrame, error) {
	m := new(MultiModalFrame)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// EventBus_SubscribeServer is the server side of the event stream.
type EventBus_SubscribeServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type eventBusSubscribeServer struct {
	grpc.ServerStream
}

func (x *eventBusSubscribeServer) Send(m *Event) error {
	return x.ServerStream.SendMsg(m)
}

func _Discovery_Register_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiscoveryServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Discovery_Register_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiscoveryServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Discovery_Lookup_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LookupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiscoveryServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Discovery_Lookup_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiscoveryServer).Lookup(ctx, req.(*LookupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContextTool_RequestContext_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ContextRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContextToolServer).RequestContext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ContextTool_RequestContext_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContextToolServer).RequestContext(ctx, req.(*ContextRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContextTool_InvokeTool_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ToolRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContextToolServer).InvokeTool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ContextTool_InvokeTool_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContextToolServer).InvokeTool(ctx, req.(*ToolRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContextTool_SubscribeTelemetry_Handler(srv any, stream grpc.ServerStream) error {
	m := new(TelemetrySubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ContextToolServer).SubscribeTelemetry(m, &contextToolSubscribeTelemetryServer{stream})
}

func _ContextTool_MultiModalExchange_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(ContextToolServer).MultiModalExchange(&contextToolMultiModalExchangeServer{stream})
}

func _EventBus_Publish_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EventBusServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EventBus_Publish_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EventBusServer).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EventBus_Subscribe_Handler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EventBusServer).Subscribe(m, &eventBusSubscribeServer{stream})
}

// Discovery_ServiceDesc is the grpc.ServiceDesc for the Discovery service.
var Discovery_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fabric.Discovery",
	HandlerType: (*DiscoveryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: _Discovery_Register_Handler},
		{MethodName: "Lookup", Handler: _Discovery_Lookup_Handler},
	},
	Streams: []grpc.StreamDesc{},
}

// ContextTool_ServiceDesc is the grpc.ServiceDesc for the ContextTool
// service.
var ContextTool_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fabric.ContextTool",
	HandlerType: (*ContextToolServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestContext", Handler: _ContextTool_RequestContext_Handler},
		{MethodName: "InvokeTool", Handler: _ContextTool_InvokeTool_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeTelemetry",
			Handler:       _ContextTool_SubscribeTelemetry_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "MultiModalExchange",
			Handler:       _ContextTool_MultiModalExchange_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// EventBus_ServiceDesc is the grpc.ServiceDesc for the EventBus service.
var EventBus_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fabric.EventBus",
	HandlerType: (*EventBusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: _EventBus_Publish_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       _EventBus_Subscribe_Handler,
			ServerStreams: true,
		},
	},
}

// RegisterDiscoveryServer registers srv with s.
func RegisterDiscoveryServer(s grpc.ServiceRegistrar, srv DiscoveryServer) {
	s.RegisterService(&Discovery_ServiceDesc, srv)
}

// RegisterContextToolServer registers srv with s.
func RegisterContextToolServer(s grpc.ServiceRegistrar, srv ContextToolServer) {
	s.RegisterService(&ContextTool_ServiceDesc, srv)
}

// RegisterEventBusServer registers srv with s.
func RegisterEventBusServer(s grpc.ServiceRegistrar, srv EventBusServer) {
	s.RegisterService(&EventBus_ServiceDesc, srv)
}
