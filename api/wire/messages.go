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

// Package wire defines the RPC surface of the three fabric services:
// message shapes, service descriptors and client stubs. Messages travel as
// JSON frames over gRPC; the framing itself belongs to the transport and
// stays out of the core.
package wire

// RegisterRequest registers a service endpoint with the discovery
// registry. The registration token and the dialable address travel in call
// metadata under "registration_token" and "grpc-url".
type RegisterRequest struct {
	ServerName   string   `json:"server_name"`
	Capabilities []string `json:"capabilities"`
}

// RegisterResponse reports the outcome of a registration.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LookupRequest queries the registry for endpoints serving at least one of
// the capability filters.
type LookupRequest struct {
	RequesterToken   string   `json:"requester_token"`
	CapabilityFilter []string `json:"capability_filter"`
}

// GetCapabilityToken returns the bearer token gating the lookup.
func (r *LookupRequest) GetCapabilityToken() string { return r.RequesterToken }

// EndpointDescriptor describes one registered endpoint.
type EndpointDescriptor struct {
	ServerName   string   `json:"server_name"`
	GRPCURL      string   `json:"grpc_url"`
	Capabilities []string `json:"capabilities"`
}

// LookupResponse lists the matching endpoints the caller's audience names.
type LookupResponse struct {
	Endpoints []EndpointDescriptor `json:"endpoints"`
}

// ContextRequest reads a context entry by key.
type ContextRequest struct {
	ContextKey      string            `json:"context_key"`
	Parameters      map[string]string `json:"parameters"`
	CapabilityToken string            `json:"capability_token"`
}

// GetCapabilityToken returns the bearer token gating the read.
func (r *ContextRequest) GetCapabilityToken() string { return r.CapabilityToken }

// ContextResponse carries the stored entry. An absent entry yields empty
// bytes and empty metadata, not an error.
type ContextResponse struct {
	SerializedValue []byte   `json:"serialized_value"`
	Metadata        []string `json:"metadata"`
}

// TelemetrySubscribeRequest opens a telemetry stream.
type TelemetrySubscribeRequest struct {
	StreamID        string `json:"stream_id"`
	CapabilityToken string `json:"capability_token"`
}

// GetCapabilityToken returns the bearer token gating the stream.
func (r *TelemetrySubscribeRequest) GetCapabilityToken() string { return r.CapabilityToken }

// TelemetryFrame is one telemetry sample, stamped with the forwarding time.
type TelemetryFrame struct {
	TimestampMS int64  `json:"timestamp_ms"`
	Payload     []byte `json:"payload"`
}

// ToolRequest invokes a named tool, optionally under a delegation proof.
type ToolRequest struct {
	ToolName             string            `json:"tool_name"`
	Arguments            map[string]string `json:"arguments"`
	CapabilityToken      string            `json:"capability_token"`
	AgentDelegationProof string            `json:"agent_delegation_proof,omitempty"`
}

// GetCapabilityToken returns the bearer token gating the invocation.
func (r *ToolRequest) GetCapabilityToken() string { return r.CapabilityToken }

// GetAgentDelegationProof returns the delegation proof, if any.
func (r *ToolRequest) GetAgentDelegationProof() string { return r.AgentDelegationProof }

// ToolResponse carries tool outputs. Unrecognized tool names produce a
// warning, not an error.
type ToolResponse struct {
	Success  bool              `json:"success"`
	Outputs  map[string][]byte `json:"outputs"`
	Warnings []string          `json:"warnings"`
}

// MultiModalFrame is one frame of the bidirectional exchange. The
// capability token travels in the call metadata of the stream, not in the
// frames.
type MultiModalFrame struct {
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// PublishRequest publishes one event to a topic.
type PublishRequest struct {
	Topic          string `json:"topic"`
	Payload        []byte `json:"payload"`
	PublisherToken string `json:"publisher_token"`
}

// GetCapabilityToken returns the bearer token gating the publish.
func (r *PublishRequest) GetCapabilityToken() string { return r.PublisherToken }

// PublishResponse reports the outcome of a publish.
type PublishResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubscribeRequest opens an event stream for a topic or, with a trailing
// '*', a topic pattern.
type SubscribeRequest struct {
	TopicFilter     string `json:"topic_filter"`
	SubscriberToken string `json:"subscriber_token"`
}

// GetCapabilityToken returns the bearer token gating the subscription.
func (r *SubscribeRequest) GetCapabilityToken() string { return r.SubscriberToken }

// Event is one delivered event.
type Event struct {
	Topic      string `json:"topic"`
	Payload    []byte `json:"payload"`
	SequenceID uint64 `json:"sequence_id"`
}
