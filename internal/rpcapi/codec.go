// Package rpcapi exposes the search cycle engine over gRPC. Rather than
// depend on a protoc-generated stub, it registers a JSON encoding.Codec and
// builds the service's grpc.ServiceDesc by hand, wiring plain Go structs as
// the request/response payloads instead of a generated message type.
package rpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec, letting this service skip protoc
// entirely while still speaking gRPC's framing over HTTP/2.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }
