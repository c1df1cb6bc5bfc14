package sensorpb

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Codec is a gRPC codec for the hand-defined messages. It registers under the
// "proto" name so the content-type on the wire is application/grpc+proto.
// Generated proto.Message values are passed to the protobuf runtime.
type Codec struct{}

// Name returns the content-subtype of the codec
func (Codec) Name() string { return "proto" }

// Marshal encodes v
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.Marshal()
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("sensorpb: cannot marshal %T", v)
	}
}

// Unmarshal decodes data into v
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return m.Unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("sensorpb: cannot unmarshal into %T", v)
	}
}

// CallOption forces the codec on a client call
func CallOption() grpc.CallOption {
	return grpc.ForceCodec(Codec{})
}

// ServerOption forces the codec on a server
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}
