// ABOUTME: gRPC codec for the hand-maintained gateway messages
// ABOUTME: Falls back to protobuf reflection for generated messages such as the health service

package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// wireMessage is implemented by PromptRequest and PromptResponse.
type wireMessage interface {
	MarshalWire(b []byte) []byte
	UnmarshalWire(b []byte) error
}

// Codec speaks the protobuf wire format. It is forced on both ends of the
// connection with ServerCodecOption and CodecCallOption.
type Codec struct{}

// Name is "proto" so the content-subtype matches stock gRPC peers.
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMessage:
		return m.MarshalWire(nil), nil
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("rpc codec: cannot marshal %T", v)
	}
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireMessage:
		if err := m.UnmarshalWire(data); err != nil {
			return fmt.Errorf("rpc codec: decoding %T: %w", v, err)
		}
		return nil
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("rpc codec: cannot unmarshal into %T", v)
	}
}

var _ encoding.Codec = Codec{}
