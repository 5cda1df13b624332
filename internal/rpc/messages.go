// ABOUTME: PromptRequest and PromptResponse with protobuf wire encoding
// ABOUTME: Field numbers and types follow proto/gateway.proto

package rpc

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from proto/gateway.proto.
const (
	fieldRequestModel      protowire.Number = 1
	fieldRequestUserPrompt protowire.Number = 2

	fieldResponseText      protowire.Number = 1
	fieldResponseCost      protowire.Number = 2
	fieldResponseWinner    protowire.Number = 3
	fieldResponseSucceeded protowire.Number = 4
)

var errWireType = errors.New("unexpected wire type")

// PromptRequest is gateway.PromptRequest.
type PromptRequest struct {
	Model      string
	UserPrompt string
}

// GetModel returns the model hint, tolerating a nil receiver.
func (m *PromptRequest) GetModel() string {
	if m == nil {
		return ""
	}
	return m.Model
}

// GetUserPrompt returns the prompt text, tolerating a nil receiver.
func (m *PromptRequest) GetUserPrompt() string {
	if m == nil {
		return ""
	}
	return m.UserPrompt
}

// MarshalWire appends the proto3 encoding of m. Zero fields are omitted.
func (m *PromptRequest) MarshalWire(b []byte) []byte {
	b = appendString(b, fieldRequestModel, m.Model)
	b = appendString(b, fieldRequestUserPrompt, m.UserPrompt)
	return b
}

// UnmarshalWire replaces m with the message decoded from b.
func (m *PromptRequest) UnmarshalWire(b []byte) error {
	*m = PromptRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRequestModel:
			return consumeString(typ, b, &m.Model)
		case fieldRequestUserPrompt:
			return consumeString(typ, b, &m.UserPrompt)
		}
		return -1, nil
	})
}

// PromptResponse is gateway.PromptResponse.
type PromptResponse struct {
	Text      string
	Cost      float32
	Winner    string
	Succeeded int32
}

// GetText returns the consolidated text, tolerating a nil receiver.
func (m *PromptResponse) GetText() string {
	if m == nil {
		return ""
	}
	return m.Text
}

// GetCost returns the cost estimate, tolerating a nil receiver.
func (m *PromptResponse) GetCost() float32 {
	if m == nil {
		return 0
	}
	return m.Cost
}

// GetWinner returns the winning backend, tolerating a nil receiver.
func (m *PromptResponse) GetWinner() string {
	if m == nil {
		return ""
	}
	return m.Winner
}

// GetSucceeded returns the success count, tolerating a nil receiver.
func (m *PromptResponse) GetSucceeded() int32 {
	if m == nil {
		return 0
	}
	return m.Succeeded
}

// MarshalWire appends the proto3 encoding of m. Zero fields are omitted.
func (m *PromptResponse) MarshalWire(b []byte) []byte {
	b = appendString(b, fieldResponseText, m.Text)
	if m.Cost != 0 {
		b = protowire.AppendTag(b, fieldResponseCost, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(m.Cost))
	}
	b = appendString(b, fieldResponseWinner, m.Winner)
	if m.Succeeded != 0 {
		b = protowire.AppendTag(b, fieldResponseSucceeded, protowire.VarintType)
		// int32 is sign-extended to 64 bits on the wire.
		b = protowire.AppendVarint(b, uint64(int64(m.Succeeded)))
	}
	return b
}

// UnmarshalWire replaces m with the message decoded from b.
func (m *PromptResponse) UnmarshalWire(b []byte) error {
	*m = PromptResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldResponseText:
			return consumeString(typ, b, &m.Text)
		case fieldResponseCost:
			if typ != protowire.Fixed32Type {
				return 0, fmt.Errorf("cost: %w %d", errWireType, typ)
			}
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Cost = math.Float32frombits(v)
			return n, nil
		case fieldResponseWinner:
			return consumeString(typ, b, &m.Winner)
		case fieldResponseSucceeded:
			if typ != protowire.VarintType {
				return 0, fmt.Errorf("succeeded: %w %d", errWireType, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Succeeded = int32(v)
			return n, nil
		}
		return -1, nil
	})
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("%w %d for string field", errWireType, typ)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

// consumeFields walks every field in b. field returns how many value bytes it
// consumed, or -1 to have the field skipped as unknown.
func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return nil
}
