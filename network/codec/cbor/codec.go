// Package cbor implements the wire envelope: a one-byte message code
// followed by the CBOR encoding of the payload. Payload structs carry stable
// integer field keys (`cbor:"N,keyasint"`), so fields can be added or
// retired without breaking older peers.
package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/kengeo/libra/network/codec"
)

// Codec encodes and decodes wire envelopes.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Encode serializes the given message into an envelope: the message code
// byte followed by the CBOR-encoded payload.
// Error returns:
//   - codec.ErrUnknownMsgType if the message type is not part of the wire contract
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	code, what, err := codec.MessageCodeFromInterface(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine message code: %w", err)
	}

	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", what, err)
	}

	envelope := make([]byte, 0, len(data)+1)
	envelope = append(envelope, code)
	envelope = append(envelope, data...)
	return envelope, nil
}

// Decode deserializes an envelope into the message matching its code byte.
// Error returns:
//   - codec.ErrInvalidEncoding if the envelope is too short
//   - codec.ErrUnknownMsgCode if the code byte is unknown or reserved
//   - codec.ErrMsgUnmarshal if the payload cannot be decoded
func (c *Codec) Decode(data []byte) (interface{}, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("envelope must contain message code and payload: %w", codec.ErrInvalidEncoding)
	}

	v, what, err := codec.InterfaceFromMessageCode(data[0])
	if err != nil {
		return nil, fmt.Errorf("could not determine message interface: %w", err)
	}

	if err := cbor.Unmarshal(data[1:], v); err != nil {
		return nil, codec.NewMsgUnmarshalErr(data[0], what, err)
	}
	return v, nil
}
