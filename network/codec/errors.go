package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned when attempting to decode a message with an
// invalid encoding.
var ErrInvalidEncoding = errors.New("invalid encoding")

// ErrUnknownMsgCode indicates that the message code byte (first byte of the
// message payload) is unknown or reserved.
type ErrUnknownMsgCode struct {
	code uint8
}

func (e ErrUnknownMsgCode) Error() string {
	return fmt.Sprintf("could not get interface from unknown message code: %d", e.code)
}

// NewUnknownMsgCodeErr returns a new ErrUnknownMsgCode
func NewUnknownMsgCodeErr(code uint8) ErrUnknownMsgCode {
	return ErrUnknownMsgCode{code}
}

// IsErrUnknownMsgCode returns true if an error is ErrUnknownMsgCode
func IsErrUnknownMsgCode(err error) bool {
	var e ErrUnknownMsgCode
	return errors.As(err, &e)
}

// ErrUnknownMsgType indicates that the message type is not part of the wire
// contract and cannot be assigned a code.
type ErrUnknownMsgType struct {
	msgType string
}

func (e ErrUnknownMsgType) Error() string {
	return fmt.Sprintf("could not get code for unknown message type: %s", e.msgType)
}

// NewUnknownMsgTypeErr returns a new ErrUnknownMsgType
func NewUnknownMsgTypeErr(v interface{}) ErrUnknownMsgType {
	return ErrUnknownMsgType{msgType: fmt.Sprintf("%T", v)}
}

// IsErrUnknownMsgType returns true if an error is ErrUnknownMsgType
func IsErrUnknownMsgType(err error) bool {
	var e ErrUnknownMsgType
	return errors.As(err, &e)
}

// ErrMsgUnmarshal indicates that the message could not be unmarshalled.
type ErrMsgUnmarshal struct {
	code    uint8
	msgType string
	err     string
}

func (e ErrMsgUnmarshal) Error() string {
	return fmt.Sprintf("failed to unmarshal message payload with message type %s and message code %d: %s", e.msgType, e.code, e.err)
}

// NewMsgUnmarshalErr returns a new ErrMsgUnmarshal
func NewMsgUnmarshalErr(code uint8, msgType string, err error) ErrMsgUnmarshal {
	return ErrMsgUnmarshal{code: code, msgType: msgType, err: err.Error()}
}

// IsErrMsgUnmarshal returns true if an error is ErrMsgUnmarshal
func IsErrMsgUnmarshal(err error) bool {
	var e ErrMsgUnmarshal
	return errors.As(err, &e)
}
