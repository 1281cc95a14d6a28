package wire

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for protocol messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for protocol messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnixDynamic,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

type requestFrame struct {
	Type MessageType `cbor:"0,keyasint"`
	Request
}

type responseFrame struct {
	Type MessageType `cbor:"0,keyasint"`
	Response
}

type notificationFrame struct {
	Type      MessageType `cbor:"0,keyasint"`
	MessageID uint32      `cbor:"1,keyasint"`
	Notification
}

type controlFrame struct {
	Type     MessageType        `cbor:"0,keyasint"`
	Control  ControlMessageType `cbor:"1,keyasint"`
	Sequence uint32             `cbor:"2,keyasint,omitempty"`
}

// EncodeRequest encodes a request message to CBOR bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(requestFrame{Type: MessageTypeRequest, Request: *req})
}

// DecodeRequest decodes CBOR bytes into a request message.
func DecodeRequest(data []byte) (*Request, error) {
	var f requestFrame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if f.Type != MessageTypeRequest {
		return nil, fmt.Errorf("not a request: %s", f.Type)
	}
	if err := f.Request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &f.Request, nil
}

// EncodeResponse encodes a response message to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	return Marshal(responseFrame{Type: MessageTypeResponse, Response: *resp})
}

// DecodeResponse decodes CBOR bytes into a response message.
func DecodeResponse(data []byte) (*Response, error) {
	var f responseFrame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if f.Type != MessageTypeResponse {
		return nil, fmt.Errorf("not a response: %s", f.Type)
	}
	return &f.Response, nil
}

// EncodeNotification encodes a notification message to CBOR bytes.
// Notifications have messageId=0 which is handled automatically.
func EncodeNotification(notif *Notification) ([]byte, error) {
	return Marshal(notificationFrame{
		Type:         MessageTypeNotification,
		MessageID:    NotificationMessageID,
		Notification: *notif,
	})
}

// DecodeNotification decodes CBOR bytes into a notification message.
func DecodeNotification(data []byte) (*Notification, error) {
	var f notificationFrame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	if f.Type != MessageTypeNotification || f.MessageID != NotificationMessageID {
		return nil, fmt.Errorf("not a notification message: type=%s messageId=%d", f.Type, f.MessageID)
	}
	return &f.Notification, nil
}

// EncodeControlMessage encodes a control message (ping/pong/close) to CBOR bytes.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	return Marshal(controlFrame{Type: MessageTypeControl, Control: msg.Type, Sequence: msg.Sequence})
}

// DecodeControlMessage decodes CBOR bytes into a control message.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var f controlFrame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode control message: %w", err)
	}
	if f.Type != MessageTypeControl {
		return nil, fmt.Errorf("not a control message: %s", f.Type)
	}
	return &ControlMessage{Type: f.Control, Sequence: f.Sequence}, nil
}

// PeekMessageType returns the message type without decoding the body.
func PeekMessageType(data []byte) (MessageType, error) {
	var peek struct {
		Type MessageType `cbor:"0,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return MessageTypeUnknown, fmt.Errorf("failed to peek message: %w", err)
	}
	if peek.Type > MessageTypeControl {
		return MessageTypeUnknown, nil
	}
	return peek.Type, nil
}
