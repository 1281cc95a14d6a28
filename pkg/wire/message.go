package wire

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CBOR map keys shared by all messages.
const (
	KeyType      = 0
	KeyMessageID = 1
)

// NotificationMessageID is reserved for pushed notifications.
const NotificationMessageID uint32 = 0

// MessageType is the value under KeyType.
type MessageType uint8

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeRequest
	MessageTypeResponse
	MessageTypeNotification
	MessageTypeControl
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "request"
	case MessageTypeResponse:
		return "response"
	case MessageTypeNotification:
		return "notification"
	case MessageTypeControl:
		return "control"
	default:
		return "unknown"
	}
}

// Request is one operation on one node.
//
// CBOR encoding:
//
//	{
//	  0: 1,            // MessageTypeRequest
//	  1: messageId,    // uint32, never 0
//	  2: operation,    // uint8
//	  3: path,         // array of names, relative to the exported node
//	  4: payload       // operation-specific, see the *Payload types
//	}
type Request struct {
	MessageID uint32          `cbor:"1,keyasint"`
	Operation Operation       `cbor:"2,keyasint"`
	Path      []string        `cbor:"3,keyasint,omitempty"`
	Payload   cbor.RawMessage `cbor:"4,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.MessageID == NotificationMessageID {
		return fmt.Errorf("messageId 0 is reserved for notifications")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	for _, name := range r.Path {
		if name == "" {
			return fmt.Errorf("empty path element")
		}
	}
	return nil
}

// SetPayload encodes p as the request payload.
func (r *Request) SetPayload(p any) error {
	raw, err := Marshal(p)
	if err != nil {
		return err
	}
	r.Payload = raw
	return nil
}

// DecodePayload decodes the request payload into p.
func (r *Request) DecodePayload(p any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", r.Operation)
	}
	return Unmarshal(r.Payload, p)
}

// Response answers the request with the same message ID.
//
// CBOR encoding:
//
//	{
//	  0: 2,            // MessageTypeResponse
//	  1: messageId,
//	  2: status,       // uint8: 0=success, or error code
//	  3: payload,      // result on success
//	  4: error         // ErrorPayload on failure
//	}
type Response struct {
	MessageID uint32          `cbor:"1,keyasint"`
	Status    Status          `cbor:"2,keyasint"`
	Payload   cbor.RawMessage `cbor:"3,keyasint,omitempty"`
	Error     *ErrorPayload   `cbor:"4,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// SetPayload encodes p as the response payload.
func (r *Response) SetPayload(p any) error {
	raw, err := Marshal(p)
	if err != nil {
		return err
	}
	r.Payload = raw
	return nil
}

// DecodePayload decodes the response payload into p.
func (r *Response) DecodePayload(p any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("missing response payload")
	}
	return Unmarshal(r.Payload, p)
}

// ErrorPayload describes a failed operation.
type ErrorPayload struct {
	Message    string      `cbor:"1,keyasint,omitempty"`
	Expression string      `cbor:"2,keyasint,omitempty"` // constraint text for StatusValidationFailed
	Value      *TypedValue `cbor:"3,keyasint,omitempty"` // rejected value for StatusValidationFailed
}

// Notification is pushed for a node the connection subscribed to.
//
// CBOR encoding:
//
//	{
//	  0: 3,            // MessageTypeNotification
//	  1: 0,            // reserved message ID
//	  2: event,        // 1=value changed, 2=structure changed, 3=destroyed
//	  3: path,         // relative to the exported node
//	  4: payload,      // TypedValue
//	  5: index,        // first changed element
//	  6: time          // unix timestamp
//	}
type Notification struct {
	Event   uint8      `cbor:"2,keyasint"`
	Path    []string   `cbor:"3,keyasint,omitempty"`
	Payload TypedValue `cbor:"4,keyasint"`
	Index   int        `cbor:"5,keyasint,omitempty"`
	Time    time.Time  `cbor:"6,keyasint"`
}

// HelloPayload opens a session.
type HelloPayload struct {
	Version string `cbor:"1,keyasint"`
	Client  string `cbor:"2,keyasint,omitempty"`
}

// HelloResponsePayload answers Hello. Challenge is empty when the server
// does not require authentication.
type HelloResponsePayload struct {
	Version   string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	Challenge []byte `cbor:"3,keyasint,omitempty"`
}

// AuthenticatePayload carries the MAC over the challenge.
type AuthenticatePayload struct {
	MAC []byte `cbor:"1,keyasint"`
}

// GetValuePayload selects Count elements starting at Pos. Count < 0 reads
// to the end.
type GetValuePayload struct {
	Pos   int `cbor:"1,keyasint,omitempty"`
	Count int `cbor:"2,keyasint"`
}

// SetValuePayload writes Value starting at Pos.
type SetValuePayload struct {
	Pos   int        `cbor:"1,keyasint,omitempty"`
	Value TypedValue `cbor:"2,keyasint"`
}

// ResizePayload sets the length of an array node.
type ResizePayload struct {
	Size int `cbor:"1,keyasint"`
}

// ValueTypePayload answers GetValueType.
type ValueTypePayload struct {
	Kind  uint8 `cbor:"1,keyasint"`
	Array bool  `cbor:"2,keyasint,omitempty"`
}

// DomainEntry is one enum domain value.
type DomainEntry struct {
	Name  string `cbor:"1,keyasint"`
	Value int64  `cbor:"2,keyasint"`
}

// InfoPayload answers GetInfo.
type InfoPayload struct {
	Name        string        `cbor:"1,keyasint"`
	NodeKind    uint8         `cbor:"2,keyasint"`
	Kind        uint8         `cbor:"3,keyasint,omitempty"`
	Flags       uint16        `cbor:"4,keyasint"`
	Size        int           `cbor:"5,keyasint"`
	Children    int           `cbor:"6,keyasint"`
	Domain      []DomainEntry `cbor:"7,keyasint,omitempty"`
	Constraint  string        `cbor:"8,keyasint,omitempty"`
	Description string        `cbor:"9,keyasint,omitempty"`
}

// ControlMessage is a transport-level control message.
type ControlMessage struct {
	Type     ControlMessageType `cbor:"1,keyasint"`
	Sequence uint32             `cbor:"2,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}
