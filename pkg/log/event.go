package log

import (
	"time"

	"github.com/bpmctl/paramtree/pkg/wire"
)

// Event is one captured protocol occurrence. Exactly one of the payload
// pointers is set.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	LocalRole    Role      `cbor:"6,keyasint,omitempty"`
	RemoteAddr   string    `cbor:"7,keyasint,omitempty"`

	// Peer is the name announced in the hello exchange.
	Peer string `cbor:"8,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

func enumName(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "UNKNOWN"
}

// Direction is relative to the process that wrote the log.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }

// Layer is where in the stack an event was observed.
type Layer uint8

const (
	// LayerTransport sees raw frames.
	LayerTransport Layer = iota
	// LayerWire sees decoded messages.
	LayerWire
	// LayerService sees remote tree operations.
	LayerService
)

var layerNames = []string{"TRANSPORT", "WIRE", "SERVICE"}

func (l Layer) String() string { return enumName(layerNames, uint8(l)) }

type Category uint8

const (
	CategoryMessage Category = iota
	CategoryControl
	CategoryState
	CategoryError
)

var categoryNames = []string{"MESSAGE", "CONTROL", "STATE", "ERROR"}

func (c Category) String() string { return enumName(categoryNames, uint8(c)) }

// Role tells whether the logging side exports the tree or mounts it.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

var roleNames = []string{"SERVER", "CLIENT"}

func (r Role) String() string { return enumName(roleNames, uint8(r)) }

// FrameEvent records a frame as it crossed the socket. Size counts the
// length prefix; Data is cut at
// transport.MaxLogFrameDataSize.
type FrameEvent struct {
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// MessageEvent is a decoded message. Operation is set on requests, Status
// on responses and Event on notifications. Path is relative to the
// exported root.
type MessageEvent struct {
	Type      MessageType      `cbor:"1,keyasint"`
	MessageID uint32           `cbor:"2,keyasint"`
	Operation *wire.Operation  `cbor:"3,keyasint,omitempty"`
	Path      []string         `cbor:"4,keyasint,omitempty"`
	Status    *wire.Status     `cbor:"6,keyasint,omitempty"`
	Event     *uint8           `cbor:"7,keyasint,omitempty"`
	Value     *wire.TypedValue `cbor:"8,keyasint,omitempty"`

	// ProcessingTime is set on responses sent by a server.
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
	MessageTypeNotification
)

var messageTypeNames = []string{"REQUEST", "RESPONSE", "NOTIFICATION"}

func (m MessageType) String() string { return enumName(messageTypeNames, uint8(m)) }

type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is the thing whose state changed.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	// StateEntitySession covers the hello exchange and authentication.
	StateEntitySession
	StateEntitySubscription
)

var stateEntityNames = []string{"CONNECTION", "SESSION", "SUBSCRIPTION"}

func (s StateEntity) String() string { return enumName(stateEntityNames, uint8(s)) }

// ControlMsgEvent records keep-alive traffic and closes.
type ControlMsgEvent struct {
	Type     ControlMsgType `cbor:"1,keyasint"`
	Sequence uint32         `cbor:"2,keyasint,omitempty"`
}

type ControlMsgType uint8

const (
	ControlMsgPing ControlMsgType = iota
	ControlMsgPong
	ControlMsgClose
)

var controlMsgNames = []string{"PING", "PONG", "CLOSE"}

func (c ControlMsgType) String() string { return enumName(controlMsgNames, uint8(c)) }

// ErrorEventData records a failure. Status is set when the error was
// reported to the peer; Context names what was being attempted.
type ErrorEventData struct {
	Layer   Layer        `cbor:"1,keyasint"`
	Message string       `cbor:"2,keyasint"`
	Status  *wire.Status `cbor:"3,keyasint,omitempty"`
	Context string       `cbor:"4,keyasint,omitempty"`
}

// RequestEvent builds a wire-layer event for req.
func RequestEvent(connID string, dir Direction, req *wire.Request) Event {
	op := req.Operation
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message: &MessageEvent{
			Type:      MessageTypeRequest,
			MessageID: req.MessageID,
			Operation: &op,
			Path:      req.Path,
		},
	}
}

// ResponseEvent builds a wire-layer event for resp. elapsed is recorded
// when positive.
func ResponseEvent(connID string, dir Direction, resp *wire.Response, elapsed time.Duration) Event {
	status := resp.Status
	msg := &MessageEvent{
		Type:      MessageTypeResponse,
		MessageID: resp.MessageID,
		Status:    &status,
	}
	if elapsed > 0 {
		msg.ProcessingTime = &elapsed
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message:      msg,
	}
}

// NotificationEvent builds a wire-layer event for n.
func NotificationEvent(connID string, dir Direction, n *wire.Notification) Event {
	kind := n.Event
	payload := n.Payload
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message: &MessageEvent{
			Type:  MessageTypeNotification,
			Path:  n.Path,
			Event: &kind,
			Value: &payload,
		},
	}
}
