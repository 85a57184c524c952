package log

import (
	"time"

	"github.com/player-project/playerd/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the client connection (UUID). Empty for
	// events not tied to a connection, such as driver thread changes.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow, seen from the local endpoint.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the server or a client.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Device is the device address in port:interface:index form.
	Device string `cbor:"8,keyasint,omitempty"`

	// Driver is the driver name behind Device.
	Driver string `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Decoded header
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Lifecycle changes
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the server captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the decoded header layer.
	LayerWire Layer = 1
	// LayerSession is the client session layer.
	LayerSession Layer = 2
	// LayerDriver is the driver runtime.
	LayerDriver Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	case LayerDriver:
		return "DRIVER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint is the server or a client.
type Role uint8

const (
	// RoleServer indicates the server.
	RoleServer Role = 0
	// RoleClient indicates a client.
	RoleClient Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (header plus payload).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded message header.
type MessageEvent struct {
	Type      wire.MsgType       `cbor:"1,keyasint"`
	Subtype   uint8              `cbor:"2,keyasint"`
	Interface wire.InterfaceCode `cbor:"3,keyasint"`
	Index     uint16             `cbor:"4,keyasint"`
	Size      uint32             `cbor:"5,keyasint"`
	Seq       uint16             `cbor:"6,keyasint,omitempty"`

	// DataTime is the generation time carried in the header.
	DataTime time.Time `cbor:"7,keyasint,omitempty"`

	// Decoded payload for the core requests (CBOR-compatible representation).
	Payload any `cbor:"8,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to reply.
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

// NewMessageEvent fills a MessageEvent from a header.
func NewMessageEvent(hdr wire.Header) *MessageEvent {
	return &MessageEvent{
		Type:      hdr.Type,
		Subtype:   hdr.Subtype,
		Interface: hdr.Interface,
		Index:     hdr.Index,
		Size:      hdr.Size,
		Seq:       hdr.Seq,
		DataTime:  hdr.Timestamp,
	}
}

// StateChangeEvent captures lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change (auth).
	StateEntitySession StateEntity = 1
	// StateEntitySubscription indicates a driver subscription transition.
	StateEntitySubscription StateEntity = 2
	// StateEntityAccess indicates a granted access change.
	StateEntityAccess StateEntity = 3
	// StateEntityDataMode indicates a delivery mode or frequency change.
	StateEntityDataMode StateEntity = 4
	// StateEntityThread indicates a driver worker thread change.
	StateEntityThread StateEntity = 5
	// StateEntityServer indicates a server lifecycle change.
	StateEntityServer StateEntity = 6
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntityAccess:
		return "ACCESS"
	case StateEntityDataMode:
		return "DATAMODE"
	case StateEntityThread:
		return "THREAD"
	case StateEntityServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
