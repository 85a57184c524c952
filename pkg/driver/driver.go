package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Driver errors.
var (
	ErrUnhandled      = errors.New("message not handled")
	ErrNotSubscribed  = errors.New("driver not subscribed")
	ErrSetupFailed    = errors.New("driver setup failed")
	ErrBufferOverflow = errors.New("payload exceeds buffer")
	ErrNoInterface    = errors.New("driver does not provide interface")
	ErrThreadRunning  = errors.New("driver thread already running")
	ErrNoMain         = errors.New("driver has no main loop")
	ErrStopTimeout    = errors.New("driver thread did not stop in time")
	ErrNoRegistry     = errors.New("driver has no registry")
	ErrTerminated     = errors.New("driver terminated")
)

// Hooks are implemented by concrete drivers.
type Hooks interface {
	// Setup acquires the device. It runs on the first subscription.
	Setup(ctx context.Context) error

	// Shutdown releases the device. It runs when the last subscription goes.
	Shutdown(ctx context.Context) error

	// ProcessMessage handles one message from the in-queue. A zero Reply
	// means handled without an answer. ErrUnhandled means the driver does not
	// understand the message.
	ProcessMessage(msg *message.Message) (Reply, error)
}

// Mainer is implemented by drivers that run a worker thread.
type Mainer interface {
	// Main runs until ctx is cancelled.
	Main(ctx context.Context)
}

// Reply is the answer ProcessMessage gives to a message.
type Reply struct {
	Type      wire.MsgType
	Payload   []byte
	Timestamp time.Time
}

// Ack returns an ACK reply.
func Ack(payload []byte) Reply {
	return Reply{Type: wire.MsgRespAck, Payload: payload}
}

// Nack returns an empty NACK reply.
func Nack() Reply {
	return Reply{Type: wire.MsgRespNack}
}

// Sample is a copy of a data or command slot.
type Sample struct {
	Subtype   uint8
	Data      []byte
	Timestamp time.Time
}

// IsZero reports whether the slot has never been written.
func (s Sample) IsZero() bool {
	return s.Timestamp.IsZero() && s.Data == nil
}

// Driver is the contract the server and other drivers use. *Base implements
// it; concrete drivers embed *Base.
type Driver interface {
	Name() string
	Interfaces() []wire.DeviceAddr
	AlwaysOn() bool

	Subscribe(ctx context.Context, q *message.Queue) error
	Unsubscribe(ctx context.Context, q *message.Queue) error
	Subscriptions() int

	PutData(addr wire.DeviceAddr, subtype uint8, data []byte, ts time.Time) error
	GetData(addr wire.DeviceAddr) (Sample, error)
	PutCommand(addr wire.DeviceAddr, subtype uint8, data []byte, ts time.Time) error
	GetCommand(addr wire.DeviceAddr) (Sample, error)

	PutMsg(q *message.Queue, addr wire.DeviceAddr, t wire.MsgType, subtype uint8, payload []byte, ts time.Time) error
	Publish(addr wire.DeviceAddr, t wire.MsgType, subtype uint8, payload []byte, ts time.Time) error
	InQueue() *message.Queue
	ProcessMessages(max int) int

	Wait(ctx context.Context) error
	DataAvailable()
	OnDataAvailable(fn func()) (cancel func())

	SubscribeInternal(ctx context.Context, addr wire.DeviceAddr) (Driver, error)
	UnsubscribeInternal(ctx context.Context, addr wire.DeviceAddr) error

	Update()
	Terminate(ctx context.Context) error
}

// Registry records the interfaces drivers provide and resolves addresses.
type Registry interface {
	Add(addr wire.DeviceAddr, driverName string, access wire.Access, drv Driver) error
	Driver(addr wire.DeviceAddr) (Driver, error)
}

// Options configure a Base.
type Options struct {
	// Name is the driver name reported to clients.
	Name string

	// Registry receives the interfaces added with AddInterface.
	Registry Registry

	// AlwaysOn subscribes the driver at server start.
	AlwaysOn bool

	// QueueLen is the in-queue capacity (default wire.DefaultQueueLen).
	QueueLen int

	// Replace enables replacement of queued DATA and CMD messages.
	Replace bool

	// StopTimeout bounds StopThread (default 5s).
	StopTimeout time.Duration

	// Logger receives operational logs; nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives subscription and thread events.
	ProtocolLogger plog.Logger
}

// DefaultStopTimeout bounds StopThread when Options leave it unset.
const DefaultStopTimeout = 5 * time.Second
