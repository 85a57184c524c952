// Package message provides the reference-counted message envelope and the
// bounded message queue that carries traffic between clients and drivers.
package message

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/player-project/playerd/pkg/wire"
)

// Message errors.
var (
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrQueueFull       = errors.New("message queue full")
)

// live counts payload buffers that have not been freed yet.
var live atomic.Int64

// Live returns the number of payload buffers currently allocated.
func Live() int64 {
	return live.Load()
}

// buffer is the payload storage shared by a message and its copies.
type buffer struct {
	payload []byte
	refs    atomic.Int32
}

// Message is one protocol message. The payload is immutable and shared
// between copies; it is freed when the last reference is released.
type Message struct {
	hdr     wire.Header
	buf     *buffer
	replyTo *Queue
}

// New builds a message from hdr and a private copy of payload. hdr.Size is
// set from the payload length. replyTo is the queue answers go to; it may be
// nil.
func New(hdr wire.Header, payload []byte, replyTo *Queue) (*Message, error) {
	if len(payload) > wire.MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), wire.MaxMessageSize)
	}
	if hdr.Stx == 0 {
		hdr.Stx = wire.Stx
	}
	hdr.Size = uint32(len(payload))

	b := &buffer{}
	if len(payload) > 0 {
		b.payload = make([]byte, len(payload))
		copy(b.payload, payload)
	}
	b.refs.Store(1)
	live.Add(1)

	return &Message{hdr: hdr, buf: b, replyTo: replyTo}, nil
}

// Copy returns another reference to the same payload. Copying a released
// message panics and leaves the count untouched.
func (m *Message) Copy() *Message {
	for {
		n := m.buf.refs.Load()
		if n <= 0 {
			panic("message: copy of a released message")
		}
		if m.buf.refs.CompareAndSwap(n, n+1) {
			break
		}
	}
	return &Message{hdr: m.hdr, buf: m.buf, replyTo: m.replyTo}
}

// WithHeader returns another reference to the same payload carrying hdr.
// The size field is kept.
func (m *Message) WithHeader(hdr wire.Header) *Message {
	c := m.Copy()
	hdr.Size = m.hdr.Size
	c.hdr = hdr
	return c
}

// Release drops this reference. Releasing more references than exist is a
// programming error and panics.
func (m *Message) Release() {
	var n int32
	for {
		cur := m.buf.refs.Load()
		if cur <= 0 {
			panic("message: reference count went negative")
		}
		n = cur - 1
		if m.buf.refs.CompareAndSwap(cur, n) {
			break
		}
	}
	if n == 0 {
		m.buf.payload = nil
		live.Add(-1)
	}
}

// Refs returns the number of live references to the payload.
func (m *Message) Refs() int {
	return int(m.buf.refs.Load())
}

// Header returns the message header.
func (m *Message) Header() wire.Header {
	return m.hdr
}

// Payload returns the shared payload. Callers must not modify it.
func (m *Message) Payload() []byte {
	return m.buf.payload
}

// Size returns the payload length.
func (m *Message) Size() int {
	return int(m.hdr.Size)
}

// ReplyTo returns the queue replies are delivered to.
func (m *Message) ReplyTo() *Queue {
	return m.replyTo
}

// Addr returns the device address of the message.
func (m *Message) Addr() wire.DeviceAddr {
	return wire.DeviceAddr{Interface: m.hdr.Interface, Index: m.hdr.Index}
}

// Compare reports whether m and other have the same type, subtype,
// interface and index.
func (m *Message) Compare(other *Message) bool {
	return sameSignature(m.hdr, other.hdr)
}

func sameSignature(a, b wire.Header) bool {
	return a.Type == b.Type &&
		a.Subtype == b.Subtype &&
		a.Interface == b.Interface &&
		a.Index == b.Index
}

// String returns a short description for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s %s:%d/%d (%d bytes)", m.hdr.Type, m.hdr.Interface, m.hdr.Index, m.hdr.Subtype, m.hdr.Size)
}
