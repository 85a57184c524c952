package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Framing constants.
const (
	// Stx is the start marker of every header.
	Stx uint16 = 0x5878

	// HeaderSize is the encoded header size in bytes.
	HeaderSize = 32

	// MaxMessageSize is the largest payload accepted for any message (2 MiB).
	MaxMessageSize = 2 * 1024 * 1024

	// MaxReqRepSize is the largest payload accepted for requests and replies.
	MaxReqRepSize = 4096
)

// Header errors.
var (
	ErrShortHeader      = errors.New("short header")
	ErrBadStx           = errors.New("bad start marker")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrInvalidMsgType   = errors.New("invalid message type")
	ErrSizeMismatch     = errors.New("payload size does not match header")
	ErrInvalidAddr      = errors.New("invalid device address")
	ErrUnknownInterface = errors.New("unknown interface")
)

// Header is the fixed message header.
type Header struct {
	Stx       uint16
	Type      MsgType
	Subtype   uint8
	Interface InterfaceCode
	Index     uint16
	Time      time.Time // server clock at send time
	Timestamp time.Time // data generation time
	ConnID    uint16
	Seq       uint16
	Size      uint32
}

// NewHeader returns a header addressed to addr with the start marker set.
func NewHeader(t MsgType, subtype uint8, addr DeviceAddr) Header {
	return Header{
		Stx:       Stx,
		Type:      t,
		Subtype:   subtype,
		Interface: addr.Interface,
		Index:     addr.Index,
	}
}

// Addr returns the device address carried by the header. The port is not on
// the wire, so the caller supplies it.
func (h Header) Addr(port uint16) DeviceAddr {
	return DeviceAddr{Port: port, Interface: h.Interface, Index: h.Index}
}

// Validate checks the start marker, the type and the size limits.
func (h Header) Validate() error {
	if h.Stx != Stx {
		return fmt.Errorf("%w: 0x%04x", ErrBadStx, h.Stx)
	}
	if !h.Type.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidMsgType, h.Type)
	}
	if h.Size > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.Size, MaxMessageSize)
	}
	return nil
}

// PutHeader encodes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h Header) error {
	if len(b) < HeaderSize {
		return ErrShortHeader
	}
	binary.BigEndian.PutUint16(b[0:], h.Stx)
	b[2] = byte(h.Type)
	b[3] = h.Subtype
	binary.BigEndian.PutUint16(b[4:], uint16(h.Interface))
	binary.BigEndian.PutUint16(b[6:], h.Index)
	sec, usec := splitTime(h.Time)
	binary.BigEndian.PutUint32(b[8:], sec)
	binary.BigEndian.PutUint32(b[12:], usec)
	sec, usec = splitTime(h.Timestamp)
	binary.BigEndian.PutUint32(b[16:], sec)
	binary.BigEndian.PutUint32(b[20:], usec)
	binary.BigEndian.PutUint16(b[24:], h.ConnID)
	binary.BigEndian.PutUint16(b[26:], h.Seq)
	binary.BigEndian.PutUint32(b[28:], h.Size)
	return nil
}

// ParseHeader decodes a header from the first HeaderSize bytes of b.
// Only the start marker is checked; use Validate for the rest.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	h := Header{
		Stx:       binary.BigEndian.Uint16(b[0:]),
		Type:      MsgType(b[2]),
		Subtype:   b[3],
		Interface: InterfaceCode(binary.BigEndian.Uint16(b[4:])),
		Index:     binary.BigEndian.Uint16(b[6:]),
		Time:      joinTime(binary.BigEndian.Uint32(b[8:]), binary.BigEndian.Uint32(b[12:])),
		Timestamp: joinTime(binary.BigEndian.Uint32(b[16:]), binary.BigEndian.Uint32(b[20:])),
		ConnID:    binary.BigEndian.Uint16(b[24:]),
		Seq:       binary.BigEndian.Uint16(b[26:]),
		Size:      binary.BigEndian.Uint32(b[28:]),
	}
	if h.Stx != Stx {
		return h, fmt.Errorf("%w: 0x%04x", ErrBadStx, h.Stx)
	}
	return h, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	if err := PutHeader(b, h); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(b []byte) error {
	parsed, err := ParseHeader(b)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// splitTime converts t to (sec, usec). The zero time encodes as (0, 0).
func splitTime(t time.Time) (uint32, uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint32(t.Unix()), uint32(t.Nanosecond() / 1000)
}

func joinTime(sec, usec uint32) time.Time {
	if sec == 0 && usec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64(usec)*1000)
}

// TruncateTime rounds t down to the microsecond resolution of the wire so
// that timestamps survive a round trip unchanged.
func TruncateTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Unix(t.Unix(), int64(t.Nanosecond()/1000)*1000)
}
