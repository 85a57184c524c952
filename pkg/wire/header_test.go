package wire

import (
	"errors"
	"testing"
	"time"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(MsgData, LaserDataScan, DeviceAddr{Interface: InterfaceLaser, Index: 2})
	h.Time = TruncateTime(time.Now())
	h.Timestamp = time.Unix(1700000000, 123456000)
	h.ConnID = 7
	h.Seq = 65535
	h.Size = 1024

	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if len(b) != HeaderSize {
		t.Fatalf("len = %d, want %d", len(b), HeaderSize)
	}

	var got Header
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if got.Type != h.Type || got.Subtype != h.Subtype || got.Interface != h.Interface ||
		got.Index != h.Index || got.ConnID != h.ConnID || got.Seq != h.Seq || got.Size != h.Size {
		t.Errorf("header = %+v, want %+v", got, h)
	}
	if !got.Time.Equal(h.Time) {
		t.Errorf("Time = %v, want %v", got.Time, h.Time)
	}
	if !got.Timestamp.Equal(h.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, h.Timestamp)
	}
}

func TestHeaderByteLayout(t *testing.T) {
	h := Header{
		Stx:       Stx,
		Type:      MsgReq,
		Subtype:   PlayerDev,
		Interface: InterfacePlayer,
		Index:     0x0102,
		Timestamp: time.Unix(0x01020304, 5000),
		Size:      0x0a0b0c0d,
	}
	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	want := map[int]byte{
		0: 0x58, 1: 0x78, 2: 3, 3: 3, 4: 0, 5: 1, 6: 0x01, 7: 0x02,
		8: 0, 9: 0, 10: 0, 11: 0,
		16: 0x01, 17: 0x02, 18: 0x03, 19: 0x04,
		20: 0, 21: 0, 22: 0, 23: 5,
		28: 0x0a, 29: 0x0b, 30: 0x0c, 31: 0x0d,
	}
	for i, v := range want {
		if b[i] != v {
			t.Errorf("b[%d] = 0x%02x, want 0x%02x", i, b[i], v)
		}
	}
}

func TestParseHeaderErrors(t *testing.T) {
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); !errors.Is(err, ErrShortHeader) {
		t.Errorf("short: err = %v, want ErrShortHeader", err)
	}

	b := make([]byte, HeaderSize)
	b[0], b[1] = 0x12, 0x34
	if _, err := ParseHeader(b); !errors.Is(err, ErrBadStx) {
		t.Errorf("bad stx: err = %v, want ErrBadStx", err)
	}
}

func TestHeaderValidate(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		want error
	}{
		{"ok", Header{Stx: Stx, Type: MsgCmd, Size: 10}, nil},
		{"bad stx", Header{Stx: 1, Type: MsgCmd}, ErrBadStx},
		{"bad type", Header{Stx: Stx, Type: 0}, ErrInvalidMsgType},
		{"type 8", Header{Stx: Stx, Type: 8}, ErrInvalidMsgType},
		{"too large", Header{Stx: Stx, Type: MsgData, Size: MaxMessageSize + 1}, ErrPayloadTooLarge},
		{"at limit", Header{Stx: Stx, Type: MsgData, Size: MaxMessageSize}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestZeroTimeEncoding(t *testing.T) {
	b, err := Header{Stx: Stx, Type: MsgSynch}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	for i := 8; i < 24; i++ {
		if b[i] != 0 {
			t.Fatalf("b[%d] = %d, want 0 for zero time", i, b[i])
		}
	}
	h, err := ParseHeader(b)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if !h.Time.IsZero() || !h.Timestamp.IsZero() {
		t.Errorf("times = %v/%v, want zero", h.Time, h.Timestamp)
	}
}

func TestHeaderAddr(t *testing.T) {
	h := NewHeader(MsgCmd, Position2DCmdState, DeviceAddr{Port: 1, Interface: InterfacePosition2D, Index: 3})
	got := h.Addr(6666)
	want := DeviceAddr{Port: 6666, Interface: InterfacePosition2D, Index: 3}
	if got != want {
		t.Errorf("Addr = %v, want %v", got, want)
	}
}
