package message

import (
	"bytes"
	"errors"
	"testing"

	"github.com/player-project/playerd/pkg/wire"
)

func laserHeader(t wire.MsgType, subtype uint8) wire.Header {
	return wire.NewHeader(t, subtype, wire.DeviceAddr{Interface: wire.InterfaceLaser, Index: 0})
}

func mustNew(t *testing.T, hdr wire.Header, payload []byte) *Message {
	t.Helper()
	m, err := New(hdr, payload, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func TestNewCopiesPayload(t *testing.T) {
	payload := []byte{1, 2, 3}
	m := mustNew(t, laserHeader(wire.MsgData, 1), payload)
	defer m.Release()

	payload[0] = 9
	if m.Payload()[0] != 1 {
		t.Error("message aliases the caller's payload")
	}
	if m.Header().Size != 3 {
		t.Errorf("Size = %d, want 3", m.Header().Size)
	}
	if m.Header().Stx != wire.Stx {
		t.Errorf("Stx = 0x%04x, want 0x%04x", m.Header().Stx, wire.Stx)
	}
}

func TestNewTooLarge(t *testing.T) {
	_, err := New(laserHeader(wire.MsgData, 1), make([]byte, wire.MaxMessageSize+1), nil)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestReferenceCounting(t *testing.T) {
	before := Live()
	payload := []byte("scan")
	m := mustNew(t, laserHeader(wire.MsgData, 1), payload)

	const n = 5
	copies := make([]*Message, n)
	for i := range copies {
		copies[i] = m.Copy()
	}
	if m.Refs() != n+1 {
		t.Fatalf("Refs = %d, want %d", m.Refs(), n+1)
	}

	m.Release()
	for _, c := range copies[:n-1] {
		c.Release()
	}

	last := copies[n-1]
	if last.Refs() != 1 {
		t.Fatalf("Refs = %d, want 1", last.Refs())
	}
	if !bytes.Equal(last.Payload(), payload) {
		t.Errorf("surviving copy payload = %q, want %q", last.Payload(), payload)
	}
	if Live() != before+1 {
		t.Errorf("Live = %d, want %d", Live(), before+1)
	}

	last.Release()
	if last.Payload() != nil {
		t.Error("payload not freed after last release")
	}
	if Live() != before {
		t.Errorf("Live = %d, want %d", Live(), before)
	}
}

func TestReleaseNegativePanics(t *testing.T) {
	m := mustNew(t, laserHeader(wire.MsgData, 1), nil)
	m.Release()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on negative reference count")
		}
	}()
	m.Release()
}

func TestCopyReleasedPanicsWithoutCounting(t *testing.T) {
	m := mustNew(t, laserHeader(wire.MsgData, 1), []byte{1})
	m.Release()

	for range 2 {
		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected panic copying a released message")
				}
			}()
			m.Copy()
		}()
		if m.Refs() != 0 {
			t.Fatalf("Refs = %d after failed Copy, want 0", m.Refs())
		}
	}

	func() {
		defer func() { recover() }()
		m.Release()
	}()
	if m.Refs() != 0 {
		t.Errorf("Refs = %d after failed Release, want 0", m.Refs())
	}
}

func TestCompare(t *testing.T) {
	a := mustNew(t, laserHeader(wire.MsgData, 1), []byte{1})
	b := mustNew(t, laserHeader(wire.MsgData, 1), []byte{2})
	c := mustNew(t, laserHeader(wire.MsgData, 2), []byte{1})
	d := mustNew(t, laserHeader(wire.MsgCmd, 1), []byte{1})
	defer func() {
		for _, m := range []*Message{a, b, c, d} {
			m.Release()
		}
	}()

	if !a.Compare(b) {
		t.Error("same signature, different payload should compare equal")
	}
	if a.Compare(c) {
		t.Error("different subtype should not compare equal")
	}
	if a.Compare(d) {
		t.Error("different type should not compare equal")
	}
}

func TestWithHeader(t *testing.T) {
	m := mustNew(t, laserHeader(wire.MsgData, 1), []byte{1, 2})
	hdr := m.Header()
	hdr.Seq = 42
	hdr.Size = 999
	c := m.WithHeader(hdr)

	if c.Header().Seq != 42 || c.Header().Size != 2 {
		t.Errorf("header = %+v", c.Header())
	}
	if m.Header().Seq != 0 {
		t.Error("WithHeader modified the original")
	}
	if m.Refs() != 2 {
		t.Errorf("Refs = %d, want 2", m.Refs())
	}
	c.Release()
	m.Release()
}
