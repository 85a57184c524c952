package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

func TestFormatFrameEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC),
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      128,
			Data:      []byte{0xa1, 0x01, 0x02, 0x03},
			Truncated: true,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT TRANSPORT Frame",
		"Size: 128 bytes",
		"Data: a1010203 (truncated)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatMessageEvent(t *testing.T) {
	d := 1500 * time.Microsecond
	event := log.Event{
		Timestamp:    testTime,
		ConnectionID: "c0ffee00",
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Device:       "6665:position2d:0",
		Driver:       "simposition",
		Message: &log.MessageEvent{
			Type:           wire.MsgRespAck,
			Subtype:        wire.PlayerDataMode,
			Interface:      wire.InterfacePosition2D,
			Seq:            7,
			ProcessingTime: &d,
			Payload:        map[string]any{"mode": 1},
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"RESP_ACK 6665:position2d:0 (simposition)",
		"Device: position2d:0  Subtype: 5",
		"Seq: 7",
		"Duration: 1.500ms",
		`Payload: {"mode":1}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatStateAndError(t *testing.T) {
	code := 3
	events := []log.Event{
		{
			Timestamp: testTime,
			Layer:     log.LayerDriver,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntitySubscription,
				NewState: "subscribed",
				Reason:   "open",
			},
		},
		{
			Timestamp: testTime,
			Layer:     log.LayerSession,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerSession,
				Message: "queue full",
				Code:    &code,
				Context: "push round",
			},
		},
	}

	var buf bytes.Buffer
	for _, e := range events {
		formatEvent(&buf, e)
	}
	output := buf.String()

	for _, want := range []string{
		"[conn:-]",
		"Entity: SUBSCRIPTION",
		"  -> subscribed",
		"Reason: open",
		"SESSION Error",
		"Message: queue full",
		"Code: 3",
		"Context: push round",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{2500 * time.Microsecond, "2.500ms"},
		{1500 * time.Millisecond, "1.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Driver"); err != nil || l != log.LayerDriver {
		t.Errorf("ParseLayerFlag(Driver) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("ParseLayerFlag accepted service")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("state"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategoryFlag(state) = %v, %v", c, err)
	}
	if m, err := ParseMsgTypeFlag("resp_nack"); err != nil || m != wire.MsgRespNack {
		t.Errorf("ParseMsgTypeFlag(resp_nack) = %v, %v", m, err)
	}
	if _, err := ParseMsgTypeFlag("bogus"); err == nil {
		t.Error("ParseMsgTypeFlag accepted bogus")
	}
	if c, err := ParseInterfaceFlag("laser"); err != nil || c != wire.InterfaceLaser {
		t.Errorf("ParseInterfaceFlag(laser) = %v, %v", c, err)
	}
	if c, err := ParseInterfaceFlag("48"); err != nil || c != wire.InterfacePosition2D {
		t.Errorf("ParseInterfaceFlag(48) = %v, %v", c, err)
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	dir := log.DirectionOut
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Direction: &dir}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()
	if strings.Contains(output, "REQ") {
		t.Errorf("incoming request not filtered:\n%s", output)
	}
	if !strings.Contains(output, "DATA") || !strings.Contains(output, "RESP_NACK") {
		t.Errorf("outgoing messages missing:\n%s", output)
	}

	buf.Reset()
	layer := log.LayerDriver
	if err := RunView(path, ViewFilter{Layer: &layer, Device: "6665:laser:0"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "[conn:"); got != 1 {
		t.Errorf("got %d events, want 1:\n%s", got, buf.String())
	}
}
