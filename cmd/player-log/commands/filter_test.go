package commands

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

func readEvents(t *testing.T, path string) []log.Event {
	t.Helper()
	r, err := log.NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var events []log.Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatal(err)
		}
		events = append(events, e)
	}
}

func TestRunFilterByDevice(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "laser.plog")

	var buf bytes.Buffer
	err := RunFilter(path, FilterOptions{Output: out, Device: "6665:laser:0", Category: "message"}, &buf)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("report = %q", buf.String())
	}

	events := readEvents(t, out)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Message.Type != wire.MsgData || events[1].Message.Type != wire.MsgRespNack {
		t.Errorf("types = %v, %v", events[0].Message.Type, events[1].Message.Type)
	}
}

func TestRunFilterByTypeAndTime(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "req.plog")

	opts := FilterOptions{
		Output:    out,
		Type:      "req",
		Interface: "player",
		TimeStart: "2026-03-02T09:30:00Z",
		TimeEnd:   "2026-03-02T09:31:00Z",
	}
	var buf bytes.Buffer
	if err := RunFilter(path, opts, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	events := readEvents(t, out)
	if len(events) != 1 || events[0].Message.Subtype != wire.PlayerDev {
		t.Errorf("events = %+v", events)
	}
}

func TestFilterOptionsInvalid(t *testing.T) {
	tests := []FilterOptions{
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "snapshot"},
		{Interface: "teleporter"},
		{Type: "ping"},
	}
	for _, opts := range tests {
		if _, err := opts.Build(); err == nil {
			t.Errorf("Build(%+v) succeeded", opts)
		}
	}
}
