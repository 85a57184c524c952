package log

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/wire"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := createTestLogFile(t, []Event{{Timestamp: time.Now(), ConnectionID: "a"}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{Timestamp: time.Now(), ConnectionID: "b"})
	if logger.Count() != 1 {
		t.Errorf("Count = %d, want 1", logger.Count())
	}
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	events := readAll(t, r)
	if len(events) != 2 || events[0].ConnectionID != "a" || events[1].ConnectionID != "b" {
		t.Errorf("events = %+v", events)
	}
}

func TestFileLoggerCloseTwice(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "x.plog"))
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	logger.Log(Event{})
	if logger.Count() != 0 {
		t.Error("Log after Close should be ignored")
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.plog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				logger.Log(Event{Timestamp: time.Now(), Layer: LayerWire})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if n := len(readAll(t, r)); n != 400 {
		t.Errorf("read %d events, want 400", n)
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Now()
	laser := wire.InterfaceLaser
	data := wire.MsgData
	state := CategoryState
	events := []Event{
		{Timestamp: base, ConnectionID: "c1", Device: "6665:laser:0", Message: &MessageEvent{Type: wire.MsgData, Interface: wire.InterfaceLaser}},
		{Timestamp: base.Add(time.Second), ConnectionID: "c2", Device: "6665:position2d:0", Message: &MessageEvent{Type: wire.MsgCmd, Interface: wire.InterfacePosition2D}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "c1", Category: CategoryState, StateChange: &StateChangeEvent{NewState: "CONNECTED"}},
	}
	path := createTestLogFile(t, events)

	start := base.Add(500 * time.Millisecond)
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"connection", Filter{ConnectionID: "c1"}, 2},
		{"device", Filter{Device: "6665:position2d:0"}, 1},
		{"interface", Filter{Interface: &laser}, 1},
		{"msg type", Filter{MsgType: &data}, 1},
		{"category", Filter{Category: &state}, 1},
		{"time start", Filter{TimeStart: &start}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			if n := len(readAll(t, r)); n != tt.want {
				t.Errorf("got %d events, want %d", n, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "none.plog")); err == nil {
		t.Error("expected error for missing file")
	}
}
