package commands

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

var testTime = time.Date(2026, 3, 2, 9, 30, 0, 250000000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

// sampleEvents is a short session: a laser open, one scan and a refused
// command.
func sampleEvents() []log.Event {
	laser := wire.DeviceAddr{Port: 6665, Interface: wire.InterfaceLaser}
	return []log.Event{
		{
			Timestamp:    testTime,
			ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			RemoteAddr:   "10.0.0.7:50122",
			Message: &log.MessageEvent{
				Type:      wire.MsgReq,
				Subtype:   wire.PlayerDev,
				Interface: wire.InterfacePlayer,
				Size:      12,
			},
		},
		{
			Timestamp:    testTime.Add(10 * time.Millisecond),
			ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Device:       laser.String(),
			Driver:       "simlaser",
			Message: &log.MessageEvent{
				Type:      wire.MsgData,
				Subtype:   wire.LaserDataScan,
				Interface: wire.InterfaceLaser,
				Size:      980,
			},
		},
		{
			Timestamp:    testTime.Add(20 * time.Millisecond),
			ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Device:       laser.String(),
			Driver:       "simlaser",
			Message: &log.MessageEvent{
				Type:      wire.MsgRespNack,
				Subtype:   9,
				Interface: wire.InterfaceLaser,
			},
		},
		{
			Timestamp: testTime.Add(30 * time.Millisecond),
			Layer:     log.LayerDriver,
			Category:  log.CategoryState,
			Device:    laser.String(),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityThread,
				OldState: "running",
				NewState: "stopped",
			},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first["ConnectionID"] != "c0ffee00-1111-2222-3333-444455556666" {
		t.Errorf("ConnectionID = %v", first["ConnectionID"])
	}
	if !strings.Contains(lines[1], `"Driver":"simlaser"`) {
		t.Errorf("line 1 = %s", lines[1])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[0][0] != "timestamp" {
		t.Errorf("header = %v", rows[0])
	}

	scan := rows[2]
	if scan[0] != "2026-03-02T09:30:00.260000Z" {
		t.Errorf("timestamp = %q", scan[0])
	}
	if scan[5] != "6665:laser:0" || scan[6] != "simlaser" {
		t.Errorf("device columns = %v", scan[5:7])
	}
	if scan[7] != "DATA" || scan[8] != "1" || scan[9] != "980" {
		t.Errorf("message columns = %v", scan[7:])
	}
	if rows[4][7] != "state" {
		t.Errorf("state row type = %q", rows[4][7])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	err := RunExport(path, "xml", "")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("RunExport(xml) = %v", err)
	}
}

func TestExportMissingFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	if err := RunExport(filepath.Join(t.TempDir(), "missing.plog"), "jsonl", out); err == nil {
		t.Error("expected error for missing log file")
	}
}
