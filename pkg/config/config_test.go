package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/wire"
)

const sampleConfig = `
server:
  port: 7000
  name: robot1
  tick: 20ms
  queue_length: 64
units:
  length: cm
  angle: deg
drivers:
  - name: simlaser
    provides: ["laser:0", "front:laser:1"]
    alwayson: true
    rate: 10
    range_max: 800
    range_min: 5mm
    fov: 1.5rad
    start: 90
    pose: [10, 0, 90]
    labels: [a, b, c]
    period: 0.5
    timeout: 250ms
    bogus_int: ten
  - name: recorder
    provides: ["log:0"]
    requires: ["6665:laser:0", "gps:0", "back:position2d:2"]
`

func mustParse(t *testing.T, data string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg
}

func TestParseServer(t *testing.T) {
	cfg := mustParse(t, sampleConfig)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Server.Name != "robot1" {
		t.Errorf("Name = %q, want robot1", cfg.Server.Name)
	}
	if cfg.Server.Tick != 20*time.Millisecond {
		t.Errorf("Tick = %v, want 20ms", cfg.Server.Tick)
	}
	if cfg.Server.QueueLength != 64 {
		t.Errorf("QueueLength = %d, want 64", cfg.Server.QueueLength)
	}
	if len(cfg.Drivers) != 2 {
		t.Fatalf("len(Drivers) = %d, want 2", len(cfg.Drivers))
	}
	if cfg.Drivers[0].Port() != 7000 {
		t.Errorf("section port = %d, want 7000", cfg.Drivers[0].Port())
	}
}

func TestDefaults(t *testing.T) {
	cfg := mustParse(t, "drivers:\n  - name: x\n    provides: [laser:0]\n")
	if cfg.Server.Port != wire.DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, wire.DefaultPort)
	}
	if cfg.Server.Tick != DefaultTick {
		t.Errorf("Tick = %v, want %v", cfg.Server.Tick, DefaultTick)
	}
	if cfg.Server.QueueLength != wire.DefaultQueueLen {
		t.Errorf("QueueLength = %d, want %d", cfg.Server.QueueLength, wire.DefaultQueueLen)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.Units.Length != "m" || cfg.Units.Angle != "deg" {
		t.Errorf("Units = %+v", cfg.Units)
	}
}

func TestSectionScalars(t *testing.T) {
	sec := mustParse(t, sampleConfig).Drivers[0]

	if sec.Name() != "simlaser" {
		t.Errorf("Name = %q, want simlaser", sec.Name())
	}
	if !sec.AlwaysOn() {
		t.Error("AlwaysOn = false, want true")
	}
	if got := sec.ReadInt("rate", 0); got != 10 {
		t.Errorf("ReadInt(rate) = %d, want 10", got)
	}
	if got := sec.ReadInt("missing", 42); got != 42 {
		t.Errorf("ReadInt(missing) = %d, want 42", got)
	}
	if got := sec.ReadFloat("rate", 0); got != 10 {
		t.Errorf("ReadFloat(rate) = %v, want 10", got)
	}
	if got := sec.ReadString("name", ""); got != "simlaser" {
		t.Errorf("ReadString(name) = %q", got)
	}
	if got := sec.ReadDuration("period", 0); got != 500*time.Millisecond {
		t.Errorf("ReadDuration(period) = %v, want 500ms", got)
	}
	if got := sec.ReadDuration("timeout", 0); got != 250*time.Millisecond {
		t.Errorf("ReadDuration(timeout) = %v, want 250ms", got)
	}
}

func TestSectionUnits(t *testing.T) {
	sec := mustParse(t, sampleConfig).Drivers[0]

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"bare length uses file unit", sec.ReadLength("range_max", 0), 8},
		{"mm suffix", sec.ReadLength("range_min", 0), 0.005},
		{"rad suffix", sec.ReadAngle("fov", 0), 1.5},
		{"bare angle uses file unit", sec.ReadAngle("start", 0), math.Pi / 2},
		{"tuple length", sec.ReadTupleLength("pose", 0, 0), 0.1},
		{"tuple angle", sec.ReadTupleAngle("pose", 2, 0), math.Pi / 2},
		{"tuple float", sec.ReadTupleFloat("pose", 2, 0), 90},
		{"tuple out of range", sec.ReadTupleFloat("pose", 3, -1), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestSectionTuples(t *testing.T) {
	sec := mustParse(t, sampleConfig).Drivers[0]

	if n := sec.TupleCount("labels"); n != 3 {
		t.Errorf("TupleCount(labels) = %d, want 3", n)
	}
	if n := sec.TupleCount("rate"); n != 1 {
		t.Errorf("TupleCount(rate) = %d, want 1", n)
	}
	if n := sec.TupleCount("missing"); n != 0 {
		t.Errorf("TupleCount(missing) = %d, want 0", n)
	}
	if got := sec.ReadTupleString("labels", 1, ""); got != "b" {
		t.Errorf("ReadTupleString(labels, 1) = %q, want b", got)
	}
}

func TestSectionWarnings(t *testing.T) {
	cfg := mustParse(t, sampleConfig)
	sec := cfg.Drivers[0]

	if got := sec.ReadInt("bogus_int", 7); got != 7 {
		t.Errorf("ReadInt(bogus_int) = %d, want default 7", got)
	}
	if got := sec.ReadBool("name", true); !got {
		t.Error("ReadBool(name) should fall back to the default")
	}
	warnings := cfg.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2 entries", warnings)
	}
}

func TestReadDeviceAddr(t *testing.T) {
	cfg := mustParse(t, sampleConfig)
	laser, rec := cfg.Drivers[0], cfg.Drivers[1]

	addr, err := laser.ReadDeviceAddr("provides", wire.InterfaceLaser, 0, "")
	if err != nil {
		t.Fatalf("ReadDeviceAddr failed: %v", err)
	}
	want := wire.DeviceAddr{Port: 7000, Interface: wire.InterfaceLaser, Index: 0}
	if addr != want {
		t.Errorf("addr = %v, want %v", addr, want)
	}

	addr, err = laser.ReadDeviceAddr("provides", wire.InterfaceLaser, 0, "front")
	if err != nil {
		t.Fatalf("ReadDeviceAddr(front) failed: %v", err)
	}
	if addr.Index != 1 {
		t.Errorf("front index = %d, want 1", addr.Index)
	}

	if _, err := laser.ReadDeviceAddr("provides", wire.InterfaceLaser, 1, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("second unkeyed laser err = %v, want ErrNotFound", err)
	}

	addr, err = rec.ReadDeviceAddr("requires", wire.InterfaceLaser, 0, "")
	if err != nil {
		t.Fatalf("ReadDeviceAddr(requires) failed: %v", err)
	}
	if addr.Port != 6665 {
		t.Errorf("explicit port = %d, want 6665", addr.Port)
	}

	addr, err = rec.ReadDeviceAddr("requires", 0, 0, "back")
	if err != nil {
		t.Fatalf("ReadDeviceAddr(any, back) failed: %v", err)
	}
	if addr.Interface != wire.InterfacePosition2D || addr.Index != 2 {
		t.Errorf("addr = %v, want position2d:2", addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"no drivers", "server:\n  port: 6665\n", ErrNoDrivers},
		{"no provides", "drivers:\n  - name: x\n", ErrInvalidConfig},
		{"no name", "drivers:\n  - provides: [laser:0]\n", ErrInvalidConfig},
		{"bad provides", "drivers:\n  - name: x\n    provides: [warpdrive:0]\n", ErrInvalidConfig},
		{"bad tick", "server:\n  tick: 0s\ndrivers:\n  - name: x\n    provides: [laser:0]\n", ErrInvalidConfig},
		{"bad unit", "units:\n  length: furlong\ndrivers:\n  - name: x\n    provides: [laser:0]\n", ErrInvalidConfig},
		{"key and secret", "server:\n  key: a\n  secret: b\ndrivers:\n  - name: x\n    provides: [laser:0]\n", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustParse(t, tt.data)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("drivers:\n  - just a string\n")); err == nil {
		t.Error("expected error for non-mapping section")
	}
	if _, err := Parse([]byte("drivers:\n  - name: a\n    name: b\n")); err == nil {
		t.Error("expected error for duplicate field")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playerd.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Name != "robot1" {
		t.Errorf("Name = %q, want robot1", cfg.Server.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewSection(t *testing.T) {
	sec, err := NewSection(map[string]any{
		"name":     "simposition",
		"provides": []string{"position2d:0"},
		"rate":     5,
	})
	if err != nil {
		t.Fatalf("NewSection failed: %v", err)
	}
	if sec.Name() != "simposition" || sec.ReadInt("rate", 0) != 5 {
		t.Errorf("section = %q rate %d", sec.Name(), sec.ReadInt("rate", 0))
	}
	addr, err := sec.ReadDeviceAddr("provides", wire.InterfacePosition2D, 0, "")
	if err != nil {
		t.Fatalf("ReadDeviceAddr failed: %v", err)
	}
	if addr.Port != wire.DefaultPort {
		t.Errorf("Port = %d, want %d", addr.Port, wire.DefaultPort)
	}
}
