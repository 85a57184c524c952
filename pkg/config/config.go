// Package config loads the server configuration file.
//
// The file is YAML with a server block, optional default units and a list of
// driver sections:
//
//	server:
//	  port: 6665
//	  tick: 10ms
//	units:
//	  length: m
//	  angle: deg
//	drivers:
//	  - name: simlaser
//	    provides: ["laser:0"]
//	    rate: 10
//	    pose: [0.1, 0, 0]
//
// Driver sections are read through the typed accessors of Section, which
// fall back to a default and record a warning on malformed values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/player-project/playerd/pkg/wire"
)

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoDrivers     = errors.New("no drivers configured")
	ErrNotFound      = errors.New("entry not found")
)

// Config is the parsed configuration file.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Units   Units        `yaml:"units"`
	Drivers []*Section   `yaml:"drivers"`
}

// ServerConfig holds the server-wide settings.
type ServerConfig struct {
	// Port is the TCP port clients connect to.
	Port uint16 `yaml:"port"`

	// Name is the service name advertised over mDNS and answered by
	// NAMESERVICE requests.
	Name string `yaml:"name"`

	// Key is a shared authentication key. Empty disables authentication.
	Key string `yaml:"key"`

	// Secret and Salt derive the key with HKDF instead of Key.
	Secret string `yaml:"secret"`
	Salt   string `yaml:"salt"`

	// Tick is the period of the server update loop.
	Tick time.Duration `yaml:"tick"`

	// QueueLength is the default capacity of client outboxes and driver
	// in-queues.
	QueueLength int `yaml:"queue_length"`

	// MaxClients bounds concurrent connections (0 = unlimited).
	MaxClients int `yaml:"max_clients"`

	// WriteTimeout bounds one frame write to a client. A client that stops
	// reading for longer is disconnected.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ProtocolLog is a path for the protocol event log. Empty disables it.
	ProtocolLog string `yaml:"protocol_log"`

	// Monitor is the listen address of the HTTP monitor. Empty disables it.
	Monitor string `yaml:"monitor"`

	// Advertise publishes the server over mDNS.
	Advertise bool `yaml:"advertise"`
}

// Units are the default units for bare length and angle values.
type Units struct {
	Length string `yaml:"length"`
	Angle  string `yaml:"angle"`
}

// Default values.
const (
	DefaultTick         = 10 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
	DefaultServiceName  = "playerd"
	DefaultLengthUnit   = "m"
	DefaultAngleUnit    = "deg"
)

// DefaultConfig returns a Config with sensible defaults and no drivers.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         wire.DefaultPort,
			Name:         DefaultServiceName,
			Tick:         DefaultTick,
			QueueLength:  wire.DefaultQueueLen,
			WriteTimeout: DefaultWriteTimeout,
		},
		Units: Units{
			Length: DefaultLengthUnit,
			Angle:  DefaultAngleUnit,
		},
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses configuration data on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	cfg.Bind()
	return cfg, nil
}

// Bind propagates the port and default units into the driver sections. Parse
// calls it; callers that change Server.Port afterwards call it again.
func (c *Config) Bind() {
	for _, sec := range c.Drivers {
		if sec == nil {
			continue
		}
		sec.port = c.Server.Port
		sec.units = c.Units
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("%w: port must be non-zero", ErrInvalidConfig)
	}
	if c.Server.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalidConfig)
	}
	if c.Server.QueueLength <= 0 {
		return fmt.Errorf("%w: queue_length must be positive", ErrInvalidConfig)
	}
	if c.Server.MaxClients < 0 {
		return fmt.Errorf("%w: max_clients must not be negative", ErrInvalidConfig)
	}
	if c.Server.Secret != "" && c.Server.Key != "" {
		return fmt.Errorf("%w: key and secret are exclusive", ErrInvalidConfig)
	}
	if _, err := lengthScale(c.Units.Length); err != nil {
		return fmt.Errorf("%w: units.length: %w", ErrInvalidConfig, err)
	}
	if _, err := angleScale(c.Units.Angle); err != nil {
		return fmt.Errorf("%w: units.angle: %w", ErrInvalidConfig, err)
	}
	if len(c.Drivers) == 0 {
		return ErrNoDrivers
	}
	for i, sec := range c.Drivers {
		if sec == nil || sec.Name() == "" {
			return fmt.Errorf("%w: driver %d has no name", ErrInvalidConfig, i)
		}
		if len(sec.Provides()) == 0 {
			return fmt.Errorf("%w: driver %q provides nothing", ErrInvalidConfig, sec.Name())
		}
		for _, field := range []string{fieldProvides, fieldRequires} {
			for _, s := range sec.list(field) {
				if _, _, err := wire.ParseDeviceAddr(s, c.Server.Port); err != nil {
					return fmt.Errorf("%w: driver %q: %s %q: %w", ErrInvalidConfig, sec.Name(), field, s, err)
				}
			}
		}
	}
	return nil
}

// Warnings returns the malformed values the driver sections have met so far.
func (c *Config) Warnings() []string {
	var out []string
	for _, sec := range c.Drivers {
		if sec == nil {
			continue
		}
		for _, w := range sec.Warnings() {
			out = append(out, sec.Name()+": "+w)
		}
	}
	return out
}
