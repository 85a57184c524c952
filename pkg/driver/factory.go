package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/player-project/playerd/pkg/config"
	plog "github.com/player-project/playerd/pkg/log"
)

// ErrUnknownDriver is returned when no factory is registered under a name.
var ErrUnknownDriver = errors.New("unknown driver")

// Env carries the server-wide values every driver construction needs.
type Env struct {
	Registry       Registry
	QueueLen       int
	Logger         *slog.Logger
	ProtocolLogger plog.Logger
}

// Factory builds a driver from its configuration section. The driver adds
// its interfaces to env.Registry before returning.
type Factory func(sec *config.Section, env Env) (Driver, error)

// Factories maps driver names to their factories.
type Factories map[string]Factory

// Register adds f under name, replacing any previous factory.
func (f Factories) Register(name string, factory Factory) {
	f[name] = factory
}

// Lookup returns the factory for name.
func (f Factories) Lookup(name string) (Factory, error) {
	factory, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return factory, nil
}

// Names returns the registered driver names in sorted order.
func (f Factories) Names() []string {
	return slices.Sorted(maps.Keys(f))
}

// OptionsFromSection fills Options from a configuration section and env.
func OptionsFromSection(sec *config.Section, env Env) Options {
	return Options{
		Name:           sec.Name(),
		Registry:       env.Registry,
		AlwaysOn:       sec.AlwaysOn(),
		QueueLen:       sec.ReadInt("queue_length", env.QueueLen),
		Replace:        sec.ReadBool("replace", false),
		StopTimeout:    sec.ReadDuration("stop_timeout", DefaultStopTimeout),
		Logger:         env.Logger,
		ProtocolLogger: env.ProtocolLogger,
	}
}
