// Package recorder provides a log driver that subscribes to other devices
// and stores their data in SQLite.
//
// Sources that keep a data slot are read when they signal new data. Sources
// that publish DATA messages, such as nmeagps, reach the recorder through
// its in-queue, so every published sample is stored.
//
// Configuration:
//
//	- name: recorder
//	  provides: ["log:0"]
//	  requires: ["laser:0", "position2d:0"]
//	  filename: playerd.db
//	  autorecord: true
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Name is the driver name used in configuration files.
const Name = "recorder"

// DefaultFilename is the database written when no filename is configured.
const DefaultFilename = "playerd.db"

// Recorder errors.
var (
	ErrNoSources = errors.New("recorder: requires no devices")
	ErrBusy      = errors.New("recorder: cannot change file while writing")
)

type source struct {
	addr   wire.DeviceAddr
	drv    driver.Driver
	last   time.Time
	cancel func()
}

// Driver is the recorder.
type Driver struct {
	*driver.Base

	addr     wire.DeviceAddr
	requires []wire.DeviceAddr
	auto     bool

	// sources are touched only by the worker thread and by setup and quit,
	// which never overlap with it.
	sources []*source

	mu       sync.Mutex
	filename string
	store    *Store
	writing  bool
	samples  uint64
}

// New builds a recorder from its configuration section.
func New(sec *config.Section, env driver.Env) (driver.Driver, error) {
	addr, err := sec.ReadDeviceAddr("provides", wire.InterfaceLog, 0, "")
	if err != nil {
		return nil, err
	}
	var requires []wire.DeviceAddr
	for i := range len(sec.Requires()) {
		a, err := sec.ReadDeviceAddr("requires", 0, i, "")
		if err != nil {
			return nil, err
		}
		requires = append(requires, a)
	}
	if len(requires) == 0 {
		return nil, ErrNoSources
	}

	d := &Driver{
		addr:     addr,
		requires: requires,
		auto:     sec.ReadBool("autorecord", true),
		filename: sec.ReadString("filename", DefaultFilename),
	}
	d.Base = driver.NewThreaded(d, driver.OptionsFromSection(sec, env))
	if err := d.AddInterface(addr, wire.AccessAll, driver.InterfaceOptions{}); err != nil {
		return nil, err
	}
	return d, nil
}

// Register adds the driver to f.
func Register(f driver.Factories) {
	f.Register(Name, New)
}

// MainSetup opens the database and subscribes to every required device.
func (d *Driver) MainSetup(ctx context.Context) error {
	d.mu.Lock()
	store, err := OpenStore(d.filename)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.store = store
	d.writing = d.auto
	d.samples = 0
	d.mu.Unlock()

	for _, addr := range d.requires {
		target, err := d.SubscribeInternal(ctx, addr)
		if err != nil {
			_ = d.MainQuit(ctx)
			return fmt.Errorf("subscribe %s: %w", addr, err)
		}
		src := &source{addr: addr, drv: target}
		src.cancel = target.OnDataAvailable(d.DataAvailable)
		d.sources = append(d.sources, src)
	}
	return nil
}

// MainQuit drops the subscriptions and closes the database.
func (d *Driver) MainQuit(ctx context.Context) error {
	var errs []error
	for _, src := range d.sources {
		src.cancel()
		if err := d.UnsubscribeInternal(ctx, src.addr); err != nil {
			errs = append(errs, err)
		}
	}
	d.sources = nil

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store != nil {
		errs = append(errs, d.store.Close())
		d.store = nil
	}
	d.writing = false
	return errors.Join(errs...)
}

// Main waits for source data and queued messages.
func (d *Driver) Main(ctx context.Context) {
	for {
		if err := d.Wait(ctx); err != nil {
			return
		}
		if d.Stopping() {
			return
		}
		d.ProcessMessages(0)
		d.collect()
	}
}

// collect stores the sources' data slots that changed since last time.
func (d *Driver) collect() {
	for _, src := range d.sources {
		s, err := src.drv.GetData(src.addr)
		if err != nil || s.IsZero() || s.Timestamp.Equal(src.last) {
			continue
		}
		src.last = s.Timestamp
		d.record(Record{Device: src.addr, Type: wire.MsgData, Subtype: s.Subtype, Timestamp: s.Timestamp, Data: s.Data})
	}
}

func (d *Driver) record(r Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.writing || d.store == nil {
		return
	}
	if _, err := d.store.Insert(r); err != nil {
		if l := d.Logger(); l != nil {
			l.Warn("sample not stored", "driver", Name, "device", r.Device.String(), "error", err)
		}
		return
	}
	d.samples++
}

// State returns whether the recorder is writing and how many samples it
// stored since setup.
func (d *Driver) State() (writing bool, samples uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writing, d.samples
}

func (d *Driver) ProcessMessage(msg *message.Message) (driver.Reply, error) {
	hdr := msg.Header()
	switch hdr.Type {
	case wire.MsgData:
		d.record(Record{
			Device:    hdr.Addr(d.addr.Port),
			Type:      hdr.Type,
			Subtype:   hdr.Subtype,
			Timestamp: hdr.Timestamp,
			Data:      msg.Payload(),
		})
		return driver.Reply{}, nil
	case wire.MsgReq:
	default:
		return driver.Reply{}, driver.ErrUnhandled
	}

	switch hdr.Subtype {
	case wire.LogReqSetWriteState:
		req, err := wire.Decode[wire.LogState](msg.Payload())
		if err != nil {
			return driver.Reply{}, err
		}
		d.mu.Lock()
		d.writing = req.State && d.store != nil
		d.mu.Unlock()
		return driver.Ack(nil), nil

	case wire.LogReqGetState:
		writing, samples := d.State()
		data, err := wire.Encode(wire.LogState{Type: wire.LogTypeWrite, State: writing, Samples: samples}, wire.MaxReqRepSize)
		if err != nil {
			return driver.Reply{}, err
		}
		return driver.Ack(data), nil

	case wire.LogReqSetFilename:
		req, err := wire.Decode[wire.LogFilename](msg.Payload())
		if err != nil {
			return driver.Reply{}, err
		}
		if err := d.setFilename(req.Filename); err != nil {
			return driver.Reply{}, err
		}
		return driver.Ack(nil), nil
	}
	return driver.Reply{}, driver.ErrUnhandled
}

func (d *Driver) setFilename(name string) error {
	if name == "" {
		return errors.New("recorder: empty filename")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writing {
		return ErrBusy
	}
	if d.store != nil {
		store, err := OpenStore(name)
		if err != nil {
			return err
		}
		if err := d.store.Close(); err != nil {
			if l := d.Logger(); l != nil {
				l.Warn("closing previous database failed", "driver", Name, "file", d.filename, "error", err)
			}
		}
		d.store = store
	}
	d.filename = name
	return nil
}
