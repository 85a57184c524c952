// Package nmeagps provides a GPS driver that reads NMEA GGA sentences from
// a serial port.
//
// Every fix is published to all subscribers as its own DATA message rather
// than stored in the data slot, so clients and the recorder see each fix
// once instead of only the latest one.
//
// Configuration:
//
//	- name: nmeagps
//	  provides: ["gps:0"]
//	  port: /dev/ttyUSB0
//	  baud: 4800
//	  read_timeout: 500ms
package nmeagps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Name is the driver name used in configuration files.
const Name = "nmeagps"

// Defaults.
const (
	DefaultPort        = "/dev/ttyUSB0"
	DefaultBaud        = 4800
	DefaultReadTimeout = 500 * time.Millisecond

	maxLine = 256
)

// Opener opens the serial device. Reads must return within the timeout so
// the worker thread can notice a stop request.
type Opener func(name string, baud int, timeout time.Duration) (io.ReadCloser, error)

// OpenSerial opens a serial port with tarm/serial.
func OpenSerial(name string, baud int, timeout time.Duration) (io.ReadCloser, error) {
	return serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: timeout,
	})
}

// Driver is the NMEA GPS driver.
type Driver struct {
	*driver.Base

	addr    wire.DeviceAddr
	device  string
	baud    int
	timeout time.Duration
	open    Opener

	port     io.ReadCloser
	pending  []byte
	fixes    uint64
	badLines uint64
}

// New builds an nmeagps driver from its configuration section.
func New(sec *config.Section, env driver.Env) (driver.Driver, error) {
	return NewWithOpener(sec, env, OpenSerial)
}

// NewWithOpener is New with a custom port opener.
func NewWithOpener(sec *config.Section, env driver.Env, open Opener) (*Driver, error) {
	addr, err := sec.ReadDeviceAddr("provides", wire.InterfaceGPS, 0, "")
	if err != nil {
		return nil, err
	}
	d := &Driver{
		addr:    addr,
		device:  sec.ReadString("port", DefaultPort),
		baud:    sec.ReadInt("baud", DefaultBaud),
		timeout: sec.ReadDuration("read_timeout", DefaultReadTimeout),
		open:    open,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultReadTimeout
	}
	d.Base = driver.NewThreaded(d, driver.OptionsFromSection(sec, env))
	if err := d.AddInterface(addr, wire.AccessRead, driver.InterfaceOptions{}); err != nil {
		return nil, err
	}
	return d, nil
}

// Register adds the driver to f.
func Register(f driver.Factories) {
	f.Register(Name, New)
}

func (d *Driver) MainSetup(context.Context) error {
	port, err := d.open(d.device, d.baud, d.timeout)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.device, err)
	}
	d.port = port
	d.pending = d.pending[:0]
	return nil
}

func (d *Driver) MainQuit(context.Context) error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// Main reads lines until stopped. Every read returns within the port
// timeout, so a stop request is seen promptly.
func (d *Driver) Main(ctx context.Context) {
	buf := make([]byte, 128)
	for {
		if ctx.Err() != nil || d.Stopping() {
			return
		}
		d.ProcessMessages(0)

		n, err := d.port.Read(buf)
		if n > 0 {
			d.feed(buf[:n], time.Now())
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() == nil {
				d.warnf("serial read failed", err)
			}
			return
		}
	}
}

// feed appends raw bytes and publishes every complete GGA line.
func (d *Driver) feed(b []byte, now time.Time) {
	d.pending = append(d.pending, b...)
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			if len(d.pending) > maxLine {
				d.pending = d.pending[:0]
			}
			return
		}
		line := string(d.pending[:i])
		d.pending = d.pending[i+1:]
		d.handleLine(line, now)
	}
}

func (d *Driver) handleLine(line string, now time.Time) {
	fix, err := ParseGGA(line, now)
	switch {
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrNoFix):
		return
	case err != nil:
		d.badLines++
		return
	}
	data, err := wire.Encode(fix, wire.MaxMessageSize)
	if err != nil {
		return
	}
	d.fixes++
	if err := d.Publish(d.addr, wire.MsgData, wire.GPSDataState, data, now); err != nil {
		d.warnf("fix not delivered", err)
	}
}

// Counts returns the fixes published and the lines rejected. Call it only
// while the thread is stopped.
func (d *Driver) Counts() (fixes, bad uint64) {
	return d.fixes, d.badLines
}

func (d *Driver) warnf(msg string, err error) {
	if l := d.Logger(); l != nil {
		l.Warn(msg, "driver", Name, "port", d.device, "error", err)
	}
}

func (d *Driver) ProcessMessage(*message.Message) (driver.Reply, error) {
	return driver.Reply{}, driver.ErrUnhandled
}
