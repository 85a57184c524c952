// Package simlaser provides a laser driver that produces synthetic scans of
// a round room. It runs a worker thread while subscribed.
//
// Configuration:
//
//	- name: simlaser
//	  provides: ["laser:0"]
//	  rate: 10          # scans per second
//	  range_max: 8m
//	  samples: 181
//	  fov: 180deg
//	  pose: [0.1, 0, 0]
//	  size: [0.1, 0.1]
package simlaser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Name is the driver name used in configuration files.
const Name = "simlaser"

// Property keys.
const (
	PropRate     = "rate"
	PropRangeMax = "range_max"
)

// ErrInvalidRate is returned for a non-positive scan rate.
var ErrInvalidRate = errors.New("simlaser: rate must be positive")

// Driver is the simulated laser.
type Driver struct {
	*driver.Base

	addr    wire.DeviceAddr
	geom    wire.LaserGeom
	samples int
	fov     float64

	scanID uint32
}

// New builds a simlaser from its configuration section.
func New(sec *config.Section, env driver.Env) (driver.Driver, error) {
	addr, err := sec.ReadDeviceAddr("provides", wire.InterfaceLaser, 0, "")
	if err != nil {
		return nil, err
	}
	rate := sec.ReadFloat(PropRate, 10)
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	samples := sec.ReadInt("samples", 181)
	if samples < 2 || samples > wire.LaserMaxSamples {
		return nil, fmt.Errorf("simlaser: samples must be in [2, %d]", wire.LaserMaxSamples)
	}

	d := &Driver{
		addr:    addr,
		samples: samples,
		fov:     sec.ReadAngle("fov", math.Pi),
		geom: wire.LaserGeom{
			Pose: wire.Pose{
				X:   sec.ReadTupleLength("pose", 0, 0),
				Y:   sec.ReadTupleLength("pose", 1, 0),
				Yaw: sec.ReadTupleAngle("pose", 2, 0),
			},
			Size: wire.BBox{
				SW: sec.ReadTupleLength("size", 0, 0.1),
				SL: sec.ReadTupleLength("size", 1, 0.1),
			},
		},
	}
	d.Base = driver.NewThreaded(d, driver.OptionsFromSection(sec, env))
	if err := d.RegisterProperty(PropRate, rate, false); err != nil {
		return nil, err
	}
	if err := d.RegisterProperty(PropRangeMax, sec.ReadLength(PropRangeMax, 8), false); err != nil {
		return nil, err
	}
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
	d.scanID = 0
	return nil
}

func (d *Driver) MainQuit(context.Context) error {
	return nil
}

// Main publishes a scan every 1/rate seconds and serves queued requests in
// between.
func (d *Driver) Main(ctx context.Context) {
	for {
		timer := time.NewTimer(d.period())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if d.Stopping() {
			return
		}

		d.ProcessMessages(0)
		if err := d.publish(time.Now()); err != nil {
			if l := d.Logger(); l != nil {
				l.Warn("scan not published", "driver", Name, "error", err)
			}
		}
	}
}

func (d *Driver) period() time.Duration {
	rate := d.DoubleProperty(PropRate, 10)
	if rate <= 0 {
		rate = 10
	}
	return time.Duration(float64(time.Second) / rate)
}

func (d *Driver) publish(now time.Time) error {
	data, err := wire.Encode(d.Scan(), wire.MaxMessageSize)
	if err != nil {
		return err
	}
	d.scanID++
	return d.PutData(d.addr, wire.LaserDataScan, data, now)
}

// Scan returns the scan the sensor would see now.
func (d *Driver) Scan() wire.LaserScan {
	maxRange := d.DoubleProperty(PropRangeMax, 8)
	res := d.fov / float64(d.samples-1)
	scan := wire.LaserScan{
		MinAngle:   -d.fov / 2,
		MaxAngle:   d.fov / 2,
		Resolution: res,
		MaxRange:   maxRange,
		Ranges:     make([]float64, d.samples),
		ID:         d.scanID,
	}
	phase := float64(d.scanID%360) * math.Pi / 180
	for i := range scan.Ranges {
		a := scan.MinAngle + float64(i)*res
		r := maxRange*0.6 + 0.25*math.Sin(3*a+phase)
		scan.Ranges[i] = math.Min(maxRange, math.Max(0, r))
	}
	return scan
}

func (d *Driver) ProcessMessage(msg *message.Message) (driver.Reply, error) {
	hdr := msg.Header()
	if hdr.Type != wire.MsgReq {
		return driver.Reply{}, driver.ErrUnhandled
	}
	switch hdr.Subtype {
	case wire.LaserReqGetGeom:
		data, err := wire.Encode(d.geom, wire.MaxReqRepSize)
		if err != nil {
			return driver.Reply{}, err
		}
		return driver.Ack(data), nil
	}
	return driver.Reply{}, driver.ErrUnhandled
}
