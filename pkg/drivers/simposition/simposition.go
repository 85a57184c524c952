// Package simposition provides a simulated differential-drive base. It has
// no worker thread: the server tick runs Update, which handles queued
// commands and integrates odometry.
//
// Configuration:
//
//	- name: simposition
//	  provides: ["position2d:0"]
//	  rate: 10            # odometry reports per second
//	  motor_power: true
//	  max_speed: [0.5, 0, 90deg]
//	  size: [0.5, 0.4]
package simposition

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Name is the driver name used in configuration files.
const Name = "simposition"

// Driver is the simulated base.
type Driver struct {
	*driver.Base

	addr      wire.DeviceAddr
	geom      wire.Position2DGeom
	maxSpeed  wire.Pose
	period    time.Duration
	powerInit bool
	watchdog  *driver.Watchdog

	mu      sync.Mutex
	active  bool
	power   bool
	pos     wire.Pose
	vel     wire.Pose
	last    time.Time
	lastPub time.Time
}

// New builds a simposition from its configuration section.
func New(sec *config.Section, env driver.Env) (driver.Driver, error) {
	addr, err := sec.ReadDeviceAddr("provides", wire.InterfacePosition2D, 0, "")
	if err != nil {
		return nil, err
	}
	rate := sec.ReadFloat("rate", 10)
	if rate <= 0 {
		rate = 10
	}

	d := &Driver{
		addr:      addr,
		period:    time.Duration(float64(time.Second) / rate),
		powerInit: sec.ReadBool("motor_power", true),
		maxSpeed: wire.Pose{
			X:   sec.ReadTupleLength("max_speed", 0, 0.5),
			Y:   sec.ReadTupleLength("max_speed", 1, 0),
			Yaw: sec.ReadTupleAngle("max_speed", 2, math.Pi/2),
		},
		geom: wire.Position2DGeom{
			Size: wire.BBox{
				SW: sec.ReadTupleLength("size", 0, 0.5),
				SL: sec.ReadTupleLength("size", 1, 0.4),
			},
		},
	}
	d.watchdog = driver.NewWatchdog(sec.ReadDuration("watchdog", 0), d.halt)
	d.Base = driver.NewBase(d, driver.OptionsFromSection(sec, env))
	if err := d.AddInterface(addr, wire.AccessAll, driver.InterfaceOptions{}); err != nil {
		return nil, err
	}
	return d, nil
}

// Register adds the driver to f.
func Register(f driver.Factories) {
	f.Register(Name, New)
}

func (d *Driver) Setup(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
	d.power = d.powerInit
	d.pos = wire.Pose{}
	d.vel = wire.Pose{}
	d.last = time.Now()
	d.lastPub = time.Time{}
	return nil
}

func (d *Driver) Shutdown(context.Context) error {
	d.watchdog.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
	d.vel = wire.Pose{}
	return nil
}

// Update handles queued messages and advances the simulation.
func (d *Driver) Update() {
	d.Base.Update()
	d.step(time.Now())
}

// step integrates the velocity up to now and reports odometry at the
// configured rate.
func (d *Driver) step(now time.Time) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	if dt := now.Sub(d.last).Seconds(); dt > 0 {
		yaw := d.pos.Yaw
		d.pos.X += (d.vel.X*math.Cos(yaw) - d.vel.Y*math.Sin(yaw)) * dt
		d.pos.Y += (d.vel.X*math.Sin(yaw) + d.vel.Y*math.Cos(yaw)) * dt
		d.pos.Yaw = normalizeAngle(yaw + d.vel.Yaw*dt)
		d.last = now
	}
	if !d.lastPub.IsZero() && now.Sub(d.lastPub) < d.period {
		d.mu.Unlock()
		return
	}
	d.lastPub = now
	state := wire.Position2DData{Pos: d.pos, Vel: d.vel}
	d.mu.Unlock()

	data, err := wire.Encode(state, wire.MaxMessageSize)
	if err != nil {
		return
	}
	_ = d.PutData(d.addr, wire.Position2DDataState, data, now)
}

// Odometry returns the integrated pose and the current velocity.
func (d *Driver) Odometry() (pos, vel wire.Pose) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos, d.vel
}

func (d *Driver) ProcessMessage(msg *message.Message) (driver.Reply, error) {
	hdr := msg.Header()
	switch {
	case hdr.Type == wire.MsgCmd && hdr.Subtype == wire.Position2DCmdState:
		cmd, err := wire.Decode[wire.Position2DCmd](msg.Payload())
		if err != nil {
			return driver.Reply{}, err
		}
		d.command(cmd)
		return driver.Reply{}, nil

	case hdr.Type != wire.MsgReq:
		return driver.Reply{}, driver.ErrUnhandled
	}

	switch hdr.Subtype {
	case wire.Position2DReqGetGeom:
		data, err := wire.Encode(d.geom, wire.MaxReqRepSize)
		if err != nil {
			return driver.Reply{}, err
		}
		return driver.Ack(data), nil

	case wire.Position2DReqMotorPower:
		req, err := wire.Decode[wire.Position2DPower](msg.Payload())
		if err != nil {
			return driver.Reply{}, err
		}
		d.mu.Lock()
		d.power = req.State
		if !req.State {
			d.vel = wire.Pose{}
		}
		d.mu.Unlock()
		return driver.Ack(nil), nil

	case wire.Position2DReqSetOdom:
		pose, err := wire.Decode[wire.Pose](msg.Payload())
		if err != nil {
			return driver.Reply{}, err
		}
		d.mu.Lock()
		d.pos = pose
		d.mu.Unlock()
		return driver.Ack(nil), nil

	case wire.Position2DReqResetOdom:
		d.mu.Lock()
		d.pos = wire.Pose{}
		d.mu.Unlock()
		return driver.Ack(nil), nil
	}
	return driver.Reply{}, driver.ErrUnhandled
}

// command applies a velocity command. Position commands are not simulated.
func (d *Driver) command(cmd wire.Position2DCmd) {
	if cmd.Type != 0 {
		if l := d.Logger(); l != nil {
			l.Debug("position command ignored", "driver", Name)
		}
		return
	}
	d.watchdog.Kick()
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.power {
		d.vel = wire.Pose{}
		return
	}
	d.vel = wire.Pose{
		X:   clamp(cmd.Vel.X, d.maxSpeed.X),
		Y:   clamp(cmd.Vel.Y, d.maxSpeed.Y),
		Yaw: clamp(cmd.Vel.Yaw, d.maxSpeed.Yaw),
	}
}

// halt stops the base when the command watchdog expires.
func (d *Driver) halt() {
	d.mu.Lock()
	moving := d.vel != (wire.Pose{})
	d.vel = wire.Pose{}
	d.mu.Unlock()
	if l := d.Logger(); l != nil && moving {
		l.Warn("command watchdog expired, stopping", "driver", Name)
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func normalizeAngle(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}
