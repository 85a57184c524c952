package wire

import "time"

// Payloads of the interfaces implemented by the bundled drivers.

// Pose is a planar pose or velocity (m, m, rad).
type Pose struct {
	X   float64 `cbor:"1,keyasint"`
	Y   float64 `cbor:"2,keyasint"`
	Yaw float64 `cbor:"3,keyasint"`
}

// BBox is a bounding box (m, m).
type BBox struct {
	SW float64 `cbor:"1,keyasint"`
	SL float64 `cbor:"2,keyasint"`
}

// Laser subtypes.
const (
	LaserDataScan     uint8 = 1
	LaserDataScanPose uint8 = 2

	LaserReqGetGeom   uint8 = 1
	LaserReqSetConfig uint8 = 2
	LaserReqGetConfig uint8 = 3
	LaserReqPower     uint8 = 4
)

// LaserMaxSamples bounds the number of readings in a scan.
const LaserMaxSamples = 1024

// LaserScan is one laser scan.
type LaserScan struct {
	MinAngle    float64   `cbor:"1,keyasint"`
	MaxAngle    float64   `cbor:"2,keyasint"`
	Resolution  float64   `cbor:"3,keyasint"`
	MaxRange    float64   `cbor:"4,keyasint"`
	Ranges      []float64 `cbor:"5,keyasint"`
	Intensities []uint8   `cbor:"6,keyasint,omitempty"`
	ID          uint32    `cbor:"7,keyasint"`
}

// LaserGeom answers LaserReqGetGeom.
type LaserGeom struct {
	Pose Pose `cbor:"1,keyasint"`
	Size BBox `cbor:"2,keyasint"`
}

// Position2d subtypes.
const (
	Position2DDataState uint8 = 1
	Position2DDataGeom  uint8 = 2

	Position2DCmdState uint8 = 1

	Position2DReqGetGeom    uint8 = 1
	Position2DReqMotorPower uint8 = 2
	Position2DReqSetOdom    uint8 = 5
	Position2DReqResetOdom  uint8 = 6
)

// Position2DData reports odometry.
type Position2DData struct {
	Pos   Pose `cbor:"1,keyasint"`
	Vel   Pose `cbor:"2,keyasint"`
	Stall bool `cbor:"3,keyasint"`
}

// Position2DCmd commands a velocity (Type 0) or a position (Type 1).
type Position2DCmd struct {
	Pos   Pose  `cbor:"1,keyasint"`
	Vel   Pose  `cbor:"2,keyasint"`
	State bool  `cbor:"3,keyasint"`
	Type  uint8 `cbor:"4,keyasint"`
}

// Position2DGeom answers Position2DReqGetGeom.
type Position2DGeom struct {
	Pose Pose `cbor:"1,keyasint"`
	Size BBox `cbor:"2,keyasint"`
}

// Position2DPower switches the motors on or off.
type Position2DPower struct {
	State bool `cbor:"1,keyasint"`
}

// GPS subtypes.
const (
	GPSDataState uint8 = 1
)

// GPSData is one GPS fix. Latitude and longitude are in degrees.
type GPSData struct {
	Time      time.Time `cbor:"1,keyasint"`
	Latitude  float64   `cbor:"2,keyasint"`
	Longitude float64   `cbor:"3,keyasint"`
	Altitude  float64   `cbor:"4,keyasint"` // m
	Quality   uint8     `cbor:"5,keyasint"`
	NumSats   uint8     `cbor:"6,keyasint"`
	HDOP      float64   `cbor:"7,keyasint"`
}

// Log subtypes.
const (
	LogReqSetWriteState uint8 = 1
	LogReqSetReadState  uint8 = 2
	LogReqGetState      uint8 = 3
	LogReqSetFilename   uint8 = 5

	LogTypeRead  uint8 = 1
	LogTypeWrite uint8 = 2
)

// LogState sets or reports the recording state of a log device.
type LogState struct {
	Type    uint8  `cbor:"1,keyasint,omitempty"`
	State   bool   `cbor:"2,keyasint"`
	Samples uint64 `cbor:"3,keyasint,omitempty"`
}

// LogFilename changes the file a log device writes to.
type LogFilename struct {
	Filename string `cbor:"1,keyasint"`
}
