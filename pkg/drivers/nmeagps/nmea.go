package nmeagps

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/player-project/playerd/pkg/wire"
)

// Sentence errors.
var (
	ErrMalformed   = errors.New("nmea: malformed sentence")
	ErrUnsupported = errors.New("nmea: unsupported sentence")
	ErrNoFix       = errors.New("nmea: no position fix")
)

// ParseGGA decodes a GGA fix. The sentence only carries the time of day;
// the date is taken from day. Sentences of other types return
// ErrUnsupported and a GGA without a fix returns ErrNoFix.
func ParseGGA(line string, day time.Time) (wire.GPSData, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return wire.GPSData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	gga, ok := s.(nmea.GGA)
	if !ok {
		return wire.GPSData{}, fmt.Errorf("%w: %s", ErrUnsupported, s.DataType())
	}
	if gga.FixQuality == nmea.Invalid {
		return wire.GPSData{}, ErrNoFix
	}
	if !gga.Time.Valid {
		return wire.GPSData{}, fmt.Errorf("%w: no time of day", ErrMalformed)
	}
	quality, err := strconv.ParseUint(gga.FixQuality, 10, 8)
	if err != nil {
		return wire.GPSData{}, fmt.Errorf("%w: fix quality %q", ErrMalformed, gga.FixQuality)
	}

	day = day.UTC()
	return wire.GPSData{
		Time: time.Date(day.Year(), day.Month(), day.Day(),
			gga.Time.Hour, gga.Time.Minute, gga.Time.Second,
			gga.Time.Millisecond*int(time.Millisecond), time.UTC),
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Altitude:  gga.Altitude,
		Quality:   uint8(quality),
		NumSats:   uint8(min(gga.NumSatellites, math.MaxUint8)),
		HDOP:      gga.HDOP,
	}, nil
}
