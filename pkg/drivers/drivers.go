// Package drivers collects the bundled drivers.
package drivers

import (
	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/drivers/nmeagps"
	"github.com/player-project/playerd/pkg/drivers/recorder"
	"github.com/player-project/playerd/pkg/drivers/simlaser"
	"github.com/player-project/playerd/pkg/drivers/simposition"
)

// Factories returns a factory table holding every bundled driver.
func Factories() driver.Factories {
	f := driver.Factories{}
	simlaser.Register(f)
	simposition.Register(f)
	nmeagps.Register(f)
	recorder.Register(f)
	return f
}
