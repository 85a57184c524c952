package discovery

import (
	"context"
	"time"
)

// Advertiser announces a server on the local network.
type Advertiser interface {
	// Advertise starts announcing the server. Calling it again replaces the
	// previous announcement.
	Advertise(ctx context.Context, info ServiceInfo) error

	// Update replaces the TXT records of the running announcement.
	Update(info ServiceInfo) error

	// Stop withdraws the announcement.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}
