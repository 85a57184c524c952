package discovery

import (
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD type every server advertises.
	ServiceType = "_player._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the default server port.
	DefaultPort = 6665
)

// TXT record key constants.
const (
	TXTKeyName    = "name" // robot name, also the instance name
	TXTKeyVersion = "ver"  // server version
	TXTKeyDevices = "dev"  // number of registered devices
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for a name lookup.
	BrowseTimeout = 2 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Errors.
var (
	ErrNotFound            = errors.New("service not found")
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInstanceNameTooLong = errors.New("instance name too long")
)

// ServiceInfo is what a server announces about itself.
type ServiceInfo struct {
	// Name is the robot name clients resolve.
	Name string

	// Port is the TCP port clients connect to.
	Port uint16

	// Version is the server version.
	Version string

	// Devices is the number of registered devices.
	Devices int
}

// Service is a server found on the network.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Version      string
	Devices      int
}
