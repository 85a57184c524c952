package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceAddr identifies a device. It is comparable and used as a map key.
type DeviceAddr struct {
	Port      uint16        `cbor:"1,keyasint"`
	Interface InterfaceCode `cbor:"2,keyasint"`
	Index     uint16        `cbor:"3,keyasint"`
}

// PlayerAddr returns the address of the server's own player device.
func PlayerAddr(port uint16) DeviceAddr {
	return DeviceAddr{Port: port, Interface: InterfacePlayer, Index: 0}
}

// String renders the address as port:interface:index.
func (a DeviceAddr) String() string {
	return fmt.Sprintf("%d:%s:%d", a.Port, a.Interface, a.Index)
}

// ShortString renders the address as interface:index.
func (a DeviceAddr) ShortString() string {
	return fmt.Sprintf("%s:%d", a.Interface, a.Index)
}

// SameDevice reports whether a and b name the same interface and index,
// ignoring the port.
func (a DeviceAddr) SameDevice(b DeviceAddr) bool {
	return a.Interface == b.Interface && a.Index == b.Index
}

// ParseDeviceAddr parses "[key:][port:]interface:index". The port defaults to
// defaultPort. The key is an optional label a driver uses to tell apart
// several interfaces of the same type.
func ParseDeviceAddr(s string, defaultPort uint16) (key string, addr DeviceAddr, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 4 {
		return "", DeviceAddr{}, fmt.Errorf("%w: %q", ErrInvalidAddr, s)
	}

	n := len(parts)
	code, ok := LookupInterface(parts[n-2])
	if !ok {
		return "", DeviceAddr{}, fmt.Errorf("%w: %q", ErrUnknownInterface, parts[n-2])
	}
	index, err := strconv.ParseUint(parts[n-1], 10, 16)
	if err != nil {
		return "", DeviceAddr{}, fmt.Errorf("%w: bad index in %q", ErrInvalidAddr, s)
	}
	addr = DeviceAddr{Port: defaultPort, Interface: code, Index: uint16(index)}

	switch n {
	case 3:
		// A numeric prefix is a port, anything else is a key.
		if port, perr := strconv.ParseUint(parts[0], 10, 16); perr == nil {
			addr.Port = uint16(port)
		} else {
			key = parts[0]
		}
	case 4:
		key = parts[0]
		if parts[1] != "" {
			port, perr := strconv.ParseUint(parts[1], 10, 16)
			if perr != nil {
				return "", DeviceAddr{}, fmt.Errorf("%w: bad port in %q", ErrInvalidAddr, s)
			}
			addr.Port = uint16(port)
		}
	}
	return key, addr, nil
}
