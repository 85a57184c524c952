// Package device holds the table of devices the server offers to clients.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/wire"
)

// Table errors.
var (
	ErrNotFound    = errors.New("device not found")
	ErrDuplicate   = errors.New("device already registered")
	ErrTableFull   = errors.New("device table full")
	ErrNameTooLong = errors.New("driver name too long")
)

// Entry is one registered device.
type Entry struct {
	Addr       wire.DeviceAddr
	DriverName string
	Access     wire.Access
	Driver     driver.Driver
}

// Table maps device addresses to the drivers that provide them. Entries are
// never removed.
type Table struct {
	mu      sync.RWMutex
	max     int
	entries []*Entry
	byAddr  map[wire.DeviceAddr]*Entry
}

// NewTable returns a table holding at most max devices (0 = wire.MaxDevices).
func NewTable(max int) *Table {
	if max <= 0 {
		max = wire.MaxDevices
	}
	return &Table{
		max:    max,
		byAddr: make(map[wire.DeviceAddr]*Entry),
	}
}

// Add registers drv as the provider of addr.
func (t *Table) Add(addr wire.DeviceAddr, driverName string, access wire.Access, drv driver.Driver) error {
	if len(driverName) > wire.MaxDriverNameLen {
		return fmt.Errorf("%w: %q", ErrNameTooLong, driverName)
	}
	if !access.IsOpen() {
		access = wire.AccessAll
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byAddr[addr]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, addr)
	}
	if len(t.entries) >= t.max {
		return fmt.Errorf("%w: %d devices", ErrTableFull, t.max)
	}
	e := &Entry{Addr: addr, DriverName: driverName, Access: access, Driver: drv}
	t.entries = append(t.entries, e)
	t.byAddr[addr] = e
	return nil
}

// Entry returns the entry for addr.
func (t *Table) Entry(addr wire.DeviceAddr) (Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byAddr[addr]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return *e, nil
}

// Driver returns the driver providing addr.
func (t *Table) Driver(addr wire.DeviceAddr) (driver.Driver, error) {
	e, err := t.Entry(addr)
	if err != nil {
		return nil, err
	}
	return e.Driver, nil
}

// Lookup finds the entry for an interface and index on any port.
func (t *Table) Lookup(code wire.InterfaceCode, index uint16) (Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e.Addr.Interface == code && e.Addr.Index == index {
			return *e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s:%d", ErrNotFound, code, index)
}

// List returns every entry in registration order.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// Addrs returns every device address in registration order.
func (t *Table) Addrs() []wire.DeviceAddr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]wire.DeviceAddr, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Addr
	}
	return out
}

// Drivers returns each distinct driver once, in registration order.
func (t *Table) Drivers() []driver.Driver {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[driver.Driver]bool)
	var out []driver.Driver
	for _, e := range t.entries {
		if e.Driver == nil || seen[e.Driver] {
			continue
		}
		seen[e.Driver] = true
		out = append(out, e.Driver)
	}
	return out
}

// Len returns the number of devices.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

var _ driver.Registry = (*Table)(nil)
