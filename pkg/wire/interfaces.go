package wire

import "strconv"

//go:generate go run ../../cmd/player-ifgen -input interfaces.yaml -output interfaces_gen.go

// String returns the canonical interface name, or the decimal code for an
// interface missing from the table.
func (c InterfaceCode) String() string {
	if name, ok := interfaceNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// IsKnown reports whether c appears in the interface table.
func (c InterfaceCode) IsKnown() bool {
	_, ok := interfaceNames[c]
	return ok
}

// LookupInterface returns the code of the named interface.
func LookupInterface(name string) (InterfaceCode, bool) {
	c, ok := interfaceCodes[name]
	return c, ok
}
