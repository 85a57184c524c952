package wire

// Payloads of the requests served by the player device itself.

// DevList answers DEVLIST with every registered device.
type DevList struct {
	Devices []DeviceAddr `cbor:"1,keyasint"`
}

// DriverInfo asks for, and answers with, the driver behind a device.
type DriverInfo struct {
	Addr DeviceAddr `cbor:"1,keyasint"`
	Name string     `cbor:"2,keyasint,omitempty"`
}

// DeviceReq asks for access to a device.
type DeviceReq struct {
	Addr   DeviceAddr `cbor:"1,keyasint"`
	Access Access     `cbor:"2,keyasint"`
}

// DeviceResp reports the access granted for a device.
type DeviceResp struct {
	Addr       DeviceAddr `cbor:"1,keyasint"`
	Access     Access     `cbor:"2,keyasint"`
	DriverName string     `cbor:"3,keyasint,omitempty"`
}

// DataModeReq selects a delivery mode.
type DataModeReq struct {
	Mode DataMode `cbor:"1,keyasint"`
}

// DataFreqReq sets the PUSH rate in Hz.
type DataFreqReq struct {
	Frequency uint16 `cbor:"1,keyasint"`
}

// AuthReq carries an authentication key.
type AuthReq struct {
	Key []byte `cbor:"1,keyasint"`
}

// NameServiceReq resolves a robot name to a port. The server fills in Port
// on success.
type NameServiceReq struct {
	Name string `cbor:"1,keyasint"`
	Port uint16 `cbor:"2,keyasint,omitempty"`
}

// IdentResp answers IDENT with the server banner.
type IdentResp struct {
	Ident   string `cbor:"1,keyasint"`
	Version string `cbor:"2,keyasint,omitempty"`
}

// PropertyReq gets or sets a named driver property. Value holds a bool,
// int64, float64 or string depending on the subtype.
type PropertyReq struct {
	Key   string `cbor:"1,keyasint"`
	Value any    `cbor:"2,keyasint"`
}
