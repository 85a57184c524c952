package wire

// Server limits.
const (
	// DefaultPort is the default TCP port of a server.
	DefaultPort = 6665

	// MaxDevices is the default capacity of the device table.
	MaxDevices = 256

	// MaxDriverNameLen bounds driver names reported to clients.
	MaxDriverNameLen = 64

	// KeyLen is the size of an authentication key.
	KeyLen = 32

	// DefaultQueueLen is the default capacity of a message queue.
	DefaultQueueLen = 32

	// DefaultFrequency is the default PUSH rate in Hz.
	DefaultFrequency = 10
)

// MsgType is the message type tag of the header.
type MsgType uint8

const (
	MsgData     MsgType = 1
	MsgCmd      MsgType = 2
	MsgReq      MsgType = 3
	MsgRespAck  MsgType = 4
	MsgSynch    MsgType = 5
	MsgRespNack MsgType = 6
	MsgRespErr  MsgType = 7
)

// String returns the message type name.
func (t MsgType) String() string {
	switch t {
	case MsgData:
		return "DATA"
	case MsgCmd:
		return "CMD"
	case MsgReq:
		return "REQ"
	case MsgRespAck:
		return "RESP_ACK"
	case MsgSynch:
		return "SYNCH"
	case MsgRespNack:
		return "RESP_NACK"
	case MsgRespErr:
		return "RESP_ERR"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether t is a known message type.
func (t MsgType) IsValid() bool {
	return t >= MsgData && t <= MsgRespErr
}

// IsResponse reports whether t answers a request.
func (t MsgType) IsResponse() bool {
	return t == MsgRespAck || t == MsgRespNack || t == MsgRespErr
}

// Access is an access mode requested by, or granted to, a client.
type Access uint8

const (
	AccessRead  Access = 'r'
	AccessWrite Access = 'w'
	AccessAll   Access = 'a'
	AccessClose Access = 'c'
	AccessError Access = 'e'
)

// String returns the access mode name.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	case AccessAll:
		return "ALL"
	case AccessClose:
		return "CLOSE"
	case AccessError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether a is a known access mode.
func (a Access) IsValid() bool {
	switch a {
	case AccessRead, AccessWrite, AccessAll, AccessClose, AccessError:
		return true
	}
	return false
}

// IsOpen reports whether a grants any access.
func (a Access) IsOpen() bool {
	return a == AccessRead || a == AccessWrite || a == AccessAll
}

// CanRead reports whether a allows receiving data.
func (a Access) CanRead() bool {
	return a == AccessRead || a == AccessAll
}

// CanWrite reports whether a allows sending commands.
func (a Access) CanWrite() bool {
	return a == AccessWrite || a == AccessAll
}

// ParseAccess converts "r", "read", "w", ... into an Access.
func ParseAccess(s string) (Access, bool) {
	switch s {
	case "r", "read":
		return AccessRead, true
	case "w", "write":
		return AccessWrite, true
	case "a", "all":
		return AccessAll, true
	case "c", "close":
		return AccessClose, true
	}
	return 0, false
}

// DataMode selects how a session receives data.
type DataMode uint32

const (
	DataModePushAll   DataMode = 0
	DataModePullAll   DataMode = 1
	DataModePushNew   DataMode = 2
	DataModePullNew   DataMode = 3
	DataModePushAsync DataMode = 4
)

// String returns the data mode name.
func (m DataMode) String() string {
	switch m {
	case DataModePushAll:
		return "PUSH_ALL"
	case DataModePullAll:
		return "PULL_ALL"
	case DataModePushNew:
		return "PUSH_NEW"
	case DataModePullNew:
		return "PULL_NEW"
	case DataModePushAsync:
		return "PUSH_ASYNC"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether m is a known data mode.
func (m DataMode) IsValid() bool {
	return m <= DataModePushAsync
}

// IsPull reports whether data is withheld until the client asks for a round.
func (m DataMode) IsPull() bool {
	return m == DataModePullAll || m == DataModePullNew
}

// IsPush reports whether data is sent on the scheduler cadence.
func (m DataMode) IsPush() bool {
	return m == DataModePushAll || m == DataModePushNew
}

// IsNew reports whether unchanged data is skipped.
func (m DataMode) IsNew() bool {
	return m == DataModePushNew || m == DataModePullNew || m == DataModePushAsync
}

// ParseDataMode converts "push_new", "pullall", ... into a DataMode.
func ParseDataMode(s string) (DataMode, bool) {
	switch s {
	case "push_all", "pushall":
		return DataModePushAll, true
	case "pull_all", "pullall":
		return DataModePullAll, true
	case "push_new", "pushnew":
		return DataModePushNew, true
	case "pull_new", "pullnew":
		return DataModePullNew, true
	case "push_async", "pushasync", "async":
		return DataModePushAsync, true
	}
	return 0, false
}

// Request subtypes on the player interface, answered by the server itself.
const (
	PlayerDevList     uint8 = 1
	PlayerDriverInfo  uint8 = 2
	PlayerDev         uint8 = 3
	PlayerData        uint8 = 4
	PlayerDataMode    uint8 = 5
	PlayerDataFreq    uint8 = 6
	PlayerAuth        uint8 = 7
	PlayerNameService uint8 = 8
	PlayerIdent       uint8 = 9
)

// Property request subtypes understood by every driver.
const (
	GetBoolProp   uint8 = 248
	SetBoolProp   uint8 = 249
	GetStringProp uint8 = 250
	SetStringProp uint8 = 251
	GetDoubleProp uint8 = 252
	SetDoubleProp uint8 = 253
	GetIntProp    uint8 = 254
	SetIntProp    uint8 = 255
)

// IsPropertySubtype reports whether subtype is one of the property requests.
func IsPropertySubtype(subtype uint8) bool {
	return subtype >= GetBoolProp
}
