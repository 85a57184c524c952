// Package wire defines the binary wire format of the player protocol.
//
// Every message on the wire is a fixed 32-byte header followed by Size bytes
// of payload. All multi-byte header fields are big-endian.
//
//	 0      2    3       4          6      8        16          24      26    28    32
//	+------+----+-------+----------+------+--------+-----------+-------+-----+-----+
//	| stx  |type|subtype|interface |index | time   | timestamp |conn id| seq | size|
//	+------+----+-------+----------+------+--------+-----------+-------+-----+-----+
//
// time is the server clock when the message was sent; timestamp is the time
// the underlying data was generated. Both are (seconds, microseconds) pairs.
//
// # Payloads
//
// Payloads of server-defined structures (the core configuration requests on
// the player interface, properties and the sample interfaces in this package)
// are CBOR (RFC 8949) maps with integer keys. Drivers are free to carry opaque
// bytes instead; the server never looks inside a driver payload.
//
// # Limits
//
// A payload may be at most MaxMessageSize bytes. Request and reply payloads
// are further limited to MaxReqRepSize bytes.
package wire
