// Package transport carries Player messages over TCP.
//
// On accept the server writes a 32-byte ident banner ("Player v." plus the
// version, NUL padded). After that both directions exchange frames: a fixed
// 32-byte big-endian header followed by Header.Size payload bytes.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR payloads             │
//	├────────────────────────────────┤
//	│   Fixed 32-byte header         │
//	├────────────────────────────────┤
//	│   Ident banner (once)          │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// A frame with a bad start marker, an unknown type or a payload above the
// configured maximum cannot be skipped safely, so the connection is closed.
// Other connections are not affected.
package transport
