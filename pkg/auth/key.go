// Package auth implements the shared-key check a server performs on the
// first message of a connection.
package auth

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyLen is the size of a key on the wire, including the terminating NUL.
const KeyLen = 32

// DefaultInfo is the HKDF info string used when none is given.
const DefaultInfo = "playerd auth key"

// ErrEmptySecret is returned by DeriveKey for an empty secret.
var ErrEmptySecret = errors.New("auth: empty secret")

// Key is a fixed-size authentication key. The last byte is always zero.
type Key [KeyLen]byte

// ParseKey builds a key from a configured string. Anything past KeyLen-1
// bytes is dropped.
func ParseKey(s string) Key {
	return FromBytes([]byte(s))
}

// FromBytes builds a key from the bytes of an AUTH request. The key ends at
// the first NUL or after KeyLen-1 bytes.
func FromBytes(b []byte) Key {
	var k Key
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	copy(k[:KeyLen-1], b)
	return k
}

// DeriveKey derives a key from a secret with HKDF-SHA256. Derived bytes are
// mapped to printable characters so the key survives being typed by hand.
func DeriveKey(secret, salt []byte, info string) (Key, error) {
	if len(secret) == 0 {
		return Key{}, ErrEmptySecret
	}
	if info == "" {
		info = DefaultInfo
	}
	raw := make([]byte, KeyLen-1)
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	if _, err := io.ReadFull(r, raw); err != nil {
		return Key{}, fmt.Errorf("auth: derive key: %w", err)
	}
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	var k Key
	for i, c := range raw {
		k[i] = alphabet[int(c)%len(alphabet)]
	}
	return k, nil
}

// Equal compares two keys in constant time.
func (k Key) Equal(other Key) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// IsZero reports whether the key is empty, which disables authentication.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Bytes returns the key as sent on the wire.
func (k Key) Bytes() []byte {
	out := make([]byte, KeyLen)
	copy(out, k[:])
	return out
}

// String returns the printable part of the key.
func (k Key) String() string {
	if i := bytes.IndexByte(k[:], 0); i >= 0 {
		return string(k[:i])
	}
	return string(k[:])
}
