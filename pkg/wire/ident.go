package wire

import (
	"bytes"
	"errors"
	"strings"
)

// IdentLen is the size of the banner a server sends on accept.
const IdentLen = 32

// IdentPrefix starts every banner.
const IdentPrefix = "Player v."

// ErrBadIdent is returned for a banner without IdentPrefix.
var ErrBadIdent = errors.New("bad ident banner")

// Ident returns the NUL-padded banner announcing version. Versions that do
// not fit are cut so the banner keeps a terminating NUL.
func Ident(version string) []byte {
	b := make([]byte, IdentLen)
	copy(b[:IdentLen-1], IdentPrefix+version)
	return b
}

// ParseIdent extracts the version from a banner.
func ParseIdent(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	s := string(b)
	if !strings.HasPrefix(s, IdentPrefix) {
		return "", ErrBadIdent
	}
	return strings.TrimPrefix(s, IdentPrefix), nil
}
