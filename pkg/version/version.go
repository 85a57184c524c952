// Package version holds the server version and compares it with the
// versions peers announce in their ident banner.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the version of this server and client library.
const Current = "3.1.0"

// ErrIncompatible is returned when a peer runs a different major version.
var ErrIncompatible = errors.New("incompatible protocol version")

// Version is a parsed "major.minor[.patch]" version. A trailing
// "-suffix" (e.g. "-dev") is kept but ignored for comparison.
type Version struct {
	Major  uint16
	Minor  uint16
	Patch  uint16
	Suffix string
}

// Parse parses a version string.
func Parse(s string) (Version, error) {
	core, suffix, _ := strings.Cut(s, "-")
	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor[.patch]", s)
	}

	var nums [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || p == "" {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = uint16(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Suffix: suffix}, nil
}

// MustParse is Parse for constants. It panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.patch[-suffix]".
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix != "" {
		s += "-" + v.Suffix
	}
	return s
}

// Compare orders versions by major, minor and patch.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return int(v.Major) - int(other.Major)
	case v.Minor != other.Minor:
		return int(v.Minor) - int(other.Minor)
	}
	return int(v.Patch) - int(other.Patch)
}

// Compatible reports whether other speaks the same protocol, i.e. has the
// same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Check parses announced and verifies it is compatible with Current.
func Check(announced string) error {
	peer, err := Parse(announced)
	if err != nil {
		return err
	}
	if !MustParse(Current).Compatible(peer) {
		return fmt.Errorf("%w: peer %s, local %s", ErrIncompatible, peer, Current)
	}
	return nil
}
