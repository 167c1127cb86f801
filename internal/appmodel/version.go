// Package appmodel describes the running application package.
package appmodel

import (
	"fmt"
	"strconv"
	"strings"
)

// PackageVersion is a four-part package version.
type PackageVersion struct {
	Major    uint16
	Minor    uint16
	Build    uint16
	Revision uint16
}

// String returns the dotted form, e.g. "1.2.3.4".
func (v PackageVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// ParsePackageVersion parses a dotted version of two to four parts.
// Missing parts are zero.
func ParsePackageVersion(s string) (PackageVersion, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 4 {
		return PackageVersion{}, fmt.Errorf("invalid package version %q: want 2 to 4 parts", s)
	}

	var nums [4]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return PackageVersion{}, fmt.Errorf("invalid package version %q: %w", s, err)
		}
		nums[i] = uint16(n)
	}
	return PackageVersion{Major: nums[0], Minor: nums[1], Build: nums[2], Revision: nums[3]}, nil
}

// Compare returns -1, 0 or +1 as v is older than, equal to or newer than o.
func (v PackageVersion) Compare(o PackageVersion) int {
	a := [4]uint16{v.Major, v.Minor, v.Build, v.Revision}
	b := [4]uint16{o.Major, o.Minor, o.Build, o.Revision}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler.
func (v PackageVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *PackageVersion) UnmarshalText(text []byte) error {
	parsed, err := ParsePackageVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
