// Package version parses and orders release identifiers of the form
// "major" or "major.minor" as published by versioned mirrors.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a release identifier cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a two-component release identifier.
// The zero value is version 0.0.
type Version struct {
	Major uint32
	Minor uint32
}

// Parse parses "major" or "major.minor". A missing minor component defaults to 0.
func Parse(s string) (Version, error) {
	majorText, minorText, hasMinor := strings.Cut(s, ".")

	major, err := parseComponent(majorText)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: major: %v", ErrInvalidVersion, s, err)
	}

	if !hasMinor {
		return Version{Major: major}, nil
	}

	minor, err := parseComponent(minorText)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: minor: %v", ErrInvalidVersion, s, err)
	}

	return Version{Major: major, Minor: minor}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// parseComponent accepts only plain decimal digits; signs and spaces are rejected.
func parseComponent(s string) (uint32, error) {
	if s == "" {
		return 0, errors.New("empty component")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("unexpected character %q", r)
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// Compare returns -1, 0 or +1 comparing v to other, most significant component first.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major < other.Major:
		return -1
	case v.Major > other.Major:
		return 1
	case v.Minor < other.Minor:
		return -1
	case v.Minor > other.Minor:
		return 1
	default:
		return 0
	}
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// String renders the canonical "major.minor" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare is a package-level form of Version.Compare for use with slices.SortFunc.
func Compare(a, b Version) int {
	return a.Compare(b)
}
