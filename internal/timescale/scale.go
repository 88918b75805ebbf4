// Package timescale converts instants between physical time standards.
// UTC, TAI, TT, TDB, UT1 and GPS are related by leap seconds, fixed offsets,
// a periodic TDB term and the measured DUT1.
package timescale

import (
	"fmt"
	"strings"
	"time"
)

// Scale identifies a time standard.
type Scale uint8

const (
	UTC Scale = iota // Civil time, stepped by leap seconds
	TAI              // International Atomic Time
	TT               // Terrestrial Time = TAI + 32.184s
	TDB              // Barycentric Dynamical Time, TT plus a periodic term
	UT1              // Earth rotation time = UTC + DUT1
	GPS              // GPS time = TAI - 19s
)

// Scales lists every known scale in declaration order.
var Scales = []Scale{UTC, TAI, TT, TDB, UT1, GPS}

// String returns the canonical name of the scale.
func (s Scale) String() string {
	switch s {
	case UTC:
		return "UTC"
	case TAI:
		return "TAI"
	case TT:
		return "TT"
	case TDB:
		return "TDB"
	case UT1:
		return "UT1"
	case GPS:
		return "GPS"
	default:
		return fmt.Sprintf("Scale(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the declared scales.
func (s Scale) Valid() bool {
	return s <= GPS
}

// ParseScale maps a name such as "tt" or "UTC" to a Scale.
func ParseScale(name string) (Scale, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "UTC":
		return UTC, nil
	case "TAI":
		return TAI, nil
	case "TT":
		return TT, nil
	case "TDB":
		return TDB, nil
	case "UT1":
		return UT1, nil
	case "GPS":
		return GPS, nil
	default:
		return 0, fmt.Errorf("unknown time scale %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Scale) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid time scale %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scale) UnmarshalText(b []byte) error {
	v, err := ParseScale(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Instant is a time label read on a particular scale.
// Time carries the label as if it were a UTC wall clock; only Scale gives it meaning.
type Instant struct {
	Scale Scale     `json:"scale"`
	Time  time.Time `json:"time"`
}

// At builds an instant on the given scale.
func At(scale Scale, t time.Time) Instant {
	return Instant{Scale: scale, Time: t.UTC()}
}

// String formats the instant as RFC 3339 with nanoseconds followed by the scale name.
func (i Instant) String() string {
	return i.Time.Format(time.RFC3339Nano) + " " + i.Scale.String()
}
