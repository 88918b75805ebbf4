// Package contract tags computed positions and times with the frame, time
// scale and height datum they are meaningful in, and checks that values are
// only compared or combined under compatible tags.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/talgya/metaverse/internal/timescale"
)

// Parse errors.
var (
	ErrUnknownFrame = errors.New("unknown frame")
	ErrUnknownScale = errors.New("unknown time scale")
	ErrUnknownDatum = errors.New("unknown height datum")
)

// Frame identifies a spatial reference frame.
type Frame uint8

const (
	ICRFBarycentric      Frame = iota // Solar system barycenter, ICRF axes
	HeliocentricEcliptic              // Sun center, J2000 ecliptic axes
	ECI                               // Earth center, inertial (GCRF) axes
	ECEF                              // Earth center, Earth-fixed rotating axes
	Topocentric                       // Observer site, east/north/up axes
	MoonCentered                      // Moon center, ECI-parallel axes
)

// Frames lists every known frame in declaration order.
var Frames = []Frame{ICRFBarycentric, HeliocentricEcliptic, ECI, ECEF, Topocentric, MoonCentered}

var frameNames = map[Frame]string{
	ICRFBarycentric:      "ICRF_BARYCENTRIC",
	HeliocentricEcliptic: "HELIOCENTRIC_ECLIPTIC",
	ECI:                  "ECI",
	ECEF:                 "ECEF",
	Topocentric:          "TOPOCENTRIC",
	MoonCentered:         "MOON_CENTERED",
}

func (f Frame) String() string {
	if name, ok := frameNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Frame(%d)", uint8(f))
}

// Rotating reports whether the frame's axes turn with the Earth.
func (f Frame) Rotating() bool {
	switch f {
	case ECEF, Topocentric:
		return true
	case ICRFBarycentric, HeliocentricEcliptic, ECI, MoonCentered:
		return false
	default:
		return false
	}
}

// Valid reports whether f is one of the declared frames.
func (f Frame) Valid() bool {
	_, ok := frameNames[f]
	return ok
}

// ParseFrame maps a frame name to a Frame. Matching ignores case.
func ParseFrame(name string) (Frame, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for f, n := range frameNames {
		if n == want {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownFrame, name)
}

func (f Frame) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, uint8(f))
	}
	return []byte(f.String()), nil
}

func (f *Frame) UnmarshalText(b []byte) error {
	v, err := ParseFrame(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// HeightDatum identifies the surface heights are measured from.
type HeightDatum uint8

const (
	Ellipsoid HeightDatum = iota // WGS-84 ellipsoid
	Geoid                        // Equipotential surface
	MSL                          // Mean sea level
)

func (d HeightDatum) String() string {
	switch d {
	case Ellipsoid:
		return "ELLIPSOID"
	case Geoid:
		return "GEOID"
	case MSL:
		return "MSL"
	default:
		return fmt.Sprintf("HeightDatum(%d)", uint8(d))
	}
}

// ParseDatum maps a datum name to a HeightDatum. Matching ignores case.
func ParseDatum(name string) (HeightDatum, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ELLIPSOID":
		return Ellipsoid, nil
	case "GEOID":
		return Geoid, nil
	case "MSL":
		return MSL, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownDatum, name)
	}
}

func (d HeightDatum) MarshalText() ([]byte, error) {
	if d > MSL {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDatum, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *HeightDatum) UnmarshalText(b []byte) error {
	v, err := ParseDatum(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Tolerance keys understood by WithinTolerance callers.
const (
	TolPositionM = "position_m"
	TolTimeS     = "time_s"
	TolAngleRad  = "angle_rad"
)

// Contract is an immutable (frame, scale, datum, tolerances) tag. The zero
// value is not valid; build one with New or Parse.
type Contract struct {
	frame    Frame
	scale    timescale.Scale
	datum    HeightDatum
	hasDatum bool
	tol      map[string]float64
	valid    bool
}

// New builds a contract. datum may be nil. tolerances are copied.
func New(frame Frame, scale timescale.Scale, datum *HeightDatum, tolerances map[string]float64) (Contract, error) {
	if !frame.Valid() {
		return Contract{}, fmt.Errorf("%w: %d", ErrUnknownFrame, uint8(frame))
	}
	if !scale.Valid() {
		return Contract{}, fmt.Errorf("%w: %d", ErrUnknownScale, uint8(scale))
	}
	c := Contract{frame: frame, scale: scale, tol: maps.Clone(tolerances), valid: true}
	if datum != nil {
		if *datum > MSL {
			return Contract{}, fmt.Errorf("%w: %d", ErrUnknownDatum, uint8(*datum))
		}
		c.datum, c.hasDatum = *datum, true
	}
	for k, v := range c.tol {
		if v < 0 {
			return Contract{}, fmt.Errorf("tolerance %q is negative", k)
		}
	}
	return c, nil
}

// Must is New for static contracts; it panics on invalid input.
func Must(frame Frame, scale timescale.Scale, datum *HeightDatum, tolerances map[string]float64) Contract {
	c, err := New(frame, scale, datum, tolerances)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a contract from names. An empty datum means none.
func Parse(frame, scale, datum string, tolerances map[string]float64) (Contract, error) {
	f, err := ParseFrame(frame)
	if err != nil {
		return Contract{}, err
	}
	s, err := timescale.ParseScale(scale)
	if err != nil {
		return Contract{}, fmt.Errorf("%w %q", ErrUnknownScale, scale)
	}
	var d *HeightDatum
	if strings.TrimSpace(datum) != "" {
		v, err := ParseDatum(datum)
		if err != nil {
			return Contract{}, err
		}
		d = &v
	}
	return New(f, s, d, tolerances)
}

func (c Contract) Frame() Frame           { return c.frame }
func (c Contract) Scale() timescale.Scale { return c.scale }

// IsZero reports whether c was never built by New.
func (c Contract) IsZero() bool { return !c.valid }

// Datum returns the height datum and whether one is set.
func (c Contract) Datum() (HeightDatum, bool) {
	return c.datum, c.hasDatum
}

// Tolerance returns the tolerance for key and whether one is set.
func (c Contract) Tolerance(key string) (float64, bool) {
	v, ok := c.tol[key]
	return v, ok
}

// Tolerances returns a copy of the tolerance map.
func (c Contract) Tolerances() map[string]float64 {
	return maps.Clone(c.tol)
}

// WithFrame returns a copy retagged to another frame.
func (c Contract) WithFrame(f Frame) Contract {
	out := c
	out.frame = f
	out.tol = maps.Clone(c.tol)
	return out
}

// WithScale returns a copy retagged to another time scale.
func (c Contract) WithScale(s timescale.Scale) Contract {
	out := c
	out.scale = s
	out.tol = maps.Clone(c.tol)
	return out
}

// WithDatum returns a copy with the datum replaced.
func (c Contract) WithDatum(d HeightDatum) Contract {
	out := c
	out.datum, out.hasDatum = d, true
	out.tol = maps.Clone(c.tol)
	return out
}

// Equal reports whether two contracts carry the same tags and tolerances.
func (c Contract) Equal(o Contract) bool {
	return c.valid == o.valid && c.frame == o.frame && c.scale == o.scale &&
		c.hasDatum == o.hasDatum && c.datum == o.datum &&
		maps.Equal(c.tol, o.tol)
}

func (c Contract) String() string {
	var b strings.Builder
	b.WriteString(c.frame.String())
	b.WriteByte('/')
	b.WriteString(c.scale.String())
	if c.hasDatum {
		b.WriteByte('/')
		b.WriteString(c.datum.String())
	}
	if len(c.tol) > 0 {
		keys := make([]string, 0, len(c.tol))
		for k := range c.tol {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%g", k, c.tol[k])
		}
		b.WriteByte('}')
	}
	return b.String()
}

type contractJSON struct {
	Frame      Frame              `json:"frame"`
	Scale      timescale.Scale    `json:"scale"`
	Datum      *HeightDatum       `json:"datum,omitempty"`
	Tolerances map[string]float64 `json:"tolerances,omitempty"`
}

func (c Contract) MarshalJSON() ([]byte, error) {
	out := contractJSON{Frame: c.frame, Scale: c.scale, Tolerances: c.tol}
	if c.hasDatum {
		d := c.datum
		out.Datum = &d
	}
	return json.Marshal(out)
}

func (c *Contract) UnmarshalJSON(b []byte) error {
	var in contractJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	v, err := New(in.Frame, in.Scale, in.Datum, in.Tolerances)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
