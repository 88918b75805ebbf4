package celestial

import (
	"math"

	"github.com/talgya/metaverse/internal/timescale"
)

const (
	AU           = 149597870700.0 // meters
	earthRadiusM = 6378140.0
	j2000Obliq   = 23.4392911 * Deg2Rad
)

// SunPosition returns the geocentric Sun in meters on the mean equator of date,
// from the Astronomical Almanac low precision formulae (about 0.01°).
func SunPosition(jdTDB float64) Vec3 {
	n := jdTDB - timescale.J2000
	l := (280.460 + 0.9856474*n) * Deg2Rad
	g := (357.528 + 0.9856003*n) * Deg2Rad
	lambda := l + (1.915*math.Sin(g)+0.020*math.Sin(2*g))*Deg2Rad
	r := (1.00014 - 0.01671*math.Cos(g) - 0.00014*math.Cos(2*g)) * AU
	eps := (23.439 - 0.0000004*n) * Deg2Rad

	sl, cl := math.Sincos(lambda)
	se, ce := math.Sincos(eps)
	return Vec3{X: r * cl, Y: r * ce * sl, Z: r * se * sl}
}

// MoonPosition returns the geocentric Moon in meters on the mean equator of
// date, from the Astronomical Almanac low precision series (about 0.3°).
func MoonPosition(jdTDB float64) Vec3 {
	t := timescale.JulianCenturies(jdTDB)
	sinDeg := func(a float64) float64 { return math.Sin(a * Deg2Rad) }
	cosDeg := func(a float64) float64 { return math.Cos(a * Deg2Rad) }

	lambda := 218.32 + 481267.881*t +
		6.29*sinDeg(135.0+477198.87*t) -
		1.27*sinDeg(259.3-413335.36*t) +
		0.66*sinDeg(235.7+890534.22*t) +
		0.21*sinDeg(269.9+954397.74*t) -
		0.19*sinDeg(357.5+35999.05*t) -
		0.11*sinDeg(186.5+966404.03*t)
	beta := 5.13*sinDeg(93.3+483202.02*t) +
		0.28*sinDeg(228.2+960400.89*t) -
		0.28*sinDeg(318.3+6003.15*t) -
		0.17*sinDeg(217.6-407332.21*t)
	parallax := 0.9508 +
		0.0518*cosDeg(135.0+477198.87*t) +
		0.0095*cosDeg(259.3-413335.36*t) +
		0.0078*cosDeg(235.7+890534.22*t) +
		0.0028*cosDeg(269.9+954397.74*t)

	r := earthRadiusM / math.Sin(parallax*Deg2Rad)
	sl, cl := math.Sincos(lambda * Deg2Rad)
	sb, cb := math.Sincos(beta * Deg2Rad)
	ecl := Vec3{X: r * cb * cl, Y: r * cb * sl, Z: r * sb}
	return R1(-MeanObliquity(t)).Apply(ecl)
}

// EclipticMatrix rotates J2000 equatorial axes onto J2000 ecliptic axes.
func EclipticMatrix() Mat3 {
	return R1(j2000Obliq)
}
