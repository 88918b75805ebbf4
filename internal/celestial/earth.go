package celestial

import (
	"math"

	"github.com/talgya/metaverse/internal/timescale"
)

// EarthRotationAngle returns the ERA in radians for a UT1 Julian date.
func EarthRotationAngle(jdUT1 float64) float64 {
	du := jdUT1 - timescale.J2000
	return normAngle(twoPi * (0.7790572732640 + 1.00273781191135448*du))
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU 1982) for a UT1 Julian date.
func GMST(jdUT1 float64) float64 {
	t := timescale.JulianCenturies(jdUT1)
	sec := 67310.54841 + (876600*3600+8640184.812866)*t + 0.093104*t*t - 6.2e-6*t*t*t
	return normAngle(sec * twoPi / 86400)
}

// MeanObliquity returns the IAU 1980 mean obliquity of the ecliptic in radians for TT centuries.
func MeanObliquity(t float64) float64 {
	return (84381.448 - 46.8150*t - 0.00059*t*t + 0.001813*t*t*t) * Arcsec2Rad
}

// PrecessionAngles returns the IAU 1976 angles zeta, theta, z in radians for TT centuries.
func PrecessionAngles(t float64) (zeta, theta, z float64) {
	t2, t3 := t*t, t*t*t
	zeta = (2306.2181*t + 0.30188*t2 + 0.017998*t3) * Arcsec2Rad
	theta = (2004.3109*t - 0.42665*t2 - 0.041833*t3) * Arcsec2Rad
	z = (2306.2181*t + 1.09468*t2 + 0.018203*t3) * Arcsec2Rad
	return zeta, theta, z
}

// PrecessionMatrix rotates mean-of-date coordinates to the J2000 mean equator.
func PrecessionMatrix(t float64) Mat3 {
	zeta, theta, z := PrecessionAngles(t)
	return Chain(R3(zeta), R2(-theta), R3(z))
}

// nutationTerm is one row of the IAU 1980 series. Multipliers apply to the
// fundamental arguments l, l', F, D, Ω; coefficients are in 0.0001".
type nutationTerm struct {
	l, lp, f, d, om int
	psi, psiT       float64
	eps, epsT       float64
}

// The ten largest terms of the 106-term IAU 1980 series.
var nutationSeries = [10]nutationTerm{
	{0, 0, 0, 0, 1, -171996, -174.2, 92025, 8.9},
	{0, 0, 2, -2, 2, -13187, -1.6, 5736, -3.1},
	{0, 0, 2, 0, 2, -2274, -0.2, 977, -0.5},
	{0, 0, 0, 0, 2, 2062, 0.2, -895, 0.5},
	{0, 1, 0, 0, 0, 1426, -3.4, 54, -0.1},
	{1, 0, 0, 0, 0, 712, 0.1, -7, 0},
	{0, 1, 2, -2, 2, -517, 1.2, 224, -0.6},
	{0, 0, 2, 0, 1, -386, -0.4, 200, 0},
	{1, 0, 2, 0, 2, -301, 0, 129, -0.1},
	{0, -1, 2, -2, 2, 217, -0.5, -95, 0.3},
}

// fundamentalArgs returns l, l', F, D, Ω in radians for TT centuries.
func fundamentalArgs(t float64) [5]float64 {
	t2, t3 := t*t, t*t*t
	deg := func(base, a, b, c float64) float64 {
		return normAngle((base + (a*t+b*t2+c*t3)/3600) * Deg2Rad)
	}
	return [5]float64{
		deg(134.96340251, 1717915923.2178, 31.8792, 0.051635),
		deg(357.52910918, 129596581.0481, -0.5532, 0.000136),
		deg(93.27209062, 1739527262.8478, -12.7512, -0.001037),
		deg(297.85019547, 1602961601.2090, -6.3706, 0.006593),
		deg(125.04455501, -6962890.2665, 7.4722, 0.007702),
	}
}

// Nutation returns the nutation in longitude and obliquity in radians for TT centuries.
func Nutation(t float64) (dpsi, deps float64) {
	a := fundamentalArgs(t)
	for _, n := range nutationSeries {
		arg := float64(n.l)*a[0] + float64(n.lp)*a[1] + float64(n.f)*a[2] + float64(n.d)*a[3] + float64(n.om)*a[4]
		s, c := math.Sincos(arg)
		dpsi += (n.psi + n.psiT*t) * s
		deps += (n.eps + n.epsT*t) * c
	}
	return dpsi * 1e-4 * Arcsec2Rad, deps * 1e-4 * Arcsec2Rad
}

// NutationMatrix rotates true-of-date coordinates to the mean equator of date.
func NutationMatrix(t float64) Mat3 {
	eps := MeanObliquity(t)
	dpsi, deps := Nutation(t)
	return Chain(R1(-eps), R3(dpsi), R1(eps+deps))
}

// EquationOfEquinoxes returns GAST - GMST in radians for TT centuries.
func EquationOfEquinoxes(t float64) float64 {
	eps := MeanObliquity(t)
	dpsi, _ := Nutation(t)
	om := fundamentalArgs(t)[4]
	return dpsi*math.Cos(eps) + (0.00264*math.Sin(om)+0.000063*math.Sin(2*om))*Arcsec2Rad
}

// GAST returns Greenwich Apparent Sidereal Time in radians.
func GAST(jdUT1, tTT float64) float64 {
	return normAngle(GMST(jdUT1) + EquationOfEquinoxes(tTT))
}

// PolarMotionMatrix rotates Earth-fixed coordinates onto the terrestrial
// intermediate frame. xp and yp are in arcseconds.
func PolarMotionMatrix(xp, yp float64) Mat3 {
	return R2(xp * Arcsec2Rad).Mul(R1(yp * Arcsec2Rad))
}

// EarthRotationMatrix rotates the terrestrial intermediate frame by the sidereal angle.
func EarthRotationMatrix(theta float64) Mat3 {
	return R3(-theta)
}
