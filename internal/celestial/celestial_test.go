package celestial

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/timescale"
)

type fixedPole struct{ xp, yp float64 }

func (f fixedPole) PolarMotion(time.Time) (float64, float64) { return f.xp, f.yp }

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func vecNear(a, b Vec3, tol float64) bool {
	return a.Sub(b).Norm() <= tol
}

var testSite = Geodetic{Lat: 19.4, Lon: -155.3, Height: 1200}

func testTransformer(opts Options) *Transformer {
	return NewTransformer(timescale.NewConverter(nil, nil), fixedPole{0.1, 0.3}, opts, testSite)
}

func TestRotations_AreOrthonormal(t *testing.T) {
	for _, m := range []Mat3{R1(0.3), R2(-1.2), R3(2.5), NutationMatrix(0.2), PrecessionMatrix(-0.4)} {
		p := m.Mul(m.T())
		id := Identity()
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if !near(p[i][j], id[i][j], 1e-12) {
					t.Fatalf("m·mᵀ[%d][%d] = %g", i, j, p[i][j])
				}
			}
		}
	}
}

func TestSiderealAngles_AtJ2000(t *testing.T) {
	want := 280.46061837 * Deg2Rad
	if got := GMST(timescale.J2000); !near(got, want, 1e-8) {
		t.Errorf("GMST(J2000) = %.9f, want %.9f", got, want)
	}
	if got := EarthRotationAngle(timescale.J2000); !near(got, twoPi*0.7790572732640, 1e-12) {
		t.Errorf("ERA(J2000) = %.12f", got)
	}
}

func TestNutation_AtJ2000(t *testing.T) {
	dpsi, deps := Nutation(0)
	if got := dpsi / Arcsec2Rad; !near(got, -13.93, 0.3) {
		t.Errorf("dpsi = %.3f\", want about -13.93\"", got)
	}
	if got := deps / Arcsec2Rad; !near(got, -5.77, 0.3) {
		t.Errorf("deps = %.3f\", want about -5.77\"", got)
	}
}

func TestChain_IsPNRW(t *testing.T) {
	tr := testTransformer(DefaultOptions())
	at := timescale.At(timescale.UTC, time.Date(2024, time.March, 20, 3, 6, 0, 0, time.UTC))
	c := tr.ChainAt(at)

	manual := c.Precession.Mul(c.Nutation).Mul(c.Rotation).Mul(c.Polar)
	got := c.ECEFToECI()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !near(got[i][j], manual[i][j], 1e-15) {
				t.Fatalf("chain mismatch at [%d][%d]", i, j)
			}
		}
	}
}

func TestECEFToECI_BareRotationUsesERA(t *testing.T) {
	tr := testTransformer(Options{Rotation: ModelERA})
	utc := time.Date(2022, time.October, 1, 6, 0, 0, 0, time.UTC)
	at := timescale.At(timescale.UTC, utc)

	theta := EarthRotationAngle(timescale.JulianDate(utc))
	got := tr.ECEFToECI(Vec3{X: WGS84A}, at)
	want := Vec3{X: WGS84A * math.Cos(theta), Y: WGS84A * math.Sin(theta)}
	if !vecNear(got, want, 1e-6) {
		t.Errorf("ECEFToECI = %+v, want %+v", got, want)
	}
}

func TestECEFToECI_RoundTrip(t *testing.T) {
	at := timescale.At(timescale.TT, time.Date(2025, time.May, 5, 17, 30, 0, 0, time.UTC))
	r := Vec3{X: 4.1e6, Y: -2.3e6, Z: 4.4e6}

	for _, opts := range []Options{
		DefaultOptions(),
		{Rotation: ModelERA},
		{PolarMotion: true, Rotation: ModelGMST},
	} {
		tr := testTransformer(opts)
		back := tr.ECIToECEF(tr.ECEFToECI(r, at), at)
		if !vecNear(back, r, 1e-6) {
			t.Errorf("opts %+v: round trip drifted %g m", opts, back.Sub(r).Norm())
		}
	}
}

func TestPrecessionNutation_MovesPole(t *testing.T) {
	at := timescale.At(timescale.UTC, time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC))
	pole := Vec3{Z: 6.356e6}

	full := testTransformer(DefaultOptions()).ECEFToECI(pole, at)
	bare := testTransformer(Options{Rotation: ModelGMST}).ECEFToECI(pole, at)

	// Three decades of precession tilt the pole by roughly 0.17°.
	angle := math.Acos(full.Unit().Dot(bare.Unit())) / Deg2Rad
	if angle < 0.1 || angle > 0.25 {
		t.Errorf("pole shift = %.4f°, want about 0.17°", angle)
	}
}

func TestGeodetic_RoundTrip(t *testing.T) {
	points := []Geodetic{
		{Lat: 0, Lon: 0, Height: 0},
		{Lat: 45, Lon: 90, Height: 1000},
		{Lat: -33.9, Lon: 151.2, Height: 58},
		{Lat: 89.9999, Lon: -10, Height: 3000},
		{Lat: -60, Lon: -179.5, Height: -400},
	}
	for _, g := range points {
		back := GeodeticFromECEF(g.ToECEF())
		if !near(back.Lat, g.Lat, 1e-9) || !near(back.Height, g.Height, 1e-4) {
			t.Errorf("round trip %+v -> %+v", g, back)
		}
		if math.Abs(g.Lat) < 89 && !near(back.Lon, g.Lon, 1e-9) {
			t.Errorf("longitude %+v -> %+v", g, back)
		}
	}

	northPole := GeodeticFromECEF(Vec3{Z: wgs84B + 10})
	if northPole.Lat != 90 || !near(northPole.Height, 10, 1e-6) {
		t.Errorf("pole = %+v", northPole)
	}
}

func TestHorizontal_Zenith(t *testing.T) {
	up := Geodetic{Lat: testSite.Lat, Lon: testSite.Lon, Height: testSite.Height + 5000}
	enu := ENUMatrix(testSite).Apply(up.ToECEF().Sub(testSite.ToECEF()))
	h := HorizontalFromENU(enu)
	if !near(h.Elevation, 90, 1e-6) || !near(h.Range, 5000, 1e-3) {
		t.Errorf("zenith = %+v", h)
	}

	east := HorizontalFromENU(Vec3{X: 1})
	if !near(east.Azimuth, 90, 1e-12) || east.Elevation != 0 {
		t.Errorf("east = %+v", east)
	}
}

func TestConvertHeight(t *testing.T) {
	lat, lon := 45.0, 0.0
	n := GeoidUndulation(lat, lon)
	if !near(n, geoidAmplitude, 1e-9) {
		t.Errorf("undulation at 45N,0E = %f", n)
	}
	if GeoidUndulation(0, 30) != 0 {
		t.Error("undulation at equator should be zero")
	}

	h, err := ConvertHeight(100, contract.MSL, contract.Ellipsoid, lat, lon)
	if err != nil || !near(h, 100+n, 1e-9) {
		t.Errorf("MSL->ELLIPSOID = %f, %v", h, err)
	}
	back, err := ConvertHeight(h, contract.Ellipsoid, contract.Geoid, lat, lon)
	if err != nil || !near(back, 100, 1e-9) {
		t.Errorf("ELLIPSOID->GEOID = %f, %v", back, err)
	}
	if _, err := ConvertHeight(0, contract.HeightDatum(7), contract.MSL, 0, 0); !errors.Is(err, contract.ErrUnknownDatum) {
		t.Errorf("bad datum error = %v", err)
	}
}

func TestSunPosition_Solstice(t *testing.T) {
	jd := timescale.JulianDate(time.Date(2024, time.June, 20, 20, 51, 0, 0, time.UTC))
	sun := SunPosition(jd)
	dec := math.Asin(sun.Z/sun.Norm()) / Deg2Rad
	if !near(dec, 23.44, 0.05) {
		t.Errorf("solstice declination = %.3f", dec)
	}
	if d := sun.Norm() / AU; d < 1.01 || d > 1.02 {
		t.Errorf("solstice distance = %.4f AU", d)
	}
}

func TestMoonPosition_Distance(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 60; d += 3 {
		km := MoonPosition(timescale.JulianDate(start.AddDate(0, 0, d))).Norm() / 1000
		if km < 350000 || km > 410000 {
			t.Errorf("day %d: moon distance %.0f km", d, km)
		}
	}
}

func TestTransform_RoundTripsEveryFrame(t *testing.T) {
	tr := testTransformer(DefaultOptions())
	vc := contract.NewContext(contract.ModeStrict, nil)
	at := timescale.At(timescale.TT, time.Date(2024, time.September, 9, 9, 9, 9, 0, time.UTC))
	start := Position{
		R:        Vec3{X: 7.0e6, Y: 1.0e5, Z: -2.0e6},
		Contract: contract.Must(contract.ECI, timescale.TT, nil, map[string]float64{contract.TolPositionM: 1e-3}),
	}

	for _, f := range contract.Frames {
		t.Run(f.String(), func(t *testing.T) {
			there, err := tr.Transform(vc, start, f, at)
			if err != nil {
				t.Fatalf("Transform to %v: %v", f, err)
			}
			if there.Contract.Frame() != f {
				t.Errorf("contract frame = %v", there.Contract.Frame())
			}
			back, err := tr.Transform(vc, there, contract.ECI, at)
			if err != nil {
				t.Fatalf("Transform back: %v", err)
			}
			// Heliocentric hops go through 1 AU magnitudes.
			tol := 1e-3
			if f == contract.HeliocentricEcliptic || f == contract.ICRFBarycentric {
				tol = 1e-1
			}
			if !vecNear(back.R, start.R, tol) {
				t.Errorf("round trip drifted %g m", back.R.Sub(start.R).Norm())
			}
		})
	}
}

func TestTransform_TopocentricSeesSiteAtOrigin(t *testing.T) {
	tr := testTransformer(DefaultOptions())
	vc := contract.NewContext(contract.ModeStrict, nil)
	at := timescale.At(timescale.UTC, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))

	site := Position{R: testSite.ToECEF(), Contract: contract.Must(contract.ECEF, timescale.UTC, nil, nil)}
	topo, err := tr.Transform(vc, site, contract.Topocentric, at)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if topo.R.Norm() > 1e-6 {
		t.Errorf("site in its own topocentric frame = %+v", topo.R)
	}
}

func TestTransform_ScaleMismatch(t *testing.T) {
	tr := testTransformer(DefaultOptions())
	pos := Position{R: Vec3{X: 1}, Contract: contract.Must(contract.ECEF, timescale.UTC, nil, nil)}
	at := timescale.At(timescale.TT, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))

	strict := contract.NewContext(contract.ModeStrict, nil)
	if _, err := tr.Transform(strict, pos, contract.ECI, at); !errors.Is(err, contract.ErrIncompatible) {
		t.Errorf("strict mode error = %v", err)
	}

	warn := contract.NewContext(contract.ModeWarn, nil)
	if _, err := tr.Transform(warn, pos, contract.ECI, at); err != nil {
		t.Errorf("warn mode error = %v", err)
	}
	if len(warn.Findings()) != 1 {
		t.Errorf("warn findings = %d", len(warn.Findings()))
	}
}

func TestSeparation(t *testing.T) {
	vc := contract.NewContext(contract.ModeStrict, nil)
	eci := contract.Must(contract.ECI, timescale.TT, nil, nil)
	a := Position{R: Vec3{X: 3}, Contract: eci}
	b := Position{R: Vec3{Y: 4}, Contract: eci}

	d, err := Separation(vc, a, b)
	if err != nil || d != 5 {
		t.Errorf("Separation = %v, %v", d, err)
	}

	c := Position{R: Vec3{}, Contract: eci.WithFrame(contract.MoonCentered)}
	if _, err := Separation(vc, a, c); !errors.Is(err, ErrFrameDiffers) {
		t.Errorf("frame differs error = %v", err)
	}
	e := Position{R: Vec3{}, Contract: eci.WithFrame(contract.ECEF)}
	if _, err := Separation(vc, a, e); !errors.Is(err, contract.ErrIncompatible) {
		t.Errorf("frame class error = %v", err)
	}
}
