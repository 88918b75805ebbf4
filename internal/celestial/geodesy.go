package celestial

import (
	"fmt"
	"math"

	"github.com/talgya/metaverse/internal/contract"
)

// WGS-84 ellipsoid.
const (
	WGS84A  = 6378137.0
	WGS84F  = 1 / 298.257223563
	wgs84E2 = WGS84F * (2 - WGS84F)
	wgs84B  = WGS84A * (1 - WGS84F)
)

// geoidAmplitude is the peak undulation of the placeholder geoid, in meters.
// The real EGM96 undulation ranges roughly -107m..+85m; this sinusoid only
// keeps datum conversions non-trivial.
const geoidAmplitude = 30.0

// Geodetic is a WGS-84 position. Lat and Lon are degrees, Height is meters
// above the ellipsoid.
type Geodetic struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Height float64 `json:"height"`
}

// ToECEF converts a geodetic position to Earth-fixed Cartesian meters.
func (g Geodetic) ToECEF() Vec3 {
	lat, lon := g.Lat*Deg2Rad, g.Lon*Deg2Rad
	sLat, cLat := math.Sincos(lat)
	sLon, cLon := math.Sincos(lon)
	n := WGS84A / math.Sqrt(1-wgs84E2*sLat*sLat)
	return Vec3{
		X: (n + g.Height) * cLat * cLon,
		Y: (n + g.Height) * cLat * sLon,
		Z: (n*(1-wgs84E2) + g.Height) * sLat,
	}
}

// GeodeticFromECEF inverts ToECEF by fixed-point iteration on latitude.
func GeodeticFromECEF(r Vec3) Geodetic {
	p := math.Hypot(r.X, r.Y)
	lon := math.Atan2(r.Y, r.X)

	if p < 1e-6 {
		lat := 90.0
		if r.Z < 0 {
			lat = -lat
		}
		return Geodetic{Lat: lat, Lon: 0, Height: math.Abs(r.Z) - wgs84B}
	}

	lat := math.Atan2(r.Z, p*(1-wgs84E2))
	for i := 0; i < 8; i++ {
		s := math.Sin(lat)
		n := WGS84A / math.Sqrt(1-wgs84E2*s*s)
		h := ellipsoidHeight(p, r.Z, lat)
		next := math.Atan2(r.Z, p*(1-wgs84E2*n/(n+h)))
		if math.Abs(next-lat) < 1e-14 {
			lat = next
			break
		}
		lat = next
	}
	return Geodetic{Lat: lat / Deg2Rad, Lon: lon / Deg2Rad, Height: ellipsoidHeight(p, r.Z, lat)}
}

// ellipsoidHeight is stable at every latitude, unlike p/cos(lat) - N.
func ellipsoidHeight(p, z, lat float64) float64 {
	s, c := math.Sincos(lat)
	return p*c + z*s - WGS84A*math.Sqrt(1-wgs84E2*s*s)
}

// ENUMatrix rotates Earth-fixed offsets into east/north/up axes at a site.
func ENUMatrix(site Geodetic) Mat3 {
	sLat, cLat := math.Sincos(site.Lat * Deg2Rad)
	sLon, cLon := math.Sincos(site.Lon * Deg2Rad)
	return Mat3{
		{-sLon, cLon, 0},
		{-sLat * cLon, -sLat * sLon, cLat},
		{cLat * cLon, cLat * sLon, sLat},
	}
}

// Horizontal is a topocentric direction. Angles are degrees; azimuth is
// measured from north through east.
type Horizontal struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Range     float64 `json:"range"`
}

// HorizontalFromENU converts an east/north/up vector to azimuth, elevation and range.
func HorizontalFromENU(enu Vec3) Horizontal {
	rng := enu.Norm()
	if rng == 0 {
		return Horizontal{}
	}
	az := math.Atan2(enu.X, enu.Y)
	if az < 0 {
		az += twoPi
	}
	return Horizontal{
		Azimuth:   az / Deg2Rad,
		Elevation: math.Asin(math.Max(-1, math.Min(1, enu.Z/rng))) / Deg2Rad,
		Range:     rng,
	}
}

// GeoidUndulation returns the placeholder geoid height above the ellipsoid in meters.
func GeoidUndulation(lat, lon float64) float64 {
	return geoidAmplitude * math.Sin(2*lat*Deg2Rad) * math.Cos(lon*Deg2Rad)
}

// ConvertHeight re-expresses a height at (lat, lon) from one datum to another.
// MSL is approximated by the geoid.
func ConvertHeight(h float64, from, to contract.HeightDatum, lat, lon float64) (float64, error) {
	ellipsoidal, err := toEllipsoidal(h, from, lat, lon)
	if err != nil {
		return 0, err
	}
	switch to {
	case contract.Ellipsoid:
		return ellipsoidal, nil
	case contract.Geoid, contract.MSL:
		return ellipsoidal - GeoidUndulation(lat, lon), nil
	default:
		return 0, fmt.Errorf("%w: %d", contract.ErrUnknownDatum, uint8(to))
	}
}

func toEllipsoidal(h float64, from contract.HeightDatum, lat, lon float64) (float64, error) {
	switch from {
	case contract.Ellipsoid:
		return h, nil
	case contract.Geoid, contract.MSL:
		return h + GeoidUndulation(lat, lon), nil
	default:
		return 0, fmt.Errorf("%w: %d", contract.ErrUnknownDatum, uint8(from))
	}
}
