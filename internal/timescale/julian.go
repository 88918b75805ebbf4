package timescale

import (
	"math"
	"time"
)

const (
	J2000          = 2451545.0 // Julian date of 2000-01-01 12:00 TT
	unixEpochJD    = 2440587.5 // Julian date of 1970-01-01 00:00
	mjdOffset      = 2400000.5
	secondsPerDay  = 86400.0
	daysPerCentury = 36525.0
)

// JulianDate returns the Julian date of a time label, ignoring its scale.
func JulianDate(t time.Time) float64 {
	sec := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return unixEpochJD + sec/secondsPerDay
}

// FromJulianDate converts a Julian date back to a time label.
func FromJulianDate(jd float64) time.Time {
	days := jd - unixEpochJD
	whole, frac := math.Modf(days * secondsPerDay)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// ModifiedJulianDate returns JD - 2400000.5.
func ModifiedJulianDate(t time.Time) float64 {
	return JulianDate(t) - mjdOffset
}

// JulianCenturies returns Julian centuries since J2000 for a Julian date.
func JulianCenturies(jd float64) float64 {
	return (jd - J2000) / daysPerCentury
}

// JD returns the Julian date of the instant on its own scale.
func (i Instant) JD() float64 {
	return JulianDate(i.Time)
}
