package timescale

import (
	"math"
	"time"
)

// Fixed offsets between scales.
const (
	TTMinusTAI  = 32184 * time.Millisecond
	TAIMinusGPS = 19 * time.Second
)

// EOPSource supplies UT1 - UTC for a UTC instant, in seconds.
type EOPSource interface {
	DUT1(utc time.Time) float64
}

type zeroEOP struct{}

func (zeroEOP) DUT1(time.Time) float64 { return 0 }

// Converter converts instants between scales. It holds no mutable state; the
// leap and EOP sources it reads from may be swapped underneath by their owner.
type Converter struct {
	leaps LeapSource
	eop   EOPSource
}

// NewConverter builds a converter. A nil leaps uses the built-in table and a
// nil eop treats DUT1 as zero.
func NewConverter(leaps LeapSource, eop EOPSource) *Converter {
	if leaps == nil {
		leaps = DefaultLeapTable()
	}
	if eop == nil {
		eop = zeroEOP{}
	}
	return &Converter{leaps: leaps, eop: eop}
}

// LeapSeconds returns TAI - UTC at a UTC instant.
func (c *Converter) LeapSeconds(utc time.Time) int {
	return c.leaps.LeapSeconds(utc)
}

// DUT1 returns UT1 - UTC at a UTC instant, in seconds.
func (c *Converter) DUT1(utc time.Time) float64 {
	return c.eop.DUT1(utc)
}

// Convert re-labels in on the target scale. Same-scale conversion returns in unchanged.
// All paths go through TAI except UT1, which hangs off UTC. It panics if
// either scale is not Valid; external names go through ParseScale first.
func (c *Converter) Convert(in Instant, to Scale) Instant {
	if in.Scale == to {
		return in
	}
	tai := c.toTAI(in)
	return Instant{Scale: to, Time: c.fromTAI(tai, to)}
}

func (c *Converter) toTAI(in Instant) time.Time {
	switch in.Scale {
	case UTC:
		return c.UTCToTAI(in.Time)
	case TAI:
		return in.Time
	case TT:
		return in.Time.Add(-TTMinusTAI)
	case TDB:
		return tdbToTT(in.Time).Add(-TTMinusTAI)
	case UT1:
		return c.UTCToTAI(c.UT1ToUTC(in.Time))
	case GPS:
		return in.Time.Add(TAIMinusGPS)
	default:
		panic("timescale: unknown scale " + in.Scale.String())
	}
}

func (c *Converter) fromTAI(tai time.Time, to Scale) time.Time {
	switch to {
	case UTC:
		return c.TAIToUTC(tai)
	case TAI:
		return tai
	case TT:
		return tai.Add(TTMinusTAI)
	case TDB:
		return ttToTDB(tai.Add(TTMinusTAI))
	case UT1:
		return c.UTCToUT1(c.TAIToUTC(tai))
	case GPS:
		return tai.Add(-TAIMinusGPS)
	default:
		panic("timescale: unknown scale " + to.String())
	}
}

// UTCToTAI adds the leap second count in force at utc.
func (c *Converter) UTCToTAI(utc time.Time) time.Time {
	return utc.Add(time.Duration(c.leaps.LeapSeconds(utc)) * time.Second)
}

// TAIToUTC removes the leap second count. The count is looked up on the UTC
// side so instants just before a leap boundary round-trip exactly.
func (c *Converter) TAIToUTC(tai time.Time) time.Time {
	guess := tai.Add(-time.Duration(c.leaps.LeapSeconds(tai)) * time.Second)
	return tai.Add(-time.Duration(c.leaps.LeapSeconds(guess)) * time.Second)
}

// UTCToTT returns TT for a UTC instant.
func (c *Converter) UTCToTT(utc time.Time) time.Time {
	return c.UTCToTAI(utc).Add(TTMinusTAI)
}

// UTCToTDB returns TDB for a UTC instant.
func (c *Converter) UTCToTDB(utc time.Time) time.Time {
	return ttToTDB(c.UTCToTT(utc))
}

// UTCToGPS returns GPS time for a UTC instant.
func (c *Converter) UTCToGPS(utc time.Time) time.Time {
	return c.UTCToTAI(utc).Add(-TAIMinusGPS)
}

// UTCToUT1 applies DUT1.
func (c *Converter) UTCToUT1(utc time.Time) time.Time {
	return utc.Add(secondsToDuration(c.eop.DUT1(utc)))
}

// UT1ToUTC removes DUT1. DUT1 is indexed by UTC, so it is evaluated once at
// the UT1 label and again at the resulting guess.
func (c *Converter) UT1ToUTC(ut1 time.Time) time.Time {
	guess := ut1.Add(-secondsToDuration(c.eop.DUT1(ut1)))
	return ut1.Add(-secondsToDuration(c.eop.DUT1(guess)))
}

// TDBMinusTT returns the periodic TDB correction in seconds for a TT Julian date.
func TDBMinusTT(jdTT float64) float64 {
	g := (357.53 + 0.98560028*(jdTT-J2000)) * math.Pi / 180
	return 0.001657*math.Sin(g) + 0.000014*math.Sin(2*g)
}

func ttToTDB(tt time.Time) time.Time {
	return tt.Add(secondsToDuration(TDBMinusTT(JulianDate(tt))))
}

func tdbToTT(tdb time.Time) time.Time {
	return tdb.Add(-secondsToDuration(TDBMinusTT(JulianDate(tdb))))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
