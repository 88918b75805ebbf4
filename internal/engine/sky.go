package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/timescale"
)

// DayPhase is the lighting regime set by the Sun's altitude.
type DayPhase uint8

const (
	Night    DayPhase = iota // Sun below -12°
	Twilight                 // Sun between -12° and the horizon
	Day                      // Upper limb above the horizon
)

// Horizon altitudes in degrees. Sunrise accounts for refraction and the solar radius.
const (
	sunriseAltitude  = -0.833
	twilightAltitude = -12.0
)

func (p DayPhase) String() string {
	switch p {
	case Night:
		return "night"
	case Twilight:
		return "twilight"
	case Day:
		return "day"
	default:
		return fmt.Sprintf("DayPhase(%d)", uint8(p))
	}
}

// MarshalText encodes the phase by name.
func (p DayPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PhaseFor classifies a solar altitude in degrees.
func PhaseFor(sunAltitude float64) DayPhase {
	switch {
	case sunAltitude >= sunriseAltitude:
		return Day
	case sunAltitude >= twilightAltitude:
		return Twilight
	default:
		return Night
	}
}

// Sky is what an observer at the world site sees overhead.
type Sky struct {
	UTC              time.Time            `json:"utc"`
	Sun              celestial.Horizontal `json:"sun"`
	Moon             celestial.Horizontal `json:"moon"`
	Phase            DayPhase             `json:"phase"`
	MoonIllumination float64              `json:"moon_illumination"` // 0 new to 1 full
}

// ComputeSky evaluates Sun and Moon positions for the transformer's site.
func ComputeSky(tr *celestial.Transformer, at timescale.Instant) Sky {
	sun := tr.SunECI(at)
	moon := tr.MoonECI(at)

	sky := Sky{
		UTC:  tr.Converter().Convert(at, timescale.UTC).Time,
		Sun:  tr.Horizontal(sun, at),
		Moon: tr.Horizontal(moon, at),
	}
	sky.Phase = PhaseFor(sky.Sun.Elevation)

	// Elongation seen from Earth: 0 at new moon, 180° at full.
	cosE := sun.Unit().Dot(moon.Unit())
	sky.MoonIllumination = (1 - math.Max(-1, math.Min(1, cosE))) / 2
	return sky
}
