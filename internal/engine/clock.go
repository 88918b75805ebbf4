package engine

import (
	"time"

	"github.com/talgya/metaverse/internal/timescale"
)

// Clock maps ticks onto civil time: tick n happens at Epoch + n×TickDuration UTC.
type Clock struct {
	Epoch time.Time
	conv  *timescale.Converter
}

// NewClock anchors tick zero at epoch. A nil converter uses the built-in tables.
func NewClock(epoch time.Time, conv *timescale.Converter) Clock {
	if conv == nil {
		conv = timescale.NewConverter(nil, nil)
	}
	return Clock{Epoch: epoch.UTC(), conv: conv}
}

// UTC returns the civil time of a tick.
func (c Clock) UTC(tick uint64) time.Time {
	return c.Epoch.Add(time.Duration(tick) * TickDuration)
}

// Instant returns a tick as a UTC instant.
func (c Clock) Instant(tick uint64) timescale.Instant {
	return timescale.At(timescale.UTC, c.UTC(tick))
}

// TickAt returns the last tick at or before utc; times before the epoch map to zero.
func (c Clock) TickAt(utc time.Time) uint64 {
	d := utc.Sub(c.Epoch)
	if d <= 0 {
		return 0
	}
	return uint64(d / TickDuration)
}

// Converter returns the converter the clock reads scales from.
func (c Clock) Converter() *timescale.Converter {
	return c.conv
}

// Times returns a tick expressed on every time scale.
func (c Clock) Times(tick uint64) map[timescale.Scale]time.Time {
	utc := c.Instant(tick)
	out := make(map[timescale.Scale]time.Time, len(timescale.Scales))
	for _, s := range timescale.Scales {
		out[s] = c.conv.Convert(utc, s).Time
	}
	return out
}
