// Package volcano runs the island's vents through their eruption cycle and
// turns eruptions into lava bombs, lava flows and ash as transient effects.
package volcano

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/effects"
	"github.com/talgya/metaverse/internal/world"
)

// ErrUnknownVent is returned for volcano IDs not in the field.
var ErrUnknownVent = errors.New("unknown volcano")

// Phase is where a vent is in its cycle.
type Phase uint8

const (
	Dormant  Phase = iota // Pressure builds slowly
	Rumbling              // Pressure builds fast, ground shakes
	Erupting              // Bombs and flows, pressure drains
	Cooling               // Quiet until the vent resets
)

func (p Phase) String() string {
	switch p {
	case Dormant:
		return "dormant"
	case Rumbling:
		return "rumbling"
	case Erupting:
		return "erupting"
	case Cooling:
		return "cooling"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, v := range []Phase{Dormant, Rumbling, Erupting, Cooling} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown volcano phase %q", b)
}

// Tuning holds eruption knobs. Rates are per step; the engine steps vents
// once per sim-second.
type Tuning struct {
	PressureRate  float64 `yaml:"pressure_rate"`  // Mean dormant pressure gain
	RumbleAt      float64 `yaml:"rumble_at"`      // Pressure that starts rumbling
	EruptionSteps int     `yaml:"eruption_steps"` // Steps to drain a full chamber
	CoolingSteps  int     `yaml:"cooling_steps"`  // Steps before the vent is dormant again
	BombsPerStep  int     `yaml:"bombs_per_step"` // Upper bound
	BombSpeed     float64 `yaml:"bomb_speed"`     // Launch speed, m/s
	BombLinger    float64 `yaml:"bomb_linger"`    // Seconds a landed bomb glows
	FlowSteps     int     `yaml:"flow_steps"`     // Descent samples a flow may cover
	FlowSeconds   float64 `yaml:"flow_seconds"`   // Seconds a flow segment stays hot
	Gravity       float64 `yaml:"gravity"`        // m/s²
	FlightStep    float64 `yaml:"flight_step"`    // Integration step, seconds
	MaxFlight     float64 `yaml:"max_flight"`     // Seconds before a bomb is dropped in place
}

// DefaultTuning returns a vent that erupts every few sim-hours.
func DefaultTuning() Tuning {
	return Tuning{
		PressureRate:  0.0002,
		RumbleAt:      0.7,
		EruptionSteps: 120,
		CoolingSteps:  600,
		BombsPerStep:  3,
		BombSpeed:     60,
		BombLinger:    20,
		FlowSteps:     80,
		FlowSeconds:   300,
		Gravity:       9.81,
		FlightStep:    0.05,
		MaxFlight:     60,
	}
}

// Ground is the terrain a field of vents stands on. *world.Heightfield satisfies it.
type Ground interface {
	Elevation(x, z float64) float64
	DescentPath(x, z float64, maxSteps int) []world.Point
}

// Volcano is one vent.
type Volcano struct {
	ID         string      `json:"id"`
	Position   world.Point `json:"position"`
	Summit     float64     `json:"summit"` // Vent height, meters
	Phase      Phase       `json:"phase"`
	Pressure   float64     `json:"pressure"` // 0..1, erupts at 1
	PhaseSince uint64      `json:"phase_since"`
	Eruptions  int         `json:"eruptions"`
	CoolSteps  int         `json:"cool_steps,omitempty"`
}

// Transition records a phase change.
type Transition struct {
	Volcano string `json:"volcano"`
	From    Phase  `json:"from"`
	To      Phase  `json:"to"`
	Tick    uint64 `json:"tick"`
}

// Field owns every vent on the map. It is not safe for concurrent use.
type Field struct {
	ground         Ground
	tuning         Tuning
	rng            *rand.Rand
	ticksPerSecond float64
	volcanoes      []*Volcano
}

// NewField places a dormant volcano at each vent.
func NewField(ground Ground, vents []world.Point, seed int64, t Tuning, ticksPerSecond float64) *Field {
	f := &Field{
		ground:         ground,
		tuning:         t,
		rng:            rand.New(rand.NewSource(seed + 400)),
		ticksPerSecond: ticksPerSecond,
	}
	for i, v := range vents {
		f.volcanoes = append(f.volcanoes, &Volcano{
			ID:       fmt.Sprintf("vent-%d", i+1),
			Position: v,
			Summit:   ground.Elevation(v.X, v.Z),
		})
	}
	return f
}

// Volcanoes returns a copy of every vent.
func (f *Field) Volcanoes() []Volcano {
	out := make([]Volcano, len(f.volcanoes))
	for i, v := range f.volcanoes {
		out[i] = *v
	}
	return out
}

// Restore overwrites vent state by ID, e.g. from a snapshot.
func (f *Field) Restore(saved []Volcano) {
	for _, s := range saved {
		if v := f.find(s.ID); v != nil {
			v.Phase, v.Pressure, v.PhaseSince, v.Eruptions = s.Phase, s.Pressure, s.PhaseSince, s.Eruptions
		}
	}
}

// Trigger fills a vent's chamber so it erupts on its next step.
func (f *Field) Trigger(id string) error {
	v := f.find(id)
	if v == nil {
		return fmt.Errorf("%w: %q", ErrUnknownVent, id)
	}
	if v.Phase == Erupting {
		return nil
	}
	v.Pressure = 1
	if v.Phase == Dormant || v.Phase == Cooling {
		v.Phase = Rumbling
	}
	return nil
}

func (f *Field) find(id string) *Volcano {
	for _, v := range f.volcanoes {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Step advances every vent one step, adding eruption products to fx.
func (f *Field) Step(tick uint64, fx *effects.List) []Transition {
	var out []Transition
	for _, v := range f.volcanoes {
		from := v.Phase
		f.advance(v, tick, fx)
		if v.Phase != from {
			v.PhaseSince = tick
			out = append(out, Transition{Volcano: v.ID, From: from, To: v.Phase, Tick: tick})
			slog.Info("volcano phase", "volcano", v.ID, "from", from, "to", v.Phase, "tick", tick)
		}
	}
	return out
}

func (f *Field) advance(v *Volcano, tick uint64, fx *effects.List) {
	t := f.tuning
	switch v.Phase {
	case Dormant:
		v.Pressure += t.PressureRate * (0.5 + f.rng.Float64())
		if v.Pressure >= t.RumbleAt {
			v.Phase = Rumbling
		}
	case Rumbling:
		v.Pressure += 4 * t.PressureRate * (0.5 + f.rng.Float64())
		if v.Pressure >= 1 {
			v.Pressure = 1
			v.Phase = Erupting
			v.Eruptions++
			f.startEruption(v, tick, fx)
		}
	case Erupting:
		f.launchBombs(v, tick, fx)
		v.Pressure -= 1 / float64(max(t.EruptionSteps, 1))
		if v.Pressure <= 0 {
			v.Pressure = 0
			v.Phase = Cooling
			v.CoolSteps = 0
		}
	case Cooling:
		v.CoolSteps++
		if v.CoolSteps >= t.CoolingSteps {
			v.Phase = Dormant
		}
	}
}

// startEruption lays a lava flow down the terrain and raises an ash plume.
func (f *Field) startEruption(v *Volcano, tick uint64, fx *effects.List) {
	t := f.tuning
	plumeTicks := f.ticks(float64(t.EruptionSteps))
	fx.Insert(effects.Effect{
		Kind:     effects.KindAshCloud,
		Position: celestial.Vec3{X: v.Position.X, Y: v.Summit + 500, Z: v.Position.Z},
		Radius:   300,
		Source:   v.ID,
	}, tick, plumeTicks)

	path := f.ground.DescentPath(v.Position.X, v.Position.Z, t.FlowSteps)
	for i, p := range path {
		// Lower segments are reached later and stay hot just as long after.
		delay := f.ticks(float64(i) * 2)
		fx.Insert(effects.Effect{
			Kind:     effects.KindLavaFlow,
			Position: celestial.Vec3{X: p.X, Y: f.ground.Elevation(p.X, p.Z), Z: p.Z},
			Radius:   6,
			Source:   v.ID,
		}, tick, delay+f.ticks(t.FlowSeconds))
	}
}

func (f *Field) launchBombs(v *Volcano, tick uint64, fx *effects.List) {
	t := f.tuning
	if t.BombsPerStep <= 0 {
		return
	}
	n := 1 + f.rng.Intn(t.BombsPerStep)
	origin := celestial.Vec3{X: v.Position.X, Y: v.Summit + 5, Z: v.Position.Z}
	for i := 0; i < n; i++ {
		az := f.rng.Float64() * 2 * math.Pi
		el := (45 + 35*f.rng.Float64()) * celestial.Deg2Rad
		speed := t.BombSpeed * (0.6 + 0.4*f.rng.Float64())
		vel := celestial.Vec3{
			X: speed * math.Cos(el) * math.Cos(az),
			Y: speed * math.Sin(el),
			Z: speed * math.Cos(el) * math.Sin(az),
		}
		landing, flight := Trajectory(f.ground, origin, vel, t.Gravity, t.FlightStep, t.MaxFlight)
		fx.Insert(effects.Effect{
			Kind:     effects.KindLavaBomb,
			Position: landing,
			Velocity: vel,
			Radius:   2,
			Source:   v.ID,
		}, tick, f.ticks(flight+t.BombLinger))
	}
}

func (f *Field) ticks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Ceil(seconds * f.ticksPerSecond))
}

// Trajectory integrates a ballistic flight from origin until it meets the
// ground. It returns the landing point and the flight time in seconds. A
// flight still airborne after maxFlight seconds lands where it is.
func Trajectory(ground Ground, origin, vel celestial.Vec3, gravity, dt, maxFlight float64) (celestial.Vec3, float64) {
	pos := origin
	prev := pos
	elapsed := 0.0
	for elapsed < maxFlight {
		prev = pos
		pos = pos.Add(vel.Scale(dt))
		vel.Y -= gravity * dt
		elapsed += dt

		h := ground.Elevation(pos.X, pos.Z)
		if pos.Y <= h && vel.Y < 0 {
			// Interpolate the crossing between the last two samples.
			hp := ground.Elevation(prev.X, prev.Z)
			above, below := prev.Y-hp, h-pos.Y
			frac := 1.0
			if above+below > 0 {
				frac = above / (above + below)
			}
			land := prev.Add(pos.Sub(prev).Scale(frac))
			land.Y = ground.Elevation(land.X, land.Z)
			return land, elapsed - dt + frac*dt
		}
	}
	pos.Y = ground.Elevation(pos.X, pos.Z)
	return pos, elapsed
}
