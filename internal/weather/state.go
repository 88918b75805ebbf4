package weather

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/metaverse/internal/world"
)

// Condition is the sky state the machine is in.
type Condition uint8

const (
	Clear Condition = iota
	Cloudy
	Rain
	Snow
	Storm
	Fog
)

// AllConditions lists every condition in declaration order.
var AllConditions = []Condition{Clear, Cloudy, Rain, Snow, Storm, Fog}

func (c Condition) String() string {
	switch c {
	case Clear:
		return "clear"
	case Cloudy:
		return "cloudy"
	case Rain:
		return "rain"
	case Snow:
		return "snow"
	case Storm:
		return "storm"
	case Fog:
		return "fog"
	default:
		return fmt.Sprintf("Condition(%d)", uint8(c))
	}
}

// MarshalText encodes the condition by name.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a condition name.
func (c *Condition) UnmarshalText(b []byte) error {
	for _, v := range AllConditions {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown weather condition %q", b)
}

// precipitating conditions turn to snow below freezing.
func (c Condition) precipitating() bool {
	return c == Rain || c == Snow
}

// Tuning holds the weather machine's knobs.
type Tuning struct {
	ChangeChance    float64 `yaml:"change_chance"`    // Per step probability of leaving the current condition
	BaseTempC       float64 `yaml:"base_temp_c"`      // Mean air temperature
	DailySwingC     float64 `yaml:"daily_swing_c"`    // Peak departure from the mean with the Sun
	LightningChance float64 `yaml:"lightning_chance"` // Per step strike probability at full storm intensity
	MaxStrikes      int     `yaml:"max_strikes"`      // Per step
	StrikeTTL       uint64  `yaml:"strike_ttl"`       // Ticks a strike stays visible
}

// DefaultTuning returns mild island weather.
func DefaultTuning() Tuning {
	return Tuning{
		ChangeChance:    0.04,
		BaseTempC:       14,
		DailySwingC:     6,
		LightningChance: 0.35,
		MaxStrikes:      3,
		StrikeTTL:       12,
	}
}

// transitions weights the next condition when the machine changes.
// Snow is reached through Rain when the air is freezing.
var transitions = map[Condition][]weighted{
	Clear:  {{Cloudy, 6}, {Fog, 2}},
	Cloudy: {{Clear, 4}, {Rain, 4}, {Storm, 1}, {Fog, 1}},
	Rain:   {{Cloudy, 5}, {Storm, 2}, {Clear, 1}},
	Snow:   {{Cloudy, 5}, {Storm, 1}, {Clear, 1}},
	Storm:  {{Rain, 5}, {Cloudy, 3}},
	Fog:    {{Clear, 5}, {Cloudy, 3}},
}

type weighted struct {
	next   Condition
	weight int
}

// State is the current weather. Wind is a horizontal vector in m/s along the
// scene's east (X) and north (Z) axes.
type State struct {
	Condition   Condition `json:"condition"`
	Intensity   float64   `json:"intensity"` // 0..1
	TempC       float64   `json:"temp_c"`
	WindX       float64   `json:"wind_x"`
	WindZ       float64   `json:"wind_z"`
	Since       uint64    `json:"since"` // Tick the condition began
	Description string    `json:"description"`
	Live        bool      `json:"live"` // Steered by real conditions
}

// WindSpeed returns the wind magnitude in m/s.
func (s State) WindSpeed() float64 {
	return math.Hypot(s.WindX, s.WindZ)
}

// Strike is a lightning hit at a horizontal position.
type Strike struct {
	At world.Point `json:"at"`
}

// Machine advances the weather. It is not safe for concurrent use; the
// engine steps it under the simulation lock.
type Machine struct {
	rng    *rand.Rand
	tuning Tuning
	extent float64
	state  State
	windTo float64 // Radians, direction the wind blows toward
}

// NewMachine creates a machine in clear weather. extent bounds strike
// positions to [0, extent] on both axes.
func NewMachine(seed int64, t Tuning, extent float64) *Machine {
	m := &Machine{
		rng:    rand.New(rand.NewSource(seed + 300)),
		tuning: t,
		extent: extent,
	}
	m.windTo = m.rng.Float64() * 2 * math.Pi
	m.state = State{Condition: Clear, Intensity: 0.2, TempC: t.BaseTempC}
	m.settle()
	return m
}

// State returns the current weather.
func (m *Machine) State() State {
	return m.state
}

// Tuning returns the machine's knobs.
func (m *Machine) Tuning() Tuning {
	return m.tuning
}

// Restore replaces the current weather, e.g. from a snapshot.
func (m *Machine) Restore(s State) {
	m.state = s
	m.windTo = math.Atan2(s.WindZ, s.WindX)
}

// Step advances one sim-minute. sunElevation is the Sun's altitude in degrees
// and drives the diurnal temperature. It returns the lightning strikes of
// this step, if any.
func (m *Machine) Step(tick uint64, sunElevation float64) []Strike {
	s := &m.state
	if !s.Live {
		s.TempC = m.tuning.BaseTempC + m.tuning.DailySwingC*clamp(sunElevation/60, -1, 1)
		if s.Condition == Storm {
			s.TempC -= 3
		}

		if m.rng.Float64() < m.tuning.ChangeChance {
			s.Condition = m.pick(transitions[s.Condition])
			s.Since = tick
			s.Intensity = 0.2 + 0.3*m.rng.Float64()
		} else {
			// Conditions build then ease off.
			s.Intensity = clamp(s.Intensity+(m.rng.Float64()-0.45)*0.1, 0.05, 1)
		}
		m.windTo += (m.rng.Float64() - 0.5) * 0.2
	}

	// Precipitation follows the thermometer in both directions.
	if s.Condition.precipitating() {
		if s.TempC <= 0 {
			s.Condition = Snow
		} else {
			s.Condition = Rain
		}
	}
	m.settle()
	return m.lightning()
}

// Observe steers the machine to real conditions. A nil observation returns
// control to the seeded machine.
func (m *Machine) Observe(c *Conditions, tick uint64) {
	if c == nil {
		m.state.Live = false
		return
	}
	next := FromConditions(c)
	if next != m.state.Condition {
		m.state.Since = tick
	}
	m.state.Condition = next
	m.state.Live = true
	m.state.TempC = c.Temp
	m.state.Intensity = clamp(c.WindSpeed/20+c.Clouds/200, 0.05, 1)
	// Meteorological direction is where the wind comes from, clockwise from north.
	m.windTo = math.Pi/2 - (c.WindDeg+180)*math.Pi/180
	s := &m.state
	s.WindX = c.WindSpeed * math.Cos(m.windTo)
	s.WindZ = c.WindSpeed * math.Sin(m.windTo)
	if c.Description != "" {
		s.Description = c.Description
	} else {
		s.Description = describe(next, s.Intensity)
	}
}

// FromConditions maps real conditions onto a machine condition.
func FromConditions(c *Conditions) Condition {
	switch {
	case c.IsStorm:
		return Storm
	case c.IsSnow:
		return Snow
	case c.IsRain:
		return Rain
	case c.IsFog:
		return Fog
	case c.Clouds > 50:
		return Cloudy
	default:
		return Clear
	}
}

// settle recomputes the derived fields of the seeded state.
func (m *Machine) settle() {
	s := &m.state
	if s.Live {
		return
	}
	speed := baseWind(s.Condition) * (0.5 + s.Intensity)
	s.WindX = speed * math.Cos(m.windTo)
	s.WindZ = speed * math.Sin(m.windTo)
	s.Description = describe(s.Condition, s.Intensity)
}

func (m *Machine) lightning() []Strike {
	if m.state.Condition != Storm || m.extent <= 0 {
		return nil
	}
	var out []Strike
	p := m.tuning.LightningChance * m.state.Intensity
	for len(out) < m.tuning.MaxStrikes && m.rng.Float64() < p {
		out = append(out, Strike{At: world.Point{
			X: m.rng.Float64() * m.extent,
			Z: m.rng.Float64() * m.extent,
		}})
	}
	return out
}

func (m *Machine) pick(options []weighted) Condition {
	total := 0
	for _, o := range options {
		total += o.weight
	}
	r := m.rng.Intn(total)
	for _, o := range options {
		if r < o.weight {
			return o.next
		}
		r -= o.weight
	}
	return options[len(options)-1].next
}

func baseWind(c Condition) float64 {
	switch c {
	case Clear:
		return 2
	case Cloudy:
		return 4
	case Rain:
		return 6
	case Snow:
		return 5
	case Storm:
		return 14
	case Fog:
		return 1
	default:
		return 0
	}
}

func describe(c Condition, intensity float64) string {
	adj := "light"
	switch {
	case intensity > 0.75:
		adj = "heavy"
	case intensity > 0.4:
		adj = "moderate"
	}
	switch c {
	case Clear:
		return "clear skies"
	case Cloudy:
		return adj + " cloud cover"
	case Rain:
		return adj + " rain"
	case Snow:
		return adj + " snow"
	case Storm:
		return adj + " thunderstorm"
	case Fog:
		return adj + " fog"
	default:
		return "fair weather"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
