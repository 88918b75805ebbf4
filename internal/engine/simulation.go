// Simulation ties together all world systems and runs them each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/effects"
	"github.com/talgya/metaverse/internal/volcano"
	"github.com/talgya/metaverse/internal/weather"
	"github.com/talgya/metaverse/internal/world"
)

// Options configure the systems NewSimulation builds.
type Options struct {
	Seed          int64
	Weather       weather.Tuning
	Volcano       volcano.Tuning
	WeatherClient *weather.Client // Optional; nil keeps weather fully procedural
}

// Simulation holds the complete world state and wires systems together.
// Tick methods and mutators take mu; readers use the accessor methods.
type Simulation struct {
	mu sync.RWMutex

	World       *world.Heightfield
	Clock       Clock
	Transformer *celestial.Transformer
	Contracts   *contract.Context
	Weather     *weather.Machine
	Volcanoes   *volcano.Field
	Effects     *effects.List
	Players     map[string]*Player
	Events      []Event // Recent events, newest last
	LastTick    uint64  // Most recent tick processed
	Stats       SimStats

	weatherClient *weather.Client
	sky           Sky
	origin        world.Point // Scene point under the observer site

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	dropped int
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Eruptions       int `json:"eruptions"`
	Strikes         int `json:"strikes"`
	EffectsExpired  int `json:"effects_expired"`
	PlayerMoves     int `json:"player_moves"`
	RejectedUpdates int `json:"rejected_updates"`
}

// NewSimulation creates a Simulation over a generated world. The observer
// site of tr sits at the centre of the heightfield.
func NewSimulation(hf *world.Heightfield, clock Clock, tr *celestial.Transformer, vc *contract.Context, opts Options) *Simulation {
	if vc == nil {
		vc = contract.NewContext(contract.ModeWarn, nil)
	}
	vents := make([]world.Point, len(hf.Volcanoes))
	for i, v := range hf.Volcanoes {
		vents[i] = hf.ToWorld(v)
	}

	half := hf.Extent() / 2
	s := &Simulation{
		World:         hf,
		Clock:         clock,
		Transformer:   tr,
		Contracts:     vc,
		Weather:       weather.NewMachine(opts.Seed, opts.Weather, hf.Extent()),
		Volcanoes:     volcano.NewField(hf, vents, opts.Seed, opts.Volcano, TicksPerSimSecond),
		Effects:       effects.NewList(),
		Players:       make(map[string]*Player),
		weatherClient: opts.WeatherClient,
		origin:        world.Point{X: half, Z: half},
		subs:          make(map[int]chan Event),
	}
	vc.Register("scene", SceneContract)
	s.sky = ComputeSky(tr, clock.Instant(0))
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// TickFrame runs every tick: effect expiry.
func (s *Simulation) TickFrame(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTick = tick
	s.Stats.EffectsExpired += len(s.Effects.Expire(tick))
}

// TickSecond runs every sim-second: volcano cycles.
func (s *Simulation) TickSecond(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tr := range s.Volcanoes.Step(tick, s.Effects) {
		if tr.To == volcano.Erupting {
			s.Stats.Eruptions++
		}
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s is %s", tr.Volcano, tr.To),
			Category:    CategoryVolcano,
		})
	}
}

// TickMinute runs every sim-minute: sky and weather.
func (s *Simulation) TickMinute(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sky = ComputeSky(s.Transformer, s.Clock.Instant(tick))

	before := s.Weather.State().Condition
	strikes := s.Weather.Step(tick, s.sky.Sun.Elevation)
	if now := s.Weather.State(); now.Condition != before {
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("weather turns to %s", now.Description),
			Category:    CategoryWeather,
		})
	}

	ttl := s.Weather.Tuning().StrikeTTL
	for _, st := range strikes {
		pos := celestial.Vec3{X: st.At.X, Y: s.World.Elevation(st.At.X, st.At.Z), Z: st.At.Z}
		s.Effects.Insert(effects.Effect{Kind: effects.KindLightning, Position: pos, Radius: 1, Source: "storm"}, tick, ttl)
		s.Stats.Strikes++
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("lightning strikes %s at (%.0f, %.0f)", s.World.BiomeAt(st.At.X, st.At.Z), st.At.X, st.At.Z),
			Category:    CategoryLightning,
		})
	}
}

// TickHour runs every sim-hour: real weather refresh when a client is configured.
func (s *Simulation) TickHour(tick uint64) {
	if s.weatherClient == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		cond, err := s.weatherClient.Fetch(ctx)
		if err != nil {
			slog.Warn("weather fetch failed", "error", err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.Weather.Observe(cond, tick)
	}()
}

// TickDay runs every sim-day: daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.Weather.State()
	slog.Info("daily report",
		"tick", humanize.Comma(int64(tick)),
		"time", SimTime(tick),
		"utc", s.Clock.UTC(tick).Format(time.RFC3339),
		"weather", w.Description,
		"eruptions", s.Stats.Eruptions,
		"strikes", humanize.Comma(int64(s.Stats.Strikes)),
		"effects_live", s.Effects.Len(),
		"effects_expired", humanize.Comma(int64(s.Stats.EffectsExpired)),
		"players", len(s.Players),
		"events", len(s.Events),
	)
}

// Sky returns the most recent sky evaluation.
func (s *Simulation) Sky() Sky {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sky
}

// WeatherState returns the current weather and its modifiers.
func (s *Simulation) WeatherState() (weather.State, weather.Modifiers) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.Weather.State()
	return st, weather.ModifiersFor(st)
}

// VolcanoStates returns every vent.
func (s *Simulation) VolcanoStates() []volcano.Volcano {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Volcanoes.Volcanoes()
}

// TriggerEruption forces a vent to erupt on its next step.
func (s *Simulation) TriggerEruption(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Volcanoes.Trigger(id); err != nil {
		return err
	}
	s.EmitEvent(Event{Tick: s.LastTick, Description: fmt.Sprintf("%s triggered by admin", id), Category: CategoryVolcano})
	return nil
}

// Status summarises the world for the status endpoint.
type Status struct {
	Tick      uint64    `json:"tick"`
	SimTime   string    `json:"sim_time"`
	UTC       time.Time `json:"utc"`
	DayPhase  DayPhase  `json:"day_phase"`
	Weather   string    `json:"weather"`
	Volcanoes int       `json:"volcanoes"`
	Effects   int       `json:"effects"`
	Players   int       `json:"players"`
	Events    int       `json:"events"`
	Dropped   int       `json:"dropped_events"`
	Findings  int       `json:"contract_findings"`
	Stats     SimStats  `json:"stats"`
}

// Status returns a consistent summary of the world.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.subMu.Lock()
	dropped := s.dropped
	s.subMu.Unlock()
	return Status{
		Tick:      s.LastTick,
		SimTime:   SimTime(s.LastTick),
		UTC:       s.Clock.UTC(s.LastTick),
		DayPhase:  s.sky.Phase,
		Weather:   s.Weather.State().Description,
		Volcanoes: len(s.World.Volcanoes),
		Effects:   s.Effects.Len(),
		Players:   len(s.Players),
		Events:    len(s.Events),
		Dropped:   dropped,
		Findings:  s.Contracts.FindingCount(),
		Stats:     s.Stats,
	}
}
