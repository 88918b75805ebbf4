package engine

import (
	"time"

	"github.com/talgya/metaverse/internal/effects"
	"github.com/talgya/metaverse/internal/volcano"
	"github.com/talgya/metaverse/internal/weather"
)

// State is everything needed to resume a world besides its terrain, which
// regenerates from Seed.
type State struct {
	Tick      uint64            `json:"tick"`
	Epoch     time.Time         `json:"epoch"`
	Seed      int64             `json:"seed"`
	Weather   weather.State     `json:"weather"`
	Volcanoes []volcano.Volcano `json:"volcanoes"`
	Effects   []effects.Effect  `json:"effects"`
	Players   []Player          `json:"players"`
	Events    []Event           `json:"events"`
}

// Capture copies the simulation's mutable state.
func (s *Simulation) Capture() State {
	players := s.AllPlayers()

	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return State{
		Tick:      s.LastTick,
		Epoch:     s.Clock.Epoch,
		Seed:      s.World.Seed,
		Weather:   s.Weather.State(),
		Volcanoes: s.Volcanoes.Volcanoes(),
		Effects:   s.Effects.Active(),
		Players:   players,
		Events:    events,
	}
}

// Apply restores captured state. The clock epoch and seed are fixed at
// construction and are not changed.
func (s *Simulation) Apply(st State) {
	s.RestorePlayers(st.Players)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTick = st.Tick
	s.Weather.Restore(st.Weather)
	s.Volcanoes.Restore(st.Volcanoes)
	s.Effects.Restore(st.Effects)
	s.Events = append(s.Events[:0], st.Events...)
	s.sky = ComputeSky(s.Transformer, s.Clock.Instant(st.Tick))
}
