package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/timescale"
	"github.com/talgya/metaverse/internal/volcano"
	"github.com/talgya/metaverse/internal/weather"
	"github.com/talgya/metaverse/internal/world"
)

var testEpoch = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestSim(t *testing.T, mode contract.Mode) *Simulation {
	t.Helper()
	hf := world.Generate(world.SmallTestConfig())
	clock := NewClock(testEpoch, nil)
	site := celestial.Geodetic{Lat: 19.4, Lon: -155.3}
	site.Height = celestial.GeoidUndulation(site.Lat, site.Lon)
	tr := celestial.NewTransformer(clock.Converter(), nil, celestial.DefaultOptions(), site)
	return NewSimulation(hf, clock, tr, contract.NewContext(mode, nil), Options{
		Seed:    1,
		Weather: weather.DefaultTuning(),
		Volcano: volcano.DefaultTuning(),
	})
}

func TestSimTime(t *testing.T) {
	tests := []struct {
		tick uint64
		want string
	}{
		{0, "Day 1, 00:00:00"},
		{TicksPerSimMinute + 5*TicksPerSimSecond, "Day 1, 00:01:05"},
		{TicksPerSimDay + 13*TicksPerSimHour, "Day 2, 13:00:00"},
	}
	for _, tt := range tests {
		if got := SimTime(tt.tick); got != tt.want {
			t.Errorf("SimTime(%d) = %q, want %q", tt.tick, got, tt.want)
		}
	}
}

func TestEngine_StepFiresLayers(t *testing.T) {
	e := NewEngine()
	counts := make(map[string]int)
	e.OnTick = func(uint64) { counts["tick"]++ }
	e.OnSecond = func(uint64) { counts["second"]++ }
	e.OnMinute = func(uint64) { counts["minute"]++ }
	e.OnHour = func(uint64) { counts["hour"]++ }

	for i := 0; i < 2*TicksPerSimMinute; i++ {
		e.Step()
	}
	if counts["tick"] != 2*TicksPerSimMinute || counts["second"] != 120 || counts["minute"] != 2 || counts["hour"] != 0 {
		t.Errorf("counts = %v", counts)
	}
	if e.Tick() != 2*TicksPerSimMinute {
		t.Errorf("Tick = %d", e.Tick())
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	if err := e.SetSpeed(MaxSpeed); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if e.Tick() == 0 {
		t.Error("no ticks ran")
	}
	if e.Running() {
		t.Error("still reports running")
	}
}

func TestEngine_SetSpeedBounds(t *testing.T) {
	e := NewEngine()
	for _, bad := range []float64{-1, MaxSpeed + 1, math.NaN()} {
		if err := e.SetSpeed(bad); err == nil {
			t.Errorf("SetSpeed(%v) accepted", bad)
		}
	}
	if err := e.SetSpeed(0); err != nil || e.Speed() != 0 {
		t.Errorf("pause rejected: %v", err)
	}
}

func TestClock(t *testing.T) {
	c := NewClock(testEpoch, nil)
	tick := uint64(3*TicksPerSimHour + 7)
	utc := c.UTC(tick)
	if got := c.TickAt(utc); got != tick {
		t.Errorf("TickAt(UTC(%d)) = %d", tick, got)
	}
	if c.TickAt(testEpoch.Add(-time.Hour)) != 0 {
		t.Error("pre-epoch time should map to tick 0")
	}

	times := c.Times(0)
	if d := times[timescale.TT].Sub(times[timescale.UTC]); d != 69184*time.Millisecond {
		t.Errorf("TT-UTC = %v, want 69.184s", d)
	}
	if len(times) != len(timescale.Scales) {
		t.Errorf("Times has %d scales", len(times))
	}
}

func TestPhaseFor(t *testing.T) {
	tests := []struct {
		alt  float64
		want DayPhase
	}{
		{45, Day},
		{-0.5, Day},
		{-5, Twilight},
		{-30, Night},
	}
	for _, tt := range tests {
		if got := PhaseFor(tt.alt); got != tt.want {
			t.Errorf("PhaseFor(%v) = %v, want %v", tt.alt, got, tt.want)
		}
	}
}

func TestComputeSky_NoonAndMidnight(t *testing.T) {
	site := celestial.Geodetic{}
	tr := celestial.NewTransformer(nil, nil, celestial.DefaultOptions(), site)

	noon := ComputeSky(tr, timescale.At(timescale.UTC, testEpoch))
	if noon.Phase != Day || noon.Sun.Elevation < 80 {
		t.Errorf("equinox noon on the equator: %+v", noon.Sun)
	}
	midnight := ComputeSky(tr, timescale.At(timescale.UTC, testEpoch.Add(12*time.Hour)))
	if midnight.Phase != Night || midnight.Sun.Elevation > -60 {
		t.Errorf("midnight: %+v", midnight.Sun)
	}
	if noon.MoonIllumination < 0 || noon.MoonIllumination > 1 {
		t.Errorf("illumination = %v", noon.MoonIllumination)
	}
}

func TestSimulation_MovePlayer(t *testing.T) {
	sim := newTestSim(t, contract.ModeStrict)
	id, ch := sim.Subscribe()
	defer sim.Unsubscribe(id)

	mid := sim.World.Extent() / 2
	p, err := sim.MovePlayer("p1", "Ada", celestial.Vec3{X: mid, Y: -500, Z: mid}, contract.Contract{})
	if err != nil {
		t.Fatalf("MovePlayer: %v", err)
	}
	if ground := sim.World.Elevation(mid, mid); p.Position.Y != ground {
		t.Errorf("Y = %v, want clamped to ground %v", p.Position.Y, ground)
	}
	select {
	case e := <-ch:
		if e.Category != CategoryPlayer || !strings.Contains(e.Description, "Ada") {
			t.Errorf("event = %+v", e)
		}
	default:
		t.Error("no arrival event")
	}

	if _, err := sim.MovePlayer("p1", "", celestial.Vec3{X: -1, Z: mid}, contract.Contract{}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("out of bounds error = %v", err)
	}
	wrongScale := SceneContract.WithScale(timescale.TT)
	if _, err := sim.MovePlayer("p1", "", celestial.Vec3{}, wrongScale); !errors.Is(err, contract.ErrIncompatible) {
		t.Errorf("strict scale mismatch error = %v", err)
	}
	if got, _ := sim.Player("p1"); got.Name != "Ada" || got.Position != p.Position {
		t.Errorf("rejected moves changed the player: %+v", got)
	}
	if sim.Status().Stats.RejectedUpdates != 2 {
		t.Errorf("rejected = %d", sim.Status().Stats.RejectedUpdates)
	}
}

func TestSimulation_MovePlayerFromECEF(t *testing.T) {
	sim := newTestSim(t, contract.ModeStrict)
	start := sim.SpawnPosition()
	start.Y += 20
	if _, err := sim.MovePlayer("a", "", start, contract.Contract{}); err != nil {
		t.Fatal(err)
	}
	geo, err := sim.PlayerGeodetic("a")
	if err != nil {
		t.Fatal(err)
	}

	ecef := contract.Must(contract.ECEF, timescale.UTC, nil, nil)
	p, err := sim.MovePlayer("b", "", geo.ToECEF(), ecef)
	if err != nil {
		t.Fatalf("MovePlayer(ECEF): %v", err)
	}
	if d := p.Position.Sub(start).Norm(); d > 1e-3 {
		t.Errorf("ECEF round trip moved the player %v m: %+v vs %+v", d, p.Position, start)
	}

	if _, err := sim.PlayerGeodetic("ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("unknown player error = %v", err)
	}
}

func TestSimulation_TopocentricEllipsoidHeights(t *testing.T) {
	sim := newTestSim(t, contract.ModeWarn)
	site := sim.Transformer.Site()
	n := celestial.GeoidUndulation(site.Lat, site.Lon)

	topo := contract.Must(contract.Topocentric, timescale.UTC, ptr(contract.Ellipsoid), nil)
	p, err := sim.MovePlayer("e", "", celestial.Vec3{X: 0, Y: 0, Z: 500 + n}, topo)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Position.Y-500) > 1e-9 {
		t.Errorf("MSL height = %v, want 500", p.Position.Y)
	}
	if mid := sim.World.Extent() / 2; p.Position.X != mid || p.Position.Z != mid {
		t.Errorf("site origin maps to %+v, want world centre", p.Position)
	}
}

func TestSimulation_VolcanoEventsAndWeather(t *testing.T) {
	sim := newTestSim(t, contract.ModeWarn)
	if len(sim.VolcanoStates()) == 0 {
		t.Fatal("test world has no volcano")
	}
	if err := sim.TriggerEruption("vent-1"); err != nil {
		t.Fatal(err)
	}
	sim.TickSecond(TicksPerSimSecond)
	events := sim.RecentEvents(10, CategoryVolcano)
	if len(events) != 2 || !strings.Contains(events[1].Description, "erupting") {
		t.Fatalf("volcano events = %+v", events)
	}
	if events[1].Time != sim.Clock.UTC(TicksPerSimSecond) {
		t.Errorf("event time = %v", events[1].Time)
	}
	if sim.Effects.Len() == 0 {
		t.Error("eruption produced no effects")
	}

	sim.TickMinute(TicksPerSimMinute)
	if sky := sim.Sky(); !sky.UTC.Equal(sim.Clock.UTC(TicksPerSimMinute)) {
		t.Errorf("sky time = %v", sky.UTC)
	}
	if _, mod := sim.WeatherState(); mod.TravelPenalty < 1 {
		t.Errorf("modifiers = %+v", mod)
	}

	sim.TickFrame(math.MaxUint32)
	if sim.Effects.Len() != 0 {
		t.Errorf("%d effects survived a far-future tick", sim.Effects.Len())
	}
	if st := sim.Status(); st.Stats.Eruptions != 1 || st.Stats.EffectsExpired == 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestRecentEvents_LimitAndTrim(t *testing.T) {
	sim := newTestSim(t, contract.ModeWarn)
	sim.mu.Lock()
	for i := 0; i < maxEvents+10; i++ {
		sim.EmitEvent(Event{Tick: uint64(i), Category: CategorySystem})
	}
	sim.mu.Unlock()

	if len(sim.Events) != maxEvents {
		t.Errorf("log length = %d", len(sim.Events))
	}
	got := sim.RecentEvents(3, "")
	if len(got) != 3 || got[2].Tick != maxEvents+9 || got[0].Tick != maxEvents+7 {
		t.Errorf("RecentEvents = %+v", got)
	}
}

func TestCaptureApply(t *testing.T) {
	sim := newTestSim(t, contract.ModeWarn)
	if _, err := sim.MovePlayer("p", "Zed", sim.SpawnPosition(), contract.Contract{}); err != nil {
		t.Fatal(err)
	}
	if err := sim.TriggerEruption("vent-1"); err != nil {
		t.Fatal(err)
	}
	sim.TickSecond(TicksPerSimSecond)
	st := sim.Capture()

	fresh := newTestSim(t, contract.ModeWarn)
	fresh.Apply(st)
	if fresh.CurrentTick() != st.Tick {
		t.Errorf("tick = %d, want %d", fresh.CurrentTick(), st.Tick)
	}
	if p, ok := fresh.Player("p"); !ok || p.Name != "Zed" {
		t.Errorf("player = %+v, %v", p, ok)
	}
	if fresh.Effects.Len() != len(st.Effects) || len(st.Effects) == 0 {
		t.Errorf("effects = %d, captured %d", fresh.Effects.Len(), len(st.Effects))
	}
	if v := fresh.VolcanoStates()[0]; v.Phase != volcano.Erupting {
		t.Errorf("volcano = %+v", v)
	}
	if len(fresh.RecentEvents(100, "")) != len(st.Events) {
		t.Error("events not restored")
	}
}
