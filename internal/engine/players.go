package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/timescale"
	"github.com/talgya/metaverse/internal/world"
)

// ErrOutOfBounds is returned for positions off the heightfield.
var ErrOutOfBounds = errors.New("position outside the world")

// ErrUnknownPlayer is returned for player IDs never seen.
var ErrUnknownPlayer = errors.New("unknown player")

// SceneContract tags scene positions: topocentric axes at the world site,
// UTC stamps and heights above mean sea level.
var SceneContract = contract.Must(contract.Topocentric, timescale.UTC, ptr(contract.MSL),
	map[string]float64{contract.TolPositionM: 0.01})

func ptr[T any](v T) *T { return &v }

// Player is a connected avatar. Position is in scene meters: X east, Y up
// (above sea level), Z north, over the heightfield.
type Player struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Position    celestial.Vec3 `json:"position"`
	UpdatedTick uint64         `json:"updated_tick"`
}

// SceneToENU converts a scene position to east/north/up offsets from the site.
func (s *Simulation) SceneToENU(p celestial.Vec3) celestial.Vec3 {
	return celestial.Vec3{X: p.X - s.origin.X, Y: p.Z - s.origin.Z, Z: p.Y}
}

// ENUToScene is the inverse of SceneToENU.
func (s *Simulation) ENUToScene(enu celestial.Vec3) celestial.Vec3 {
	return celestial.Vec3{X: enu.X + s.origin.X, Y: enu.Z, Z: enu.Y + s.origin.Z}
}

// SpawnPosition returns where new players appear, standing on the ground.
func (s *Simulation) SpawnPosition() celestial.Vec3 {
	c, ok := world.SpawnPoint(s.World)
	p := s.origin
	if ok {
		p = s.World.ToWorld(c)
	}
	return celestial.Vec3{X: p.X, Y: s.World.Elevation(p.X, p.Z), Z: p.Z}
}

// MovePlayer places a player. pos is interpreted under c: a zero contract
// means scene coordinates and a topocentric one means east/north/up from the
// site. Positions in other frames are transformed to the scene at the current
// tick. Players never end up below the ground.
func (s *Simulation) MovePlayer(id, name string, pos celestial.Vec3, c contract.Contract) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, err := s.toScene(pos, c)
	if err != nil {
		s.Stats.RejectedUpdates++
		return Player{}, err
	}
	if scene.X < 0 || scene.Z < 0 || scene.X > s.World.Extent() || scene.Z > s.World.Extent() {
		s.Stats.RejectedUpdates++
		return Player{}, fmt.Errorf("%w: (%.1f, %.1f)", ErrOutOfBounds, scene.X, scene.Z)
	}
	if ground := s.World.Elevation(scene.X, scene.Z); scene.Y < ground {
		scene.Y = ground
	}

	p, ok := s.Players[id]
	if !ok {
		p = &Player{ID: id, Name: name}
		s.Players[id] = p
		s.EmitEvent(Event{Tick: s.LastTick, Description: fmt.Sprintf("%s arrives", displayName(p)), Category: CategoryPlayer})
	}
	if name != "" {
		p.Name = name
	}
	p.Position = scene
	p.UpdatedTick = s.LastTick
	s.Stats.PlayerMoves++
	return *p, nil
}

func (s *Simulation) toScene(pos celestial.Vec3, c contract.Contract) (celestial.Vec3, error) {
	if c.IsZero() {
		return pos, nil
	}
	if c.Frame() == contract.Topocentric {
		// Already site-relative; only the scale and datum matter.
		if err := s.Contracts.Verify(c, SceneContract); err != nil {
			return celestial.Vec3{}, err
		}
		return s.adjustDatum(s.ENUToScene(pos), c)
	}

	// Stamp the transform on the position's own scale so only the frame changes.
	at := s.Transformer.Converter().Convert(s.Clock.Instant(s.LastTick), c.Scale())
	moved, err := s.Transformer.Transform(s.Contracts, celestial.Position{R: pos, Contract: c}, contract.Topocentric, at)
	if err != nil {
		return celestial.Vec3{}, err
	}
	// The site stands on sea level, so topocentric up is already an MSL height.
	return s.ENUToScene(moved.R), nil
}

func (s *Simulation) adjustDatum(scene celestial.Vec3, c contract.Contract) (celestial.Vec3, error) {
	d, ok := c.Datum()
	if !ok || d == contract.MSL {
		return scene, nil
	}
	site := s.Transformer.Site()
	h, err := celestial.ConvertHeight(scene.Y, d, contract.MSL, site.Lat, site.Lon)
	if err != nil {
		return celestial.Vec3{}, err
	}
	scene.Y = h
	return scene, nil
}

// Player returns a player by ID.
func (s *Simulation) Player(id string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.Players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// PlayerGeodetic returns a player's WGS-84 position. Height is above the ellipsoid.
func (s *Simulation) PlayerGeodetic(id string) (celestial.Geodetic, error) {
	p, ok := s.Player(id)
	if !ok {
		return celestial.Geodetic{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	site := s.Transformer.Site()
	enu := s.SceneToENU(p.Position)
	ecef := site.ToECEF().Add(celestial.ENUMatrix(site).T().Apply(enu))
	return celestial.GeodeticFromECEF(ecef), nil
}

// AllPlayers returns every player ordered by ID.
func (s *Simulation) AllPlayers() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RestorePlayers loads saved players without emitting arrival events.
func (s *Simulation) RestorePlayers(players []Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		cp := p
		s.Players[p.ID] = &cp
	}
}

func displayName(p *Player) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
