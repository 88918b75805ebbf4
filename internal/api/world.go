package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/engine"
)

// handleTerrain answers an elevation query at ?x=&z= in scene meters, or
// summarises the heightfield when no point is given.
func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	hf := s.Sim.World
	q := r.URL.Query()
	if q.Get("x") == "" && q.Get("z") == "" {
		vents := make([]map[string]float64, len(hf.Volcanoes))
		for i, v := range hf.Volcanoes {
			p := hf.ToWorld(v)
			vents[i] = map[string]float64{"x": p.X, "z": p.Z}
		}
		writeJSON(w, map[string]any{
			"size":      hf.Size,
			"cell_size": hf.CellSize,
			"extent":    hf.Extent(),
			"sea_level": hf.SeaLevel,
			"seed":      hf.Seed,
			"biomes":    hf.BiomeCounts(),
			"volcanoes": vents,
		})
		return
	}

	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	z, errZ := strconv.ParseFloat(q.Get("z"), 64)
	if errX != nil || errZ != nil || !finite(x) || !finite(z) {
		writeError(w, http.StatusBadRequest, "x and z must be finite numbers")
		return
	}
	if x < 0 || z < 0 || x > hf.Extent() || z > hf.Extent() {
		writeError(w, http.StatusNotFound, engine.ErrOutOfBounds.Error())
		return
	}
	writeJSON(w, map[string]any{
		"x":          x,
		"z":          z,
		"elevation":  hf.Elevation(x, z),
		"biome":      hf.BiomeAt(x, z),
		"underwater": hf.Underwater(x, z),
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Server) handleSky(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"site": s.Sim.Transformer.Site(),
		"sky":  s.Sim.Sky(),
	})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	st, mods := s.Sim.WeatherState()
	writeJSON(w, map[string]any{
		"state":     st,
		"modifiers": mods,
	})
}

func (s *Server) handleVolcanoes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.VolcanoStates())
}

// handleEvents returns recent events, optionally ?category= filtered.
// ?source=db reads the persisted log instead of memory.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			writeError(w, http.StatusServiceUnavailable, "database not available")
			return
		}
		events, err := s.DB.RecentEvents(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, events)
		return
	}
	writeJSON(w, s.Sim.RecentEvents(limit, r.URL.Query().Get("category")))
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.AllPlayers())
}

type playerView struct {
	engine.Player
	Geodetic celestial.Geodetic `json:"geodetic"`
	ENU      celestial.Vec3     `json:"enu"`
}

func (s *Server) playerView(p engine.Player) (playerView, error) {
	g, err := s.Sim.PlayerGeodetic(p.ID)
	if err != nil {
		return playerView{}, err
	}
	return playerView{Player: p, Geodetic: g, ENU: s.Sim.SceneToENU(p.Position)}, nil
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Sim.Player(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, engine.ErrUnknownPlayer.Error())
		return
	}
	v, err := s.playerView(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, v)
}

type moveRequest struct {
	Name     string             `json:"name"`
	Position celestial.Vec3     `json:"position"`
	Contract *contract.Contract `json:"contract"`
}

// handleMovePlayer places a player. Without a contract the position is in
// scene meters; with one it is transformed from that frame.
func (s *Server) handleMovePlayer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" || len(id) > 64 {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	var req moveRequest
	if err := decodeValidated(r, moveSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var c contract.Contract
	if req.Contract != nil {
		c = *req.Contract
	}

	p, err := s.Sim.MovePlayer(id, req.Name, req.Position, c)
	if err != nil {
		if errors.Is(err, engine.ErrOutOfBounds) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeContractError(w, err)
		return
	}
	if s.DB != nil {
		if err := s.DB.SavePlayer(p); err != nil {
			writeError(w, http.StatusInternalServerError, "save player: "+err.Error())
			return
		}
	}
	v, err := s.playerView(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, v)
}
