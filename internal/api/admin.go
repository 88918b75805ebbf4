package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/talgya/metaverse/internal/snapshot"
	"github.com/talgya/metaverse/internal/volcano"
)

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed *float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed == nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := s.Eng.SetSpeed(*req.Speed); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Info("speed changed", "speed", *req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleSnapshot saves the world to the database and, when a snapshot
// directory is configured, to a compressed snapshot file.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil && s.SnapshotDir == "" {
		writeError(w, http.StatusServiceUnavailable, "no snapshot target configured")
		return
	}

	st := s.Sim.Capture()
	resp := map[string]any{"tick": st.Tick}
	if s.DB != nil {
		if err := s.DB.SaveState(st); err != nil {
			slog.Error("snapshot save failed", "error", err)
			writeError(w, http.StatusInternalServerError, "snapshot failed")
			return
		}
		resp["db"] = true
	}
	if s.SnapshotDir != "" {
		path := filepath.Join(s.SnapshotDir, snapshot.FileName(s.WorldID, st.Tick))
		snap := snapshot.New(s.WorldID, st, s.Sim.Clock.UTC(st.Tick))
		if err := snapshot.WriteFile(path, snap); err != nil {
			slog.Error("snapshot file failed", "path", path, "error", err)
			writeError(w, http.StatusInternalServerError, "snapshot failed")
			return
		}
		resp["path"] = path
	}
	resp["message"] = "snapshot saved"
	writeJSON(w, resp)
}

func (s *Server) handleErupt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Sim.TriggerEruption(id); err != nil {
		if errors.Is(err, volcano.ErrUnknownVent) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("eruption triggered", "volcano", id)
	writeJSON(w, map[string]any{"volcano": id, "message": "eruption triggered"})
}
