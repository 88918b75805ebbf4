package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/timescale"
)

type transformRequest struct {
	Position celestial.Vec3    `json:"position"`
	Contract contract.Contract `json:"contract"`
	To       string            `json:"to"`
	At       string            `json:"at"`
	AtScale  string            `json:"at_scale"`
}

type transformResponse struct {
	Position   celestial.Vec3        `json:"position"`
	Contract   contract.Contract     `json:"contract"`
	At         timescale.Instant     `json:"at"`
	Horizontal *celestial.Horizontal `json:"horizontal,omitempty"`
}

// handleTransform re-expresses a contract-tagged position in another frame.
// The instant defaults to the current tick on the position's own scale.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if err := decodeValidated(r, transformSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := contract.ParseFrame(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scale := req.Contract.Scale()
	if req.AtScale != "" {
		if scale, err = timescale.ParseScale(req.AtScale); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var at timescale.Instant
	if req.At == "" {
		at = s.converter().Convert(s.Sim.Clock.Instant(s.Sim.CurrentTick()), scale)
	} else {
		t, err := time.Parse(time.RFC3339Nano, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at: "+err.Error())
			return
		}
		at = timescale.At(scale, t)
	}

	tr := s.Sim.Transformer
	out, err := tr.Transform(s.Sim.Contracts, celestial.Position{R: req.Position, Contract: req.Contract}, to, at)
	if err != nil {
		writeContractError(w, err)
		return
	}
	resp := transformResponse{Position: out.R, Contract: out.Contract, At: at}
	if to == contract.Topocentric {
		h := celestial.HorizontalFromENU(out.R)
		resp.Horizontal = &h
	}
	writeJSON(w, resp)
}

type verifyRequest struct {
	A            contract.Contract `json:"a"`
	B            contract.Contract `json:"b"`
	ValueA       *float64          `json:"value_a"`
	ValueB       *float64          `json:"value_b"`
	ToleranceKey string            `json:"tolerance_key"`
}

// handleVerify checks two contracts under the server's verification mode.
// With values and a tolerance key it also reports whether they agree.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeValidated(r, verifySchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	violations := contract.Compatible(req.A, req.B)
	kinds := make([]string, len(violations))
	for i, v := range violations {
		kinds[i] = v.String()
	}
	if err := s.Sim.Contracts.Verify(req.A, req.B); err != nil {
		writeContractError(w, err)
		return
	}

	resp := map[string]any{
		"compatible": len(violations) == 0,
		"violations": kinds,
		"mode":       s.Sim.Contracts.Mode().String(),
	}
	if req.ValueA != nil && req.ValueB != nil && req.ToleranceKey != "" {
		resp["within_tolerance"] = contract.WithinTolerance(req.ToleranceKey, req.A, req.B, *req.ValueA, *req.ValueB)
	}
	writeJSON(w, resp)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	findings := s.Sim.Contracts.Findings()
	writeJSON(w, map[string]any{
		"mode":     s.Sim.Contracts.Mode().String(),
		"count":    s.Sim.Contracts.FindingCount(),
		"findings": findings,
	})
}

// writeContractError maps verification and parsing failures onto status codes.
func writeContractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contract.ErrIncompatible):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contract.ErrUnknownFrame),
		errors.Is(err, contract.ErrUnknownScale),
		errors.Is(err, contract.ErrUnknownDatum):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
