package api

import (
	"net/http"
	"time"

	"github.com/talgya/metaverse/internal/engine"
	"github.com/talgya/metaverse/internal/iers"
	"github.com/talgya/metaverse/internal/timescale"
)

type timeView struct {
	Tick        *uint64           `json:"tick,omitempty"`
	SimTime     string            `json:"sim_time,omitempty"`
	Input       timescale.Instant `json:"input"`
	Scales      map[string]string `json:"scales"`
	JDTT        float64           `json:"jd_tt"`
	MJDUTC      float64           `json:"mjd_utc"`
	LeapSeconds int               `json:"leap_seconds"`
	DUT1        float64           `json:"dut1"`
}

func (s *Server) converter() *timescale.Converter {
	return s.Sim.Clock.Converter()
}

func (s *Server) describe(in timescale.Instant, scales []timescale.Scale) timeView {
	conv := s.converter()
	utc := conv.Convert(in, timescale.UTC).Time
	v := timeView{
		Input:       in,
		Scales:      make(map[string]string, len(scales)),
		JDTT:        conv.Convert(in, timescale.TT).JD(),
		MJDUTC:      timescale.ModifiedJulianDate(utc),
		LeapSeconds: conv.LeapSeconds(utc),
		DUT1:        conv.DUT1(utc),
	}
	for _, sc := range scales {
		v.Scales[sc.String()] = conv.Convert(in, sc).Time.Format(time.RFC3339Nano)
	}
	return v
}

// handleTime reports one instant on every scale: the current tick by
// default, or ?at=RFC3339 read on ?scale= (default UTC).
func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("at") == "" {
		tick := s.Sim.CurrentTick()
		v := s.describe(s.Sim.Clock.Instant(tick), timescale.Scales)
		v.Tick = &tick
		v.SimTime = engine.SimTime(tick)
		writeJSON(w, v)
		return
	}

	at, err := time.Parse(time.RFC3339Nano, q.Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "at: "+err.Error())
		return
	}
	scale := timescale.UTC
	if name := q.Get("scale"); name != "" {
		if scale, err = timescale.ParseScale(name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, s.describe(timescale.At(scale, at), timescale.Scales))
}

type convertRequest struct {
	Time string   `json:"time"`
	From string   `json:"from"`
	To   []string `json:"to"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeValidated(r, convertSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := time.Parse(time.RFC3339Nano, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time: "+err.Error())
		return
	}
	from, err := timescale.ParseScale(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	targets := timescale.Scales
	if len(req.To) > 0 {
		targets = make([]timescale.Scale, 0, len(req.To))
		for _, name := range req.To {
			sc, err := timescale.ParseScale(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			targets = append(targets, sc)
		}
	}
	writeJSON(w, s.describe(timescale.At(from, t), targets))
}

type leapView struct {
	Effective string `json:"effective"`
	Offset    int    `json:"tai_minus_utc"`
}

// handleLeapSeconds lists the leap second table and the offset in force at
// the current tick.
func (s *Server) handleLeapSeconds(w http.ResponseWriter, r *http.Request) {
	data := iers.Defaults()
	if s.IERS != nil {
		data = s.IERS.Data()
	}
	rows := data.Leaps.Entries()
	out := make([]leapView, len(rows))
	for i, e := range rows {
		out[i] = leapView{Effective: e.Effective.Format(time.DateOnly), Offset: e.Offset}
	}

	utc := s.Sim.Clock.UTC(s.Sim.CurrentTick())
	writeJSON(w, map[string]any{
		"source":  data.Source,
		"current": s.converter().LeapSeconds(utc),
		"utc":     utc,
		"table":   out,
	})
}
