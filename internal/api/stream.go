package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/engine"
	"github.com/talgya/metaverse/internal/timescale"
)

const (
	streamCatchUp    = 50
	streamWriteWait  = 5 * time.Second
	streamReadWait   = 60 * time.Second
	streamPingPeriod = 25 * time.Second
)

type streamMessage struct {
	Type  string        `json:"type"` // "event" or "clock"
	Event *engine.Event `json:"event,omitempty"`
	Clock *clockFrame   `json:"clock,omitempty"`
}

type clockFrame struct {
	Tick    uint64                        `json:"tick"`
	SimTime string                        `json:"sim_time"`
	Speed   float64                       `json:"speed"`
	Times   map[timescale.Scale]time.Time `json:"times"`
	Phase   engine.DayPhase               `json:"phase"`
	Sun     celestial.Horizontal          `json:"sun"`
}

func (s *Server) clockFrame() *clockFrame {
	tick := s.Sim.CurrentTick()
	sky := s.Sim.Sky()
	return &clockFrame{
		Tick:    tick,
		SimTime: engine.SimTime(tick),
		Speed:   s.Eng.Speed(),
		Times:   s.Sim.Clock.Times(tick),
		Phase:   sky.Phase,
		Sun:     sky.Sun,
	}
}

// handleStream upgrades to a websocket carrying world events as they happen
// and a clock frame every ClockInterval. ?category= filters events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if n := s.streamConns.Add(1); n > maxStreamConns {
		s.streamConns.Add(-1)
		writeError(w, http.StatusServiceUnavailable, "too many stream connections")
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	category := r.URL.Query().Get("category")
	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "remote", s.Proxies.clientIP(r))

	send := func(m streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(m)
	}

	for _, e := range s.Sim.RecentEvents(streamCatchUp, category) {
		if err := send(streamMessage{Type: "event", Event: &e}); err != nil {
			return
		}
	}
	if err := send(streamMessage{Type: "clock", Clock: s.clockFrame()}); err != nil {
		return
	}

	// Reader: only control frames are expected; any error ends the session.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.ClockInterval
	if interval <= 0 {
		interval = time.Second
	}
	clock := time.NewTicker(interval)
	defer clock.Stop()
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if category != "" && e.Category != category {
				continue
			}
			if err := send(streamMessage{Type: "event", Event: &e}); err != nil {
				return
			}
		case <-clock.C:
			if err := send(streamMessage{Type: "clock", Clock: s.clockFrame()}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}
