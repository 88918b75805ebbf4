package engine

import (
	"time"
)

// Event categories.
const (
	CategoryVolcano   = "volcano"
	CategoryWeather   = "weather"
	CategoryLightning = "lightning"
	CategoryPlayer    = "player"
	CategorySystem    = "system"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// subscriberBuffer is the channel depth per subscriber; slow readers lose events.
const subscriberBuffer = 64

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64    `json:"tick"`
	Time        time.Time `json:"time"` // UTC
	Description string    `json:"description"`
	Category    string    `json:"category"`
}

// EmitEvent records an event and fans it out to subscribers. Callers hold s.mu.
func (s *Simulation) EmitEvent(e Event) {
	if e.Time.IsZero() {
		e.Time = s.Clock.UTC(e.Tick)
	}
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.dropped++
		}
	}
}

// Subscribe registers a listener for new events.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// RecentEvents returns up to limit of the newest events, optionally filtered
// by category, oldest first.
func (s *Simulation) RecentEvents(limit int, category string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for i := len(s.Events) - 1; i >= 0 && len(out) < limit; i-- {
		if category != "" && s.Events[i].Category != category {
			continue
		}
		out = append(out, s.Events[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
