// Package effects tracks short-lived world phenomena (lava bombs, lava flows,
// lightning strikes) that disappear after a number of ticks.
// Expiry is evaluated once per engine tick; nothing here owns a timer.
package effects

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/metaverse/internal/celestial"
)

// Kind identifies what an effect represents.
type Kind uint8

const (
	KindLavaBomb  Kind = iota // Ballistic ejecta, Position is the landing point
	KindLavaFlow              // One segment of lava following the terrain downhill
	KindLightning             // A storm strike
	KindAshCloud              // Plume over an erupting vent
)

// Kinds lists every effect kind.
var Kinds = []Kind{KindLavaBomb, KindLavaFlow, KindLightning, KindAshCloud}

func (k Kind) String() string {
	switch k {
	case KindLavaBomb:
		return "lava_bomb"
	case KindLavaFlow:
		return "lava_flow"
	case KindLightning:
		return "lightning"
	case KindAshCloud:
		return "ash_cloud"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range Kinds {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown effect kind %q", b)
}

// Effect is one live phenomenon. Positions are local scene meters
// (east, up, north from the world origin).
type Effect struct {
	ID       uuid.UUID      `json:"id"`
	Kind     Kind           `json:"kind"`
	Position celestial.Vec3 `json:"position"`
	Velocity celestial.Vec3 `json:"velocity"`
	Radius   float64        `json:"radius"`
	Source   string         `json:"source,omitempty"` // Volcano or storm that produced it
	Created  uint64         `json:"created"`          // Tick
	Expires  uint64         `json:"expires"`          // Tick

	seq uint64
	idx int
}

// Alive reports whether the effect still exists at tick.
func (e Effect) Alive(tick uint64) bool {
	return tick < e.Expires
}

// List is a tick-ordered set of live effects, safe for concurrent use.
type List struct {
	mu   sync.Mutex
	h    expiryHeap
	byID map[uuid.UUID]*Effect
	seq  uint64
}

// NewList creates an empty list.
func NewList() *List {
	return &List{byID: make(map[uuid.UUID]*Effect)}
}

// Add registers an effect of kind at pos that lives for ttl ticks from now.
func (l *List) Add(kind Kind, pos celestial.Vec3, now, ttl uint64) uuid.UUID {
	return l.Insert(Effect{Kind: kind, Position: pos}, now, ttl)
}

// Insert registers e, assigning its ID and lifetime. A ttl of zero expires
// on the next Expire call for the current tick.
func (l *List) Insert(e Effect, now, ttl uint64) uuid.UUID {
	e.ID = uuid.New()
	e.Created = now
	e.Expires = now + ttl

	l.mu.Lock()
	defer l.mu.Unlock()
	l.push(e)
	return e.ID
}

// Restore re-inserts effects captured earlier, keeping their IDs and ticks.
func (l *List) Restore(saved []Effect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range saved {
		if _, dup := l.byID[e.ID]; dup {
			continue
		}
		l.push(e)
	}
}

func (l *List) push(e Effect) {
	l.seq++
	e.seq = l.seq
	p := &e
	l.byID[e.ID] = p
	heap.Push(&l.h, p)
}

// Expire removes and returns every effect whose expiry is at or before tick,
// ordered by expiry then insertion.
func (l *List) Expire(tick uint64) []Effect {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Effect
	for l.h.Len() > 0 && l.h[0].Expires <= tick {
		e := heap.Pop(&l.h).(*Effect)
		delete(l.byID, e.ID)
		out = append(out, *e)
	}
	return out
}

// Remove drops an effect early. It reports whether the ID was live.
func (l *List) Remove(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&l.h, e.idx)
	delete(l.byID, id)
	return true
}

// Get returns a live effect by ID.
func (l *List) Get(id uuid.UUID) (Effect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		return Effect{}, false
	}
	return *e, true
}

// Len returns the number of live effects.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}

// Active returns a copy of every live effect ordered by expiry then insertion.
func (l *List) Active() []Effect {
	l.mu.Lock()
	out := make([]Effect, 0, len(l.h))
	for _, e := range l.h {
		out = append(out, *e)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

// Count returns live effects per kind.
func (l *List) Count() map[Kind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[Kind]int)
	for _, e := range l.h {
		counts[e.Kind]++
	}
	return counts
}
