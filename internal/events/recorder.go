package events

import (
	"sync"

	"github.com/talgya/hearth/internal/sim"
)

// Recorder is a sim.Sink that captures events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded pairs an event with the world it targeted.
type Recorded struct {
	WorldID string
	Event   sim.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends the event.
func (r *Recorder) Publish(worldID string, ev sim.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{WorldID: worldID, Event: ev})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// ByType filters recorded events by type.
func (r *Recorder) ByType(t sim.EventType) []Recorded {
	var out []Recorded
	for _, rec := range r.Events() {
		if rec.Event.Type == t {
			out = append(out, rec)
		}
	}
	return out
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
