// Registry: the membership set of settlements under active simulation.
// Owned by a scheduler instance rather than living in package state, so
// independent schedulers can coexist in tests.
package sim

import "sync"

// Registry tracks registered settlements and their last-update bookkeeping.
// Safe for concurrent use: the scheduler loop reads snapshots while
// collaborators register and unregister from request goroutines.
type Registry struct {
	mu          sync.RWMutex
	settlements map[string]*simState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{settlements: make(map[string]*simState)}
}

// Register adds a settlement, initializing its lastUpdateTick to the current
// tick so the first cycle starts from a zero-length window. Idempotent:
// re-registering an active settlement is a no-op.
func (r *Registry) Register(settlementID, ownerID, worldID string, currentTick uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settlements[settlementID]; ok {
		return false
	}
	r.settlements[settlementID] = &simState{
		SettlementID:   settlementID,
		OwnerID:        ownerID,
		WorldID:        worldID,
		LastUpdateTick: currentTick,
	}
	return true
}

// Unregister removes a settlement. Idempotent.
func (r *Registry) Unregister(settlementID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settlements[settlementID]; !ok {
		return false
	}
	delete(r.settlements, settlementID)
	return true
}

// Snapshot returns the current membership as a slice of state copies; the
// wave works from the snapshot so concurrent (un)registration cannot mutate
// it mid-flight.
func (r *Registry) Snapshot() []simState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]simState, 0, len(r.settlements))
	for _, st := range r.settlements {
		out = append(out, *st)
	}
	return out
}

// Advance moves a settlement's lastUpdateTick forward. Ticks never move
// backward; a stale advance (after concurrent unregister) is dropped.
func (r *Registry) Advance(settlementID string, tick uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.settlements[settlementID]; ok && tick > st.LastUpdateTick {
		st.LastUpdateTick = tick
	}
}

// Contains reports membership.
func (r *Registry) Contains(settlementID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.settlements[settlementID]
	return ok
}

// Len returns the number of registered settlements.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.settlements)
}

// Clear empties the registry; called on scheduler stop.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements = make(map[string]*simState)
}
