package sim

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory Store with per-settlement fault injection.
type fakeStore struct {
	mu          sync.Mutex
	details     map[string]*SettlementDetail
	structures  map[string][]Structure
	populations map[string]*PopulationState
	resources   map[string]ResourceAmounts
	owners      map[string][]string

	detailErr     map[string]error
	panicOnUpdate map[string]bool

	popUpdates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		details:       make(map[string]*SettlementDetail),
		structures:    make(map[string][]Structure),
		populations:   make(map[string]*PopulationState),
		resources:     make(map[string]ResourceAmounts),
		owners:        make(map[string][]string),
		detailErr:     make(map[string]error),
		panicOnUpdate: make(map[string]bool),
	}
}

// addSettlement installs a complete settlement with a FARM, a granary, and a
// cottage, returning its storage id.
func (f *fakeStore) addSettlement(id, ownerID, worldID string, pop int) string {
	storageID := "storage-" + id
	f.details[id] = &SettlementDetail{
		Settlement: &Settlement{ID: id, Name: "Test " + id, OwnerID: ownerID, WorldID: worldID},
		Storage:    &Storage{ID: storageID},
		Plot:       &Plot{ID: "plot-" + id, Area: 100},
		Biome:      "plains",
	}
	f.structures[id] = []Structure{
		{Name: "FARM", Category: CategoryExtractor},
		{Name: "GRANARY", Category: CategoryStorage, Modifiers: []Modifier{{Name: "storage_food", Value: 100}}},
		{Name: "COTTAGE", Category: CategoryHousing, Modifiers: []Modifier{{Name: ModifierHousing, Value: 40}}},
	}
	f.resources[storageID] = ResourceAmounts{Food: 50, Water: 50, Wood: 20, Stone: 20, Ore: 5}
	if pop > 0 {
		f.populations[id] = &PopulationState{Current: pop, Capacity: 50, Happiness: 60}
	}
	f.owners[ownerID] = append(f.owners[ownerID], id)
	return storageID
}

func (f *fakeStore) ActiveSettlements(_ context.Context, ownerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.owners[ownerID]...), nil
}

func (f *fakeStore) Detail(_ context.Context, id string) (*SettlementDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[id]; err != nil {
		return nil, err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) Structures(_ context.Context, id string) ([]Structure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.structures[id], nil
}

func (f *fakeStore) Population(_ context.Context, id string) (*PopulationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.populations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdatePopulation(_ context.Context, id string, p *PopulationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.populations[id] = &cp
	f.popUpdates++
	return nil
}

func (f *fakeStore) Resources(_ context.Context, storageID string) (ResourceAmounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[storageID]
	if !ok {
		return ResourceAmounts{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) UpdateResources(_ context.Context, storageID string, r ResourceAmounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnUpdate[storageID] {
		panic("storage backend exploded")
	}
	f.resources[storageID] = r
	return nil
}

// recordSink captures published events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []Event
	worlds []string
}

func (r *recordSink) Publish(worldID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.worlds = append(r.worlds, worldID)
}

func (r *recordSink) byType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestScheduler(store Store, sink Sink) *Scheduler {
	s := NewScheduler(Config{
		TickRate:              60,
		PopulationPeriodTicks: 1 << 60, // keep the population step out unless a test opts in
	}, store, sink)
	s.rng = rand.New(rand.NewSource(1))
	s.popModel = PopulationModel{RNG: s.rng}
	s.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return s
}

func lastUpdateTick(t *testing.T, s *Scheduler, id string) uint64 {
	t.Helper()
	for _, st := range s.registry.Snapshot() {
		if st.SettlementID == id {
			return st.LastUpdateTick
		}
	}
	t.Fatalf("settlement %s not registered", id)
	return 0
}

func TestWaveAdvancesAndEmits(t *testing.T) {
	store := newFakeStore()
	storageID := store.addSettlement("a", "owner-1", "world-1", 10)
	sink := &recordSink{}
	s := newTestScheduler(store, sink)

	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	if got := lastUpdateTick(t, s, "a"); got != 60 {
		t.Fatalf("expected lastUpdateTick 60, got %d", got)
	}

	updates := sink.byType(EventResourceUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected one resource-update, got %d", len(updates))
	}
	payload := updates[0].Payload.(ResourceUpdatePayload)
	if payload.Population != 10 {
		t.Fatalf("expected population 10 in payload, got %d", payload.Population)
	}
	if payload.Production.Food <= 0 {
		t.Fatalf("farm should have produced food, got %+v", payload.Production)
	}
	if payload.Resources != store.resources[storageID] {
		t.Fatalf("payload resources should match persisted amounts")
	}
}

func TestWaveZeroElapsedProducesNothing(t *testing.T) {
	store := newFakeStore()
	storageID := store.addSettlement("a", "owner-1", "world-1", 0)
	before := store.resources[storageID]
	sink := &recordSink{}
	s := newTestScheduler(store, sink)

	// Registered at the same tick the wave runs: elapsed window is zero.
	s.tick.Store(60)
	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	if store.resources[storageID] != before {
		t.Fatalf("zero elapsed ticks must not change resources: %+v -> %+v", before, store.resources[storageID])
	}
}

func TestBatchIsolation(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 5)
	store.addSettlement("b", "owner-1", "world-1", 5)
	store.addSettlement("c", "owner-1", "world-1", 5)
	// B's detail fetch fails transiently (not a missing record).
	store.detailErr["b"] = context.DeadlineExceeded

	s := newTestScheduler(store, &recordSink{})
	s.Register("a", "owner-1", "world-1")
	s.Register("b", "owner-1", "world-1")
	s.Register("c", "owner-1", "world-1")

	s.runWave(60)

	if got := lastUpdateTick(t, s, "a"); got != 60 {
		t.Fatalf("A should have advanced, lastUpdateTick %d", got)
	}
	if got := lastUpdateTick(t, s, "c"); got != 60 {
		t.Fatalf("C should have advanced, lastUpdateTick %d", got)
	}
	if !s.registry.Contains("b") {
		t.Fatalf("B should remain registered after a transient failure")
	}
	if got := lastUpdateTick(t, s, "b"); got != 0 {
		t.Fatalf("B should not have advanced, lastUpdateTick %d", got)
	}

	// Next wave with the fault cleared retries B's full window.
	delete(store.detailErr, "b")
	s.runWave(120)
	if got := lastUpdateTick(t, s, "b"); got != 120 {
		t.Fatalf("B should advance once the fault clears, lastUpdateTick %d", got)
	}
}

func TestIncompleteDetailDeregisters(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 5)
	store.details["a"].Storage = nil // storage record missing

	s := newTestScheduler(store, &recordSink{})
	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	if s.registry.Contains("a") {
		t.Fatalf("settlement with incomplete detail should be deregistered")
	}
}

func TestPanicInStepIsContained(t *testing.T) {
	store := newFakeStore()
	storageA := store.addSettlement("a", "owner-1", "world-1", 5)
	store.addSettlement("b", "owner-1", "world-1", 5)
	store.panicOnUpdate[storageA] = true

	s := newTestScheduler(store, &recordSink{})
	s.Register("a", "owner-1", "world-1")
	s.Register("b", "owner-1", "world-1")

	s.runWave(60) // must not panic the test

	if got := lastUpdateTick(t, s, "b"); got != 60 {
		t.Fatalf("B should advance despite A's panic, lastUpdateTick %d", got)
	}
	if got := lastUpdateTick(t, s, "a"); got != 0 {
		t.Fatalf("A's lastUpdateTick should be unchanged after panic, got %d", got)
	}
}

func TestShortageAndStorageWarningEvents(t *testing.T) {
	store := newFakeStore()
	storageID := store.addSettlement("a", "owner-1", "world-1", 200)
	// Nearly full food against 200 capacity, nearly no water for 200 settlers.
	store.resources[storageID] = ResourceAmounts{Food: 195, Water: 1, Wood: 50, Stone: 50, Ore: 0}

	sink := &recordSink{}
	s := newTestScheduler(store, sink)
	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	if got := sink.byType(EventStorageWarning); len(got) != 1 {
		t.Fatalf("expected one storage-warning, got %d", len(got))
	} else if p := got[0].Payload.(StorageWarningPayload); !p.NearCapacity.Food {
		t.Fatalf("food should be flagged near capacity, got %+v", p.NearCapacity)
	}

	if got := sink.byType(EventResourceShortage); len(got) != 1 {
		t.Fatalf("expected one resource-shortage, got %d", len(got))
	} else if p := got[0].Payload.(ResourceShortagePayload); p.Population != 200 {
		t.Fatalf("shortage payload population %d", p.Population)
	}
}

func TestWasteEventOnOverflow(t *testing.T) {
	store := newFakeStore()
	storageID := store.addSettlement("a", "owner-1", "world-1", 0)
	// Water at its 100 cap; the well keeps pumping into a full cistern.
	store.structures["a"] = []Structure{
		{Name: "WELL", Category: CategoryExtractor},
	}
	store.resources[storageID] = ResourceAmounts{Water: 100}

	sink := &recordSink{}
	s := newTestScheduler(store, sink)
	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	wastes := sink.byType(EventResourceWaste)
	if len(wastes) != 1 {
		t.Fatalf("expected one resource-waste, got %d", len(wastes))
	}
	p := wastes[0].Payload.(ResourceWastePayload)
	if p.Waste.Water <= 0 {
		t.Fatalf("expected positive water waste, got %+v", p.Waste)
	}
	if store.resources[storageID].Water != 100 {
		t.Fatalf("water should stay clamped at capacity, got %.2f", store.resources[storageID].Water)
	}
}

func TestRegisterDuringWaveSkipsUntilNextWave(t *testing.T) {
	store := newFakeStore()
	storageID := store.addSettlement("a", "owner-1", "world-1", 10)
	before := store.resources[storageID]
	sink := &recordSink{}
	s := newTestScheduler(store, sink)

	// A wave launched at tick 60 snapshots the registry while the counter
	// has already advanced, so a settlement registered at tick 61 lands in
	// the snapshot stamped ahead of the wave's tick.
	s.tick.Store(61)
	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	if store.resources[storageID] != before {
		t.Fatalf("settlement registered ahead of the wave must not be simulated: %+v -> %+v", before, store.resources[storageID])
	}
	if got := sink.byType(EventResourceUpdate); len(got) != 0 {
		t.Fatalf("expected no events for a skipped settlement, got %d", len(got))
	}
	if got := lastUpdateTick(t, s, "a"); got != 61 {
		t.Fatalf("registration tick must be preserved, got %d", got)
	}

	// The next wave picks it up with a normal window.
	s.runWave(120)
	if got := lastUpdateTick(t, s, "a"); got != 120 {
		t.Fatalf("expected the following wave to advance the settlement, got %d", got)
	}
	if got := sink.byType(EventResourceUpdate); len(got) != 1 {
		t.Fatalf("expected one resource-update from the following wave, got %d", len(got))
	}
}

func TestPopulationStepEmitsSettlerArrived(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 10)

	sink := &recordSink{}
	s := newTestScheduler(store, sink)
	s.cfg.PopulationPeriodTicks = 60
	// Immigration trial succeeds, batch roll adds 2 on top of the base 1;
	// growth rounding draws nothing because the stored record has no
	// last-growth timestamp.
	s.popModel = PopulationModel{RNG: &scriptRand{floats: []float64{0.0}, ints: []int{2}}}

	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	arrived := sink.byType(EventSettlerArrived)
	if len(arrived) != 1 {
		t.Fatalf("expected one settler-arrived, got %d", len(arrived))
	}
	p := arrived[0].Payload.(SettlerArrivedPayload)
	if p.ImmigrantCount != 3 {
		t.Fatalf("expected 3 immigrants, got %d", p.ImmigrantCount)
	}
	if p.Population != 13 {
		t.Fatalf("expected population 13 after arrival, got %d", p.Population)
	}

	growth := sink.byType(EventPopulationGrowth)
	if len(growth) != 1 {
		t.Fatalf("expected one population-growth, got %d", len(growth))
	}
	gp := growth[0].Payload.(PopulationGrowthPayload)
	if gp.OldPopulation != 10 || gp.NewPopulation != 13 {
		t.Fatalf("unexpected growth payload %+v", gp)
	}
	if store.populations["a"].Current != 13 {
		t.Fatalf("arrival must be persisted, got %d", store.populations["a"].Current)
	}
}

func TestPopulationStepEmitsLowHappinessWarning(t *testing.T) {
	store := newFakeStore()
	storageID := store.addSettlement("a", "owner-1", "world-1", 10)
	store.populations["a"].Happiness = 10
	store.resources[storageID] = ResourceAmounts{}

	sink := &recordSink{}
	s := newTestScheduler(store, sink)
	s.cfg.PopulationPeriodTicks = 60
	// No scripted draws: the emigration trial fails, leaving only the
	// happiness condition to warn on.
	s.popModel = PopulationModel{RNG: &scriptRand{}}

	s.Register("a", "owner-1", "world-1")
	s.runWave(60)

	warnings := sink.byType(EventPopulationWarning)
	if len(warnings) != 1 {
		t.Fatalf("expected one population-warning, got %d", len(warnings))
	}
	p := warnings[0].Payload.(PopulationWarningPayload)
	if p.Kind != WarnLowHappiness {
		t.Fatalf("expected %s warning, got %s", WarnLowHappiness, p.Kind)
	}
	if p.Happiness >= lowHappinessThreshold {
		t.Fatalf("warning happiness should be below %d, got %.1f", lowHappinessThreshold, p.Happiness)
	}
}

func TestPopulationStepOnPeriod(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 10)
	store.populations["a"].LastGrowthTimestamp = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

	sink := &recordSink{}
	s := newTestScheduler(store, sink)
	s.cfg.PopulationPeriodTicks = 60 // align with the coarse wave for the test
	s.Register("a", "owner-1", "world-1")

	s.runWave(60)

	if got := sink.byType(EventPopulationState); len(got) != 1 {
		t.Fatalf("expected one population-state, got %d", len(got))
	}
	if store.popUpdates == 0 {
		t.Fatalf("population record should have been persisted")
	}
	if p := store.populations["a"]; p.Current < 1 || p.Current > p.Capacity {
		t.Fatalf("population %d outside [1, %d]", p.Current, p.Capacity)
	}
}

func TestPopulationStepSkippedOffPeriod(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 10)

	sink := &recordSink{}
	s := newTestScheduler(store, sink)
	s.Register("a", "owner-1", "world-1")
	s.runWave(60) // default period is far away

	if got := sink.byType(EventPopulationState); len(got) != 0 {
		t.Fatalf("population step must not run off-period, got %d events", len(got))
	}
}

func TestRegisterIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 0)
	s := newTestScheduler(store, &recordSink{})

	s.tick.Store(10)
	s.Register("a", "owner-1", "world-1")
	s.tick.Store(99)
	s.Register("a", "owner-1", "world-1") // no-op, keeps original tick

	if got := lastUpdateTick(t, s, "a"); got != 10 {
		t.Fatalf("re-registration must not reset lastUpdateTick, got %d", got)
	}
	if s.registry.Len() != 1 {
		t.Fatalf("expected one registration, got %d", s.registry.Len())
	}

	s.Unregister("a")
	s.Unregister("a") // idempotent
	if s.registry.Len() != 0 {
		t.Fatalf("expected empty registry after unregister")
	}
}

func TestRegisterOwnerBulk(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 0)
	store.addSettlement("b", "owner-1", "world-1", 0)
	store.addSettlement("c", "owner-2", "world-1", 0)
	// One of owner-1's settlements has gone missing entirely.
	store.owners["owner-1"] = append(store.owners["owner-1"], "ghost")

	s := newTestScheduler(store, &recordSink{})
	if err := s.RegisterOwner(context.Background(), "owner-1"); err != nil {
		t.Fatalf("bulk register failed: %v", err)
	}

	if !s.registry.Contains("a") || !s.registry.Contains("b") {
		t.Fatalf("owner-1 settlements should be registered")
	}
	if s.registry.Contains("c") || s.registry.Contains("ghost") {
		t.Fatalf("unexpected registrations: %+v", s.registry.Snapshot())
	}

	s.UnregisterOwner("owner-1")
	if s.registry.Len() != 0 {
		t.Fatalf("owner leave should clear their settlements")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store, &recordSink{})

	if st := s.Status(); st.Running {
		t.Fatalf("scheduler should start stopped")
	}

	s.Stop() // not running: warn + no-op, must not panic

	s.Start()
	s.Start() // already running: warn + no-op
	if st := s.Status(); !st.Running {
		t.Fatalf("scheduler should be running after Start")
	}

	s.Register("a", "owner-1", "world-1")
	s.Stop()
	if st := s.Status(); st.Running {
		t.Fatalf("scheduler should be stopped after Stop")
	}
	if s.registry.Len() != 0 {
		t.Fatalf("stop should clear the registry")
	}
	s.Stop() // idempotent
}

func TestWaveInFlightGuard(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store, &recordSink{})

	// Pretend a slow wave is still running when the coarse tick fires.
	s.waveInFlight.Store(true)
	s.tick.Store(59)
	s.Step()

	if got := s.skippedWaves.Load(); got != 1 {
		t.Fatalf("expected 1 skipped wave, got %d", got)
	}

	// Off-period ticks never consult the guard.
	s.Step()
	if got := s.skippedWaves.Load(); got != 1 {
		t.Fatalf("off-period tick should not count a skip, got %d", got)
	}
}

func TestStatusReportsTickAndCount(t *testing.T) {
	store := newFakeStore()
	store.addSettlement("a", "owner-1", "world-1", 0)
	s := newTestScheduler(store, &recordSink{})

	s.Register("a", "owner-1", "world-1")
	s.tick.Store(123)

	st := s.Status()
	if st.CurrentTick != 123 || st.ActiveCount != 1 || st.TickRate != 60 {
		t.Fatalf("unexpected status %+v", st)
	}
}
