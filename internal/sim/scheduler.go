// Tick scheduler: drives the simulation at a fixed cadence, decouples
// wall-clock ticking from per-settlement update cadence, bounds concurrency
// of external calls, and isolates per-settlement failures.
package sim

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds scheduler tuning. Zero values take the documented defaults.
type Config struct {
	TickRate              int     // ticks per second (default 60)
	CoarsePeriodTicks     uint64  // settlement update cadence (default = TickRate, once/second)
	PopulationPeriodTicks uint64  // population evaluation cadence (default 36000, every 10 min at 60 Hz)
	BatchSize             int     // concurrent settlements per batch (default 10)
	StatusLogTicks        uint64  // status log cadence (default 300 × TickRate)
	NearCapacityThreshold float64 // storage warning threshold (default 0.9)
	BaseStorageCapacity   float64 // per-resource capacity floor (default 100)
	ShortageBufferHours   float64 // consumption lookahead (default 1)
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = 60
	}
	if c.CoarsePeriodTicks == 0 {
		c.CoarsePeriodTicks = uint64(c.TickRate)
	}
	if c.PopulationPeriodTicks == 0 {
		c.PopulationPeriodTicks = 36000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.StatusLogTicks == 0 {
		c.StatusLogTicks = 300 * uint64(c.TickRate)
	}
	if c.NearCapacityThreshold <= 0 {
		c.NearCapacityThreshold = DefaultNearCapacityThreshold
	}
	if c.BaseStorageCapacity <= 0 {
		c.BaseStorageCapacity = DefaultBaseCapacity
	}
	if c.ShortageBufferHours <= 0 {
		c.ShortageBufferHours = 1
	}
	return c
}

// Status is the scheduler state reported to collaborators.
type Status struct {
	Running     bool   `json:"running"`
	CurrentTick uint64 `json:"current_tick"`
	ActiveCount int    `json:"active_count"`
	TickRate    int    `json:"tick_rate"`
}

// Scheduler orchestrates the simulation models per wave and emits events.
// One timer drives ticks; coarse waves run off the timer goroutine behind an
// in-flight guard, so a slow wave skips coarse ticks instead of overlapping.
type Scheduler struct {
	cfg   Config
	store Store
	sink  Sink

	registry *Registry

	production  ProductionModel
	consumption ConsumptionModel
	storage     StorageModel
	popModel    PopulationModel

	rng Rand
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	tick         atomic.Uint64
	waveInFlight atomic.Bool
	skippedWaves atomic.Uint64
}

// NewScheduler builds a scheduler over the given store and event sink. The
// random source is seeded from the clock; tests swap in a seeded source
// before starting.
func NewScheduler(cfg Config, store Store, sink Sink) *Scheduler {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	ticksPerHour := float64(cfg.TickRate) * 3600
	s := &Scheduler{
		cfg:         cfg,
		store:       store,
		sink:        sink,
		registry:    NewRegistry(),
		production:  ProductionModel{TicksPerHour: ticksPerHour},
		consumption: ConsumptionModel{TicksPerHour: ticksPerHour, BufferHours: cfg.ShortageBufferHours},
		storage:     StorageModel{BaseCapacity: cfg.BaseStorageCapacity},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
	s.popModel = PopulationModel{RNG: s.rng}
	return s
}

// Start begins ticking. Warns and no-ops if already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		slog.Warn("scheduler already running", "tick", s.tick.Load())
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	interval := time.Second / time.Duration(s.cfg.TickRate)

	go s.loop(interval, s.stopCh)
	slog.Info("scheduler started",
		"tick_rate", s.cfg.TickRate,
		"coarse_period", s.cfg.CoarsePeriodTicks,
		"population_period", s.cfg.PopulationPeriodTicks,
		"batch_size", s.cfg.BatchSize,
	)
}

// Stop halts ticking and clears the registry. Warns and no-ops if not
// running. An in-flight wave is not cancelled; its writes complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		slog.Warn("scheduler not running")
		return
	}
	s.running = false
	close(s.stopCh)
	s.registry.Clear()
	slog.Info("scheduler stopped", "tick", s.tick.Load())
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step advances the tick counter by one and, on coarse-period ticks, launches
// a wave. Exposed so tests can drive the scheduler without the wall clock.
func (s *Scheduler) Step() {
	tick := s.tick.Add(1)

	if tick%s.cfg.StatusLogTicks == 0 {
		slog.Info("scheduler status",
			"tick", tick,
			"active", s.registry.Len(),
			"skipped_waves", s.skippedWaves.Load(),
		)
	}

	if tick%s.cfg.CoarsePeriodTicks != 0 {
		return
	}

	if !s.waveInFlight.CompareAndSwap(false, true) {
		s.skippedWaves.Add(1)
		slog.Warn("wave still in flight, skipping coarse tick", "tick", tick)
		return
	}
	go func() {
		defer s.waveInFlight.Store(false)
		s.runWave(tick)
	}()
}

// runWave processes every registered settlement in fixed-size batches.
// Batches run strictly in sequence; members of a batch run concurrently and
// touch disjoint state.
func (s *Scheduler) runWave(tick uint64) {
	wave := s.registry.Snapshot()
	if len(wave) == 0 {
		return
	}

	for start := 0; start < len(wave); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(wave) {
			end = len(wave)
		}
		var wg sync.WaitGroup
		for _, st := range wave[start:end] {
			wg.Add(1)
			go func(st simState) {
				defer wg.Done()
				s.processSettlement(st, tick)
			}(st)
		}
		wg.Wait()
	}
}

// processSettlement runs one settlement's simulation step. Any failure is
// contained here: it is logged with the settlement id and tick, the
// settlement's lastUpdateTick stays put, and the rest of the batch is
// unaffected.
func (s *Scheduler) processSettlement(st simState, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("settlement step panicked", "settlement", st.SettlementID, "tick", tick, "panic", r)
		}
	}()

	// Registration stamps lastUpdateTick from the live counter, which can
	// pass this wave's tick while the wave is snapshotting. Such a
	// settlement has no elapsed window yet; its first cycle is next wave.
	if st.LastUpdateTick >= tick {
		return
	}

	ctx := context.Background()

	detail, err := s.store.Detail(ctx, st.SettlementID)
	if err != nil || !detail.Complete() {
		if err == nil || errors.Is(err, ErrNotFound) {
			// Required sub-records missing: drop from simulation until a
			// collaborator re-registers it.
			s.registry.Unregister(st.SettlementID)
			slog.Warn("settlement detail incomplete, deregistered", "settlement", st.SettlementID, "tick", tick)
			return
		}
		slog.Error("settlement detail fetch failed", "settlement", st.SettlementID, "tick", tick, "error", err)
		return
	}

	structures, err := s.store.Structures(ctx, st.SettlementID)
	if err != nil {
		slog.Error("structure fetch failed", "settlement", st.SettlementID, "tick", tick, "error", err)
		return
	}

	pop, err := s.store.Population(ctx, st.SettlementID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("population fetch failed", "settlement", st.SettlementID, "tick", tick, "error", err)
		return
	}
	population := 0
	if pop != nil {
		population = pop.Current
	}

	elapsed := tick - st.LastUpdateTick

	produced := s.production.Produce(detail.Plot, structures, elapsed, detail.Biome)
	consumed := s.consumption.Consume(population, len(structures), elapsed)
	net := produced.Sub(consumed)

	current, err := s.store.Resources(ctx, detail.Storage.ID)
	if err != nil {
		slog.Error("resource fetch failed", "settlement", st.SettlementID, "tick", tick, "error", err)
		return
	}

	capacity := s.storage.Capacity(structures)
	waste := Waste(current, net, capacity)
	final := Clamp(current.Add(net), capacity)

	if err := s.store.UpdateResources(ctx, detail.Storage.ID, final); err != nil {
		slog.Error("resource update failed", "settlement", st.SettlementID, "tick", tick, "error", err)
		return
	}
	s.registry.Advance(st.SettlementID, tick)

	worldID := st.WorldID
	s.emit(worldID, st.SettlementID, EventResourceUpdate, ResourceUpdatePayload{
		Resources:     final,
		Production:    produced,
		Consumption:   consumed,
		NetProduction: net,
		Population:    population,
	})
	if waste.AnyPositive() {
		s.emit(worldID, st.SettlementID, EventResourceWaste, ResourceWastePayload{
			Waste:    waste,
			Capacity: capacity,
		})
	}
	if flags := NearCapacity(final, capacity, s.cfg.NearCapacityThreshold); flags.Any() {
		s.emit(worldID, st.SettlementID, EventStorageWarning, StorageWarningPayload{
			NearCapacity: flags,
			Resources:    final,
			Capacity:     capacity,
		})
	}
	if population > 0 && !s.consumption.HasResourcesForPopulation(population, len(structures), final) {
		s.emit(worldID, st.SettlementID, EventResourceShortage, ResourceShortagePayload{
			Population: population,
			Resources:  final,
		})
	}

	if tick%s.cfg.PopulationPeriodTicks == 0 {
		s.runPopulationStep(ctx, st, pop, structures, final)
	}
}

// runPopulationStep evaluates population dynamics against the resources just
// computed and persists/broadcasts the outcome.
func (s *Scheduler) runPopulationStep(ctx context.Context, st simState, pop *PopulationState, structures []Structure, resources ResourceAmounts) {
	housing := HousingCapacity(structures)
	sufficient := s.consumption.HasResourcesForPopulation(popCount(pop), len(structures), resources)

	res, ok := s.popModel.Evaluate(pop, housing, sufficient, s.now())
	if !ok {
		return
	}

	if res.Changed() || res.State.Happiness != pop.Happiness {
		if err := s.store.UpdatePopulation(ctx, st.SettlementID, &res.State); err != nil {
			slog.Error("population update failed", "settlement", st.SettlementID, "error", err)
			return
		}
	}

	if res.Changed() {
		s.emit(st.WorldID, st.SettlementID, EventPopulationGrowth, PopulationGrowthPayload{
			OldPopulation: res.Previous,
			NewPopulation: res.State.Current,
			Happiness:     res.State.Happiness,
			GrowthRate:    res.State.GrowthRate,
		})
	}
	s.emit(st.WorldID, st.SettlementID, EventPopulationState, PopulationStatePayload{
		Current:     res.State.Current,
		Capacity:    res.State.Capacity,
		Happiness:   res.State.Happiness,
		Description: res.Description,
		GrowthRate:  res.State.GrowthRate,
		Status:      res.Status,
	})
	if res.Immigrants > 0 {
		s.emit(st.WorldID, st.SettlementID, EventSettlerArrived, SettlerArrivedPayload{
			Population:     res.State.Current,
			ImmigrantCount: res.Immigrants,
			Happiness:      res.State.Happiness,
		})
	}
	for _, w := range res.Warnings {
		s.emit(st.WorldID, st.SettlementID, EventPopulationWarning, PopulationWarningPayload{
			Population: res.State.Current,
			Happiness:  res.State.Happiness,
			Kind:       w.Kind,
			Message:    w.Message,
		})
	}
}

func popCount(p *PopulationState) int {
	if p == nil {
		return 0
	}
	return p.Current
}

func (s *Scheduler) emit(worldID, settlementID string, t EventType, payload any) {
	s.sink.Publish(worldID, Event{
		Type:         t,
		SettlementID: settlementID,
		Timestamp:    s.now(),
		Payload:      payload,
	})
}

// Register adds a settlement to active simulation. Idempotent.
func (s *Scheduler) Register(settlementID, ownerID, worldID string) {
	if s.registry.Register(settlementID, ownerID, worldID, s.tick.Load()) {
		slog.Info("settlement registered", "settlement", settlementID, "owner", ownerID, "world", worldID)
	}
}

// Unregister removes a settlement from active simulation. Idempotent.
func (s *Scheduler) Unregister(settlementID string) {
	if s.registry.Unregister(settlementID) {
		slog.Info("settlement unregistered", "settlement", settlementID)
	}
}

// RegisterOwner registers every active settlement owned by a player, used on
// world join. Settlements whose detail cannot be fetched are skipped.
func (s *Scheduler) RegisterOwner(ctx context.Context, ownerID string) error {
	ids, err := s.store.ActiveSettlements(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		detail, err := s.store.Detail(ctx, id)
		if err != nil || !detail.Complete() {
			slog.Warn("skipping settlement on bulk register", "settlement", id, "owner", ownerID, "error", err)
			continue
		}
		s.Register(id, ownerID, detail.Settlement.WorldID)
	}
	return nil
}

// UnregisterOwner removes every registered settlement owned by a player, used
// on world leave.
func (s *Scheduler) UnregisterOwner(ownerID string) {
	for _, st := range s.registry.Snapshot() {
		if st.OwnerID == ownerID {
			s.Unregister(st.SettlementID)
		}
	}
}

// Status reports the scheduler's current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Status{
		Running:     running,
		CurrentTick: s.tick.Load(),
		ActiveCount: s.registry.Len(),
		TickRate:    s.cfg.TickRate,
	}
}
