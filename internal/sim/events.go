// Events broadcast by the scheduler. Each event targets one world and carries
// the originating settlement id and an emission timestamp; listeners attach
// per-world through the event sink implementation.
package sim

import "time"

// EventType names the simulation event kinds on the wire.
type EventType string

const (
	EventResourceUpdate    EventType = "resource-update"
	EventResourceWaste     EventType = "resource-waste"
	EventStorageWarning    EventType = "storage-warning"
	EventResourceShortage  EventType = "resource-shortage"
	EventPopulationGrowth  EventType = "population-growth"
	EventPopulationWarning EventType = "population-warning"
	EventSettlerArrived    EventType = "settler-arrived"
	EventPopulationState   EventType = "population-state"
)

// Population warning kinds.
const (
	WarnLowHappiness = "low_happiness"
	WarnNoHousing    = "no_housing"
	WarnEmigration   = "emigration"
)

// Event is the broadcast envelope. Payload is one of the *Payload structs
// below, matching Type.
type Event struct {
	Type         EventType `json:"type"`
	SettlementID string    `json:"settlement_id"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload"`
}

// Sink receives events for broadcast to a world's listeners. Publish must be
// safe for concurrent use; settlements in a batch emit concurrently.
type Sink interface {
	Publish(worldID string, ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(string, Event) {}

// ResourceUpdatePayload reports the outcome of one coarse-period cycle.
type ResourceUpdatePayload struct {
	Resources     ResourceAmounts `json:"resources"`
	Production    ResourceAmounts `json:"production"`
	Consumption   ResourceAmounts `json:"consumption"`
	NetProduction ResourceAmounts `json:"net_production"`
	Population    int             `json:"population"`
}

// ResourceWastePayload reports production lost to full storage this cycle.
type ResourceWastePayload struct {
	Waste    ResourceAmounts `json:"waste"`
	Capacity StorageCapacity `json:"capacity"`
}

// StorageWarningPayload flags resources at or above the near-capacity
// threshold.
type StorageWarningPayload struct {
	NearCapacity NearCapacityFlags `json:"near_capacity"`
	Resources    ResourceAmounts   `json:"resources"`
	Capacity     StorageCapacity   `json:"capacity"`
}

// ResourceShortagePayload signals stocks below the consumption lookahead
// buffer. Informational; never a hard failure.
type ResourceShortagePayload struct {
	Population int             `json:"population"`
	Resources  ResourceAmounts `json:"resources"`
}

// PopulationGrowthPayload reports a population change from a dynamics
// evaluation.
type PopulationGrowthPayload struct {
	OldPopulation int     `json:"old_population"`
	NewPopulation int     `json:"new_population"`
	Happiness     float64 `json:"happiness"`
	GrowthRate    float64 `json:"growth_rate"`
}

// PopulationWarningPayload carries a qualifying warning condition.
type PopulationWarningPayload struct {
	Population int     `json:"population"`
	Happiness  float64 `json:"happiness"`
	Kind       string  `json:"kind"`
	Message    string  `json:"message"`
}

// SettlerArrivedPayload reports a successful immigration trial.
type SettlerArrivedPayload struct {
	Population     int     `json:"population"`
	ImmigrantCount int     `json:"immigrant_count"`
	Happiness      float64 `json:"happiness"`
}

// PopulationStatePayload is the summary emitted on every dynamics
// evaluation.
type PopulationStatePayload struct {
	Current     int     `json:"current"`
	Capacity    int     `json:"capacity"`
	Happiness   float64 `json:"happiness"`
	Description string  `json:"description"`
	GrowthRate  float64 `json:"growth_rate"`
	Status      string  `json:"status"` // Growing, Stable, Declining
}
