// Snapshot types read from the external store each wave. These are read-only
// views; the only records the scheduler writes back are storage resources and
// the population record.
package sim

import "time"

// Structure categories as classified by the settlement service.
const (
	CategoryExtractor = "extractor"
	CategoryStorage   = "storage"
	CategoryHousing   = "housing"
	CategoryBuilding  = "building"
)

// Modifier names the scheduler interprets. Extractors carry yield_<resource>
// rates (units per hour at level 1) and an optional level; storage structures
// carry storage_<resource> capacity bonuses; housing carries a housing bonus.
const (
	ModifierLevel   = "level"
	ModifierHousing = "housing"
)

// Modifier is a named numeric effect on a structure. Order is preserved as
// returned by the store.
type Modifier struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Structure is a read-only snapshot of a built structure, taken once per wave.
type Structure struct {
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Modifiers []Modifier `json:"modifiers"`
}

// Level returns the structure's level modifier, defaulting to 1.
func (s Structure) Level() int {
	for _, m := range s.Modifiers {
		if m.Name == ModifierLevel && m.Value >= 1 {
			return int(m.Value)
		}
	}
	return 1
}

// Modifier returns the value of the named modifier and whether it was present.
// With duplicate names the first wins, matching the ordered-list contract.
func (s Structure) Modifier(name string) (float64, bool) {
	for _, m := range s.Modifiers {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// IsExtractor reports whether the structure produces raw resources.
func (s Structure) IsExtractor() bool { return s.Category == CategoryExtractor }

// Plot is the land a settlement occupies: its area and the base per-resource
// yield potential the terrain offers to extractors.
type Plot struct {
	ID         string          `json:"id"`
	Area       float64         `json:"area"`
	BaseYields ResourceAmounts `json:"base_yields"`
}

// Settlement is the identity slice of a settlement record.
type Settlement struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	WorldID string `json:"world_id"`
}

// Storage identifies the settlement's storage record; current amounts are
// fetched separately so the read sits close to the write.
type Storage struct {
	ID string `json:"id"`
}

// SettlementDetail is the full per-wave snapshot for one settlement. Biome is
// an identifier string; unknown biomes fall back to neutral efficiency.
type SettlementDetail struct {
	Settlement *Settlement
	Storage    *Storage
	Plot       *Plot
	Biome      string
}

// Complete reports whether every sub-record required for a simulation step is
// present. Incomplete details get the settlement deregistered.
func (d *SettlementDetail) Complete() bool {
	return d != nil && d.Settlement != nil && d.Storage != nil && d.Plot != nil
}

// PopulationState is the externally persisted population record. Only the
// population dynamics step mutates it, and only at population-period
// granularity.
type PopulationState struct {
	Current             int       `json:"current"`
	Capacity            int       `json:"capacity"`
	Happiness           float64   `json:"happiness"` // 0..100
	GrowthRate          float64   `json:"growth_rate"`
	ImmigrationChance   float64   `json:"immigration_chance"`
	EmigrationChance    float64   `json:"emigration_chance"`
	LastGrowthTimestamp time.Time `json:"last_growth_timestamp"`
}

// simState is the scheduler-private bookkeeping for one registered
// settlement. It is rebuilt from external state on (re)registration and never
// persisted.
type simState struct {
	SettlementID   string
	OwnerID        string
	WorldID        string
	LastUpdateTick uint64
}
