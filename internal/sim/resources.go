// Package sim is the real-time simulation core: a fixed-rate tick scheduler
// that recomputes resource production, consumption, storage overflow, and
// population dynamics for every registered settlement, then broadcasts
// incremental updates.
package sim

// ResourceAmounts is a per-resource quantity vector. All simulation math is
// done in float64; amounts persisted and reported are never negative.
type ResourceAmounts struct {
	Food  float64 `json:"food"`
	Water float64 `json:"water"`
	Wood  float64 `json:"wood"`
	Stone float64 `json:"stone"`
	Ore   float64 `json:"ore"`
}

// ResourceNames lists the resource kinds in canonical order.
var ResourceNames = []string{"food", "water", "wood", "stone", "ore"}

// Add returns a + b element-wise.
func (a ResourceAmounts) Add(b ResourceAmounts) ResourceAmounts {
	return ResourceAmounts{
		Food:  a.Food + b.Food,
		Water: a.Water + b.Water,
		Wood:  a.Wood + b.Wood,
		Stone: a.Stone + b.Stone,
		Ore:   a.Ore + b.Ore,
	}
}

// Sub returns a - b element-wise. The result may be negative; callers that
// need a floor clamp against a StorageCapacity.
func (a ResourceAmounts) Sub(b ResourceAmounts) ResourceAmounts {
	return ResourceAmounts{
		Food:  a.Food - b.Food,
		Water: a.Water - b.Water,
		Wood:  a.Wood - b.Wood,
		Stone: a.Stone - b.Stone,
		Ore:   a.Ore - b.Ore,
	}
}

// Scale returns a × k element-wise.
func (a ResourceAmounts) Scale(k float64) ResourceAmounts {
	return ResourceAmounts{
		Food:  a.Food * k,
		Water: a.Water * k,
		Wood:  a.Wood * k,
		Stone: a.Stone * k,
		Ore:   a.Ore * k,
	}
}

// IsZero reports whether every component is exactly zero.
func (a ResourceAmounts) IsZero() bool {
	return a == ResourceAmounts{}
}

// AnyPositive reports whether any component is greater than zero.
func (a ResourceAmounts) AnyPositive() bool {
	return a.Food > 0 || a.Water > 0 || a.Wood > 0 || a.Stone > 0 || a.Ore > 0
}

// Get returns the component named by one of ResourceNames, or 0.
func (a ResourceAmounts) Get(name string) float64 {
	switch name {
	case "food":
		return a.Food
	case "water":
		return a.Water
	case "wood":
		return a.Wood
	case "stone":
		return a.Stone
	case "ore":
		return a.Ore
	}
	return 0
}

// Set assigns the component named by one of ResourceNames.
func (a *ResourceAmounts) Set(name string, v float64) {
	switch name {
	case "food":
		a.Food = v
	case "water":
		a.Water = v
	case "wood":
		a.Wood = v
	case "stone":
		a.Stone = v
	case "ore":
		a.Ore = v
	}
}
