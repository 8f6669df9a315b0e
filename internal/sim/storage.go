// Storage capacity: per-resource ceilings from built structures, clamping,
// waste attribution, and near-capacity detection.
package sim

import (
	"math"
	"strings"
)

// modifierStoragePrefix marks storage-structure modifiers that raise capacity
// for a resource, e.g. storage_food.
const modifierStoragePrefix = "storage_"

// DefaultBaseCapacity is the per-resource capacity every settlement has
// before any storage structure is built.
const DefaultBaseCapacity = 100

// DefaultNearCapacityThreshold triggers storage warnings at 90% fill.
const DefaultNearCapacityThreshold = 0.9

// StorageCapacity is the per-resource ceiling on stored amounts.
type StorageCapacity struct {
	Food  float64 `json:"food"`
	Water float64 `json:"water"`
	Wood  float64 `json:"wood"`
	Stone float64 `json:"stone"`
	Ore   float64 `json:"ore"`
}

// Get returns the capacity for the named resource, or 0.
func (c StorageCapacity) Get(name string) float64 {
	switch name {
	case "food":
		return c.Food
	case "water":
		return c.Water
	case "wood":
		return c.Wood
	case "stone":
		return c.Stone
	case "ore":
		return c.Ore
	}
	return 0
}

func (c *StorageCapacity) add(name string, v float64) {
	switch name {
	case "food":
		c.Food += v
	case "water":
		c.Water += v
	case "wood":
		c.Wood += v
	case "stone":
		c.Stone += v
	case "ore":
		c.Ore += v
	}
}

// StorageModel derives capacity from structures and applies overflow policy.
type StorageModel struct {
	BaseCapacity float64
}

// Capacity returns base capacity plus the sum of storage-structure bonuses.
func (m StorageModel) Capacity(structures []Structure) StorageCapacity {
	c := StorageCapacity{
		Food:  m.BaseCapacity,
		Water: m.BaseCapacity,
		Wood:  m.BaseCapacity,
		Stone: m.BaseCapacity,
		Ore:   m.BaseCapacity,
	}
	for _, st := range structures {
		if st.Category != CategoryStorage {
			continue
		}
		for _, mod := range st.Modifiers {
			if res, ok := strings.CutPrefix(mod.Name, modifierStoragePrefix); ok {
				c.add(res, mod.Value)
			}
		}
	}
	return c
}

// Clamp bounds amounts element-wise to [0, capacity]. Idempotent.
func Clamp(a ResourceAmounts, capacity StorageCapacity) ResourceAmounts {
	return ResourceAmounts{
		Food:  clampOne(a.Food, capacity.Food),
		Water: clampOne(a.Water, capacity.Water),
		Wood:  clampOne(a.Wood, capacity.Wood),
		Stone: clampOne(a.Stone, capacity.Stone),
		Ore:   clampOne(a.Ore, capacity.Ore),
	}
}

func clampOne(v, limit float64) float64 {
	return math.Max(0, math.Min(v, limit))
}

// Waste reports the production lost to insufficient headroom this cycle:
// element-wise max(0, current + net − capacity). It is computed independently
// of Clamp and deliberately ignores pre-existing overflow in stock.
func Waste(current, net ResourceAmounts, capacity StorageCapacity) ResourceAmounts {
	return ResourceAmounts{
		Food:  math.Max(0, current.Food+net.Food-capacity.Food),
		Water: math.Max(0, current.Water+net.Water-capacity.Water),
		Wood:  math.Max(0, current.Wood+net.Wood-capacity.Wood),
		Stone: math.Max(0, current.Stone+net.Stone-capacity.Stone),
		Ore:   math.Max(0, current.Ore+net.Ore-capacity.Ore),
	}
}

// NearCapacityFlags marks each resource at or above the fill threshold.
type NearCapacityFlags struct {
	Food  bool `json:"food"`
	Water bool `json:"water"`
	Wood  bool `json:"wood"`
	Stone bool `json:"stone"`
	Ore   bool `json:"ore"`
}

// Any reports whether any resource is flagged.
func (f NearCapacityFlags) Any() bool {
	return f.Food || f.Water || f.Wood || f.Stone || f.Ore
}

// NearCapacity flags resources at or above threshold × capacity. Resources
// with zero capacity are never flagged.
func NearCapacity(a ResourceAmounts, capacity StorageCapacity, threshold float64) NearCapacityFlags {
	near := func(v, c float64) bool { return c > 0 && v >= c*threshold }
	return NearCapacityFlags{
		Food:  near(a.Food, capacity.Food),
		Water: near(a.Water, capacity.Water),
		Wood:  near(a.Wood, capacity.Wood),
		Stone: near(a.Stone, capacity.Stone),
		Ore:   near(a.Ore, capacity.Ore),
	}
}
