// Resource production: raw extractor output over elapsed ticks, scaled by
// biome efficiency. Pure computation; overflow is the storage model's problem.
package sim

import "strings"

// modifierYieldPrefix marks extractor modifiers that add per-hour yield for a
// resource, e.g. yield_food.
const modifierYieldPrefix = "yield_"

// baseRates gives the level-1 per-hour output for the known extractor types.
// Structures not listed here produce only what their yield_<resource>
// modifiers declare.
var baseRates = map[string]ResourceAmounts{
	"FARM":        {Food: 10},
	"WELL":        {Water: 15},
	"LUMBER_CAMP": {Wood: 8},
	"QUARRY":      {Stone: 6},
	"MINE":        {Ore: 4, Stone: 1},
	"FISHING_HUT": {Food: 7, Water: 2},
}

// biomeEfficiency maps biome identifiers to per-resource multipliers. Biomes
// not listed are neutral (1.0 everywhere).
var biomeEfficiency = map[string]ResourceAmounts{
	"plains":   {Food: 1.5, Water: 1.0, Wood: 0.8, Stone: 0.9, Ore: 0.8},
	"forest":   {Food: 0.9, Water: 1.1, Wood: 1.6, Stone: 0.8, Ore: 0.7},
	"mountain": {Food: 0.5, Water: 0.8, Wood: 0.6, Stone: 1.5, Ore: 1.6},
	"river":    {Food: 1.3, Water: 1.8, Wood: 1.0, Stone: 0.9, Ore: 0.7},
	"coast":    {Food: 1.2, Water: 0.6, Wood: 0.9, Stone: 0.8, Ore: 0.6},
	"desert":   {Food: 0.4, Water: 0.3, Wood: 0.2, Stone: 1.2, Ore: 1.1},
	"tundra":   {Food: 0.5, Water: 0.9, Wood: 0.7, Stone: 1.0, Ore: 1.2},
}

// BiomeEfficiency returns the per-resource multiplier vector for a biome,
// falling back to neutral for unknown identifiers.
func BiomeEfficiency(biome string) ResourceAmounts {
	if eff, ok := biomeEfficiency[strings.ToLower(biome)]; ok {
		return eff
	}
	return ResourceAmounts{Food: 1, Water: 1, Wood: 1, Stone: 1, Ore: 1}
}

// ProductionModel computes raw extractor output for an elapsed-tick window.
// The model's reference unit is one hour; TicksPerHour converts tick deltas
// to hours.
type ProductionModel struct {
	TicksPerHour float64
}

// Produce returns the resources produced on a plot over elapsedTicks.
// Per extractor: baseRate × levelMultiplier × biomeEfficiency, summed, then
// scaled linearly by elapsedTicks/TicksPerHour. The plot's base yield
// potential is harvested on top, once per resource, for every resource at
// least one extractor works; it is the land's own output and is not scaled by
// level or biome. Zero elapsed ticks produce nothing. No clamping happens
// here.
func (m ProductionModel) Produce(plot *Plot, structures []Structure, elapsedTicks uint64, biome string) ResourceAmounts {
	if elapsedTicks == 0 || plot == nil {
		return ResourceAmounts{}
	}

	eff := BiomeEfficiency(biome)

	var hourly ResourceAmounts
	for _, st := range structures {
		if !st.IsExtractor() {
			continue
		}
		rate := extractorRate(st)
		mult := levelMultiplier(st.Level())
		hourly.Food += rate.Food * mult * eff.Food
		hourly.Water += rate.Water * mult * eff.Water
		hourly.Wood += rate.Wood * mult * eff.Wood
		hourly.Stone += rate.Stone * mult * eff.Stone
		hourly.Ore += rate.Ore * mult * eff.Ore
	}

	for _, name := range ResourceNames {
		if hourly.Get(name) > 0 {
			hourly.Set(name, hourly.Get(name)+plot.BaseYields.Get(name))
		}
	}

	hours := float64(elapsedTicks) / m.TicksPerHour
	return hourly.Scale(hours)
}

// extractorRate resolves the level-1 hourly rate for an extractor: the
// built-in table entry plus any yield_<resource> modifiers.
func extractorRate(st Structure) ResourceAmounts {
	rate := baseRates[strings.ToUpper(st.Name)]
	for _, m := range st.Modifiers {
		if res, ok := strings.CutPrefix(m.Name, modifierYieldPrefix); ok {
			rate.Set(res, rate.Get(res)+m.Value)
		}
	}
	return rate
}

// levelMultiplier scales extractor output by structure level: level 1 is
// baseline, each level above adds half the base rate.
func levelMultiplier(level int) float64 {
	if level < 1 {
		level = 1
	}
	return 1 + 0.5*float64(level-1)
}
