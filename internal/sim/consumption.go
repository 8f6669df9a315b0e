// Consumption: population and structure upkeep over elapsed ticks, plus the
// forward-looking sufficiency check that keeps the shortage signal from
// flapping on marginal deficits.
package sim

// Per-capita and per-structure hourly upkeep rates.
const (
	foodPerCapitaHour  = 0.12
	waterPerCapitaHour = 0.18
	woodPerStructHour  = 0.05
	stonePerStructHour = 0.02
)

// ConsumptionModel computes upkeep for an elapsed-tick window. BufferHours is
// the lookahead used by the sufficiency predicate (default one hour).
type ConsumptionModel struct {
	TicksPerHour float64
	BufferHours  float64
}

// Consume returns the resources consumed by a population and its structures
// over elapsedTicks. Food and water scale per-capita; maintenance wood and
// stone scale with structure count; everything is linear in elapsed time.
func (m ConsumptionModel) Consume(population, structureCount int, elapsedTicks uint64) ResourceAmounts {
	if elapsedTicks == 0 {
		return ResourceAmounts{}
	}
	hours := float64(elapsedTicks) / m.TicksPerHour
	pop := float64(population)
	structs := float64(structureCount)
	return ResourceAmounts{
		Food:  foodPerCapitaHour * pop * hours,
		Water: waterPerCapitaHour * pop * hours,
		Wood:  woodPerStructHour * structs * hours,
		Stone: stonePerStructHour * structs * hours,
	}
}

// HasResourcesForPopulation reports whether current stocks cover a full
// lookahead buffer of projected consumption. Checking a buffer rather than
// the instantaneous balance means one marginal tick cannot flip the shortage
// signal back and forth.
func (m ConsumptionModel) HasResourcesForPopulation(population, structureCount int, current ResourceAmounts) bool {
	buffer := m.BufferHours
	if buffer <= 0 {
		buffer = 1
	}
	hourly := ResourceAmounts{
		Food:  foodPerCapitaHour * float64(population),
		Water: waterPerCapitaHour * float64(population),
		Wood:  woodPerStructHour * float64(structureCount),
		Stone: stonePerStructHour * float64(structureCount),
	}
	needed := hourly.Scale(buffer)
	return current.Food >= needed.Food &&
		current.Water >= needed.Water &&
		current.Wood >= needed.Wood &&
		current.Stone >= needed.Stone &&
		current.Ore >= needed.Ore
}
