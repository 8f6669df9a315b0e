// Population dynamics: periodic stochastic update of population and
// happiness. Evaluation is pure aside from the injected random source; the
// scheduler persists the result and emits the events.
package sim

import (
	"fmt"
	"math"
	"time"
)

// Happiness below this threshold qualifies a low-happiness warning whenever
// emigration pressure exists.
const lowHappinessThreshold = 35

// BaseHousing is the number of settlers a settlement supports before any
// housing structure is built.
const BaseHousing = 10

// HousingCapacity derives total housing from structures: the base allowance
// plus every housing modifier present.
func HousingCapacity(structures []Structure) int {
	total := float64(BaseHousing)
	for _, st := range structures {
		for _, m := range st.Modifiers {
			if m.Name == ModifierHousing {
				total += m.Value
			}
		}
	}
	if total < 1 {
		return 1
	}
	return int(total)
}

// Rand is the random source used for migration trials and growth rounding.
// *math/rand.Rand satisfies it; tests inject a seeded instance.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// PopulationModel evaluates growth, immigration, and emigration for one
// settlement at population-period cadence.
type PopulationModel struct {
	RNG Rand
}

// PopulationWarning is one qualifying warning condition from an evaluation.
type PopulationWarning struct {
	Kind    string
	Message string
}

// PopulationResult is the outcome of one dynamics evaluation.
type PopulationResult struct {
	State       PopulationState // updated record to persist
	Previous    int
	Immigrants  int // > 0 on a successful immigration trial
	Emigrants   int // > 0 on a successful emigration trial
	Warnings    []PopulationWarning
	Status      string // Growing, Stable, Declining
	Description string
}

// Changed reports whether the evaluation produced a different record than the
// input; side effects are skipped when nothing changed.
func (r PopulationResult) Changed() bool {
	return r.State.Current != r.Previous
}

// Evaluate runs one population-period update. housingCapacity comes from the
// settlement's structures, sufficient from the consumption model's lookahead
// check against current stocks, now from the scheduler's clock. Returns false
// when the population has never been initialized above zero; such settlements
// stay dormant until a collaborator seeds them.
func (m PopulationModel) Evaluate(prev *PopulationState, housingCapacity int, sufficient bool, now time.Time) (PopulationResult, bool) {
	if prev == nil || prev.Current <= 0 {
		return PopulationResult{}, false
	}

	capacity := housingCapacity
	if capacity < 1 {
		capacity = 1
	}

	happiness := nextHappiness(prev.Happiness, sufficient, prev.Current, capacity)
	growthRate := growthRateFor(happiness, sufficient)
	immigrationChance := immigrationChanceFor(happiness)
	emigrationChance := emigrationChanceFor(happiness)

	var elapsedHours float64
	if !prev.LastGrowthTimestamp.IsZero() && now.After(prev.LastGrowthTimestamp) {
		elapsedHours = now.Sub(prev.LastGrowthTimestamp).Hours()
	}

	// Natural growth, capped at capacity. Fractional remainders round
	// stochastically so small settlements still grow over time.
	grown := m.roundStochastic(float64(prev.Current) * math.Pow(1+growthRate, elapsedHours))
	if grown > capacity {
		grown = capacity
	}

	var immigrants int
	if immigrationChance > 0 && m.RNG.Float64() < immigrationChance {
		headroom := capacity - grown
		if headroom > 0 {
			maxBatch := capacity / 10
			if maxBatch < 1 {
				maxBatch = 1
			}
			immigrants = 1 + m.RNG.Intn(maxBatch)
			if immigrants > headroom {
				immigrants = headroom
			}
		}
	}

	var emigrants int
	if emigrationChance > 0 && m.RNG.Float64() < emigrationChance {
		emigrants = grown / 10
		if emigrants < 1 {
			emigrants = 1
		}
	}

	final := grown + immigrants - emigrants
	if final < 1 {
		final = 1
	}
	if final > capacity {
		final = capacity
	}

	var warnings []PopulationWarning
	if emigrants > 0 {
		warnings = append(warnings, PopulationWarning{
			Kind:    WarnEmigration,
			Message: fmt.Sprintf("%d settlers left the settlement", emigrants),
		})
	}
	if happiness < lowHappinessThreshold && emigrationChance > 0 {
		warnings = append(warnings, PopulationWarning{
			Kind:    WarnLowHappiness,
			Message: fmt.Sprintf("happiness critical at %.0f, settlers may leave", happiness),
		})
	}
	if prev.Current >= capacity {
		warnings = append(warnings, PopulationWarning{
			Kind:    WarnNoHousing,
			Message: "no housing available, growth halted",
		})
	}

	status := "Stable"
	switch {
	case final > prev.Current:
		status = "Growing"
	case final < prev.Current:
		status = "Declining"
	}

	return PopulationResult{
		State: PopulationState{
			Current:             final,
			Capacity:            capacity,
			Happiness:           happiness,
			GrowthRate:          growthRate,
			ImmigrationChance:   immigrationChance,
			EmigrationChance:    emigrationChance,
			LastGrowthTimestamp: now,
		},
		Previous:    prev.Current,
		Immigrants:  immigrants,
		Emigrants:   emigrants,
		Warnings:    warnings,
		Status:      status,
		Description: describePopulation(status, happiness),
	}, true
}

// roundStochastic rounds down, promoting the fractional remainder to a full
// unit with probability equal to the remainder.
func (m PopulationModel) roundStochastic(v float64) int {
	whole := math.Floor(v)
	if frac := v - whole; frac > 0 && m.RNG.Float64() < frac {
		whole++
	}
	return int(whole)
}

// nextHappiness moves stored happiness 30% of the way toward a target set by
// resource sufficiency, minus a housing-pressure penalty as the settlement
// fills up. Clamped to [0, 100].
func nextHappiness(current float64, sufficient bool, population, capacity int) float64 {
	target := 25.0
	if sufficient {
		target = 75.0
	}
	if capacity > 0 {
		fill := float64(population) / float64(capacity)
		if fill > 0.8 {
			target -= (fill - 0.8) * 50 // up to -10 at full housing
		}
	}
	next := current + (target-current)*0.3
	return math.Max(0, math.Min(100, next))
}

// growthRateFor derives the hourly natural growth rate. Shortage flips growth
// negative regardless of happiness.
func growthRateFor(happiness float64, sufficient bool) float64 {
	if !sufficient {
		return -0.003
	}
	return 0.002 + 0.004*happiness/100
}

// immigrationChanceFor rises with happiness above the midpoint.
func immigrationChanceFor(happiness float64) float64 {
	return clamp01((happiness-50)/100) * 0.6
}

// emigrationChanceFor rises as happiness falls below 40.
func emigrationChanceFor(happiness float64) float64 {
	return clamp01((40-happiness)/100) * 0.8
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func describePopulation(status string, happiness float64) string {
	switch {
	case status == "Growing" && happiness >= 70:
		return "The settlement thrives and newcomers keep arriving"
	case status == "Growing":
		return "The settlement is slowly growing"
	case status == "Declining" && happiness < lowHappinessThreshold:
		return "Unrest spreads as settlers pack their belongings"
	case status == "Declining":
		return "The settlement is shrinking"
	case happiness >= 70:
		return "Life in the settlement is comfortable and steady"
	default:
		return "The settlement holds steady"
	}
}
