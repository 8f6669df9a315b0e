// Command seedworld populates a SQLite database with a demo world so simd
// has something to simulate during development. Plot yields are derived from
// simplex noise over a settlement grid; structure mixes are randomized per
// biome but deterministic for a given seed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hearth/internal/sim"
	"github.com/talgya/hearth/internal/store"
)

var biomes = []string{"plains", "forest", "mountain", "river", "coast", "desert", "tundra"}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dbPath := flag.String("db", "data/hearth.db", "SQLite database to seed")
	seed := flag.Int64("seed", 42, "world seed")
	owners := flag.Int("owners", 4, "number of players")
	perOwner := flag.Int("settlements", 3, "settlements per player")
	worldID := flag.String("world", "", "world id (random when empty)")
	flag.Parse()

	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	wid := *worldID
	if wid == "" {
		wid = uuid.NewString()
	}

	rng := rand.New(rand.NewSource(*seed))
	noise := opensimplex.New(*seed)
	ctx := context.Background()

	total := 0
	for o := 0; o < *owners; o++ {
		ownerID := uuid.NewString()
		for n := 0; n < *perOwner; n++ {
			s := buildSettlement(rng, noise, ownerID, wid, o**perOwner+n)
			if err := db.CreateSettlement(ctx, s); err != nil {
				slog.Error("seed settlement failed", "settlement", s.ID, "error", err)
				os.Exit(1)
			}
			slog.Info("seeded settlement",
				"settlement", s.ID,
				"name", s.Name,
				"owner", ownerID,
				"biome", s.Biome,
				"structures", len(s.Structures),
				"population", s.Population.Current,
			)
			total++
		}
	}

	slog.Info("world seeded", "world", wid, "settlements", total, "db", *dbPath)
	fmt.Printf("world %s ready: %d settlements in %s\n", wid, total, *dbPath)
}

// buildSettlement lays one settlement on the noise field. The grid index
// positions the plot; noise at that position sets biome-independent yield
// potential so neighboring settlements get similar land.
func buildSettlement(rng *rand.Rand, noise opensimplex.Noise, ownerID, worldID string, idx int) store.SeedSettlement {
	x := float64(idx%8) * 0.7
	y := float64(idx/8) * 0.7

	yieldAt := func(offset float64) float64 {
		// Noise is in [-1, 1]; map to a 2..14 per-hour potential.
		return 8 + 6*noise.Eval2(x+offset, y-offset)
	}
	yields := sim.ResourceAmounts{
		Food:  yieldAt(0),
		Water: yieldAt(1.3),
		Wood:  yieldAt(2.6),
		Stone: yieldAt(3.9),
		Ore:   yieldAt(5.2),
	}

	biome := biomes[rng.Intn(len(biomes))]
	id := uuid.NewString()

	structures := []sim.Structure{
		{Name: "FARM", Category: sim.CategoryExtractor, Modifiers: []sim.Modifier{
			{Name: sim.ModifierLevel, Value: float64(1 + rng.Intn(3))},
		}},
		{Name: "WELL", Category: sim.CategoryExtractor},
		{Name: "GRANARY", Category: sim.CategoryStorage, Modifiers: []sim.Modifier{
			{Name: "storage_food", Value: 150},
			{Name: "storage_water", Value: 100},
		}},
		{Name: "COTTAGE", Category: sim.CategoryHousing, Modifiers: []sim.Modifier{
			{Name: sim.ModifierHousing, Value: float64(10 + rng.Intn(20))},
		}},
	}
	if rng.Float64() < 0.5 {
		structures = append(structures, sim.Structure{
			Name: "LUMBER_CAMP", Category: sim.CategoryExtractor,
		})
	}
	if rng.Float64() < 0.3 {
		structures = append(structures, sim.Structure{
			Name: "QUARRY", Category: sim.CategoryExtractor, Modifiers: []sim.Modifier{
				{Name: sim.ModifierLevel, Value: 2},
			},
		})
	}

	housing := sim.HousingCapacity(structures)
	popCurrent := 3 + rng.Intn(housing/2+1)

	return store.SeedSettlement{
		ID:        id,
		Name:      settlementName(rng),
		OwnerID:   ownerID,
		WorldID:   worldID,
		Biome:     biome,
		StorageID: uuid.NewString(),
		Resources: sim.ResourceAmounts{
			Food:  40 + rng.Float64()*30,
			Water: 40 + rng.Float64()*30,
			Wood:  20 + rng.Float64()*20,
			Stone: 10 + rng.Float64()*10,
			Ore:   rng.Float64() * 5,
		},
		PlotID:     uuid.NewString(),
		PlotArea:   50 + rng.Float64()*150,
		Yields:     yields,
		Structures: structures,
		Population: &sim.PopulationState{
			Current:             popCurrent,
			Capacity:            housing,
			Happiness:           50 + rng.Float64()*20,
			LastGrowthTimestamp: time.Now().UTC(),
		},
	}
}

var namePrefixes = []string{"Oak", "Stone", "River", "Ash", "Elder", "Fox", "Raven", "Mill", "Frost", "Briar"}
var nameSuffixes = []string{"stead", "hollow", "ford", "haven", "bury", "field", "crest", "watch"}

func settlementName(rng *rand.Rand) string {
	return namePrefixes[rng.Intn(len(namePrefixes))] + nameSuffixes[rng.Intn(len(nameSuffixes))]
}
