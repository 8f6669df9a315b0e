package store

import (
	"context"
	"fmt"

	"github.com/talgya/hearth/internal/sim"
)

// SeedSettlement is the full fixture shape accepted by CreateSettlement.
// Normally the settlement service owns these rows; this write path exists for
// the seeder and for tests.
type SeedSettlement struct {
	ID         string
	Name       string
	OwnerID    string
	WorldID    string
	Biome      string
	StorageID  string
	Resources  sim.ResourceAmounts
	PlotID     string
	PlotArea   float64
	Yields     sim.ResourceAmounts
	Structures []sim.Structure
	Population *sim.PopulationState
}

// CreateSettlement inserts a complete settlement fixture in one transaction.
func (db *DB) CreateSettlement(ctx context.Context, s SeedSettlement) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO settlements (id, name, owner_id, world_id, biome, active) VALUES (?, ?, ?, ?, ?, 1)",
		s.ID, s.Name, s.OwnerID, s.WorldID, s.Biome,
	); err != nil {
		return fmt.Errorf("insert settlement %s: %w", s.ID, err)
	}

	if s.StorageID != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO storages (id, settlement_id, food, water, wood, stone, ore) VALUES (?, ?, ?, ?, ?, ?, ?)",
			s.StorageID, s.ID, s.Resources.Food, s.Resources.Water, s.Resources.Wood, s.Resources.Stone, s.Resources.Ore,
		); err != nil {
			return fmt.Errorf("insert storage for %s: %w", s.ID, err)
		}
	}

	if s.PlotID != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plots (id, settlement_id, area, yield_food, yield_water, yield_wood, yield_stone, yield_ore)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.PlotID, s.ID, s.PlotArea, s.Yields.Food, s.Yields.Water, s.Yields.Wood, s.Yields.Stone, s.Yields.Ore,
		); err != nil {
			return fmt.Errorf("insert plot for %s: %w", s.ID, err)
		}
	}

	for _, st := range s.Structures {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO structures (settlement_id, name, category) VALUES (?, ?, ?)",
			s.ID, st.Name, st.Category,
		)
		if err != nil {
			return fmt.Errorf("insert structure %s for %s: %w", st.Name, s.ID, err)
		}
		structID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("structure id for %s: %w", st.Name, err)
		}
		for i, m := range st.Modifiers {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO structure_modifiers (structure_id, position, name, value) VALUES (?, ?, ?, ?)",
				structID, i, m.Name, m.Value,
			); err != nil {
				return fmt.Errorf("insert modifier %s for %s: %w", m.Name, st.Name, err)
			}
		}
	}

	if p := s.Population; p != nil {
		var ts int64
		if !p.LastGrowthTimestamp.IsZero() {
			ts = p.LastGrowthTimestamp.Unix()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO populations
				(settlement_id, current, capacity, happiness, growth_rate, immigration_chance, emigration_chance, last_growth_ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, p.Current, p.Capacity, p.Happiness, p.GrowthRate, p.ImmigrationChance, p.EmigrationChance, ts,
		); err != nil {
			return fmt.Errorf("insert population for %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// RemoveStorage deletes a settlement's storage row. Used by tests to force
// the incomplete-detail path the scheduler deregisters on.
func (db *DB) RemoveStorage(ctx context.Context, settlementID string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM storages WHERE settlement_id = ?", settlementID)
	if err != nil {
		return fmt.Errorf("remove storage for %s: %w", settlementID, err)
	}
	return nil
}
