// Package store implements the simulation's query/update interface over
// SQLite. The settlement service owns these tables; the scheduler only reads
// snapshots and writes back storage amounts and population records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hearth/internal/sim"
)

// DB wraps a SQLite connection implementing sim.Store.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		world_id TEXT NOT NULL,
		biome TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS storages (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL,
		food REAL NOT NULL DEFAULT 0,
		water REAL NOT NULL DEFAULT 0,
		wood REAL NOT NULL DEFAULT 0,
		stone REAL NOT NULL DEFAULT 0,
		ore REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS plots (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL,
		area REAL NOT NULL DEFAULT 0,
		yield_food REAL NOT NULL DEFAULT 0,
		yield_water REAL NOT NULL DEFAULT 0,
		yield_wood REAL NOT NULL DEFAULT 0,
		yield_stone REAL NOT NULL DEFAULT 0,
		yield_ore REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS structures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		settlement_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS structure_modifiers (
		structure_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (structure_id, position)
	);

	CREATE TABLE IF NOT EXISTS populations (
		settlement_id TEXT PRIMARY KEY,
		current INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		happiness REAL NOT NULL,
		growth_rate REAL NOT NULL DEFAULT 0,
		immigration_chance REAL NOT NULL DEFAULT 0,
		emigration_chance REAL NOT NULL DEFAULT 0,
		last_growth_ts INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_owner ON settlements(owner_id);
	CREATE INDEX IF NOT EXISTS idx_storages_settlement ON storages(settlement_id);
	CREATE INDEX IF NOT EXISTS idx_plots_settlement ON plots(settlement_id);
	CREATE INDEX IF NOT EXISTS idx_structures_settlement ON structures(settlement_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// ActiveSettlements lists active settlement ids owned by a player.
func (db *DB) ActiveSettlements(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	err := db.conn.SelectContext(ctx, &ids,
		"SELECT id FROM settlements WHERE owner_id = ? AND active = 1 ORDER BY id",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list settlements for %s: %w", ownerID, err)
	}
	return ids, nil
}

type settlementRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	OwnerID string `db:"owner_id"`
	WorldID string `db:"world_id"`
	Biome   string `db:"biome"`
}

type storageRow struct {
	ID    string  `db:"id"`
	Food  float64 `db:"food"`
	Water float64 `db:"water"`
	Wood  float64 `db:"wood"`
	Stone float64 `db:"stone"`
	Ore   float64 `db:"ore"`
}

type plotRow struct {
	ID         string  `db:"id"`
	Area       float64 `db:"area"`
	YieldFood  float64 `db:"yield_food"`
	YieldWater float64 `db:"yield_water"`
	YieldWood  float64 `db:"yield_wood"`
	YieldStone float64 `db:"yield_stone"`
	YieldOre   float64 `db:"yield_ore"`
}

// Detail fetches the settlement snapshot. Missing sub-records leave the
// corresponding field nil; a missing settlement row is sim.ErrNotFound.
func (db *DB) Detail(ctx context.Context, settlementID string) (*sim.SettlementDetail, error) {
	var srow settlementRow
	err := db.conn.GetContext(ctx, &srow,
		"SELECT id, name, owner_id, world_id, biome FROM settlements WHERE id = ? AND active = 1",
		settlementID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, sim.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch settlement %s: %w", settlementID, err)
	}

	detail := &sim.SettlementDetail{
		Settlement: &sim.Settlement{
			ID:      srow.ID,
			Name:    srow.Name,
			OwnerID: srow.OwnerID,
			WorldID: srow.WorldID,
		},
		Biome: srow.Biome,
	}

	var stg storageRow
	err = db.conn.GetContext(ctx, &stg,
		"SELECT id, food, water, wood, stone, ore FROM storages WHERE settlement_id = ?",
		settlementID,
	)
	if err == nil {
		detail.Storage = &sim.Storage{ID: stg.ID}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch storage for %s: %w", settlementID, err)
	}

	var prow plotRow
	err = db.conn.GetContext(ctx, &prow,
		"SELECT id, area, yield_food, yield_water, yield_wood, yield_stone, yield_ore FROM plots WHERE settlement_id = ?",
		settlementID,
	)
	if err == nil {
		detail.Plot = &sim.Plot{
			ID:   prow.ID,
			Area: prow.Area,
			BaseYields: sim.ResourceAmounts{
				Food:  prow.YieldFood,
				Water: prow.YieldWater,
				Wood:  prow.YieldWood,
				Stone: prow.YieldStone,
				Ore:   prow.YieldOre,
			},
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch plot for %s: %w", settlementID, err)
	}

	return detail, nil
}

type structureRow struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Category string `db:"category"`
}

type modifierRow struct {
	StructureID int64   `db:"structure_id"`
	Name        string  `db:"name"`
	Value       float64 `db:"value"`
}

// Structures returns the settlement's structures with their modifiers in
// declared order.
func (db *DB) Structures(ctx context.Context, settlementID string) ([]sim.Structure, error) {
	var rows []structureRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT id, name, category FROM structures WHERE settlement_id = ? ORDER BY id",
		settlementID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch structures for %s: %w", settlementID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	query, args, err := sqlx.In(
		"SELECT structure_id, name, value FROM structure_modifiers WHERE structure_id IN (?) ORDER BY structure_id, position",
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("build modifier query: %w", err)
	}
	var mods []modifierRow
	if err := db.conn.SelectContext(ctx, &mods, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch modifiers for %s: %w", settlementID, err)
	}

	byStructure := make(map[int64][]sim.Modifier)
	for _, m := range mods {
		byStructure[m.StructureID] = append(byStructure[m.StructureID], sim.Modifier{Name: m.Name, Value: m.Value})
	}

	out := make([]sim.Structure, len(rows))
	for i, r := range rows {
		out[i] = sim.Structure{
			Name:      r.Name,
			Category:  r.Category,
			Modifiers: byStructure[r.ID],
		}
	}
	return out, nil
}

type populationRow struct {
	Current           int     `db:"current"`
	Capacity          int     `db:"capacity"`
	Happiness         float64 `db:"happiness"`
	GrowthRate        float64 `db:"growth_rate"`
	ImmigrationChance float64 `db:"immigration_chance"`
	EmigrationChance  float64 `db:"emigration_chance"`
	LastGrowthTS      int64   `db:"last_growth_ts"`
}

// Population fetches the population record or sim.ErrNotFound.
func (db *DB) Population(ctx context.Context, settlementID string) (*sim.PopulationState, error) {
	var row populationRow
	err := db.conn.GetContext(ctx, &row,
		`SELECT current, capacity, happiness, growth_rate, immigration_chance, emigration_chance, last_growth_ts
		 FROM populations WHERE settlement_id = ?`,
		settlementID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("population for %s: %w", settlementID, sim.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch population for %s: %w", settlementID, err)
	}

	p := &sim.PopulationState{
		Current:           row.Current,
		Capacity:          row.Capacity,
		Happiness:         row.Happiness,
		GrowthRate:        row.GrowthRate,
		ImmigrationChance: row.ImmigrationChance,
		EmigrationChance:  row.EmigrationChance,
	}
	if row.LastGrowthTS > 0 {
		p.LastGrowthTimestamp = time.Unix(row.LastGrowthTS, 0).UTC()
	}
	return p, nil
}

// UpdatePopulation upserts the population record.
func (db *DB) UpdatePopulation(ctx context.Context, settlementID string, p *sim.PopulationState) error {
	var ts int64
	if !p.LastGrowthTimestamp.IsZero() {
		ts = p.LastGrowthTimestamp.Unix()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO populations
			(settlement_id, current, capacity, happiness, growth_rate, immigration_chance, emigration_chance, last_growth_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(settlement_id) DO UPDATE SET
			current = excluded.current,
			capacity = excluded.capacity,
			happiness = excluded.happiness,
			growth_rate = excluded.growth_rate,
			immigration_chance = excluded.immigration_chance,
			emigration_chance = excluded.emigration_chance,
			last_growth_ts = excluded.last_growth_ts`,
		settlementID, p.Current, p.Capacity, p.Happiness,
		p.GrowthRate, p.ImmigrationChance, p.EmigrationChance, ts,
	)
	if err != nil {
		return fmt.Errorf("update population for %s: %w", settlementID, err)
	}
	return nil
}

// Resources fetches current storage amounts by storage id.
func (db *DB) Resources(ctx context.Context, storageID string) (sim.ResourceAmounts, error) {
	var row storageRow
	err := db.conn.GetContext(ctx, &row,
		"SELECT id, food, water, wood, stone, ore FROM storages WHERE id = ?",
		storageID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.ResourceAmounts{}, fmt.Errorf("storage %s: %w", storageID, sim.ErrNotFound)
	}
	if err != nil {
		return sim.ResourceAmounts{}, fmt.Errorf("fetch storage %s: %w", storageID, err)
	}
	return sim.ResourceAmounts{
		Food:  row.Food,
		Water: row.Water,
		Wood:  row.Wood,
		Stone: row.Stone,
		Ore:   row.Ore,
	}, nil
}

// UpdateResources persists storage amounts by storage id.
func (db *DB) UpdateResources(ctx context.Context, storageID string, r sim.ResourceAmounts) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE storages SET food = ?, water = ?, wood = ?, stone = ?, ore = ? WHERE id = ?",
		r.Food, r.Water, r.Wood, r.Stone, r.Ore, storageID,
	)
	if err != nil {
		return fmt.Errorf("update storage %s: %w", storageID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("storage %s: %w", storageID, sim.ErrNotFound)
	}
	return nil
}
