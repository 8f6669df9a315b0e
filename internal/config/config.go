// Package config loads daemon configuration from a YAML file with
// environment overrides for the deployment-specific bits.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the simd configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// APIPort serves /api/v1/status and /ws.
	APIPort int `yaml:"api_port"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// SchedulerConfig mirrors the scheduler tuning knobs. Zero values fall back
// to the scheduler's own defaults.
type SchedulerConfig struct {
	TickRate              int     `yaml:"tick_rate"`
	CoarsePeriodTicks     uint64  `yaml:"coarse_period_ticks"`
	PopulationPeriodTicks uint64  `yaml:"population_period_ticks"`
	BatchSize             int     `yaml:"batch_size"`
	StatusLogTicks        uint64  `yaml:"status_log_ticks"`
	NearCapacityThreshold float64 `yaml:"near_capacity_threshold"`
	BaseStorageCapacity   float64 `yaml:"base_storage_capacity"`
	ShortageBufferHours   float64 `yaml:"shortage_buffer_hours"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DBPath:  "data/hearth.db",
		APIPort: 8080,
	}
}

// Load reads the YAML file at path, falling back to defaults when the file
// does not exist, then applies environment overrides (HEARTH_DB_PATH,
// HEARTH_API_PORT).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("HEARTH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HEARTH_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse HEARTH_API_PORT %q: %w", v, err)
		}
		cfg.APIPort = port
	}

	return cfg, nil
}
