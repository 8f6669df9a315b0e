// Command simd runs the settlement simulation daemon: the tick scheduler
// over the shared store, broadcasting updates to websocket listeners.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/hearth/internal/api"
	"github.com/talgya/hearth/internal/config"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/sim"
	"github.com/talgya/hearth/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "hearth.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// ── Store ─────────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Broadcast hub + scheduler ─────────────────────────────────────
	hub := events.NewHub()

	scheduler := sim.NewScheduler(sim.Config{
		TickRate:              cfg.Scheduler.TickRate,
		CoarsePeriodTicks:     cfg.Scheduler.CoarsePeriodTicks,
		PopulationPeriodTicks: cfg.Scheduler.PopulationPeriodTicks,
		BatchSize:             cfg.Scheduler.BatchSize,
		StatusLogTicks:        cfg.Scheduler.StatusLogTicks,
		NearCapacityThreshold: cfg.Scheduler.NearCapacityThreshold,
		BaseStorageCapacity:   cfg.Scheduler.BaseStorageCapacity,
		ShortageBufferHours:   cfg.Scheduler.ShortageBufferHours,
	}, db, hub)

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("HEARTH_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("HEARTH_ADMIN_KEY not set, control endpoints will be disabled")
	}

	apiServer := &api.Server{
		Scheduler: scheduler,
		Hub:       hub,
		Port:      cfg.APIPort,
		AdminKey:  adminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	scheduler.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	scheduler.Stop()
}
