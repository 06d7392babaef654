// Command citysim runs the city simulation server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mpue/citysim/internal/api"
	"github.com/mpue/citysim/internal/engine"
	"github.com/mpue/citysim/internal/entropy"
	"github.com/mpue/citysim/internal/persistence"
	"github.com/mpue/citysim/internal/snapshot"
	"github.com/mpue/citysim/internal/tuning"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("citysim — tile-grid city simulation")

	dbPath := envStr("CITYSIM_DB", "data/city.db")
	tuningPath := os.Getenv("CITYSIM_TUNING")
	snapshotPath := os.Getenv("CITYSIM_SNAPSHOT")
	apiPort := envInt("CITYSIM_PORT", 8080)
	seed := int64(envInt("CITYSIM_SEED", 42))

	// ── Tuning ────────────────────────────────────────────────────────
	var cfg *tuning.Tuning
	if tuningPath != "" {
		loaded, err := tuning.Load(tuningPath)
		if err != nil {
			slog.Error("failed to load tuning", "path", tuningPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("tuning loaded", "path", tuningPath)
	} else {
		cfg = tuning.Default()
	}
	slog.Info("grid configured", "width", cfg.GridWidth, "height", cfg.GridHeight,
		"starting_money", cfg.StartingMoney)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── City (load or found) ─────────────────────────────────────────
	city := engine.NewCity(cfg, entropy.NewSeeded(seed), seed)

	switch {
	case snapshotPath != "":
		snap, err := snapshot.ReadFile(snapshotPath)
		if err != nil {
			slog.Error("failed to read snapshot", "path", snapshotPath, "error", err)
			os.Exit(1)
		}
		if err := snapshot.Restore(city, snap); err != nil {
			slog.Error("failed to restore snapshot", "error", err)
			os.Exit(1)
		}
		slog.Info("city restored from snapshot", "path", snapshotPath, "tick", snap.Tick)
	case db.HasCityState():
		slog.Info("found saved city, loading...")
		if err := db.LoadCity(city); err != nil {
			slog.Error("failed to load city", "error", err)
			os.Exit(1)
		}
	default:
		slog.Info("no saved state found, founding new city", "seed", seed)
		if err := db.SaveCity(city); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Simulation loop ──────────────────────────────────────────────
	hub := api.NewHub()
	go hub.Run()

	loop := engine.NewLoop(city)
	loop.OnMonth = func(tick uint64, res engine.TickResult) {
		hub.Broadcast("tick", map[string]any{
			"tick":       tick,
			"sim_time":   engine.SimDate(tick),
			"income":     res.IncomeDelta,
			"population": res.PopulationTotal,
			"happiness":  res.Happiness,
		})
		// Auto-save yearly.
		if tick%12 == 0 {
			if err := db.SaveCity(city); err != nil {
				slog.Error("autosave failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("CITYSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("CITYSIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	server := &api.Server{
		City:     city,
		Loop:     loop,
		DB:       db,
		Hub:      hub,
		Port:     apiPort,
		AdminKey: adminKey,
	}
	server.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		loop.Stop()
	}()

	st := city.Stats()
	fmt.Printf("\nCity %s is open: %d citizens, $%d in the treasury.\n",
		st.ID, st.Population, st.Money)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	if st.Tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", st.Tick, engine.SimDate(st.Tick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	loop.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveCity(city); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. City saved.")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
