package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talgya/metaverse/internal/api"
	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/config"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/engine"
	"github.com/talgya/metaverse/internal/entropy"
	"github.com/talgya/metaverse/internal/persistence"
	"github.com/talgya/metaverse/internal/snapshot"
	"github.com/talgya/metaverse/internal/tuning"
	"github.com/talgya/metaverse/internal/weather"
	"github.com/talgya/metaverse/internal/world"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the world simulation and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		seed, _ := cmd.Flags().GetInt64("seed")
		restore, _ := cmd.Flags().GetString("restore")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, seed, restore)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":8080", "HTTP listen address")
	f.String("db", "data/metaverse.db", "SQLite database path")
	f.String("tuning", "", "world tuning file (YAML)")
	f.String("snapshot-dir", "data/snapshots", "directory for snapshot files; empty disables them")
	f.Float64("speed", 1, "simulation speed multiplier")
	f.Int64("seed", 0, "world seed for a fresh world; 0 uses the tuning file or a random seed")
	f.String("restore", "", "start from a snapshot file instead of the database")
	_ = viper.BindPFlag("addr", f.Lookup("addr"))
	_ = viper.BindPFlag("db_path", f.Lookup("db"))
	_ = viper.BindPFlag("tuning_path", f.Lookup("tuning"))
	_ = viper.BindPFlag("snapshot_dir", f.Lookup("snapshot-dir"))
	_ = viper.BindPFlag("speed", f.Lookup("speed"))
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config, seedFlag int64, restorePath string) error {
	slog.Info("metaverse world server", "world", cfg.WorldID)

	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	// ── Time and Earth orientation ────────────────────────────────────
	provider, err := loadIERS(cfg)
	if err != nil {
		return err
	}
	if err := provider.Watch(ctx); err != nil {
		slog.Warn("iers file not watched", "error", err)
	}
	slog.Info("iers data loaded", "source", provider.Data().Source, "path", provider.Path())

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or start world state ─────────────────────────────────────
	var saved *engine.State
	switch {
	case restorePath != "":
		snap, err := snapshot.ReadFile(restorePath)
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		slog.Info("restoring snapshot", "path", restorePath, "tick", humanize.Comma(int64(snap.Header.Tick)), "written", snap.Header.Written)
		saved = &snap.State
	case db.HasWorldState():
		st, err := db.LoadState()
		if err != nil {
			return fmt.Errorf("load world state: %w", err)
		}
		saved = &st
	}

	epoch, _ := cfg.EpochTime()
	genCfg := tune.World
	switch {
	case saved != nil:
		genCfg.Seed = saved.Seed
		epoch = saved.Epoch
	case seedFlag != 0:
		genCfg.Seed = seedFlag
	case genCfg.Seed == 0:
		genCfg.Seed = entropy.NewClient(cfg.Secrets.RandomOrgKey).Seed(ctx)
	}

	// ── Terrain (always regenerated, deterministic from seed) ────────
	slog.Info("generating terrain...", "seed", genCfg.Seed, "size", genCfg.Size)
	hf := world.Generate(genCfg)
	for b, n := range hf.BiomeCounts() {
		slog.Debug("biome", "type", b, "cells", n)
	}
	slog.Info("terrain ready", "extent_m", hf.Extent(), "volcanoes", len(hf.Volcanoes))

	// ── Frames and contracts ──────────────────────────────────────────
	mode, _ := cfg.VerifyMode()
	opts, _ := cfg.TransformOptions()
	conv := provider.Converter()
	site := celestial.Geodetic{Lat: cfg.Site.Lat, Lon: cfg.Site.Lon}
	site.Height = celestial.GeoidUndulation(site.Lat, site.Lon)
	tr := celestial.NewTransformer(conv, provider, opts, site)
	vc := contract.NewContext(mode, slog.Default())
	slog.Info("frames ready", "site", fmt.Sprintf("%.4f,%.4f", site.Lat, site.Lon), "verify", mode, "rotation", opts.Rotation)

	// ── Simulation ────────────────────────────────────────────────────
	weatherClient := weather.NewClient(cfg.Secrets.WeatherKey, cfg.WeatherCity)
	if weatherClient == nil {
		slog.Warn("OPENWEATHER_API_KEY not set, weather is fully procedural")
	}
	sim := engine.NewSimulation(hf, engine.NewClock(epoch, conv), tr, vc, engine.Options{
		Seed:          genCfg.Seed,
		Weather:       tune.Weather,
		Volcano:       tune.Volcano,
		WeatherClient: weatherClient,
	})

	eng := engine.NewEngine()
	if saved != nil {
		sim.Apply(*saved)
		eng.SetTick(saved.Tick)
		slog.Info("world state restored",
			"tick", humanize.Comma(int64(saved.Tick)),
			"sim_time", engine.SimTime(saved.Tick),
			"players", len(saved.Players))
	} else if err := db.SaveWorldState(sim); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	if err := eng.SetSpeed(cfg.Speed); err != nil {
		return err
	}

	eng.OnTick = sim.TickFrame
	eng.OnSecond = sim.TickSecond
	eng.OnMinute = sim.TickMinute
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Secrets.AdminKey == "" {
		slog.Warn("METAVERSE_ADMIN_KEY not set, admin endpoints are disabled")
	}
	proxies, err := api.ParseProxies(cfg.Proxies)
	if err != nil {
		return err
	}
	srv := &api.Server{
		Sim:           sim,
		Eng:           eng,
		DB:            db,
		IERS:          provider,
		WorldID:       cfg.WorldID,
		Addr:          cfg.Addr,
		SnapshotDir:   cfg.SnapshotDir,
		AdminKey:      cfg.Secrets.AdminKey,
		CORSOrigins:   cfg.Secrets.CORSOrigins,
		Proxies:       proxies,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
		ClockInterval: cfg.ClockInterval,
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	apiErr := make(chan error, 1)
	go func() { apiErr <- srv.Start(ctx) }()

	// ── Run ───────────────────────────────────────────────────────────
	engDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case runErr = <-apiErr:
		if runErr != nil {
			slog.Error("HTTP server error", "error", runErr)
		}
	}
	cancel()
	<-engDone

	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	slog.Info("world saved, goodbye", "tick", humanize.Comma(int64(sim.CurrentTick())))
	return runErr
}
