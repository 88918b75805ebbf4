package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talgya/metaverse/internal/config"
	"github.com/talgya/metaverse/internal/iers"
)

var rootCmd = &cobra.Command{
	Use:   "metaverse",
	Short: "Island world server with time-scale and reference-frame services",
	Long: "metaverse runs a procedurally generated island with weather, volcanoes and a sky\n" +
		"computed from real time scales and Earth orientation, and exposes the same\n" +
		"conversions on the command line.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default ./metaverse.toml)")
	rootCmd.PersistentFlags().String("iers", "", "IERS data file (TOML); empty uses built-in tables")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("iers_path", rootCmd.PersistentFlags().Lookup("iers"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.Init(viper.GetViper(), path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig decodes configuration and installs the default logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, nil
}

func loadIERS(cfg config.Config) (*iers.Provider, error) {
	p, err := iers.NewProvider(cfg.IERSPath)
	if err != nil {
		return nil, fmt.Errorf("load iers data: %w", err)
	}
	return p, nil
}
