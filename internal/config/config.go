// Package config assembles runtime settings from defaults, an optional TOML
// file, METAVERSE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
)

// SiteConfig is the world's observer on the Earth.
type SiteConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

// FramesConfig toggles corrections in the frame transform chain.
type FramesConfig struct {
	PrecessionNutation bool   `mapstructure:"precession_nutation"`
	PolarMotion        bool   `mapstructure:"polar_motion"`
	Rotation           string `mapstructure:"rotation"`
	Verify             string `mapstructure:"verify"`
}

// Secrets come only from the environment.
type Secrets struct {
	AdminKey     string   `env:"METAVERSE_ADMIN_KEY"`
	WeatherKey   string   `env:"OPENWEATHER_API_KEY"`
	CORSOrigins  []string `env:"METAVERSE_CORS_ORIGINS" envSeparator:","`
	RandomOrgKey string   `env:"RANDOM_ORG_API_KEY"`
}

// Config holds all runtime configuration for a metaverse server.
type Config struct {
	WorldID       string        `mapstructure:"world_id"`
	Addr          string        `mapstructure:"addr"`
	DBPath        string        `mapstructure:"db_path"`
	SnapshotDir   string        `mapstructure:"snapshot_dir"`
	TuningPath    string        `mapstructure:"tuning_path"`
	IERSPath      string        `mapstructure:"iers_path"`
	Epoch         string        `mapstructure:"epoch"`
	Speed         float64       `mapstructure:"speed"`
	LogLevel      string        `mapstructure:"log_level"`
	WeatherCity   string        `mapstructure:"weather_city"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RateWindow    time.Duration `mapstructure:"rate_window"`
	ClockInterval time.Duration `mapstructure:"clock_interval"`
	Proxies       []string      `mapstructure:"trusted_proxies"`
	Site          SiteConfig    `mapstructure:"site"`
	Frames        FramesConfig  `mapstructure:"frames"`

	Secrets Secrets `mapstructure:"-"`
}

// SetDefaults registers every key so environment overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("world_id", "island")
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "data/metaverse.db")
	v.SetDefault("snapshot_dir", "data/snapshots")
	v.SetDefault("tuning_path", "")
	v.SetDefault("iers_path", "")
	v.SetDefault("epoch", "2024-03-20T12:00:00Z")
	v.SetDefault("speed", 1.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("weather_city", "Hilo,US")
	v.SetDefault("rate_limit", 60)
	v.SetDefault("rate_window", time.Minute)
	v.SetDefault("clock_interval", time.Second)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("site.lat", 19.7241)
	v.SetDefault("site.lon", -155.0868)
	v.SetDefault("frames.precession_nutation", true)
	v.SetDefault("frames.polar_motion", true)
	v.SetDefault("frames.rotation", "gmst")
	v.SetDefault("frames.verify", "warn")
}

// Init points v at a config file and the environment. An empty path looks
// for metaverse.toml in the working directory; a missing default file is fine.
func Init(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("metaverse")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("METAVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes v, applying defaults for anything unset, and reads secrets
// from the environment. A nil v uses the global viper.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail deep inside startup.
func (c Config) Validate() error {
	if _, err := c.EpochTime(); err != nil {
		return err
	}
	if _, err := c.VerifyMode(); err != nil {
		return err
	}
	if _, err := c.TransformOptions(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Site.Lat < -90 || c.Site.Lat > 90 || c.Site.Lon < -180 || c.Site.Lon > 180 {
		return fmt.Errorf("site %g,%g out of range", c.Site.Lat, c.Site.Lon)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed %g: must be positive", c.Speed)
	}
	if c.RateLimit < 1 || c.RateWindow <= 0 {
		return fmt.Errorf("rate limit %d per %v: must be positive", c.RateLimit, c.RateWindow)
	}
	return nil
}

// EpochTime parses the simulation epoch, the UTC instant of tick 0.
func (c Config) EpochTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch %q: %w", c.Epoch, err)
	}
	return t.UTC(), nil
}

// VerifyMode returns the contract verification mode.
func (c Config) VerifyMode() (contract.Mode, error) {
	return contract.ParseMode(strings.ToLower(c.Frames.Verify))
}

// TransformOptions returns the frame chain toggles.
func (c Config) TransformOptions() (celestial.Options, error) {
	model, err := celestial.ParseRotationModel(strings.ToLower(c.Frames.Rotation))
	if err != nil {
		return celestial.Options{}, err
	}
	return celestial.Options{
		PrecessionNutation: c.Frames.PrecessionNutation,
		PolarMotion:        c.Frames.PolarMotion,
		Rotation:           model,
	}, nil
}

// Level maps log_level to a slog level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
