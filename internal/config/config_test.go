package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"WorldID", cfg.WorldID, "island"},
		{"Addr", cfg.Addr, ":8080"},
		{"DBPath", cfg.DBPath, "data/metaverse.db"},
		{"Speed", cfg.Speed, 1.0},
		{"RateLimit", cfg.RateLimit, 60},
		{"RateWindow", cfg.RateWindow, time.Minute},
		{"Rotation", cfg.Frames.Rotation, "gmst"},
		{"Verify", cfg.Frames.Verify, "warn"},
		{"PolarMotion", cfg.Frames.PolarMotion, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	epoch, _ := cfg.EpochTime()
	if !epoch.Equal(time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("epoch = %v", epoch)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("METAVERSE_ADDR", ":9999")
	t.Setenv("METAVERSE_SITE_LAT", "-33.9")
	t.Setenv("METAVERSE_FRAMES_VERIFY", "strict")
	t.Setenv("METAVERSE_ADMIN_KEY", "secret")
	t.Setenv("METAVERSE_CORS_ORIGINS", "https://a.example,https://b.example")

	v := viper.New()
	if err := Init(v, ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Site.Lat != -33.9 {
		t.Errorf("cfg = %+v", cfg)
	}
	if mode, _ := cfg.VerifyMode(); mode != contract.ModeStrict {
		t.Errorf("mode = %v", mode)
	}
	if cfg.Secrets.AdminKey != "secret" || len(cfg.Secrets.CORSOrigins) != 2 {
		t.Errorf("secrets = %+v", cfg.Secrets)
	}
}

func TestInit_ReadsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metaverse.toml")
	body := `
world_id = "atoll"
speed = 10.0
trusted_proxies = ["10.0.0.0/8", "192.0.2.1"]

[frames]
rotation = "era"
precession_nutation = false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	if err := Init(v, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorldID != "atoll" || cfg.Speed != 10 || len(cfg.Proxies) != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	opts, err := cfg.TransformOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Rotation != celestial.ModelERA || opts.PrecessionNutation || !opts.PolarMotion {
		t.Errorf("options = %+v", opts)
	}
}

func TestInit_MissingExplicitFile(t *testing.T) {
	if err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Init accepted a missing explicit config file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	base, err := Load(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"epoch", func(c *Config) { c.Epoch = "yesterday" }},
		{"verify", func(c *Config) { c.Frames.Verify = "loud" }},
		{"rotation", func(c *Config) { c.Frames.Rotation = "tio" }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"latitude", func(c *Config) { c.Site.Lat = 91 }},
		{"speed", func(c *Config) { c.Speed = 0 }},
		{"rate", func(c *Config) { c.RateLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if c.Validate() == nil {
				t.Error("Validate accepted bad config")
			}
		})
	}
}
