// Package tuning loads the world balance file: terrain generation, weather
// and volcano parameters. Keys missing from the file keep their defaults.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/metaverse/internal/volcano"
	"github.com/talgya/metaverse/internal/weather"
	"github.com/talgya/metaverse/internal/world"
)

type Tuning struct {
	World   world.GenConfig `yaml:"world"`
	Weather weather.Tuning  `yaml:"weather"`
	Volcano volcano.Tuning  `yaml:"volcano"`
}

// Default returns the built-in balance.
func Default() Tuning {
	return Tuning{
		World:   world.DefaultGenConfig(),
		Weather: weather.DefaultTuning(),
		Volcano: volcano.DefaultTuning(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := Parse(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes raw YAML into t and validates the result.
func Parse(raw []byte, t *Tuning) error {
	if err := yaml.Unmarshal(raw, t); err != nil {
		return err
	}
	return t.Validate()
}

// Validate rejects values the simulation cannot run with.
func (t Tuning) Validate() error {
	w := t.World
	switch {
	case w.Size < 3:
		return fmt.Errorf("world.size %d: need at least 3", w.Size)
	case w.CellSize <= 0:
		return fmt.Errorf("world.cell_size %g: must be positive", w.CellSize)
	case w.MaxHeight <= 0:
		return fmt.Errorf("world.max_height %g: must be positive", w.MaxHeight)
	case w.SeaLevel < 0 || w.SeaLevel >= w.MountainLvl || w.MountainLvl > 1:
		return fmt.Errorf("world levels: need 0 <= sea_level < mountain_lvl <= 1, got %g, %g", w.SeaLevel, w.MountainLvl)
	case w.Volcanoes < 0 || w.Rivers < 0:
		return fmt.Errorf("world counts must not be negative")
	}

	wt := t.Weather
	switch {
	case wt.ChangeChance < 0 || wt.ChangeChance > 1:
		return fmt.Errorf("weather.change_chance %g: must be within [0, 1]", wt.ChangeChance)
	case wt.LightningChance < 0:
		return fmt.Errorf("weather.lightning_chance %g: must not be negative", wt.LightningChance)
	case wt.MaxStrikes < 0:
		return fmt.Errorf("weather.max_strikes %d: must not be negative", wt.MaxStrikes)
	}

	v := t.Volcano
	switch {
	case v.RumbleAt <= 0 || v.RumbleAt >= 1:
		return fmt.Errorf("volcano.rumble_at %g: must be within (0, 1)", v.RumbleAt)
	case v.EruptionSteps < 1 || v.CoolingSteps < 1:
		return fmt.Errorf("volcano step counts must be positive")
	case v.Gravity <= 0 || v.FlightStep <= 0 || v.MaxFlight <= 0:
		return fmt.Errorf("volcano ballistics must be positive")
	}
	return nil
}
