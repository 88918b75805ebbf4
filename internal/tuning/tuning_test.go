package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", got)
	}
}

func TestLoad_OverridesKeepOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := `
world:
  size: 65
  seed: 9
weather:
  base_temp_c: -5
volcano:
  bombs_per_step: 1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if got.World.Size != 65 || got.World.Seed != 9 {
		t.Errorf("world = %+v", got.World)
	}
	if got.World.CellSize != def.World.CellSize {
		t.Errorf("cell_size = %g, want default %g", got.World.CellSize, def.World.CellSize)
	}
	if got.Weather.BaseTempC != -5 || got.Weather.ChangeChance != def.Weather.ChangeChance {
		t.Errorf("weather = %+v", got.Weather)
	}
	if got.Volcano.BombsPerStep != 1 || got.Volcano.Gravity != def.Volcano.Gravity {
		t.Errorf("volcano = %+v", got.Volcano)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"tiny world", "world: {size: 2}"},
		{"sea above mountains", "world: {sea_level: 0.9}"},
		{"chance above one", "weather: {change_chance: 1.5}"},
		{"rumble threshold", "volcano: {rumble_at: 1}"},
		{"zero gravity", "volcano: {gravity: 0}"},
		{"bad yaml", "world: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := Default()
			if err := Parse([]byte(tt.body), &tu); err == nil {
				t.Error("Parse accepted invalid tuning")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file returned nil error")
	}
}
