package world

import (
	"math"
	"testing"
)

// rampField returns a size×size land field whose height rises with x+z.
func rampField(size int, cellSize float64) *Heightfield {
	hf := NewHeightfield(size, cellSize)
	for i := range hf.Cells {
		c := &hf.Cells[i]
		c.Biome = BiomePlains
		c.Height = float64(c.Coord.X + c.Coord.Z)
	}
	return hf
}

func TestElevation_Bilinear(t *testing.T) {
	hf := NewHeightfield(2, 10)
	hf.Get(GridCoord{0, 0}).Height = 0
	hf.Get(GridCoord{1, 0}).Height = 10
	hf.Get(GridCoord{0, 1}).Height = 20
	hf.Get(GridCoord{1, 1}).Height = 30

	tests := []struct {
		name string
		x, z float64
		want float64
	}{
		{"corner", 0, 0, 0},
		{"far corner", 10, 10, 30},
		{"center", 5, 5, 15},
		{"edge midpoint", 5, 0, 5},
		{"clamped below", -50, -50, 0},
		{"clamped above", 99, 99, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hf.Elevation(tt.x, tt.z); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Elevation(%v, %v) = %v, want %v", tt.x, tt.z, got, tt.want)
			}
		})
	}
}

func TestElevation_NonFiniteInputs(t *testing.T) {
	hf := rampField(4, 10)
	tests := []struct {
		name string
		x, z float64
		want float64
	}{
		{"NaN x", math.NaN(), 0, 0},
		{"NaN both", math.NaN(), math.NaN(), 0},
		{"+Inf", math.Inf(1), 0, 3},
		{"-Inf", math.Inf(-1), math.Inf(-1), 0},
		{"+Inf both", math.Inf(1), math.Inf(1), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hf.Elevation(tt.x, tt.z); got != tt.want {
				t.Errorf("Elevation(%v, %v) = %v, want %v", tt.x, tt.z, got, tt.want)
			}
			c := hf.Nearest(tt.x, tt.z)
			if c.X < 0 || c.X >= hf.Size || c.Z < 0 || c.Z >= hf.Size {
				t.Errorf("Nearest(%v, %v) = %v, outside the field", tt.x, tt.z, c)
			}
			hf.BiomeAt(tt.x, tt.z)
			hf.Underwater(tt.x, tt.z)
		})
	}
}

func TestElevation_MatchesSamples(t *testing.T) {
	hf := Generate(SmallTestConfig())
	for _, c := range []GridCoord{{0, 0}, {5, 7}, {16, 16}, {32, 32}} {
		p := hf.ToWorld(c)
		if got, want := hf.Elevation(p.X, p.Z), hf.Get(c).Height; math.Abs(got-want) > 1e-9 {
			t.Errorf("Elevation at %v = %v, sample = %v", c, got, want)
		}
	}
}

func TestDescentPath_Descends(t *testing.T) {
	hf := rampField(8, 2)
	path := hf.DescentPath(14, 14, 100)
	if len(path) < 2 {
		t.Fatalf("path too short: %v", path)
	}
	for i := 1; i < len(path); i++ {
		prev := hf.Elevation(path[i-1].X, path[i-1].Z)
		cur := hf.Elevation(path[i].X, path[i].Z)
		if cur >= prev {
			t.Fatalf("step %d climbs: %v -> %v", i, prev, cur)
		}
	}
	last := path[len(path)-1]
	if last.X != 0 || last.Z != 0 {
		t.Errorf("path ends at %v, want origin", last)
	}
}

func TestDescentPath_StopsAtOceanAndMaxSteps(t *testing.T) {
	hf := rampField(8, 1)
	hf.Get(GridCoord{4, 4}).Biome = BiomeOcean

	if got := hf.DescentPath(7, 7, 2); len(got) != 2 {
		t.Errorf("maxSteps ignored: %d points", len(got))
	}
	path := hf.DescentPath(7, 7, 100)
	last := path[len(path)-1]
	if hf.BiomeAt(last.X, last.Z) != BiomeOcean {
		t.Errorf("path ends on %v at %v, want ocean", hf.BiomeAt(last.X, last.Z), last)
	}
	if hf.DescentPath(0, 0, 0) != nil {
		t.Error("zero steps should return nil")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(SmallTestConfig())
	b := Generate(SmallTestConfig())
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			t.Fatalf("cell %d differs: %+v vs %+v", i, a.Cells[i], b.Cells[i])
		}
	}
}

func TestGenerate_Shape(t *testing.T) {
	cfg := SmallTestConfig()
	hf := Generate(cfg)

	if len(hf.Cells) != cfg.Size*cfg.Size {
		t.Fatalf("cells = %d", len(hf.Cells))
	}
	for _, c := range []GridCoord{{0, 0}, {cfg.Size - 1, 0}, {0, cfg.Size - 1}, {cfg.Size - 1, cfg.Size - 1}} {
		if b := hf.Get(c).Biome; b != BiomeOcean {
			t.Errorf("corner %v is %v, want ocean", c, b)
		}
	}
	for i := range hf.Cells {
		h := hf.Cells[i].Height
		if h < 0 || h > cfg.MaxHeight {
			t.Fatalf("height %v outside [0, %v]", h, cfg.MaxHeight)
		}
	}
	if hf.SeaLevel != cfg.SeaLevel*cfg.MaxHeight {
		t.Errorf("SeaLevel = %v", hf.SeaLevel)
	}
}

func TestPlaceVolcanoes_HighestAndSpaced(t *testing.T) {
	hf := rampField(10, 1)
	vents := PlaceVolcanoes(hf, 2, 4)
	if len(vents) != 2 {
		t.Fatalf("vents = %v", vents)
	}
	if vents[0] != (GridCoord{9, 9}) {
		t.Errorf("first vent = %v, want highest sample", vents[0])
	}
	if Distance(vents[0], vents[1]) < 4 {
		t.Errorf("vents too close: %v", vents)
	}
	if hf.Get(GridCoord{8, 8}).Biome != BiomeVolcanic {
		t.Error("ground around vent not volcanic")
	}
}

func TestSpawnPoint_AvoidsVolcanoesAndOcean(t *testing.T) {
	hf := NewHeightfield(6, 1)
	for i := range hf.Cells {
		hf.Cells[i].Biome = BiomePlains
	}
	hf.Get(GridCoord{0, 0}).Biome = BiomeVolcanic
	for x := 0; x < 6; x++ {
		hf.Get(GridCoord{x, 5}).Biome = BiomeOcean
	}

	c, ok := SpawnPoint(hf)
	if !ok {
		t.Fatal("no spawn point")
	}
	cell := hf.Get(c)
	if cell.Biome != BiomePlains {
		t.Errorf("spawn on %v", cell.Biome)
	}
	if Distance(c, GridCoord{0, 0}) < 2 {
		t.Errorf("spawn %v next to a vent", c)
	}

	water := NewHeightfield(3, 1)
	if _, ok := SpawnPoint(water); ok {
		t.Error("all-ocean field produced a spawn point")
	}
}

func TestBiome_String(t *testing.T) {
	seen := make(map[string]bool)
	for _, b := range Biomes {
		s := b.String()
		if seen[s] {
			t.Errorf("duplicate name %q", s)
		}
		seen[s] = true
	}
	if Biome(99).String() != "Biome(99)" {
		t.Errorf("unknown biome = %q", Biome(99).String())
	}
}
