// World generation using layered simplex noise.
// Generates elevation, moisture and temperature layers, then derives biomes,
// beaches, rivers and volcano vents.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Size        int     `yaml:"size"`         // Samples per side
	CellSize    float64 `yaml:"cell_size"`    // Meters between samples
	Seed        int64   `yaml:"seed"`         // Random seed (0 = random)
	MaxHeight   float64 `yaml:"max_height"`   // Meters at normalized elevation 1.0
	SeaLevel    float64 `yaml:"sea_level"`    // Normalized elevation threshold for ocean
	MountainLvl float64 `yaml:"mountain_lvl"` // Normalized elevation threshold for mountains
	Volcanoes   int     `yaml:"volcanoes"`    // Vents placed on the highest peaks
	Rivers      int     `yaml:"rivers"`       // 0 = derive from highland area
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Size:        129,
		CellSize:    8,
		Seed:        0,
		MaxHeight:   400,
		SeaLevel:    0.25,
		MountainLvl: 0.72,
		Volcanoes:   2,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Size:        33,
		CellSize:    4,
		Seed:        42,
		MaxHeight:   100,
		SeaLevel:    0.30,
		MountainLvl: 0.75,
		Volcanoes:   1,
	}
}

// Generate creates a complete heightfield with biomes, rivers and volcanoes.
func Generate(cfg GenConfig) *Heightfield {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	hf := NewHeightfield(cfg.Size, cfg.CellSize)
	hf.Seed = seed
	hf.SeaLevel = cfg.SeaLevel * cfg.MaxHeight

	half := float64(cfg.Size-1) / 2
	for i := range hf.Cells {
		cell := &hf.Cells[i]
		// Noise is sampled in grid units so features scale with the grid, not the cell size.
		x, y := float64(cell.Coord.X), float64(cell.Coord.Z)

		elev := octaveNoise(elevNoise, x, y, 5, 0.04, 0.5)
		rain := octaveNoise(rainNoise, x, y, 3, 0.03, 0.5)
		temp := octaveNoise(tempNoise, x, y, 3, 0.025, 0.5)

		// Island shaping: sink the edges into ocean.
		dx, dy := (x-half)/half, (y-half)/half
		distFromCenter := math.Sqrt(dx*dx + dy*dy)
		edgeFalloff := 1.0 - math.Pow(distFromCenter, 3.5)
		if edgeFalloff < 0 {
			edgeFalloff = 0
		}
		elev *= edgeFalloff

		// Higher ground is colder.
		temp = temp*0.7 + (1.0-elev)*0.3

		cell.Height = elev * cfg.MaxHeight
		cell.Moisture = rain
		cell.Temperature = temp
		cell.Biome = deriveBiome(elev, rain, temp, cfg)
	}

	markBeaches(hf)
	placeRivers(hf, cfg, seed)
	hf.Volcanoes = PlaceVolcanoes(hf, cfg.Volcanoes, max(4, cfg.Size/6))
	return hf
}

// deriveBiome determines the biome from normalized environmental parameters.
func deriveBiome(elev, rain, temp float64, cfg GenConfig) Biome {
	if elev < cfg.SeaLevel {
		return BiomeOcean
	}
	if elev > cfg.MountainLvl {
		return BiomeMountain
	}
	if temp < 0.25 {
		return BiomeTundra
	}
	if rain < 0.25 && temp > 0.5 {
		return BiomeDesert
	}
	if rain > 0.45 && elev > 0.4 {
		return BiomeForest
	}
	return BiomePlains
}

// markBeaches converts low land next to ocean into beach.
func markBeaches(hf *Heightfield) {
	var toMark []*Cell

	for i := range hf.Cells {
		cell := &hf.Cells[i]
		if cell.Biome == BiomeOcean {
			continue
		}
		for _, nc := range cell.Coord.Neighbors() {
			nb := hf.Get(nc)
			if nb != nil && nb.Biome == BiomeOcean {
				toMark = append(toMark, cell)
				break
			}
		}
	}

	for _, cell := range toMark {
		switch cell.Biome {
		case BiomePlains, BiomeForest, BiomeDesert:
			cell.Biome = BiomeBeach
		}
	}
}

// placeRivers traces descent paths from a handful of highland samples.
func placeRivers(hf *Heightfield, cfg GenConfig, seed int64) {
	rng := rand.New(rand.NewSource(seed + 100))
	highland := 0.65 * cfg.MaxHeight

	var sources []GridCoord
	for i := range hf.Cells {
		cell := &hf.Cells[i]
		if cell.Height > highland && cell.Biome != BiomeOcean {
			sources = append(sources, cell.Coord)
		}
	}

	numRivers := cfg.Rivers
	if numRivers <= 0 {
		// Not every peak needs a river.
		numRivers = min(max(len(sources)/40, 2), 10)
	}

	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > numRivers {
		sources = sources[:numRivers]
	}

	for _, start := range sources {
		p := hf.ToWorld(start)
		for _, pt := range hf.DescentPath(p.X, p.Z, 4*cfg.Size) {
			cell := hf.Get(hf.Nearest(pt.X, pt.Z))
			if cell.Biome != BiomeOcean && cell.Biome != BiomeMountain {
				cell.River = true
			}
		}
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
