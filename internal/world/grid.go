// Package world provides the square terrain heightfield, its biomes, and the
// height queries everything standing on the ground goes through.
// Grid cells are addressed by integer (X, Z); world space is meters with the
// origin at cell (0, 0) and Y up.
package world

import "fmt"

// GridCoord addresses one heightfield sample.
type GridCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (g GridCoord) String() string {
	return fmt.Sprintf("(%d,%d)", g.X, g.Z)
}

// NeighborDirections are the eight grid offsets around a cell.
var NeighborDirections = [8]GridCoord{
	{X: 1, Z: 0},
	{X: 1, Z: -1},
	{X: 0, Z: -1},
	{X: -1, Z: -1},
	{X: -1, Z: 0},
	{X: -1, Z: 1},
	{X: 0, Z: 1},
	{X: 1, Z: 1},
}

// Neighbors returns the eight surrounding coordinates. Some may be out of bounds.
func (g GridCoord) Neighbors() [8]GridCoord {
	var out [8]GridCoord
	for i, d := range NeighborDirections {
		out[i] = GridCoord{X: g.X + d.X, Z: g.Z + d.Z}
	}
	return out
}

// Distance is the Chebyshev distance between two cells.
func Distance(a, b GridCoord) int {
	dx, dz := abs(a.X-b.X), abs(a.Z-b.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// Biome classifies a cell's surface.
type Biome uint8

const (
	BiomeOcean    Biome = iota // Below sea level
	BiomeBeach                 // Low land touching the ocean
	BiomePlains                // Default lowland
	BiomeForest                // Wet mid elevations
	BiomeDesert                // Dry and hot
	BiomeTundra                // Cold
	BiomeMountain              // Above the mountain line
	BiomeVolcanic              // Around a volcano vent
)

// Biomes lists every biome in declaration order.
var Biomes = []Biome{BiomeOcean, BiomeBeach, BiomePlains, BiomeForest, BiomeDesert, BiomeTundra, BiomeMountain, BiomeVolcanic}

func (b Biome) String() string {
	switch b {
	case BiomeOcean:
		return "ocean"
	case BiomeBeach:
		return "beach"
	case BiomePlains:
		return "plains"
	case BiomeForest:
		return "forest"
	case BiomeDesert:
		return "desert"
	case BiomeTundra:
		return "tundra"
	case BiomeMountain:
		return "mountain"
	case BiomeVolcanic:
		return "volcanic"
	default:
		return fmt.Sprintf("Biome(%d)", uint8(b))
	}
}

// MarshalText encodes the biome by name.
func (b Biome) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Cell is a single heightfield sample.
type Cell struct {
	Coord  GridCoord `json:"coord"`
	Biome  Biome     `json:"biome"`
	Height float64   `json:"height"` // Meters above the world datum

	// Climate inputs from generation, 0..1.
	Moisture    float64 `json:"moisture"`
	Temperature float64 `json:"temperature"`

	River bool `json:"river,omitempty"`
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
