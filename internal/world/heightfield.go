package world

import (
	"fmt"
	"math"
)

// Point is a horizontal world-space position in meters.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Heightfield holds the complete terrain grid. Cells are stored row-major by Z.
type Heightfield struct {
	Size     int     `json:"size"`      // Samples per side
	CellSize float64 `json:"cell_size"` // Meters between samples
	SeaLevel float64 `json:"sea_level"` // Meters
	Seed     int64   `json:"seed"`

	Cells     []Cell      `json:"-"`
	Volcanoes []GridCoord `json:"volcanoes"`
}

// NewHeightfield creates a flat field of size×size samples.
func NewHeightfield(size int, cellSize float64) *Heightfield {
	hf := &Heightfield{
		Size:     size,
		CellSize: cellSize,
		Cells:    make([]Cell, size*size),
	}
	for z := 0; z < size; z++ {
		for x := 0; x < size; x++ {
			hf.Cells[z*size+x].Coord = GridCoord{X: x, Z: z}
		}
	}
	return hf
}

// InBounds reports whether the coordinate addresses a sample.
func (hf *Heightfield) InBounds(c GridCoord) bool {
	return c.X >= 0 && c.Z >= 0 && c.X < hf.Size && c.Z < hf.Size
}

// Get returns the cell at c, or nil when out of bounds.
func (hf *Heightfield) Get(c GridCoord) *Cell {
	if !hf.InBounds(c) {
		return nil
	}
	return &hf.Cells[c.Z*hf.Size+c.X]
}

// Extent is the world-space side length in meters.
func (hf *Heightfield) Extent() float64 {
	return float64(hf.Size-1) * hf.CellSize
}

// ToWorld returns the world position of a grid sample.
func (hf *Heightfield) ToWorld(c GridCoord) Point {
	return Point{X: float64(c.X) * hf.CellSize, Z: float64(c.Z) * hf.CellSize}
}

// Nearest returns the grid sample closest to a world position, clamped to the field.
func (hf *Heightfield) Nearest(x, z float64) GridCoord {
	return GridCoord{
		X: int(math.Round(clampFloat(x/hf.CellSize, 0, float64(hf.Size-1)))),
		Z: int(math.Round(clampFloat(z/hf.CellSize, 0, float64(hf.Size-1)))),
	}
}

// Elevation returns the bilinearly interpolated terrain height at world (x, z).
// Positions outside the field take the height of the nearest edge; NaN maps
// to the origin edge.
func (hf *Heightfield) Elevation(x, z float64) float64 {
	if hf.Size == 0 {
		return 0
	}
	gx := clampFloat(x/hf.CellSize, 0, float64(hf.Size-1))
	gz := clampFloat(z/hf.CellSize, 0, float64(hf.Size-1))

	x0, z0 := int(gx), int(gz)
	x1, z1 := min(x0+1, hf.Size-1), min(z0+1, hf.Size-1)
	fx, fz := gx-float64(x0), gz-float64(z0)

	h00 := hf.Cells[z0*hf.Size+x0].Height
	h10 := hf.Cells[z0*hf.Size+x1].Height
	h01 := hf.Cells[z1*hf.Size+x0].Height
	h11 := hf.Cells[z1*hf.Size+x1].Height

	top := h00 + (h10-h00)*fx
	bottom := h01 + (h11-h01)*fx
	return top + (bottom-top)*fz
}

// BiomeAt returns the biome of the nearest sample.
func (hf *Heightfield) BiomeAt(x, z float64) Biome {
	return hf.Get(hf.Nearest(x, z)).Biome
}

// Underwater reports whether the ground at (x, z) lies below sea level.
func (hf *Heightfield) Underwater(x, z float64) bool {
	return hf.Elevation(x, z) < hf.SeaLevel
}

// DescentPath follows steepest descent from the sample nearest (x, z) until it
// reaches the ocean, a local minimum, or maxSteps samples.
func (hf *Heightfield) DescentPath(x, z float64, maxSteps int) []Point {
	if hf.Size == 0 || maxSteps <= 0 {
		return nil
	}
	current := hf.Nearest(x, z)
	visited := make(map[GridCoord]bool)
	path := make([]Point, 0, maxSteps)

	for step := 0; step < maxSteps; step++ {
		visited[current] = true
		cell := hf.Get(current)
		path = append(path, hf.ToWorld(current))
		if cell.Biome == BiomeOcean {
			break
		}

		var next *GridCoord
		lowest := cell.Height
		for _, nc := range current.Neighbors() {
			if visited[nc] {
				continue
			}
			nb := hf.Get(nc)
			if nb == nil {
				continue
			}
			if nb.Height < lowest {
				lowest = nb.Height
				c := nc
				next = &c
			}
		}
		if next == nil {
			break // Pit; water would pool here
		}
		current = *next
	}
	return path
}

// BiomeCounts returns how many samples carry each biome.
func (hf *Heightfield) BiomeCounts() map[Biome]int {
	counts := make(map[Biome]int)
	for i := range hf.Cells {
		counts[hf.Cells[i].Biome]++
	}
	return counts
}

// String returns a summary of the field.
func (hf *Heightfield) String() string {
	return fmt.Sprintf("Heightfield(size=%d, cell=%.1fm, volcanoes=%d)", hf.Size, hf.CellSize, len(hf.Volcanoes))
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
