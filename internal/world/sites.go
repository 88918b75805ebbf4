// Site placement: volcano vents on the peaks and the spawn point for new players.
package world

import (
	"math"
	"sort"
)

// ventRadius is how many samples around a vent turn volcanic.
const ventRadius = 2

type siteCandidate struct {
	coord GridCoord
	score float64
}

// PlaceVolcanoes picks up to n vents on the highest land, at least minDist
// samples apart, and marks the ground around each as volcanic.
func PlaceVolcanoes(hf *Heightfield, n, minDist int) []GridCoord {
	if n <= 0 {
		return nil
	}

	var candidates []siteCandidate
	for i := range hf.Cells {
		cell := &hf.Cells[i]
		if cell.Biome == BiomeOcean {
			continue
		}
		candidates = append(candidates, siteCandidate{coord: cell.Coord, score: cell.Height})
	}
	sortCandidates(candidates)

	var vents []GridCoord
	for _, c := range candidates {
		if len(vents) >= n {
			break
		}
		if tooClose(c.coord, vents, minDist) {
			continue
		}
		vents = append(vents, c.coord)
	}

	for _, v := range vents {
		for dz := -ventRadius; dz <= ventRadius; dz++ {
			for dx := -ventRadius; dx <= ventRadius; dx++ {
				cell := hf.Get(GridCoord{X: v.X + dx, Z: v.Z + dz})
				if cell != nil && cell.Biome != BiomeOcean {
					cell.Biome = BiomeVolcanic
				}
			}
		}
	}
	return vents
}

// SpawnPoint returns the most welcoming sample for new arrivals. ok is false
// when the field has no habitable land.
func SpawnPoint(hf *Heightfield) (coord GridCoord, ok bool) {
	var best siteCandidate
	found := false
	for i := range hf.Cells {
		cell := &hf.Cells[i]
		s := spawnScore(hf, cell)
		if s <= 0 {
			continue
		}
		if !found || s > best.score {
			best = siteCandidate{coord: cell.Coord, score: s}
			found = true
		}
	}
	return best.coord, found
}

// spawnScore prefers flat plains near water with varied surroundings.
func spawnScore(hf *Heightfield, cell *Cell) float64 {
	score := 0.0

	switch cell.Biome {
	case BiomePlains:
		score += 3.0
	case BiomeBeach:
		score += 2.5
	case BiomeForest:
		score += 1.5
	case BiomeDesert, BiomeTundra:
		score += 0.5
	case BiomeMountain:
		score += 0.3
	default:
		return 0
	}

	biomes := make(map[Biome]bool)
	nearWater := false
	steepest := 0.0
	for _, nc := range cell.Coord.Neighbors() {
		nb := hf.Get(nc)
		if nb == nil {
			continue
		}
		if nb.Biome == BiomeVolcanic {
			return 0
		}
		if nb.Biome != BiomeOcean {
			biomes[nb.Biome] = true
		}
		if nb.River || nb.Biome == BiomeOcean {
			nearWater = true
		}
		if d := math.Abs(nb.Height - cell.Height); d > steepest {
			steepest = d
		}
	}
	score += float64(len(biomes)) * 0.3
	if nearWater || cell.River {
		score += 0.5
	}
	// Slope in meters of rise per meter of run.
	score -= steepest / hf.CellSize
	return score
}

func sortCandidates(c []siteCandidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].score != c[j].score {
			return c[i].score > c[j].score
		}
		if c[i].coord.Z != c[j].coord.Z {
			return c[i].coord.Z < c[j].coord.Z
		}
		return c[i].coord.X < c[j].coord.X
	})
}

func tooClose(coord GridCoord, existing []GridCoord, minDist int) bool {
	for _, e := range existing {
		if Distance(coord, e) < minDist {
			return true
		}
	}
	return false
}
