// Package grid owns the fixed-size tile grid and its accessors. The grid is
// created once and mutated in place; it never resizes or reallocates tiles.
package grid

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Neighbors4 is the Von Neumann neighborhood used for road adjacency,
// power propagation and traffic estimation. No diagonals.
var Neighbors4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Grid is a W×H array of tiles in row-major order.
type Grid struct {
	Width  int
	Height int
	tiles  []Tile
}

// VariantCount is the number of cosmetic sprite variants per tile.
const VariantCount = 4

// New creates an all-empty grid. Cosmetic variants are assigned from
// simplex noise so adjacent cells form natural-looking patches; the seed
// makes the pattern reproducible.
func New(w, h int, seed int64) *Grid {
	g := &Grid{
		Width:  w,
		Height: h,
		tiles:  make([]Tile, w*h),
	}
	noise := opensimplex.NewNormalized(seed)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := noise.Eval2(float64(x)*0.15, float64(y)*0.15)
			variant := int(v * VariantCount)
			if variant >= VariantCount {
				variant = VariantCount - 1
			}
			g.tiles[y*w+x].Variant = variant
		}
	}
	return g
}

// InBounds reports whether (x,y) is a valid cell coordinate.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Get returns the tile at (x,y), or nil for out-of-range coordinates.
func (g *Grid) Get(x, y int) *Tile {
	if !g.InBounds(x, y) {
		return nil
	}
	return &g.tiles[y*g.Width+x]
}

// SetType changes a tile's type. Development, population and road-only
// state are cleared whenever the new type cannot carry them, keeping the
// tile record internally consistent. Returns false on invalid coordinates.
func (g *Grid) SetType(x, y int, tt TileType) bool {
	t := g.Get(x, y)
	if t == nil {
		return false
	}
	t.Type = tt
	if !tt.Zonable() {
		t.Development = 0
		t.Population = 0
	}
	if tt != Road {
		t.TrafficDensity = 0
		t.TrafficLightPhase = LightNone
	}
	return true
}

// SetPowerLine sets or clears the power-line overlay. Returns false on
// invalid coordinates.
func (g *Grid) SetPowerLine(x, y int, present bool) bool {
	t := g.Get(x, y)
	if t == nil {
		return false
	}
	t.HasPowerLine = present
	return true
}

// HasAdjacentRoad reports whether any of the four orthogonal neighbors is
// a road tile.
func (g *Grid) HasAdjacentRoad(x, y int) bool {
	for _, d := range Neighbors4 {
		if n := g.Get(x+d[0], y+d[1]); n != nil && n.Type == Road {
			return true
		}
	}
	return false
}

// CountPopulation sums residents over the whole grid.
func (g *Grid) CountPopulation() int {
	total := 0
	for i := range g.tiles {
		total += g.tiles[i].Population
	}
	return total
}

// ForEach visits every tile in row-major order.
func (g *Grid) ForEach(fn func(x, y int, t *Tile)) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			fn(x, y, &g.tiles[y*g.Width+x])
		}
	}
}

// Tiles returns a copy of the full tile slice in row-major order.
func (g *Grid) Tiles() []Tile {
	out := make([]Tile, len(g.tiles))
	copy(out, g.tiles)
	return out
}

// SetTiles replaces the full tile slice from a row-major copy. Returns an
// error if the length does not match the grid dimensions.
func (g *Grid) SetTiles(tiles []Tile) error {
	if len(tiles) != g.Width*g.Height {
		return fmt.Errorf("grid: tile count %d does not match %dx%d", len(tiles), g.Width, g.Height)
	}
	copy(g.tiles, tiles)
	return nil
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, population=%d)", g.Width, g.Height, g.CountPopulation())
}
