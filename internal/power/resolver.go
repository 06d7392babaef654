// Package power computes which tiles are energized. Every power plant cell
// is a source; energy spreads by breadth-first flood fill through conductive
// tiles with unbounded range. The powered set is recomputed from scratch on
// every call — there is no incremental update, so readers never observe a
// partially propagated state.
package power

import "github.com/mpue/citysim/internal/grid"

// Resolve recomputes the Powered flag of every tile. A tile ends up powered
// iff a path of conductive tiles connects it to some plant cell. Calling
// Resolve twice without grid mutation yields the identical powered set.
func Resolve(g *grid.Grid) {
	w, h := g.Width, g.Height
	visited := make([]bool, w*h)
	queue := make([][2]int, 0, 64)

	g.ForEach(func(x, y int, t *grid.Tile) {
		t.Powered = false
		if t.Type == grid.PowerPlant {
			visited[y*w+x] = true
			t.Powered = true
			queue = append(queue, [2]int{x, y})
		}
	})

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range grid.Neighbors4 {
			nx, ny := cur[0]+d[0], cur[1]+d[1]
			if !g.InBounds(nx, ny) || visited[ny*w+nx] {
				continue
			}
			t := g.Get(nx, ny)
			if !t.Conductive() {
				continue
			}
			visited[ny*w+nx] = true
			t.Powered = true
			queue = append(queue, [2]int{nx, ny})
		}
	}
}
