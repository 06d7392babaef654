// Package traffic derives a per-road load scalar from neighboring zoned
// tiles. Traffic here is a local density heuristic, not simulated flow:
// the value drives rendering overlays and vehicle spawn rates, never the
// growth rules themselves.
package traffic

import "github.com/mpue/citysim/internal/grid"

// MaxDensity is the clamp ceiling for road load.
const MaxDensity = 100

// intersectionMinRoads is the orthogonal road-neighbor count at which a
// road tile becomes a signalled intersection.
const intersectionMinRoads = 3

// Update recomputes TrafficDensity for every road tile and advances
// traffic-light phases. An intersection (≥3 road neighbors) alternates
// between the two red phases each tick; a road that stops being an
// intersection loses its light.
func Update(g *grid.Grid) {
	g.ForEach(func(x, y int, t *grid.Tile) {
		if t.Type != grid.Road {
			return
		}

		load := 0
		roadNeighbors := 0
		for _, d := range grid.Neighbors4 {
			n := g.Get(x+d[0], y+d[1])
			if n == nil {
				continue
			}
			if n.Type == grid.Road {
				roadNeighbors++
			}
			if n.Type.Zonable() {
				load += n.Population + n.Development*10
			}
		}
		if load > MaxDensity {
			load = MaxDensity
		}
		t.TrafficDensity = load

		if roadNeighbors >= intersectionMinRoads {
			switch t.TrafficLightPhase {
			case grid.LightRedNS:
				t.TrafficLightPhase = grid.LightRedEW
			default:
				t.TrafficLightPhase = grid.LightRedNS
			}
		} else {
			t.TrafficLightPhase = grid.LightNone
		}
	})
}
