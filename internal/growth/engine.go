// Package growth advances zoned tiles through their development levels and
// produces the monthly tax income. All transitions are stochastic, drawn
// independently per tile per tick from an injected entropy source, and
// gated by road adjacency, power and the previous tick's happiness score.
package growth

import (
	"math"

	"github.com/mpue/citysim/internal/entropy"
	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/tuning"
)

// Engine applies the growth rules to a grid.
type Engine struct {
	rng entropy.Source
	cfg tuning.Growth
}

// New creates a growth engine with the given randomness and parameters.
func New(rng entropy.Source, cfg tuning.Growth) *Engine {
	return &Engine{rng: rng, cfg: cfg}
}

// Step runs one month of growth over the whole grid and returns the net
// income (taxes minus plant upkeep), floored to an integer. Development
// advances at most one level per tile per call.
func (e *Engine) Step(g *grid.Grid, happiness int) int {
	income := 0.0

	g.ForEach(func(x, y int, t *grid.Tile) {
		switch t.Type {
		case grid.Residential:
			income += e.stepResidential(g, x, y, t, happiness)
		case grid.Commercial:
			if e.canGrow(g, x, y, t) {
				if t.Development < grid.MaxDevelopment && e.rng.Float() < e.cfg.CommercialDevChance {
					t.Development++
				}
				income += float64(t.Development * e.cfg.CommercialIncome)
			}
		case grid.Industrial:
			if e.canGrow(g, x, y, t) {
				if t.Development < grid.MaxDevelopment && e.rng.Float() < e.cfg.IndustrialDevChance {
					t.Development++
				}
				income += float64(t.Development * e.cfg.IndustrialIncome)
			}
		case grid.PowerPlant:
			income -= float64(e.cfg.PlantUpkeep)
		}
	})

	return int(math.Floor(income))
}

// canGrow checks the shared growth preconditions: an adjacent road and power.
func (e *Engine) canGrow(g *grid.Grid, x, y int, t *grid.Tile) bool {
	return t.Powered && g.HasAdjacentRoad(x, y)
}

func (e *Engine) stepResidential(g *grid.Grid, x, y int, t *grid.Tile, happiness int) float64 {
	if e.canGrow(g, x, y, t) {
		// Seeding: first residents move in once services look viable.
		if t.Population == 0 && happiness >= e.cfg.SeedHappinessMin {
			t.Population = grid.BasePopulation
		}

		// Development: one step at most per tick.
		if t.Development < grid.MaxDevelopment && happiness >= e.cfg.GrowHappinessMin &&
			e.rng.Float() < e.cfg.ResidentialDevChance {
			t.Development++
			t.Population = t.PopulationCap()
		}

		// Population drift toward the cap.
		if t.Population > 0 && t.Population < t.PopulationCap() &&
			happiness >= e.cfg.DriftHappinessMin &&
			e.rng.Float() < e.cfg.ResidentialPopChance {
			t.Population += 1 + e.rng.IntN(5)
			if cap := t.PopulationCap(); t.Population > cap {
				t.Population = cap
			}
		}
	}

	// Decline: unhappy residents leave whether or not the tile still has
	// road and power. Probability scales linearly from 0 at happiness 40
	// to 0.20 at happiness 0.
	if happiness < e.cfg.DriftHappinessMin && t.Population > 0 {
		declineChance := float64(e.cfg.DriftHappinessMin-happiness) / 200.0
		if e.rng.Float() < declineChance {
			t.Population -= 5 + e.rng.IntN(11)
			if t.Population < 0 {
				t.Population = 0
			}
			// Downgrade once the population no longer justifies the level.
			if t.Development > 0 {
				prevCap := grid.BasePopulation + (t.Development-1)*grid.PerLevelCap
				if t.Population < prevCap {
					t.Development--
				}
			}
		}
	}

	if e.canGrow(g, x, y, t) {
		return float64(t.Population) * e.cfg.ResidentialTaxRate
	}
	return 0
}
