package growth

import (
	"testing"

	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/tuning"
)

// alwaysSource is a degenerate entropy source: every Float draw returns the
// same value, every IntN returns zero. Float=0 makes every chance fire,
// Float just below 1 makes none fire.
type alwaysSource struct{ f float64 }

func (s alwaysSource) Float() float64 { return s.f }
func (s alwaysSource) IntN(n int) int { return 0 }

var (
	alwaysHit  = alwaysSource{f: 0}
	alwaysMiss = alwaysSource{f: 0.999999}
)

// roadAndZone builds a powered zoned tile next to a road and returns the grid.
func roadAndZone(tt grid.TileType) (*grid.Grid, *grid.Tile) {
	g := grid.New(10, 10, 1)
	g.SetType(4, 5, grid.Road)
	g.SetType(5, 5, tt)
	zone := g.Get(5, 5)
	zone.Powered = true
	return g, zone
}

func TestUnpoweredTileNeverGrows(t *testing.T) {
	g, zone := roadAndZone(grid.Residential)
	zone.Powered = false

	e := New(alwaysHit, tuning.Default().Growth)
	income := e.Step(g, 100)

	if zone.Population != 0 || zone.Development != 0 {
		t.Fatalf("unpowered residential grew: pop=%d dev=%d", zone.Population, zone.Development)
	}
	if income != 0 {
		t.Fatalf("income = %d, want 0", income)
	}
}

func TestRoadlessTileNeverGrows(t *testing.T) {
	g := grid.New(10, 10, 1)
	g.SetType(5, 5, grid.Residential)
	zone := g.Get(5, 5)
	zone.Powered = true

	e := New(alwaysHit, tuning.Default().Growth)
	e.Step(g, 100)

	if zone.Population != 0 || zone.Development != 0 {
		t.Fatalf("roadless residential grew: pop=%d dev=%d", zone.Population, zone.Development)
	}
}

func TestResidentialSeeding(t *testing.T) {
	g, zone := roadAndZone(grid.Residential)

	// With no chance firing, only the deterministic seeding applies.
	e := New(alwaysMiss, tuning.Default().Growth)
	income := e.Step(g, 30)

	if zone.Population != grid.BasePopulation {
		t.Fatalf("population = %d, want seed of %d", zone.Population, grid.BasePopulation)
	}
	if zone.Development != 0 {
		t.Fatalf("seeding must not touch development")
	}
	// 10 residents taxed at 0.1 each.
	if income != 1 {
		t.Fatalf("income = %d, want 1", income)
	}
}

func TestSeedingRequiresMinimumHappiness(t *testing.T) {
	g, zone := roadAndZone(grid.Residential)

	e := New(alwaysMiss, tuning.Default().Growth)
	e.Step(g, 29)
	if zone.Population != 0 {
		t.Fatalf("seeding below the happiness floor should not happen")
	}
}

func TestResidentialDevelopmentJumpsToCap(t *testing.T) {
	g, zone := roadAndZone(grid.Residential)

	e := New(alwaysHit, tuning.Default().Growth)
	income := e.Step(g, 60)

	if zone.Development != 1 {
		t.Fatalf("development = %d, want 1 (one step per tick)", zone.Development)
	}
	if zone.Population != zone.PopulationCap() {
		t.Fatalf("population = %d, want cap %d after upgrade", zone.Population, zone.PopulationCap())
	}
	// 60 residents at 0.1.
	if income != 6 {
		t.Fatalf("income = %d, want 6", income)
	}
}

func TestPopulationDriftRespectsCap(t *testing.T) {
	g, zone := roadAndZone(grid.Residential)
	zone.Development = 1
	zone.Population = 59 // one below the level-1 cap of 60

	cfg := tuning.Default().Growth
	cfg.ResidentialDevChance = 0 // isolate drift
	e := New(alwaysHit, cfg)
	e.Step(g, 45)

	if zone.Population != 60 {
		t.Fatalf("population = %d, drift must clamp at the cap", zone.Population)
	}
}

func TestResidentialDecline(t *testing.T) {
	g := grid.New(10, 10, 1)
	g.SetType(5, 5, grid.Residential)
	zone := g.Get(5, 5)
	zone.Development = 2
	zone.Population = 100
	// No power, no road: decline still applies.

	e := New(alwaysHit, tuning.Default().Growth)
	income := e.Step(g, 20)

	if zone.Population != 95 {
		t.Fatalf("population = %d, want 95 after minimum exodus", zone.Population)
	}
	if zone.Development != 2 {
		t.Fatalf("development should hold while population justifies it")
	}
	if income != 0 {
		t.Fatalf("disconnected tile must not pay taxes, got %d", income)
	}
}

func TestDeclineDowngradesDevelopment(t *testing.T) {
	g := grid.New(10, 10, 1)
	g.SetType(5, 5, grid.Residential)
	zone := g.Get(5, 5)
	zone.Development = 2
	zone.Population = 55 // below the level-1 cap of 60 once anyone leaves

	e := New(alwaysHit, tuning.Default().Growth)
	e.Step(g, 20)

	if zone.Population != 50 {
		t.Fatalf("population = %d, want 50", zone.Population)
	}
	if zone.Development != 1 {
		t.Fatalf("development = %d, want downgrade to 1", zone.Development)
	}
}

func TestNoDeclineAtModerateHappiness(t *testing.T) {
	g := grid.New(10, 10, 1)
	g.SetType(5, 5, grid.Residential)
	zone := g.Get(5, 5)
	zone.Population = 100

	e := New(alwaysHit, tuning.Default().Growth)
	e.Step(g, 40) // at the threshold, not below

	if zone.Population != 100 {
		t.Fatalf("population = %d, decline must not trigger at the threshold", zone.Population)
	}
}

func TestCommercialIncomeScalesWithDevelopment(t *testing.T) {
	g, zone := roadAndZone(grid.Commercial)
	zone.Development = 3

	e := New(alwaysMiss, tuning.Default().Growth)
	income := e.Step(g, 80)

	if income != 30 {
		t.Fatalf("income = %d, want 30 (dev 3 x 10)", income)
	}
	if zone.Development != 3 {
		t.Fatalf("development must stay at the maximum")
	}
}

func TestIndustrialDevelopsAndEarns(t *testing.T) {
	g, zone := roadAndZone(grid.Industrial)

	e := New(alwaysHit, tuning.Default().Growth)
	income := e.Step(g, 80)

	if zone.Development != 1 {
		t.Fatalf("development = %d, want 1", zone.Development)
	}
	if income != 15 {
		t.Fatalf("income = %d, want 15 (dev 1 x 15)", income)
	}
}

func TestPlantUpkeepCharged(t *testing.T) {
	g := grid.New(10, 10, 1)
	g.SetType(5, 5, grid.PowerPlant)

	e := New(alwaysMiss, tuning.Default().Growth)
	income := e.Step(g, 80)

	if income != -50 {
		t.Fatalf("income = %d, want -50 upkeep per plant cell", income)
	}
}

func TestDevelopmentAdvancesOneLevelPerTick(t *testing.T) {
	g, zone := roadAndZone(grid.Commercial)

	e := New(alwaysHit, tuning.Default().Growth)
	for i := 1; i <= 4; i++ {
		e.Step(g, 80)
		want := i
		if want > grid.MaxDevelopment {
			want = grid.MaxDevelopment
		}
		if zone.Development != want {
			t.Fatalf("after tick %d development = %d, want %d", i, zone.Development, want)
		}
	}
}
