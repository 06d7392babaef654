package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/happiness"
	"github.com/mpue/citysim/internal/power"
)

// State is a full copy of the simulation state, the unit of exchange with
// the snapshot and persistence layers.
type State struct {
	ID     string
	Width  int
	Height int

	Tick      uint64
	Year      int
	Month     int
	Money     int
	Loan      int
	Happiness int

	Tiles []grid.Tile // row-major copy
}

// ExportState copies the complete city state under the lock.
func (c *City) ExportState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		ID:        c.id.String(),
		Width:     c.grid.Width,
		Height:    c.grid.Height,
		Tick:      c.tick,
		Year:      c.year,
		Month:     c.month,
		Money:     c.money,
		Loan:      c.loan,
		Happiness: c.happiness,
		Tiles:     c.grid.Tiles(),
	}
}

// RestoreState replaces the city state from a saved copy. Values from old
// saves are defensively normalized: the calendar defaults to year 1 month
// 1, out-of-range per-tile fields are clamped, and the powered flags are
// recomputed rather than trusted.
func (c *City) RestoreState(s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Width != c.grid.Width || s.Height != c.grid.Height {
		return fmt.Errorf("restore: saved grid %dx%d does not match configured %dx%d",
			s.Width, s.Height, c.grid.Width, c.grid.Height)
	}
	if err := c.grid.SetTiles(s.Tiles); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	if id, err := uuid.Parse(s.ID); err == nil {
		c.id = id
	}
	c.tick = s.Tick
	c.year = s.Year
	if c.year < 1 {
		c.year = 1
	}
	c.month = s.Month
	if c.month < 1 || c.month > 12 {
		c.month = 1
	}
	c.money = s.Money
	c.loan = s.Loan
	if c.loan < 0 {
		c.loan = 0
	}

	c.normalizeTiles()
	power.Resolve(c.grid)

	// Stale or missing happiness is recomputed from the restored grid.
	if s.Happiness < 0 || s.Happiness > 100 {
		c.happiness = happiness.Score(c.grid)
	} else {
		c.happiness = s.Happiness
	}
	c.updateDemand()
	return nil
}

// normalizeTiles clamps per-tile fields so invariants hold even for saves
// written by older builds.
func (c *City) normalizeTiles() {
	c.grid.ForEach(func(x, y int, t *grid.Tile) {
		if !t.Type.Zonable() {
			t.Development = 0
			t.Population = 0
		}
		if t.Development < 0 {
			t.Development = 0
		}
		if t.Development > grid.MaxDevelopment {
			t.Development = grid.MaxDevelopment
		}
		if t.Population < 0 {
			t.Population = 0
		}
		if cap := t.PopulationCap(); t.Population > cap {
			t.Population = cap
		}
		if t.Type != grid.Road {
			t.TrafficDensity = 0
			t.TrafficLightPhase = grid.LightNone
		}
	})
}
