package engine

import (
	"errors"
	"fmt"

	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/power"
)

// Placement failures are routine gameplay conditions, returned as values
// and surfaced to the player — never panics.
var (
	ErrInvalidCoordinate    = errors.New("coordinate out of range")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrFootprintUnavailable = errors.New("footprint blocked or out of bounds")
	ErrAlreadyOccupied      = errors.New("tile already occupied")
)

// TileSnapshot is the read-only per-tile projection handed to rendering
// and the API.
type TileSnapshot struct {
	X                 int    `json:"x"`
	Y                 int    `json:"y"`
	Type              string `json:"type"`
	Powered           bool   `json:"powered"`
	Development       int    `json:"development"`
	Population        int    `json:"population"`
	Variant           int    `json:"variant"`
	TrafficDensity    int    `json:"traffic_density"`
	TrafficLightPhase int    `json:"traffic_light_phase"`
	HasPowerLine      bool   `json:"has_power_line,omitempty"`
}

// cost returns the construction price of a tile type.
func (c *City) cost(tt grid.TileType) int {
	switch tt {
	case grid.Residential:
		return c.cfg.Costs.Residential
	case grid.Commercial:
		return c.cfg.Costs.Commercial
	case grid.Industrial:
		return c.cfg.Costs.Industrial
	case grid.Road:
		return c.cfg.Costs.Road
	case grid.PowerPlant:
		return c.cfg.Costs.PowerPlant
	case grid.Park:
		return c.cfg.Costs.Park
	case grid.Hospital:
		return c.cfg.Costs.Hospital
	case grid.Police:
		return c.cfg.Costs.Police
	case grid.School:
		return c.cfg.Costs.School
	case grid.Library:
		return c.cfg.Costs.Library
	}
	return 0
}

// PlaceTile builds a structure at (x,y). Power plants occupy a
// footprint×footprint block centered on the placement coordinate, and the
// whole block must be empty and in bounds. Every successful edit triggers
// an immediate power recompute so rendered powered flags are never stale.
func (c *City) PlaceTile(x, y int, tt grid.TileType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.grid.InBounds(x, y) {
		return ErrInvalidCoordinate
	}

	if tt == grid.PowerPlant {
		return c.placePlant(x, y)
	}

	t := c.grid.Get(x, y)
	if t.Type != grid.Empty {
		return ErrAlreadyOccupied
	}
	price := c.cost(tt)
	if c.money < price {
		return ErrInsufficientFunds
	}
	c.money -= price
	c.grid.SetType(x, y, tt)
	power.Resolve(c.grid)
	c.record("build", fmt.Sprintf("%s built at (%d,%d)", tt, x, y))
	return nil
}

// placePlant validates and builds the k×k power plant footprint atomically.
func (c *City) placePlant(x, y int) error {
	k := c.cfg.PlantFootprint
	off := k / 2
	for dy := 0; dy < k; dy++ {
		for dx := 0; dx < k; dx++ {
			t := c.grid.Get(x-off+dx, y-off+dy)
			if t == nil || t.Type != grid.Empty {
				return ErrFootprintUnavailable
			}
		}
	}
	price := c.cost(grid.PowerPlant)
	if c.money < price {
		return ErrInsufficientFunds
	}
	c.money -= price
	for dy := 0; dy < k; dy++ {
		for dx := 0; dx < k; dx++ {
			c.grid.SetType(x-off+dx, y-off+dy, grid.PowerPlant)
		}
	}
	power.Resolve(c.grid)
	c.record("build", fmt.Sprintf("power plant built at (%d,%d)", x, y))
	return nil
}

// Demolish clears the tile at (x,y). Demolishing any cell of a power plant
// clears the entire contiguous plant footprint atomically. Clearing an
// already-empty tile succeeds as a no-op.
func (c *City) Demolish(x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.grid.Get(x, y)
	if t == nil {
		return ErrInvalidCoordinate
	}

	if t.Type == grid.PowerPlant {
		c.demolishPlant(x, y)
	} else {
		c.grid.SetType(x, y, grid.Empty)
		c.grid.SetPowerLine(x, y, false)
	}
	power.Resolve(c.grid)
	c.record("demolish", fmt.Sprintf("tile cleared at (%d,%d)", x, y))
	return nil
}

// demolishPlant flood-fills the contiguous plant region containing (x,y)
// and clears every cell, so a partial footprint can never survive.
func (c *City) demolishPlant(x, y int) {
	queue := [][2]int{{x, y}}
	seen := map[[2]int]bool{{x, y}: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c.grid.SetType(cur[0], cur[1], grid.Empty)
		c.grid.SetPowerLine(cur[0], cur[1], false)
		for _, d := range grid.Neighbors4 {
			n := [2]int{cur[0] + d[0], cur[1] + d[1]}
			if seen[n] {
				continue
			}
			if t := c.grid.Get(n[0], n[1]); t != nil && t.Type == grid.PowerPlant {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
}

// SetPowerLine places or removes the power-line overlay. Placement charges
// the configured cost; removal is free. Returns false on invalid
// coordinates or insufficient funds.
func (c *City) SetPowerLine(x, y int, present bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.grid.Get(x, y)
	if t == nil {
		return false
	}
	if present && !t.HasPowerLine {
		if c.money < c.cfg.Costs.PowerLine {
			return false
		}
		c.money -= c.cfg.Costs.PowerLine
	}
	c.grid.SetPowerLine(x, y, present)
	power.Resolve(c.grid)
	return true
}

// QueryTile returns a read-only snapshot of one tile, or nil for invalid
// coordinates.
func (c *City) QueryTile(x, y int) *TileSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.grid.Get(x, y)
	if t == nil {
		return nil
	}
	return &TileSnapshot{
		X:                 x,
		Y:                 y,
		Type:              t.Type.String(),
		Powered:           t.Powered,
		Development:       t.Development,
		Population:        t.Population,
		Variant:           t.Variant,
		TrafficDensity:    t.TrafficDensity,
		TrafficLightPhase: int(t.TrafficLightPhase),
		HasPowerLine:      t.HasPowerLine,
	}
}

// QueryGrid returns snapshots of every tile in row-major order.
func (c *City) QueryGrid() (width, height int, tiles []TileSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tiles = make([]TileSnapshot, 0, c.grid.Width*c.grid.Height)
	c.grid.ForEach(func(x, y int, t *grid.Tile) {
		tiles = append(tiles, TileSnapshot{
			X:                 x,
			Y:                 y,
			Type:              t.Type.String(),
			Powered:           t.Powered,
			Development:       t.Development,
			Population:        t.Population,
			Variant:           t.Variant,
			TrafficDensity:    t.TrafficDensity,
			TrafficLightPhase: int(t.TrafficLightPhase),
			HasPowerLine:      t.HasPowerLine,
		})
	})
	return c.grid.Width, c.grid.Height, tiles
}
