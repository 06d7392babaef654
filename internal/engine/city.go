// Package engine ties the grid, power, happiness, growth and traffic
// systems together. City is the single writer of grid state: the monthly
// tick and the player action handlers all mutate under one lock, so
// readers always observe a fully resolved simulation state.
package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mpue/citysim/internal/entropy"
	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/growth"
	"github.com/mpue/citysim/internal/happiness"
	"github.com/mpue/citysim/internal/power"
	"github.com/mpue/citysim/internal/traffic"
	"github.com/mpue/citysim/internal/tuning"
)

// City holds the complete simulation state for one settlement.
type City struct {
	mu sync.Mutex

	id   uuid.UUID
	grid *grid.Grid
	cfg  *tuning.Tuning

	growth *growth.Engine

	money     int
	loan      int
	year      int
	month     int
	happiness int
	tick      uint64 // months simulated since founding

	demand Demand
	events []Event
}

// Event is a notable occurrence in the city, kept for the event feed.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "build", "demolish", "finance", "report"
}

// Demand is a read-only advisory indicator of which zone types the city
// could absorb. It never feeds back into the growth rules.
type Demand struct {
	Residential int `json:"residential"`
	Commercial  int `json:"commercial"`
	Industrial  int `json:"industrial"`
}

// TickResult is what one simulated month produced.
type TickResult struct {
	IncomeDelta     int `json:"income_delta"`
	PopulationTotal int `json:"population_total"`
	Happiness       int `json:"happiness"`
}

// Stats is a read-only projection of the city's top-level state.
type Stats struct {
	ID         string `json:"id"`
	Tick       uint64 `json:"tick"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Money      int    `json:"money"`
	Loan       int    `json:"loan"`
	Population int    `json:"population"`
	Happiness  int    `json:"happiness"`
	Demand     Demand `json:"demand"`
}

// NewCity founds a city on an empty grid. The same seed reproduces the
// same cosmetic terrain and, with a seeded entropy source, the same
// simulation history.
func NewCity(cfg *tuning.Tuning, rng entropy.Source, seed int64) *City {
	c := &City{
		id:     uuid.New(),
		grid:   grid.New(cfg.GridWidth, cfg.GridHeight, seed),
		cfg:    cfg,
		growth: growth.New(rng, cfg.Growth),
		money:  cfg.StartingMoney,
		year:   1,
		month:  1,
	}
	c.happiness = happiness.Score(c.grid)
	power.Resolve(c.grid)
	return c
}

// ID returns the city's identifier.
func (c *City) ID() string {
	return c.id.String()
}

// Step advances the simulation by one month. Sequencing is deliberate:
// power first, then happiness (which therefore sees the previous month's
// population — a one-tick lag the decline rules depend on), then growth,
// then traffic over the updated tiles.
func (c *City) Step() TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++

	power.Resolve(c.grid)
	c.happiness = happiness.Score(c.grid)
	income := c.growth.Step(c.grid, c.happiness)
	traffic.Update(c.grid)

	c.money += income
	c.applyLoanInterest()
	c.advanceCalendar()
	c.updateDemand()

	res := TickResult{
		IncomeDelta:     income,
		PopulationTotal: c.grid.CountPopulation(),
		Happiness:       c.happiness,
	}

	if c.month == 1 {
		c.record("report", fmt.Sprintf("year %d begins: population %d, happiness %d, treasury %d",
			c.year, res.PopulationTotal, res.Happiness, c.money))
	}

	slog.Debug("month simulated",
		"tick", c.tick,
		"year", c.year,
		"month", c.month,
		"income", res.IncomeDelta,
		"population", res.PopulationTotal,
		"happiness", res.Happiness,
	)
	return res
}

func (c *City) advanceCalendar() {
	c.month++
	if c.month > 12 {
		c.month = 1
		c.year++
	}
}

func (c *City) applyLoanInterest() {
	if c.loan <= 0 {
		return
	}
	interest := int(float64(c.loan) * c.cfg.LoanInterest)
	if interest > 0 {
		c.money -= interest
	}
}

// updateDemand derives the advisory demand indicator from housing vacancy
// and the job-to-population balance.
func (c *City) updateDemand() {
	housingCap := 0
	jobs := 0
	population := 0
	c.grid.ForEach(func(x, y int, t *grid.Tile) {
		switch t.Type {
		case grid.Residential:
			housingCap += t.PopulationCap()
			population += t.Population
		case grid.Commercial:
			jobs += (t.Development + 1) * 20
		case grid.Industrial:
			jobs += (t.Development + 1) * 30
		}
	})

	vacancy := housingCap - population
	d := Demand{}
	switch {
	case housingCap == 0 || vacancy <= 0:
		d.Residential = 80
	case vacancy < housingCap/4:
		d.Residential = 40
	default:
		d.Residential = 10
	}
	if jobs < population {
		d.Industrial = 50 + (population-jobs)/10
		d.Commercial = 30 + (population-jobs)/20
	} else {
		d.Industrial = 10
		d.Commercial = 20
	}
	c.demand = clampDemand(d)
}

func clampDemand(d Demand) Demand {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		return v
	}
	d.Residential = clamp(d.Residential)
	d.Commercial = clamp(d.Commercial)
	d.Industrial = clamp(d.Industrial)
	return d
}

// Stats returns the current top-level city state.
func (c *City) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ID:         c.id.String(),
		Tick:       c.tick,
		Year:       c.year,
		Month:      c.month,
		Money:      c.money,
		Loan:       c.loan,
		Population: c.grid.CountPopulation(),
		Happiness:  c.happiness,
		Demand:     c.demand,
	}
}

// HappinessBreakdown returns the itemized happiness components.
func (c *City) HappinessBreakdown() happiness.Breakdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return happiness.Evaluate(c.grid)
}

// Events returns up to limit most recent events, newest last.
func (c *City) Events(limit int) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := 0
	if limit > 0 && len(c.events) > limit {
		start = len(c.events) - limit
	}
	out := make([]Event, len(c.events)-start)
	copy(out, c.events[start:])
	return out
}

// DrainEvents returns all buffered events and clears the buffer. Used by
// persistence to append the feed to durable storage.
func (c *City) DrainEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func (c *City) record(category, description string) {
	c.events = append(c.events, Event{
		Tick:        c.tick,
		Description: description,
		Category:    category,
	})
	// Bounded buffer; persistence drains it, but a headless run without a
	// database must not grow without limit.
	if len(c.events) > 1000 {
		c.events = c.events[len(c.events)-1000:]
	}
}

// TakeLoan borrows the given amount, up to the configured limit.
func (c *City) TakeLoan(amount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amount <= 0 || c.loan+amount > c.cfg.LoanLimit {
		return false
	}
	c.loan += amount
	c.money += amount
	c.record("finance", "loan taken")
	return true
}

// RepayLoan pays back part of the outstanding loan from the treasury.
func (c *City) RepayLoan(amount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amount <= 0 || amount > c.loan || amount > c.money {
		return false
	}
	c.loan -= amount
	c.money -= amount
	c.record("finance", "loan repaid")
	return true
}

// StateDigest hashes the complete simulation state. Two cities with the
// same seed and the same edit history produce identical digests.
func (c *City) StateDigest() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := sha256.New()
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	writeInt(int(c.tick))
	writeInt(c.money)
	writeInt(c.loan)
	writeInt(c.year)
	writeInt(c.month)
	writeInt(c.happiness)
	c.grid.ForEach(func(x, y int, t *grid.Tile) {
		writeInt(int(t.Type))
		writeInt(t.Development)
		writeInt(t.Population)
		writeInt(t.TrafficDensity)
		writeInt(int(t.TrafficLightPhase))
		if t.Powered {
			writeInt(1)
		} else {
			writeInt(0)
		}
		if t.HasPowerLine {
			writeInt(1)
		} else {
			writeInt(0)
		}
	})
	return hex.EncodeToString(h.Sum(nil))
}
