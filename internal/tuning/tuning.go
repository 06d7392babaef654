// Package tuning holds the tunable simulation constants, loadable from a
// YAML file so balance changes don't require a rebuild.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the complete set of simulation parameters.
type Tuning struct {
	GridWidth  int `yaml:"grid_width"`
	GridHeight int `yaml:"grid_height"`

	// Power plant footprint edge length. Plants occupy footprint² tiles
	// centered on the placement coordinate.
	PlantFootprint int `yaml:"plant_footprint"`

	StartingMoney int     `yaml:"starting_money"`
	LoanLimit     int     `yaml:"loan_limit"`
	LoanInterest  float64 `yaml:"loan_interest"` // monthly rate on outstanding loan

	Growth Growth `yaml:"growth"`
	Costs  Costs  `yaml:"costs"`
}

// Growth holds the per-tick stochastic growth parameters.
type Growth struct {
	ResidentialDevChance float64 `yaml:"residential_dev_chance"`
	ResidentialPopChance float64 `yaml:"residential_pop_chance"`
	CommercialDevChance  float64 `yaml:"commercial_dev_chance"`
	IndustrialDevChance  float64 `yaml:"industrial_dev_chance"`

	SeedHappinessMin  int `yaml:"seed_happiness_min"`
	GrowHappinessMin  int `yaml:"grow_happiness_min"`
	DriftHappinessMin int `yaml:"drift_happiness_min"`

	ResidentialTaxRate float64 `yaml:"residential_tax_rate"` // income per resident
	CommercialIncome   int     `yaml:"commercial_income"`    // per development level
	IndustrialIncome   int     `yaml:"industrial_income"`    // per development level
	PlantUpkeep        int     `yaml:"plant_upkeep"`         // per footprint tile
}

// Costs is the construction cost table, keyed by structure.
type Costs struct {
	Residential int `yaml:"residential"`
	Commercial  int `yaml:"commercial"`
	Industrial  int `yaml:"industrial"`
	Road        int `yaml:"road"`
	PowerPlant  int `yaml:"power_plant"` // flat, covers the whole footprint
	PowerLine   int `yaml:"power_line"`
	Park        int `yaml:"park"`
	Hospital    int `yaml:"hospital"`
	Police      int `yaml:"police"`
	School      int `yaml:"school"`
	Library     int `yaml:"library"`
}

// Default returns the baseline parameter set used when no tuning file is given.
func Default() *Tuning {
	return &Tuning{
		GridWidth:      64,
		GridHeight:     64,
		PlantFootprint: 3,
		StartingMoney:  10000,
		LoanLimit:      20000,
		LoanInterest:   0.01,
		Growth: Growth{
			ResidentialDevChance: 0.05,
			ResidentialPopChance: 0.10,
			CommercialDevChance:  0.03,
			IndustrialDevChance:  0.04,
			SeedHappinessMin:     30,
			GrowHappinessMin:     50,
			DriftHappinessMin:    40,
			ResidentialTaxRate:   0.1,
			CommercialIncome:     10,
			IndustrialIncome:     15,
			PlantUpkeep:          50,
		},
		Costs: Costs{
			Residential: 100,
			Commercial:  100,
			Industrial:  100,
			Road:        10,
			PowerPlant:  3000,
			PowerLine:   5,
			Park:        20,
			Hospital:    500,
			Police:      500,
			School:      400,
			Library:     300,
		},
	}
}

// Load reads a tuning file, filling any omitted values from Default.
func Load(path string) (*Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	return t, nil
}

func (t *Tuning) validate() error {
	if t.GridWidth < 8 || t.GridHeight < 8 {
		return fmt.Errorf("grid %dx%d too small", t.GridWidth, t.GridHeight)
	}
	if t.PlantFootprint < 1 || t.PlantFootprint > t.GridWidth || t.PlantFootprint > t.GridHeight {
		return fmt.Errorf("plant footprint %d out of range", t.PlantFootprint)
	}
	return nil
}
