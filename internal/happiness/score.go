// Package happiness aggregates civic coverage, pollution and amenity
// proximity into a single 0-100 satisfaction score. The score is computed
// from the grid as it stood after the previous tick's growth, so growth
// always consumes a one-tick-delayed value.
package happiness

import "github.com/mpue/citysim/internal/grid"

// Service coverage requirements: one building per N residents, with the
// penalty applied per missing building.
const (
	hospitalPer   = 5000
	policePer     = 5000
	schoolPer     = 3000
	libraryPer    = 4000
	hospitalCost  = 10
	policeCost    = 10
	schoolCost    = 8
	libraryCost   = 6
	proximitySpan = 3 // radius of the residential amenity scan window
)

// Breakdown itemizes the score components for the UI and debugging.
type Breakdown struct {
	Score int `json:"score"`

	ServicePenalty   int `json:"service_penalty"`
	PollutionPenalty int `json:"pollution_penalty"`
	ParkPenalty      int `json:"park_penalty"`
	ParkBonus        int `json:"park_bonus"`
	IndustryPenalty  int `json:"industry_proximity_penalty"`
	ProximityBonus   int `json:"park_proximity_bonus"`
}

// Score computes the current city happiness.
func Score(g *grid.Grid) int {
	return Evaluate(g).Score
}

// Evaluate computes happiness with its full component breakdown. The
// result is clamped to [0,100] and is 100 for an empty city.
func Evaluate(g *grid.Grid) Breakdown {
	var (
		population    int
		industrialDev int
		parks         int
		hospitals     int
		police        int
		schools       int
		libraries     int
	)

	g.ForEach(func(x, y int, t *grid.Tile) {
		population += t.Population
		switch t.Type {
		case grid.Industrial:
			industrialDev += t.Development
		case grid.Park:
			parks++
		case grid.Hospital:
			hospitals++
		case grid.Police:
			police++
		case grid.School:
			schools++
		case grid.Library:
			libraries++
		}
	})

	var b Breakdown
	score := 100.0

	b.ServicePenalty = serviceDeficit(population, hospitalPer, hospitals)*hospitalCost +
		serviceDeficit(population, policePer, police)*policeCost +
		serviceDeficit(population, schoolPer, schools)*schoolCost +
		serviceDeficit(population, libraryPer, libraries)*libraryCost
	score -= float64(b.ServicePenalty)

	if population > 0 {
		pollutionRatio := float64(industrialDev) / (float64(population) / 100.0)
		if pollutionRatio > 3 {
			b.PollutionPenalty = int((pollutionRatio - 3) * 3)
			score -= float64(b.PollutionPenalty)
		}
	}

	parkNeed := float64(population) / 500.0
	if parkNeed < 1 {
		parkNeed = 1
	}
	parkRatio := float64(parks) / parkNeed
	if parkRatio < 1 && population > 100 {
		b.ParkPenalty = int((1 - parkRatio) * 10)
		score -= float64(b.ParkPenalty)
	} else if parkRatio > 1 {
		b.ParkBonus = int((parkRatio - 1) * 2)
		if b.ParkBonus > 5 {
			b.ParkBonus = 5
		}
		score += float64(b.ParkBonus)
	}

	indPen, parkBon := proximity(g)
	b.IndustryPenalty = indPen
	b.ProximityBonus = parkBon
	score -= float64(indPen)
	score += float64(parkBon)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	b.Score = int(score)
	return b
}

// serviceDeficit returns how many buildings short of coverage the city is.
func serviceDeficit(population, per, actual int) int {
	needed := (population + per - 1) / per
	if deficit := needed - actual; deficit > 0 {
		return deficit
	}
	return 0
}

// proximity scans a 7×7 window (radius 3, inclusive, bounds-checked) around
// every populated residential tile, looking for active industry (bad) and
// parks (good). The aggregate ratios across all such tiles become a single
// penalty and bonus.
func proximity(g *grid.Grid) (industryPenalty, parkBonus int) {
	totalResidential := 0
	nearIndustry := 0
	nearPark := 0

	g.ForEach(func(x, y int, t *grid.Tile) {
		if t.Type != grid.Residential || t.Population == 0 {
			return
		}
		totalResidential++

		foundIndustry := false
		foundPark := false
		for dy := -proximitySpan; dy <= proximitySpan; dy++ {
			for dx := -proximitySpan; dx <= proximitySpan; dx++ {
				n := g.Get(x+dx, y+dy)
				if n == nil {
					continue
				}
				if n.Type == grid.Industrial && n.Development > 0 {
					foundIndustry = true
				}
				if n.Type == grid.Park {
					foundPark = true
				}
			}
		}
		if foundIndustry {
			nearIndustry++
		}
		if foundPark {
			nearPark++
		}
	})

	if totalResidential == 0 {
		return 0, 0
	}
	industryPenalty = int(float64(nearIndustry) / float64(totalResidential) * 15)
	parkBonus = int(float64(nearPark) / float64(totalResidential) * 10)
	return industryPenalty, parkBonus
}
