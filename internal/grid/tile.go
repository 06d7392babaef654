package grid

// TileType identifies what occupies a grid cell.
type TileType uint8

const (
	Empty TileType = iota
	Residential
	Commercial
	Industrial
	Road
	PowerPlant
	Park
	Hospital
	Police
	School
	Library
)

// Population growth bounds. A residential tile holds at most
// BasePopulation + Development*PerLevelCap residents.
const (
	BasePopulation = 10
	PerLevelCap    = 50
	MaxDevelopment = 3
)

// LightPhase is the traffic-light state of an intersection road tile.
type LightPhase uint8

const (
	LightNone  LightPhase = iota // not an intersection
	LightRedNS                   // north-south traffic stopped
	LightRedEW                   // east-west traffic stopped
)

// Tile is the full state record of one grid cell. Powered and
// TrafficDensity are derived each tick; everything else is authoritative.
type Tile struct {
	Type              TileType
	Powered           bool
	Development       int // 0-3, zoned tiles only
	Population        int // residential only
	Variant           int // cosmetic sprite variant, no simulation effect
	TrafficDensity    int // 0-100, roads only
	TrafficLightPhase LightPhase
	HasPowerLine      bool // overlay, coexists with any base type
}

// Zonable reports whether the type carries development and population state.
func (t TileType) Zonable() bool {
	return t == Residential || t == Commercial || t == Industrial
}

// Civic reports whether the type is a service building counted by the
// happiness engine.
func (t TileType) Civic() bool {
	switch t {
	case Hospital, Police, School, Library:
		return true
	}
	return false
}

// Conductive reports whether power propagates through this tile. The
// predicate is static over type plus overlay: power lines always conduct,
// as do roads, zoned tiles and plant cells. Civic buildings, parks and
// empty land block propagation unless a line is run through them.
func (t *Tile) Conductive() bool {
	if t.HasPowerLine {
		return true
	}
	switch t.Type {
	case Road, Residential, Commercial, Industrial, PowerPlant:
		return true
	}
	return false
}

// PopulationCap returns the resident ceiling for the current development level.
func (t *Tile) PopulationCap() int {
	return BasePopulation + t.Development*PerLevelCap
}

func (t TileType) String() string {
	switch t {
	case Empty:
		return "empty"
	case Residential:
		return "residential"
	case Commercial:
		return "commercial"
	case Industrial:
		return "industrial"
	case Road:
		return "road"
	case PowerPlant:
		return "power_plant"
	case Park:
		return "park"
	case Hospital:
		return "hospital"
	case Police:
		return "police"
	case School:
		return "school"
	case Library:
		return "library"
	default:
		return "unknown"
	}
}

// TypeFromString parses the wire/persistence name of a tile type.
func TypeFromString(s string) (TileType, bool) {
	for tt := Empty; tt <= Library; tt++ {
		if tt.String() == s {
			return tt, true
		}
	}
	return Empty, false
}
