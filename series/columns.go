package series

import "github.com/arloliu/shocktrack/types"

// Column names of the per-snapshot series.
const (
	ColTime        = "time"
	ColCoreIndex   = "core_index"
	ColCoreRadius  = "core_radius"
	ColCoreMass    = "core_encm"
	ColShockIndex  = "shock_index"
	ColShockRadius = "shock_radius"
	ColShockMass   = "shock_encm"
	ColLumNue      = "lum_nue"
	ColLumNueBar   = "lum_nueb"
	ColLumNux      = "lum_nux"
)

// Columns lists every column in persisted order.
var Columns = []string{
	ColTime,
	ColCoreIndex, ColCoreRadius, ColCoreMass,
	ColShockIndex, ColShockRadius, ColShockMass,
	ColLumNue, ColLumNueBar, ColLumNux,
}

// luminosityColumns maps species to their column.
var luminosityColumns = [types.NumSpecies]string{ColLumNue, ColLumNueBar, ColLumNux}

// Combinator selects how worker values of a column are combined.
type Combinator int

const (
	// Place writes each worker's values at their snapshot offset.
	Place Combinator = iota
	// Add accumulates worker values element-wise.
	Add
)

// String returns the combinator name.
func (c Combinator) String() string {
	switch c {
	case Place:
		return "place"
	case Add:
		return "add"
	default:
		return "unknown"
	}
}

// CombinatorFor returns the combinator of a column.
//
// Luminosities are additive; every other column is positional.
func CombinatorFor(name string) Combinator {
	switch name {
	case ColLumNue, ColLumNueBar, ColLumNux:
		return Add
	default:
		return Place
	}
}

// Row is one snapshot's entry in the series.
type Row struct {
	Time       float64
	Detection  types.Detection
	CoreMass   float64
	ShockMass  float64
	Luminosity [types.NumSpecies]float64
}

func (r Row) value(name string) float64 {
	switch name {
	case ColTime:
		return r.Time
	case ColCoreIndex:
		return float64(r.Detection.CoreIndex)
	case ColCoreRadius:
		return r.Detection.CoreRadius
	case ColCoreMass:
		return r.CoreMass
	case ColShockIndex:
		return float64(r.Detection.ShockIndex)
	case ColShockRadius:
		return r.Detection.ShockRadius
	case ColShockMass:
		return r.ShockMass
	case ColLumNue:
		return r.Luminosity[types.SpeciesNue]
	case ColLumNueBar:
		return r.Luminosity[types.SpeciesNueBar]
	case ColLumNux:
		return r.Luminosity[types.SpeciesNux]
	default:
		return 0
	}
}

func rowFrom(cols map[string][]float64, i int) Row {
	get := func(name string) float64 {
		if c := cols[name]; i >= 0 && i < len(c) {
			return c[i]
		}

		return 0
	}

	var r Row
	r.Time = get(ColTime)
	r.Detection = types.Detection{
		CoreIndex:   int(get(ColCoreIndex)),
		CoreRadius:  get(ColCoreRadius),
		ShockIndex:  int(get(ColShockIndex)),
		ShockRadius: get(ColShockRadius),
	}
	r.CoreMass = get(ColCoreMass)
	r.ShockMass = get(ColShockMass)
	for s, name := range luminosityColumns {
		r.Luminosity[s] = get(name)
	}

	return r
}
