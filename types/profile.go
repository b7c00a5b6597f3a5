package types

// Species indexes the three neutrino luminosity channels.
type Species int

const (
	// SpeciesNue is the electron neutrino channel.
	SpeciesNue Species = iota
	// SpeciesNueBar is the electron anti-neutrino channel.
	SpeciesNueBar
	// SpeciesNux is the heavy-lepton neutrino channel.
	SpeciesNux

	// NumSpecies is the number of luminosity channels.
	NumSpecies = 3
)

// Profile is one simulation snapshot.
//
// Radius, Density, Velocity and Sound are indexed by radial grid index and
// share the same length. Sound may be nil when the snapshot does not carry it.
// A Profile is immutable once read.
type Profile struct {
	// Index is the 0-based snapshot index.
	Index int

	// Time is the elapsed simulation time in seconds.
	Time float64

	// BounceTime is the bounce time recorded by the simulation (0 before bounce).
	BounceTime float64

	// Luminosity holds per-species luminosities from the snapshot header.
	Luminosity [NumSpecies]float64

	Radius   []float64
	Density  []float64
	Velocity []float64
	Sound    []float64
}

// Cells returns the number of radial grid points.
func (p *Profile) Cells() int {
	return len(p.Radius)
}
