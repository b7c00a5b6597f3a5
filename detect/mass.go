package detect

import "math"

// SolarMass is the solar mass in grams.
const SolarMass = 1.989e33

// EnclosedMass integrates the mass enclosed within each grid radius.
//
// Each cell contributes a spherical shell 4/3*pi*rho_i*(r_i^3 - r_{i-1}^3),
// the innermost cell a full sphere. Radii are multiplied by unit before
// integration (1 for centimetres, 1e5 for kilometres).
//
// Parameters:
//   - x: Grid radius per index, increasing
//   - rho: Density per index in g/cm^3
//   - unit: Conversion factor from x to centimetres
//
// Returns:
//   - []float64: Enclosed mass per index in solar masses, nil when lengths differ
func EnclosedMass(x, rho []float64, unit float64) []float64 {
	if len(x) != len(rho) {
		return nil
	}

	encm := make([]float64, len(x))
	prev := 0.0
	for i := range x {
		r3 := math.Pow(unit*x[i], 3)
		dm := 4.0 / 3.0 * math.Pi * rho[i] * (r3 - prev) / SolarMass
		if i > 0 {
			dm += encm[i-1]
		}
		encm[i] = dm
		prev = r3
	}

	return encm
}

// MassAt returns encm[i], or 0 when i is out of range.
func MassAt(encm []float64, i int) float64 {
	if i < 0 || i >= len(encm) {
		return 0
	}

	return encm[i]
}
