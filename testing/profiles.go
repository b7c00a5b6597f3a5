package testing

import (
	"math"

	"github.com/arloliu/shocktrack/types"
)

// SyntheticProfiles builds n snapshots of a collapsing-star-like series.
//
// Every profile has cells radial points on a logarithmic grid from 1e5 to
// 1e9 cm. The density falls off from 4e14 at the center, so the dense core
// edge stays near the same index, and the velocity has a single minimum that
// moves outward by one cell per snapshot starting at cells/4 (the shock).
// Snapshots from bounce on carry a non-zero bounce time.
//
// Parameters:
//   - n: Number of snapshots (indices 0..n-1)
//   - cells: Radial grid points per snapshot (>= 8)
//   - bounce: Index of the first post-bounce snapshot
//
// Returns:
//   - []*types.Profile: Profiles ordered by index
func SyntheticProfiles(n, cells, bounce int) []*types.Profile {
	profiles := make([]*types.Profile, n)
	for i := range n {
		p := &types.Profile{
			Index:    i,
			Time:     float64(i) * 1e-3,
			Radius:   make([]float64, cells),
			Density:  make([]float64, cells),
			Velocity: make([]float64, cells),
			Sound:    make([]float64, cells),
		}
		if i >= bounce {
			p.BounceTime = float64(bounce) * 1e-3
			p.Luminosity = [types.NumSpecies]float64{1e52, 8e51, 5e51}
		}

		shock := SyntheticShockIndex(i, cells)
		for c := range cells {
			frac := float64(c) / float64(cells-1)
			p.Radius[c] = 1e5 * math.Pow(1e4, frac)
			p.Density[c] = 4e14 * math.Exp(-12*frac)
			p.Velocity[c] = -1e8 * frac
			p.Sound[c] = 1e9
		}
		p.Velocity[shock] = -5e9
		profiles[i] = p
	}

	return profiles
}

// SyntheticShockIndex returns the velocity minimum of SyntheticProfiles snapshot i.
func SyntheticShockIndex(i, cells int) int {
	return min(cells/4+i, cells-1)
}
