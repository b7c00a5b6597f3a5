package detect

import (
	"fmt"

	"github.com/arloliu/shocktrack/types"
)

// Detector runs boundary detection on the radial arrays of one snapshot.
//
// A Detector never modifies its input slices and holds no state between
// calls: repeating a call with the same parameters yields the same result.
type Detector struct {
	x     []float64
	rho   []float64
	v     []float64
	sound []float64
}

// New creates a detector over equal-length radial arrays.
//
// Parameters:
//   - x: Grid coordinate per radial index
//   - rho: Density per radial index
//   - v: Radial velocity per radial index
//   - sound: Sound speed per radial index (nil when unavailable)
//
// Returns:
//   - *Detector: Detector bound to the arrays
//   - error: types.ErrProfileShape when lengths differ
//
// Example:
//
//	d, err := detect.New(p.Radius, p.Density, p.Velocity, p.Sound)
//	if err != nil { /* skip snapshot */ }
//	res := d.Detect(bump, 1e12)
func New(x, rho, v, sound []float64) (*Detector, error) {
	n := len(x)
	if len(rho) != n || len(v) != n || (sound != nil && len(sound) != n) {
		return nil, fmt.Errorf("%w: x=%d rho=%d v=%d sound=%d",
			types.ErrProfileShape, len(x), len(rho), len(v), len(sound))
	}

	return &Detector{x: x, rho: rho, v: v, sound: sound}, nil
}

// FromProfile creates a detector over a snapshot profile.
func FromProfile(p *types.Profile) (*Detector, error) {
	return New(p.Radius, p.Density, p.Velocity, p.Sound)
}

// Cells returns the number of radial grid points.
func (d *Detector) Cells() int {
	return len(d.x)
}

// ShockRadius locates the shock front as the velocity minimum at or after bump.
//
// The returned index is relative to the full array. Ties resolve to the
// first (innermost) minimum. An empty velocity array or a bump at or beyond
// its end yields (0, 0). A negative bump searches the full array.
//
// Parameters:
//   - bump: Leading grid points excluded from the search
//
// Returns:
//   - index: Grid index of the shock front
//   - position: Grid coordinate at index
func (d *Detector) ShockRadius(bump int) (int, float64) {
	if bump < 0 {
		bump = 0
	}

	return d.argminV(bump, len(d.v))
}

// ShockRadiusNear searches the shock front within halfWidth of prev.
//
// The window [prev-halfWidth, prev+halfWidth) is clipped to the array and to
// bump. With no previous detection (prev < 0), a non-positive halfWidth or an
// empty clipped window the search falls back to ShockRadius(bump).
//
// Parameters:
//   - prev: Shock index of the previous snapshot, -1 when unknown
//   - halfWidth: Grid points searched on each side of prev
//   - bump: Leading grid points excluded from the search
//
// Returns:
//   - index: Grid index of the shock front
//   - position: Grid coordinate at index
func (d *Detector) ShockRadiusNear(prev, halfWidth, bump int) (int, float64) {
	if prev < 0 || halfWidth <= 0 {
		return d.ShockRadius(bump)
	}

	lo := max(prev-halfWidth, bump, 0)
	hi := min(prev+halfWidth, len(d.v))
	if lo >= hi {
		return d.ShockRadius(bump)
	}

	return d.argminV(lo, hi)
}

func (d *Detector) argminV(lo, hi int) (int, float64) {
	if lo >= hi {
		return 0, 0
	}

	idx := lo
	for i := lo + 1; i < hi; i++ {
		if d.v[i] < d.v[idx] {
			idx = i
		}
	}

	return idx, d.x[idx]
}

// CoreRadius locates the outer edge of the dense core.
//
// The whole density array is scanned and the last index whose density
// exceeds threshold is returned, so density excursions above the threshold
// beyond a first drop are part of the core. No exceeding index yields (0, 0),
// which callers must read as "no core" rather than "core at the center".
//
// Parameters:
//   - threshold: Density above which a grid point belongs to the core
//
// Returns:
//   - index: Grid index of the core edge
//   - position: Grid coordinate at index
func (d *Detector) CoreRadius(threshold float64) (int, float64) {
	idx, pos := 0, 0.0
	for i, rho := range d.rho {
		if rho > threshold {
			idx, pos = i, d.x[i]
		}
	}

	return idx, pos
}

// Detect runs shock and core detection.
//
// Parameters:
//   - bump: Leading grid points excluded from the shock search
//   - threshold: Core density threshold
//
// Returns:
//   - types.Detection: Both boundaries; zero fields mean "not found"
func (d *Detector) Detect(bump int, threshold float64) types.Detection {
	var res types.Detection
	res.ShockIndex, res.ShockRadius = d.ShockRadius(bump)
	res.CoreIndex, res.CoreRadius = d.CoreRadius(threshold)

	return res
}

// DetectNear runs core detection and a windowed shock search around prev.
func (d *Detector) DetectNear(prev, halfWidth, bump int, threshold float64) types.Detection {
	var res types.Detection
	res.ShockIndex, res.ShockRadius = d.ShockRadiusNear(prev, halfWidth, bump)
	res.CoreIndex, res.CoreRadius = d.CoreRadius(threshold)

	return res
}
