package strategy

import (
	"fmt"

	"github.com/arloliu/shocktrack/types"
)

// Contiguous implements contiguous range partitioning.
type Contiguous struct{}

var _ types.PartitionStrategy = (*Contiguous)(nil)

// NewContiguous creates a new contiguous strategy.
//
// Returns:
//   - *Contiguous: Stateless contiguous strategy
//
// Example:
//
//	runner, err := shocktrack.NewRunner(&cfg, comm, reader,
//	    shocktrack.WithStrategy(strategy.NewContiguous()))
func NewContiguous() *Contiguous {
	return &Contiguous{}
}

// Assign delegates to Partition.
func (c *Contiguous) Assign(poolSize, numUnits int) ([]types.WorkInterval, error) {
	return Partition(poolSize, numUnits)
}

// Partition splits numUnits across poolSize workers.
//
// The algorithm:
//  1. When the pool is larger than the work, shrink it to numUnits and remember the idle count
//  2. Give every worker base = numUnits / size units
//  3. Shift each of the first numUnits % size workers (and every later bound) by one more unit
//  4. Append (0,0) intervals for the idle workers
//
// Parameters:
//   - poolSize: Number of workers (>= 1)
//   - numUnits: Number of units (>= 0)
//
// Returns:
//   - []types.WorkInterval: Exactly poolSize intervals ordered by rank
//   - error: types.ErrInvalidPartitionInput for out-of-range arguments
//
// Example:
//
//	intervals, _ := strategy.Partition(4, 10)
//	// [0,3) [3,6) [6,8) [8,10)
func Partition(poolSize, numUnits int) ([]types.WorkInterval, error) {
	if poolSize < 1 || numUnits < 0 {
		return nil, fmt.Errorf("%w: poolSize=%d numUnits=%d", types.ErrInvalidPartitionInput, poolSize, numUnits)
	}

	size := poolSize
	idle := 0
	if poolSize > numUnits {
		idle = poolSize - numUnits
		size = numUnits
	}

	intervals := make([]types.WorkInterval, 0, poolSize)
	if size > 0 {
		base := numUnits / size
		leftover := numUnits % size

		shift := 0
		for k := range size {
			start := k*base + shift
			if k < leftover {
				shift++
			}
			intervals = append(intervals, types.WorkInterval{Start: start, End: k*base + base + shift})
		}
	}

	for range idle {
		intervals = append(intervals, types.WorkInterval{})
	}

	return intervals, nil
}

// Shift moves every non-idle interval by offset.
//
// The partition is computed over [0, numUnits) while snapshot indices start
// at the bounce or the first available dump. Idle intervals stay (0,0).
//
// Parameters:
//   - intervals: Partition over [0, numUnits)
//   - offset: First snapshot index of the processed range
//
// Returns:
//   - []types.WorkInterval: New slice; the input is not modified
func Shift(intervals []types.WorkInterval, offset int) []types.WorkInterval {
	shifted := make([]types.WorkInterval, len(intervals))
	for i, w := range intervals {
		if w.IsIdle() {
			continue
		}
		shifted[i] = types.WorkInterval{Start: w.Start + offset, End: w.End + offset}
	}

	return shifted
}

// Validate checks that intervals are disjoint and exactly cover cover.
//
// Idle intervals are ignored. Non-idle intervals must be ordered by rank,
// start at cover.Start, abut each other, and end at cover.End.
//
// Parameters:
//   - intervals: One interval per rank
//   - cover: Expected union of all non-idle intervals
//
// Returns:
//   - error: types.ErrPartitionOverlap or types.ErrPartitionGap wrapped with
//     the offending rank, nil when the partition is valid
func Validate(intervals []types.WorkInterval, cover types.WorkInterval) error {
	next := cover.Start
	for rank, w := range intervals {
		if w.IsIdle() {
			continue
		}
		if w.Start < next {
			return fmt.Errorf("%w: rank %d %s starts before %d", types.ErrPartitionOverlap, rank, w, next)
		}
		if w.Start > next {
			return fmt.Errorf("%w: rank %d %s leaves [%d,%d) uncovered", types.ErrPartitionGap, rank, w, next, w.Start)
		}
		next = w.End
	}

	if next > cover.End {
		return fmt.Errorf("%w: partition ends at %d beyond %s", types.ErrPartitionOverlap, next, cover)
	}
	if next < cover.End {
		return fmt.Errorf("%w: [%d,%d) uncovered", types.ErrPartitionGap, next, cover.End)
	}

	return nil
}
