package series

import (
	"fmt"
	"slices"

	"github.com/arloliu/shocktrack/strategy"
	"github.com/arloliu/shocktrack/types"
)

// Part is one worker's contribution, as exchanged through the communicator.
type Part = types.SeriesPart

// Series is the reconstructed per-snapshot series of one dataset.
type Series struct {
	Dataset  string
	NumFiles int
	Bounce   int
	Cover    types.WorkInterval
	Columns  map[string][]float64
}

// Column returns the named column, nil when absent.
func (s *Series) Column(name string) []float64 {
	return s.Columns[name]
}

// Row returns snapshot i as a Row.
func (s *Series) Row(i int) Row {
	return rowFrom(s.Columns, i)
}

// Sum adds per-worker full-length arrays element-wise.
//
// The result equals the full series only when the producing worker
// intervals are disjoint and cover the range; Sum does not check that.
// Use Merge when the intervals are known.
//
// Parameters:
//   - perWorker: One {name -> array} map per worker
//
// Returns:
//   - map[string][]float64: Element-wise sums per name
//   - error: types.ErrSeriesLength when arrays of one name differ in length
func Sum(perWorker []map[string][]float64) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for w, arrays := range perWorker {
		for name, arr := range arrays {
			acc, ok := out[name]
			if !ok {
				acc = make([]float64, len(arr))
				out[name] = acc
			}
			if len(acc) != len(arr) {
				return nil, fmt.Errorf("%w: %q from worker %d has %d values, want %d",
					types.ErrSeriesLength, name, w, len(arr), len(acc))
			}
			for i, v := range arr {
				acc[i] += v
			}
		}
	}

	return out, nil
}

// Merge reconstructs the full series from every worker's part.
//
// The worker intervals are validated first: they must be disjoint, ordered
// by rank and exactly cover cover. Every non-idle part must carry every
// column in Columns with one value per snapshot of its interval. Each column
// is then combined with its Combinator. Snapshots outside cover stay zero.
//
// Parameters:
//   - parts: One part per rank, any order
//   - numFiles: Full series length
//   - cover: Range of snapshot indices that was partitioned
//
// Returns:
//   - *Series: Reconstructed series (Dataset and Bounce left for the caller)
//   - error: types.ErrPartitionOverlap, types.ErrPartitionGap or types.ErrSeriesLength
func Merge(parts []Part, numFiles int, cover types.WorkInterval) (*Series, error) {
	if cover.Start < 0 || cover.End > numFiles || cover.End < cover.Start {
		return nil, fmt.Errorf("%w: cover %s outside [0,%d)", types.ErrSeriesLength, cover, numFiles)
	}

	ordered := slices.Clone(parts)
	slices.SortFunc(ordered, func(a, b Part) int { return a.Rank - b.Rank })

	intervals := make([]types.WorkInterval, len(ordered))
	for i, p := range ordered {
		intervals[i] = p.Interval
	}
	if err := strategy.Validate(intervals, cover); err != nil {
		return nil, fmt.Errorf("merge series: %w", err)
	}

	cols := make(map[string][]float64, len(Columns))
	for _, name := range Columns {
		cols[name] = make([]float64, numFiles)
	}

	for _, p := range ordered {
		if p.Interval.IsIdle() {
			continue
		}
		for _, name := range Columns {
			if _, ok := p.Columns[name]; !ok {
				return nil, fmt.Errorf("%w: rank %d has no column %q for %s",
					types.ErrSeriesLength, p.Rank, name, p.Interval)
			}
		}
		for name, vals := range p.Columns {
			if len(vals) != p.Interval.Len() {
				return nil, fmt.Errorf("%w: rank %d column %q has %d values for %s",
					types.ErrSeriesLength, p.Rank, name, len(vals), p.Interval)
			}

			dst, ok := cols[name]
			if !ok {
				dst = make([]float64, numFiles)
				cols[name] = dst
			}

			switch CombinatorFor(name) {
			case Add:
				for j, v := range vals {
					dst[p.Interval.Start+j] += v
				}
			default:
				copy(dst[p.Interval.Start:p.Interval.End], vals)
			}
		}
	}

	return &Series{NumFiles: numFiles, Cover: cover, Columns: cols}, nil
}
