package series

import (
	"fmt"

	"github.com/arloliu/shocktrack/types"
)

// Builder accumulates one worker's rows of the series.
//
// The builder owns full-length, zero-initialised arrays for every column
// but only accepts rows inside its interval, so every other slot keeps the
// additive identity. A Builder is not safe for concurrent use; each worker
// owns its own.
type Builder struct {
	numFiles  int
	interval  types.WorkInterval
	cols      map[string][]float64
	prevShock int
	recorded  int
}

// NewBuilder creates a builder for snapshot indices [0, numFiles).
//
// Parameters:
//   - numFiles: Full series length
//   - interval: Snapshot indices owned by this worker
//
// Returns:
//   - *Builder: Builder with zeroed arrays
//   - error: types.ErrOutsideInterval when interval exceeds [0, numFiles)
func NewBuilder(numFiles int, interval types.WorkInterval) (*Builder, error) {
	if numFiles < 0 {
		return nil, fmt.Errorf("%w: numFiles=%d", types.ErrSeriesLength, numFiles)
	}
	if !interval.IsIdle() && (interval.Start < 0 || interval.End > numFiles) {
		return nil, fmt.Errorf("%w: %s not within [0,%d)", types.ErrOutsideInterval, interval, numFiles)
	}

	cols := make(map[string][]float64, len(Columns))
	for _, name := range Columns {
		cols[name] = make([]float64, numFiles)
	}

	return &Builder{
		numFiles:  numFiles,
		interval:  interval,
		cols:      cols,
		prevShock: -1,
	}, nil
}

// Interval returns the worker's interval.
func (b *Builder) Interval() types.WorkInterval {
	return b.interval
}

// Record writes the row of snapshot i.
//
// Parameters:
//   - i: 0-based snapshot index inside the worker's interval
//   - row: Values to store
//
// Returns:
//   - error: types.ErrOutsideInterval when i is not owned by this worker;
//     nothing is written in that case
func (b *Builder) Record(i int, row Row) error {
	if !b.interval.Contains(i) {
		return fmt.Errorf("%w: index %d not in %s", types.ErrOutsideInterval, i, b.interval)
	}

	for _, name := range Columns {
		b.cols[name][i] = row.value(name)
	}
	b.prevShock = row.Detection.ShockIndex
	b.recorded++

	return nil
}

// PreviousShockIndex returns the shock index of the last recorded row.
//
// Returns -1 until the first row is recorded.
func (b *Builder) PreviousShockIndex() int {
	return b.prevShock
}

// SetPreviousShock seeds the previous shock index before the first Record,
// for workers whose interval continues a chain started by another worker.
// A negative index means none; the next windowed search then scans the
// whole profile.
func (b *Builder) SetPreviousShock(index int) {
	b.prevShock = max(index, -1)
}

// Recorded returns the number of rows written.
func (b *Builder) Recorded() int {
	return b.recorded
}

// Arrays returns copies of the full-length arrays keyed by column name.
//
// Slots outside the worker's interval are zero. Summing the Arrays of every
// worker with Sum reconstructs the full series.
func (b *Builder) Arrays() map[string][]float64 {
	out := make(map[string][]float64, len(b.cols))
	for name, col := range b.cols {
		cp := make([]float64, len(col))
		copy(cp, col)
		out[name] = cp
	}

	return out
}

// Part returns the worker's own sub-range of every column.
//
// Parameters:
//   - rank: Worker rank stamped on the part
//
// Returns:
//   - types.SeriesPart: Columns of length Interval.Len(); empty for idle workers
func (b *Builder) Part(rank int) Part {
	part := Part{Rank: rank, Interval: b.interval, Columns: make(map[string][]float64, len(b.cols))}
	if b.interval.IsIdle() {
		part.Interval = types.WorkInterval{}
		return part
	}

	for name, col := range b.cols {
		sub := make([]float64, b.interval.Len())
		copy(sub, col[b.interval.Start:b.interval.End])
		part.Columns[name] = sub
	}

	return part
}
