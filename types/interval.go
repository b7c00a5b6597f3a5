package types

import "fmt"

// WorkInterval is a half-open range [Start, End) of snapshot indices.
//
// The degenerate interval (0,0) marks an idle worker.
type WorkInterval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of units covered by the interval.
func (w WorkInterval) Len() int {
	if w.End < w.Start {
		return 0
	}

	return w.End - w.Start
}

// IsIdle reports whether the interval covers no units.
func (w WorkInterval) IsIdle() bool {
	return w.Len() == 0
}

// Contains reports whether index i lies inside the interval.
func (w WorkInterval) Contains(i int) bool {
	return i >= w.Start && i < w.End
}

// String returns the interval in "[start,end)" form.
func (w WorkInterval) String() string {
	return fmt.Sprintf("[%d,%d)", w.Start, w.End)
}
