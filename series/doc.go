// Package series assembles per-snapshot detection results into time series.
//
// Each worker owns a Builder over the full snapshot range but writes only
// the slots of its assigned interval. The coordinator reconstructs the full
// series from every worker's Part with Merge, which checks that the worker
// intervals are disjoint and cover the processed range before combining.
//
// Columns are combined per kind:
//
//   - Positional columns (time, indices, radii, enclosed masses) are placed at their offset
//   - Luminosity columns are additive and summed
//
// Sum keeps the plain element-wise reduction over full-length arrays.
package series
