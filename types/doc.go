// Package types provides core type definitions and interfaces for the shocktrack library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the main shocktrack package and its internal implementations.
//
// Key types:
//   - WorkInterval: Half-open range of snapshot indices owned by one worker
//   - Profile: One snapshot's radial arrays plus scalar header values
//   - Detection: Shock front and dense core boundary of one snapshot
//   - Assignment: Versioned per-rank plan broadcast by the coordinator
//   - SeriesPart: One worker's slice of the per-snapshot series
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
