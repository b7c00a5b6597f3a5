// Package progress reports per-worker progress through an interval.
//
// Workers report through types.ProgressReporter:
//   - Publisher writes the latest position to a KV key per rank, flushed at
//     a fixed interval.
//   - Log writes progress milestones to the logger.
//   - Nop discards reports.
//
// Monitor runs on the coordinator, watches the published keys and logs an
// aggregate summary, replacing a console progress bar.
package progress
