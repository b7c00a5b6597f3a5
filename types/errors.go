package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the shocktrack library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error classes:
//   - Configuration/input errors abort the run (ErrInvalidConfig, ErrNoSnapshots)
//   - Per-snapshot errors skip one snapshot (ErrSnapshotNotFound, ErrSnapshotFormat)
//   - Partition errors are raised by the reducer before any value is combined

// Runner errors - Public API errors returned by the Runner.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCommunicatorRequired is returned when the communicator is nil.
	ErrCommunicatorRequired = errors.New("communicator is required")

	// ErrReaderRequired is returned when the snapshot reader is nil.
	ErrReaderRequired = errors.New("snapshot reader is required")

	// ErrNoSnapshots is returned when a dataset has no readable snapshot.
	ErrNoSnapshots = errors.New("no readable snapshots found")

	// ErrUnknownVersus is returned for an unsupported versus axis.
	ErrUnknownVersus = errors.New("unknown versus axis")

	// ErrBounceNotFound is returned when no snapshot marks the bounce.
	ErrBounceNotFound = errors.New("bounce not found")

	// ErrRunAborted is returned on every rank when the coordinator could not plan a dataset.
	ErrRunAborted = errors.New("run aborted by coordinator")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")
)

// Snapshot errors - recoverable, the snapshot is skipped.
var (
	// ErrSnapshotNotFound is returned when a snapshot has not been written yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotFormat is returned when a snapshot cannot be parsed.
	ErrSnapshotFormat = errors.New("malformed snapshot")

	// ErrProfileShape is returned when radial arrays differ in length.
	ErrProfileShape = errors.New("profile arrays differ in length")
)

// Partition and reduction errors.
var (
	// ErrInvalidPartitionInput is returned for a non-positive pool or negative unit count.
	ErrInvalidPartitionInput = errors.New("invalid partition input")

	// ErrPartitionOverlap is returned when two worker intervals overlap.
	ErrPartitionOverlap = errors.New("worker intervals overlap")

	// ErrPartitionGap is returned when worker intervals do not cover the range.
	ErrPartitionGap = errors.New("worker intervals leave a gap")

	// ErrOutsideInterval is returned when a worker writes outside its interval.
	ErrOutsideInterval = errors.New("snapshot index outside worker interval")

	// ErrSeriesLength is returned when per-worker arrays differ in length.
	ErrSeriesLength = errors.New("series arrays differ in length")
)

// Collective errors - Communicator component errors.
var (
	// ErrInvalidRank is returned when a rank is outside [0, size).
	ErrInvalidRank = errors.New("invalid worker rank")

	// ErrAssignmentCount is returned when the coordinator broadcasts the wrong number of assignments.
	ErrAssignmentCount = errors.New("assignment count does not match pool size")

	// ErrRoundNotStarted is returned by Barrier or Gather on a round this rank never broadcast.
	ErrRoundNotStarted = errors.New("round not started")

	// ErrPayloadChecksum is returned when a gathered payload fails verification.
	ErrPayloadChecksum = errors.New("payload checksum mismatch")

	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}

// IsSkippable reports whether err only affects one snapshot.
//
// Skippable errors leave the snapshot's series slots at zero and never abort
// the surrounding range.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrSnapshotFormat) ||
		errors.Is(err, ErrProfileShape)
}
