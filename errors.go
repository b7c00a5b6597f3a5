package shocktrack

import "github.com/arloliu/shocktrack/types"

// Sentinel errors returned by the Runner, re-exported from the types package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrCommunicatorRequired is returned when the communicator is nil.
	ErrCommunicatorRequired = types.ErrCommunicatorRequired

	// ErrReaderRequired is returned when the snapshot reader is nil.
	ErrReaderRequired = types.ErrReaderRequired

	// ErrNoSnapshots is returned when a dataset has no readable snapshot.
	ErrNoSnapshots = types.ErrNoSnapshots

	// ErrUnknownVersus is returned for an unsupported versus axis.
	ErrUnknownVersus = types.ErrUnknownVersus

	// ErrRunAborted is returned on non-coordinator ranks when planning failed.
	ErrRunAborted = types.ErrRunAborted

	// ErrBounceNotFound is returned when the bounce index cannot be determined.
	ErrBounceNotFound = types.ErrBounceNotFound

	// ErrPartitionOverlap is returned when gathered intervals overlap.
	ErrPartitionOverlap = types.ErrPartitionOverlap

	// ErrPartitionGap is returned when gathered intervals leave a gap.
	ErrPartitionGap = types.ErrPartitionGap

	// ErrInvalidRank is returned for a pool size < 1 or a rank outside it.
	ErrInvalidRank = types.ErrInvalidRank
)
