package shocktrack

import (
	"github.com/arloliu/shocktrack/series"
	"github.com/arloliu/shocktrack/types"
)

// Re-export types from the types package.
//
// Internal packages depend on `types` only, so the root package can offer
// shocktrack.Assignment, shocktrack.Logger and friends without import cycles.
type (
	State        = types.State
	WorkInterval = types.WorkInterval
	Assignment   = types.Assignment
	Profile      = types.Profile
	Detection    = types.Detection
	Progress     = types.Progress
	Series       = series.Series
)

// Re-export interfaces from the types package for convenience.
type (
	Communicator      = types.Communicator
	SnapshotReader    = types.SnapshotReader
	BounceFinder      = types.BounceFinder
	PartitionStrategy = types.PartitionStrategy
	ProgressReporter  = types.ProgressReporter
	MetricsCollector  = types.MetricsCollector
	Logger            = types.Logger
	Hooks             = types.Hooks
)

// Re-export State constants from the types package.
const (
	StateIdle      = types.StateIdle
	StatePlanning  = types.StatePlanning
	StateDetecting = types.StateDetecting
	StateBarrier   = types.StateBarrier
	StateGathering = types.StateGathering
	StateReducing  = types.StateReducing
	StateDone      = types.StateDone
	StateFailed    = types.StateFailed
)
