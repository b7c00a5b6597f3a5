package types

// State represents the runner lifecycle state for one dataset.
//
// States follow a defined progression during normal operation:
//
//	StateIdle → StatePlanning → StateDetecting → StateBarrier → StateGathering → StateReducing → StateDone
//
// Non-coordinator ranks wait for their assignment in StatePlanning and skip
// StateReducing.
type State int

const (
	// StateIdle is the initial state before any dataset is processed.
	StateIdle State = iota

	// StatePlanning indicates the coordinator is counting snapshots and
	// partitioning while the other ranks wait for their assignment.
	StatePlanning

	// StateDetecting indicates the worker is processing its interval.
	StateDetecting

	// StateBarrier indicates the worker waits for the pool to finish detection.
	StateBarrier

	// StateGathering indicates parts are being collected on the coordinator.
	StateGathering

	// StateReducing indicates the coordinator merges and persists the series.
	StateReducing

	// StateDone indicates the dataset is complete on this rank.
	StateDone

	// StateFailed indicates the dataset aborted with an error.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePlanning:
		return "Planning"
	case StateDetecting:
		return "Detecting"
	case StateBarrier:
		return "Barrier"
	case StateGathering:
		return "Gathering"
	case StateReducing:
		return "Reducing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s ends the dataset lifecycle.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}
