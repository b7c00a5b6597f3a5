package types

import "context"

// Communicator connects one worker to its fixed-size pool.
//
// Workers share nothing except through the three collective operations,
// applied at well-defined synchronization points:
//   - Broadcast: coordinator hands each rank its assignment
//   - Barrier: no rank leaves a stage before every rank entered it
//   - Gather: every rank's series part is delivered to the coordinator
//
// There is no timeout beyond the caller's context: a stalled rank stalls
// every other rank waiting on the same barrier.
type Communicator interface {
	// Rank returns this worker's rank in [0, Size()).
	Rank() int

	// Size returns the pool size.
	Size() int

	// IsCoordinator reports whether this worker is rank 0.
	IsCoordinator() bool

	// Broadcast distributes per-rank assignments for a round.
	//
	// The coordinator passes one assignment per rank (index = rank); other
	// ranks pass nil. Every rank receives its own assignment.
	Broadcast(ctx context.Context, round string, assignments []Assignment) (Assignment, error)

	// Barrier blocks until every rank reached the same round and stage.
	Barrier(ctx context.Context, round, stage string) error

	// Gather delivers part to the coordinator.
	//
	// The coordinator receives all parts ordered by rank; other ranks receive nil.
	Gather(ctx context.Context, round string, part SeriesPart) ([]SeriesPart, error)
}
