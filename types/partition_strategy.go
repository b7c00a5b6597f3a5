package types

// PartitionStrategy splits a unit count across a fixed worker pool.
//
// Implementations must return exactly poolSize intervals, ordered by rank,
// pairwise disjoint and covering [0, numUnits). The reducer relies on this
// for correctness, not only for load balance.
type PartitionStrategy interface {
	// Assign computes one interval per worker rank.
	//
	// Parameters:
	//   - poolSize: Number of workers (>= 1)
	//   - numUnits: Number of units to distribute (>= 0)
	//
	// Returns:
	//   - []WorkInterval: One interval per rank
	//   - error: ErrInvalidPartitionInput for out-of-range arguments
	Assign(poolSize, numUnits int) ([]WorkInterval, error)
}
