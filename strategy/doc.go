// Package strategy provides the partitioning of snapshot indices across a
// fixed worker pool.
//
// The package includes one built-in strategy:
//
//   - Contiguous: one contiguous, gapless interval per rank, remainder to the lowest ranks
//
// Contiguity is load-bearing: the reducer places every worker's sub-range at
// its offset and rejects parts whose intervals overlap or leave a gap, so
// Validate is exported for the merge step as well.
//
// Custom strategies can be implemented by satisfying the types.PartitionStrategy interface.
package strategy
