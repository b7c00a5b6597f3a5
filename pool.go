package shocktrack

import "github.com/arloliu/shocktrack/internal/collective"

// NewLocalPool creates the communicators of an in-process pool.
//
// Each communicator belongs to one rank and must drive its own Runner in its
// own goroutine; communicators[0] is the coordinator.
//
// Parameters:
//   - size: Number of ranks (>= 1)
//
// Returns:
//   - []Communicator: One communicator per rank, ordered by rank
//   - error: ErrInvalidRank if size < 1
func NewLocalPool(size int) ([]Communicator, error) {
	locals, err := collective.NewLocal(size)
	if err != nil {
		return nil, err
	}

	comms := make([]Communicator, len(locals))
	for i, l := range locals {
		comms[i] = l
	}

	return comms, nil
}
