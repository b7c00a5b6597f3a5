package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/shocktrack/types"
)

// Static implements a snapshot reader over in-memory profiles.
type Static struct {
	mu       sync.RWMutex
	datasets map[string]map[int]*types.Profile
}

var _ types.SnapshotReader = (*Static)(nil)

// NewStatic creates a new static snapshot reader.
//
// Profiles are keyed by their Index field. Useful for testing and for
// embedding the pipeline behind a reader that already holds decoded data.
//
// Parameters:
//   - dataset: Dataset name the profiles belong to
//   - profiles: Snapshot profiles, any order
//
// Returns:
//   - *Static: Initialized static reader
//
// Example:
//
//	src := source.NewStatic("s15.0", profiles)
//	runner, err := shocktrack.NewRunner(&cfg, comm, src)
//	if err != nil { /* handle */ }
func NewStatic(dataset string, profiles []*types.Profile) *Static {
	s := &Static{datasets: make(map[string]map[int]*types.Profile)}
	s.Update(dataset, profiles)

	return s
}

// Count returns one past the highest index and the lowest index of dataset.
func (s *Static) Count(_ context.Context, dataset string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.datasets[dataset]
	if len(snaps) == 0 {
		return 0, 0, fmt.Errorf("%w: dataset %s", types.ErrNoSnapshots, dataset)
	}

	first, last := -1, -1
	for i := range snaps {
		if first < 0 || i < first {
			first = i
		}
		if i > last {
			last = i
		}
	}

	return last + 1, first, nil
}

// Read returns snapshot i of dataset.
//
// Returns:
//   - *types.Profile: The stored profile (shared, must not be modified)
//   - error: types.ErrSnapshotNotFound when absent
func (s *Static) Read(_ context.Context, dataset string, i int) (*types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.datasets[dataset][i]
	if !ok {
		return nil, fmt.Errorf("%w: %s snapshot %d", types.ErrSnapshotNotFound, dataset, i)
	}

	return p, nil
}

// Update replaces the profiles of dataset.
//
// This allows the static reader to simulate a simulation that is still
// writing snapshots.
//
// Parameters:
//   - dataset: Dataset name
//   - profiles: New profiles; an empty list removes the dataset
func (s *Static) Update(dataset string, profiles []*types.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(profiles) == 0 {
		delete(s.datasets, dataset)
		return
	}

	snaps := make(map[int]*types.Profile, len(profiles))
	for _, p := range profiles {
		snaps[p.Index] = p
	}
	s.datasets[dataset] = snaps
}
