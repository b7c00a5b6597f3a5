package types

import "context"

// SnapshotReader loads snapshots of a dataset.
//
// Implementations can read various backends:
//   - Directory: readable text dumps on disk
//   - Static: in-memory profiles for testing
type SnapshotReader interface {
	// Count reports the series length and the first available snapshot.
	//
	// Returns:
	//   - numFiles: Series length (highest snapshot index + 1)
	//   - first: 0-based index of the earliest snapshot present
	//   - err: ErrNoSnapshots when the dataset has no snapshot at all
	Count(ctx context.Context, dataset string) (numFiles int, first int, err error)

	// Read loads snapshot i (0-based).
	//
	// Returns ErrSnapshotNotFound when the snapshot has not been written yet;
	// callers skip such snapshots.
	Read(ctx context.Context, dataset string, i int) (*Profile, error)
}

// BounceFinder resolves the reference bounce index of a dataset.
type BounceFinder interface {
	// FindBounce returns the 0-based bounce snapshot index.
	//
	// Returns ErrBounceNotFound when no snapshot qualifies.
	FindBounce(ctx context.Context, reader SnapshotReader, dataset string, numFiles int) (int, error)
}

// Progress is a worker's position within its assigned interval.
type Progress struct {
	Dataset string `json:"dataset"`
	Rank    int    `json:"rank"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// ProgressReporter publishes worker progress.
type ProgressReporter interface {
	Report(ctx context.Context, p Progress) error
}
