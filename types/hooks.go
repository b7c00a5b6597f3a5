package types

import "context"

// Hooks defines callbacks for Runner lifecycle events.
//
// All hooks are optional. OnStateChanged runs in a background goroutine so
// it never delays a collective operation; the other hooks run inline on the
// rank that triggers them. Hook errors are logged and reported to OnError but
// never fail the run.
//
// Example:
//
//	hooks := &shocktrack.Hooks{
//	    OnSeriesReduced: func(ctx context.Context, dataset string, columns map[string][]float64) error {
//	        return archive.Store(ctx, dataset, columns)
//	    },
//	}
type Hooks struct {
	// OnAssignment is called on every rank after it received its assignment.
	OnAssignment func(ctx context.Context, asg Assignment) error

	// OnSeriesReduced is called on the coordinator with the merged columns
	// of a dataset, after the series was persisted.
	OnSeriesReduced func(ctx context.Context, dataset string, columns map[string][]float64) error

	// OnStateChanged is called when the runner state transitions.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
