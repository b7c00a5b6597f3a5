package shocktrack

import (
	"context"

	"github.com/arloliu/shocktrack/series"
)

// Sink persists a reduced series on the coordinator.
type Sink interface {
	Persist(ctx context.Context, s *series.Series) error
}

// Option configures a Runner with optional dependencies.
type Option func(*runnerOptions)

// runnerOptions holds optional Runner configuration.
type runnerOptions struct {
	logger       Logger
	metrics      MetricsCollector
	hooks        *Hooks
	strategy     PartitionStrategy
	bounceFinder BounceFinder
	progress     ProgressReporter
	sink         Sink
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewRunner
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	runner, err := shocktrack.NewRunner(&cfg, comm, reader, shocktrack.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *runnerOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewRunner
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *runnerOptions) {
		o.metrics = metrics
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewRunner
//
// Example:
//
//	hooks := &shocktrack.Hooks{
//	    OnSeriesReduced: func(ctx context.Context, dataset string, columns map[string][]float64) error {
//	        return publish(dataset, columns)
//	    },
//	}
//	runner, err := shocktrack.NewRunner(&cfg, comm, reader, shocktrack.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *runnerOptions) {
		o.hooks = hooks
	}
}

// WithStrategy replaces the contiguous partition strategy.
//
// The strategy must return disjoint intervals covering [0, numUnits);
// gathered parts are validated against that on the coordinator.
func WithStrategy(strategy PartitionStrategy) Option {
	return func(o *runnerOptions) {
		o.strategy = strategy
	}
}

// WithBounceFinder replaces the bounce finder selected by
// Detection.BounceMode ("compute" and "header" modes).
func WithBounceFinder(finder BounceFinder) Option {
	return func(o *runnerOptions) {
		o.bounceFinder = finder
	}
}

// WithProgress sets the progress reporter used while processing intervals.
//
// Defaults to logging progress milestones.
func WithProgress(reporter ProgressReporter) Option {
	return func(o *runnerOptions) {
		o.progress = reporter
	}
}

// WithSink sets where the coordinator persists reduced series.
//
// Defaults to series.FileSink under Output.BasePath. Sinks are only invoked
// when Output.Versus is "r".
func WithSink(sink Sink) Option {
	return func(o *runnerOptions) {
		o.sink = sink
	}
}
