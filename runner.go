package shocktrack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/shocktrack/detect"
	"github.com/arloliu/shocktrack/internal/collective"
	"github.com/arloliu/shocktrack/internal/hooks"
	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/internal/metrics"
	"github.com/arloliu/shocktrack/internal/progress"
	"github.com/arloliu/shocktrack/series"
	"github.com/arloliu/shocktrack/strategy"
	"github.com/arloliu/shocktrack/types"
)

// Snapshot outcomes recorded per processed index.
const (
	outcomeDetected   = "detected"
	outcomeMissing    = "missing"
	outcomeUnreadable = "unreadable"
	outcomePreBounce  = "pre_bounce"
)

// errPreBounce marks snapshots skipped in post-bounce mode.
var errPreBounce = errors.New("snapshot precedes bounce")

// Runner drives one rank of a pool through the datasets of a run.
//
// For every dataset the coordinator (rank 0) plans the work and broadcasts
// one assignment per rank; each rank detects features over its interval,
// all ranks meet at a barrier, and the coordinator gathers, merges and
// persists the series before a closing barrier.
//
// Every rank of a pool must call Run (or RunDataset) with the same dataset
// sequence.
//
// Thread Safety:
//   - A Runner processes one dataset at a time; do not call RunDataset
//     concurrently on the same Runner
//   - State may be called from any goroutine
type Runner struct {
	cfg    Config
	comm   Communicator
	reader SnapshotReader

	strategy     PartitionStrategy
	bounceFinder BounceFinder
	progress     ProgressReporter
	sink         Sink
	hooks        Hooks
	metrics      MetricsCollector
	logger       Logger

	version atomic.Int64
	state   atomic.Int32

	mu         sync.Mutex
	stateSince time.Time
}

// NewRunner creates a Runner for the rank behind comm.
//
// Parameters:
//   - cfg: Configuration; the runner defaults and keeps its own copy
//   - comm: Communicator of this rank
//   - reader: Snapshot source
//   - opts: Optional dependencies (logger, metrics, hooks, strategy, ...)
//
// Returns:
//   - *Runner: Initialized runner in StateIdle
//   - error: ErrInvalidConfig, ErrUnknownVersus, ErrCommunicatorRequired or ErrReaderRequired
//
// Example:
//
//	comms, _ := shocktrack.NewLocalPool(4)
//	reader := source.NewDirectory(cfg.Source.BasePath, cfg.Source.BaseFile, logger)
//	runner, err := shocktrack.NewRunner(&cfg, comms[0], reader, shocktrack.WithLogger(logger))
func NewRunner(cfg *Config, comm Communicator, reader SnapshotReader, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if comm == nil {
		return nil, ErrCommunicatorRequired
	}
	if reader == nil {
		return nil, ErrReaderRequired
	}

	runCfg := *cfg
	SetDefaults(&runCfg)
	if err := runCfg.Validate(); err != nil {
		return nil, err
	}
	cfg = &runCfg

	options := &runnerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	if cfg.PoolSize != comm.Size() {
		loggerInstance.Warn("pool size differs from communicator size, using communicator",
			"configured", cfg.PoolSize,
			"communicator", comm.Size(),
		)
	}

	r := &Runner{
		cfg:          *cfg,
		comm:         comm,
		reader:       reader,
		strategy:     options.strategy,
		bounceFinder: options.bounceFinder,
		progress:     options.progress,
		sink:         options.sink,
		hooks:        hooks.Fill(options.hooks),
		metrics:      metricsCollector,
		logger:       loggerInstance,
		stateSince:   time.Now(),
	}

	if r.strategy == nil {
		r.strategy = strategy.NewContiguous()
	}
	if r.bounceFinder == nil {
		switch cfg.Detection.BounceMode {
		case BounceHeader:
			r.bounceFinder = detect.NewHeaderBounceFinder(loggerInstance)
		default:
			r.bounceFinder = detect.NewScanBounceFinder(cfg.Detection.BounceDelay, loggerInstance)
		}
	}
	if r.progress == nil {
		r.progress = progress.NewLog(loggerInstance)
	}
	if r.sink == nil {
		r.sink = series.NewFileSink(cfg.Output.BasePath, cfg.Output.Amend, loggerInstance)
	}

	r.state.Store(int32(StateIdle))

	return r, nil
}

// State returns the current runner state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Run processes datasets in order.
//
// An empty list runs Config.Datasets. A dataset named twice is rejected
// before any round starts. The first failing dataset stops the run.
//
// Parameters:
//   - ctx: Context bounding every collective wait
//   - datasets: Dataset names, identical on every rank
//
// Returns:
//   - error: First dataset error, wrapped with the dataset name
func (r *Runner) Run(ctx context.Context, datasets []string) error {
	if len(datasets) == 0 {
		datasets = r.cfg.Datasets
	}
	if name, ok := duplicateDataset(datasets); ok {
		return fmt.Errorf("%w: dataset %s listed more than once", ErrInvalidConfig, name)
	}

	for _, dataset := range datasets {
		if _, err := r.RunDataset(ctx, dataset); err != nil {
			return fmt.Errorf("dataset %s: %w", dataset, err)
		}
	}

	return nil
}

// RunDataset runs one dataset through plan, detect, gather and reduce.
//
// Returns:
//   - *Series: Merged series on the coordinator, nil on other ranks
//   - error: Planning, collective, merge or persistence error
func (r *Runner) RunDataset(ctx context.Context, dataset string) (*Series, error) {
	round := types.RoundID(r.cfg.RunID, dataset)
	start := time.Now()

	r.transition(ctx, StatePlanning)

	var plan []Assignment
	var planErr error
	if r.comm.IsCoordinator() {
		plan, planErr = r.Plan(ctx, dataset)
		if planErr != nil {
			r.logger.Error("planning failed", "dataset", dataset, "error", planErr)
			plan = r.abortPlan(dataset, planErr)
		}
	}

	var asg Assignment
	err := r.collective("broadcast", func() error {
		var err error
		asg, err = r.comm.Broadcast(ctx, round, plan)
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, fmt.Errorf("broadcast: %w", err))
	}
	if planErr != nil {
		return nil, r.fail(ctx, planErr)
	}
	if asg.Abort != "" {
		return nil, r.fail(ctx, fmt.Errorf("%w: %s", ErrRunAborted, asg.Abort))
	}

	r.logger.Info("assignment received",
		"dataset", dataset,
		"rank", r.comm.Rank(),
		"interval", asg.Interval.String(),
		"numFiles", asg.NumFiles,
		"bounce", asg.Bounce,
	)
	r.metrics.RecordIntervalSize(dataset, asg.Interval.Len())
	if err := r.hooks.OnAssignment(ctx, asg); err != nil {
		r.hookError(ctx, "assignment hook error", err)
	}

	r.transition(ctx, StateDetecting)
	builder, err := r.ProcessRange(ctx, asg)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	r.transition(ctx, StateBarrier)
	if err := r.barrier(ctx, round, collective.StageDetect); err != nil {
		return nil, r.fail(ctx, err)
	}

	r.transition(ctx, StateGathering)
	var parts []series.Part
	err = r.collective("gather", func() error {
		var err error
		parts, err = r.comm.Gather(ctx, round, builder.Part(r.comm.Rank()))
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, fmt.Errorf("gather: %w", err))
	}

	var reduced *Series
	var reduceErr error
	if r.comm.IsCoordinator() {
		r.transition(ctx, StateReducing)
		reduced, reduceErr = r.reduce(ctx, asg, parts)
	}

	// every rank closes the round, also after a failed reduction
	r.transition(ctx, StateBarrier)
	if err := r.barrier(ctx, round, collective.StageDone); err != nil {
		return nil, r.fail(ctx, err)
	}
	if reduceErr != nil {
		return nil, r.fail(ctx, reduceErr)
	}

	r.transition(ctx, StateDone)
	r.logger.Info("dataset finished",
		"dataset", dataset,
		"rank", r.comm.Rank(),
		"recorded", builder.Recorded(),
		"elapsed", time.Since(start),
	)

	return reduced, nil
}

// Plan computes one assignment per rank for dataset.
//
// The partitioned range starts at the bounce index in post-bounce mode and
// at the first available dump otherwise, and always ends at numFiles.
//
// Returns:
//   - []Assignment: Assignment per rank, index = rank
//   - error: ErrNoSnapshots, ErrBounceNotFound or a strategy error
func (r *Runner) Plan(ctx context.Context, dataset string) ([]Assignment, error) {
	numFiles, first, err := r.reader.Count(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if numFiles <= 0 {
		return nil, fmt.Errorf("%w: dataset %s", ErrNoSnapshots, dataset)
	}

	bounce, err := r.resolveBounce(ctx, dataset, numFiles)
	if err != nil {
		return nil, err
	}

	offset := first
	if r.cfg.Detection.PostBounce {
		offset = bounce
	}
	offset = min(max(offset, 0), numFiles)
	units := numFiles - offset

	size := r.comm.Size()
	intervals, err := r.strategy.Assign(size, units)
	if err != nil {
		return nil, fmt.Errorf("partition %d snapshots over %d workers: %w", units, size, err)
	}

	cover := WorkInterval{Start: offset, End: numFiles}
	shifted := strategy.Shift(intervals, offset)
	if len(shifted) != size {
		return nil, fmt.Errorf("%w: strategy returned %d intervals for %d workers",
			types.ErrAssignmentCount, len(shifted), size)
	}
	if err := strategy.Validate(shifted, cover); err != nil {
		return nil, fmt.Errorf("strategy produced an invalid partition: %w", err)
	}

	version := r.version.Add(1)
	plan := make([]Assignment, size)
	for rank := range plan {
		plan[rank] = Assignment{
			Version:  version,
			Dataset:  dataset,
			Rank:     rank,
			NumFiles: numFiles,
			Bounce:   bounce,
			Cover:    cover,
			Interval: shifted[rank],
		}
	}

	r.logger.Info("dataset planned",
		"dataset", dataset,
		"numFiles", numFiles,
		"first", first,
		"bounce", bounce,
		"cover", cover.String(),
		"workers", size,
	)

	return plan, nil
}

// ProcessRange detects features for every snapshot of the assignment's
// interval and records them in a fresh builder.
//
// Missing and unreadable snapshots are skipped; in post-bounce mode so are
// snapshots before the bounce index. Only context cancellation aborts the
// range.
func (r *Runner) ProcessRange(ctx context.Context, asg Assignment) (*series.Builder, error) {
	builder, err := series.NewBuilder(asg.NumFiles, asg.Interval)
	if err != nil {
		return nil, err
	}

	override := r.cfg.OverrideFor(asg.Dataset)
	total := asg.Interval.Len()

	prev, err := r.seedShock(ctx, asg, override)
	if err != nil {
		return nil, err
	}
	builder.SetPreviousShock(prev)

	for i := asg.Interval.Start; i < asg.Interval.End; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.processSnapshot(ctx, builder, asg, override, i); err != nil {
			return nil, err
		}

		p := Progress{Dataset: asg.Dataset, Rank: r.comm.Rank(), Done: i - asg.Interval.Start + 1, Total: total}
		if err := r.progress.Report(ctx, p); err != nil {
			r.logger.Warn("failed to report progress", "dataset", asg.Dataset, "error", err)
		}
	}

	return builder, nil
}

// seedShock returns the previous shock index the first snapshot of the
// interval would see if one worker processed the whole cover.
//
// The windowed search chains every detection to the one before it, so the
// chain is replayed without recording from the last snapshot before the
// interval that was searched without the window. Returns -1 when the window
// is disabled or nothing precedes the interval.
func (r *Runner) seedShock(ctx context.Context, asg Assignment, o Override) (int, error) {
	start := asg.Interval.Start
	if r.cfg.Detection.ShockWindow <= 0 || asg.Interval.IsIdle() || start <= asg.Cover.Start {
		return -1, nil
	}

	// snapshots below WindowStart-1 are searched without the window
	lo := asg.Cover.Start
	for j := min(start, o.WindowStart-1) - 1; j >= asg.Cover.Start; j-- {
		_, _, err := r.load(ctx, asg, j)
		if err == nil {
			lo = j
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, ctxErr
		}
	}

	prev := -1
	for j := lo; j < start; j++ {
		_, det, err := r.load(ctx, asg, j)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return -1, ctxErr
			}
			continue
		}
		prev = r.detectAt(det, o, j, prev).ShockIndex
	}

	r.logger.Debug("shock chain seeded", "dataset", asg.Dataset, "from", lo, "to", start, "previous", prev)

	return prev, nil
}

// load reads snapshot i and builds its detector.
//
// Skipped snapshots return errPreBounce, a types.ErrSnapshotNotFound or the
// read or shape error; context errors are returned as is.
func (r *Runner) load(ctx context.Context, asg Assignment, i int) (*types.Profile, *detect.Detector, error) {
	if r.cfg.Detection.PostBounce && i < asg.Bounce {
		return nil, nil, errPreBounce
	}

	profile, err := r.reader.Read(ctx, asg.Dataset, i)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}

		return nil, nil, fmt.Errorf("snapshot %d of %s: %w", i, asg.Dataset, err)
	}

	det, err := detect.FromProfile(profile)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %d of %s: %w", i, asg.Dataset, err)
	}

	return profile, det, nil
}

// detectAt runs the shock and core search of snapshot i.
func (r *Runner) detectAt(det *detect.Detector, o Override, i, prev int) Detection {
	bump := o.Bump(i)
	threshold := r.cfg.Detection.CoreThreshold

	if window := r.cfg.Detection.ShockWindow; window > 0 && o.Windowed(i) {
		return det.DetectNear(prev, window, bump, threshold)
	}

	return det.Detect(bump, threshold)
}

func (r *Runner) processSnapshot(ctx context.Context, b *series.Builder, asg Assignment, o Override, i int) error {
	start := time.Now()

	profile, det, err := r.load(ctx, asg, i)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, errPreBounce):
		r.metrics.RecordSnapshot(outcomePreBounce)
		return nil
	case errors.Is(err, types.ErrSnapshotNotFound):
		r.metrics.RecordSnapshot(outcomeMissing)
		r.logger.Debug("snapshot missing, skipped", "dataset", asg.Dataset, "index", i)
		return nil
	default:
		r.metrics.RecordSnapshot(outcomeUnreadable)
		r.hookError(ctx, "snapshot unreadable, skipped", err)
		return nil
	}

	result := r.detectAt(det, o, i, b.PreviousShockIndex())

	encm := detect.EnclosedMass(profile.Radius, profile.Density, 1)
	row := series.Row{
		Time:       profile.Time,
		Detection:  result,
		CoreMass:   detect.MassAt(encm, result.CoreIndex),
		ShockMass:  detect.MassAt(encm, result.ShockIndex),
		Luminosity: profile.Luminosity,
	}
	if err := b.Record(i, row); err != nil {
		return err
	}

	r.metrics.RecordDetectionDuration(time.Since(start).Seconds())
	r.metrics.RecordSnapshot(outcomeDetected)

	if result.IsZero() {
		r.logger.Debug("no feature detected", "dataset", asg.Dataset, "index", i)
	}

	return nil
}

// reduce merges gathered parts and persists the series on the coordinator.
func (r *Runner) reduce(ctx context.Context, asg Assignment, parts []series.Part) (*Series, error) {
	start := time.Now()

	s, err := series.Merge(parts, asg.NumFiles, asg.Cover)
	r.metrics.RecordReduction(asg.Dataset, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	s.Dataset = asg.Dataset
	s.Bounce = asg.Bounce

	if r.cfg.PersistEvolution() {
		if err := r.sink.Persist(ctx, s); err != nil {
			return nil, fmt.Errorf("persist series: %w", err)
		}
	} else {
		r.logger.Info("evolution not persisted for versus axis", "versus", r.cfg.Output.Versus)
	}

	if err := r.hooks.OnSeriesReduced(ctx, s.Dataset, s.Columns); err != nil {
		r.hookError(ctx, "series hook error", err)
	}

	return s, nil
}

func (r *Runner) resolveBounce(ctx context.Context, dataset string, numFiles int) (int, error) {
	switch r.cfg.Detection.BounceMode {
	case BounceNone:
		return 0, nil
	case BounceFixed:
		if r.cfg.Detection.BounceIndex >= numFiles {
			return 0, fmt.Errorf("%w: fixed index %d beyond %d snapshots",
				ErrBounceNotFound, r.cfg.Detection.BounceIndex, numFiles)
		}

		return r.cfg.Detection.BounceIndex, nil
	}

	bounce, err := r.bounceFinder.FindBounce(ctx, r.reader, dataset, numFiles)
	if err == nil {
		return bounce, nil
	}
	if !r.cfg.Detection.PostBounce && errors.Is(err, ErrBounceNotFound) {
		r.logger.Warn("bounce not found, using index 0", "dataset", dataset)
		return 0, nil
	}

	return 0, fmt.Errorf("find bounce: %w", err)
}

// abortPlan builds the assignments telling every rank to stop.
func (r *Runner) abortPlan(dataset string, err error) []Assignment {
	plan := make([]Assignment, r.comm.Size())
	for rank := range plan {
		plan[rank] = Assignment{Dataset: dataset, Rank: rank, Abort: err.Error()}
	}

	return plan
}

func (r *Runner) barrier(ctx context.Context, round, stage string) error {
	err := r.collective("barrier_"+stage, func() error {
		return r.comm.Barrier(ctx, round, stage)
	})
	if err != nil {
		return fmt.Errorf("barrier %s: %w", stage, err)
	}

	return nil
}

func (r *Runner) collective(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.metrics.RecordCollectiveDuration(op, time.Since(start).Seconds())

	return err
}

func (r *Runner) fail(ctx context.Context, err error) error {
	r.transition(ctx, StateFailed)
	if hookErr := r.hooks.OnError(ctx, err); hookErr != nil {
		r.logger.Warn("error hook failed", "error", hookErr)
	}

	return err
}

func (r *Runner) hookError(ctx context.Context, msg string, err error) {
	r.logger.Warn(msg, "error", err)
	if hookErr := r.hooks.OnError(ctx, err); hookErr != nil {
		r.logger.Warn("error hook failed", "error", hookErr)
	}
}

// transition moves the runner to a new state and triggers hooks.
func (r *Runner) transition(ctx context.Context, to State) {
	from := r.State()
	if from == to {
		return
	}
	if !isValidTransition(from, to) {
		r.logger.Error("invalid state transition attempted", "from", from.String(), "to", to.String())
		return
	}

	r.mu.Lock()
	elapsed := time.Since(r.stateSince)
	r.stateSince = time.Now()
	r.mu.Unlock()

	r.state.Store(int32(to)) //nolint:gosec // State values are controlled enum

	r.logger.Debug("state transition", "from", from.String(), "to", to.String(), "rank", r.comm.Rank())
	r.metrics.RecordStateTransition(from, to, elapsed.Seconds())

	// Run hook in background to avoid blocking collective operations
	go func() {
		if err := r.hooks.OnStateChanged(ctx, from, to); err != nil {
			r.logger.Warn("state change hook error", "from", from.String(), "to", to.String(), "error", err)
		}
	}()
}

// validTransitions lists the states reachable from each state.
var validTransitions = map[State][]State{
	StateIdle:      {StatePlanning},
	StatePlanning:  {StateDetecting, StateFailed},
	StateDetecting: {StateBarrier, StateFailed},
	StateBarrier:   {StateGathering, StateDone, StateFailed},
	StateGathering: {StateReducing, StateBarrier, StateFailed},
	StateReducing:  {StateBarrier, StateFailed},
	StateDone:      {StatePlanning},
	StateFailed:    {StatePlanning},
}

func isValidTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}
