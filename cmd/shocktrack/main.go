// Command shocktrack tracks the core and shock radius of collapsing-star
// snapshot series.
//
// Local mode runs the whole pool as goroutines of one process:
//
//	shocktrack -config shocktrack.yaml -mode local s12.swbj15.horo.3d
//
// NATS mode runs one rank per process; start PoolSize processes with the same
// configuration and run id. Ranks are claimed from a KV bucket, the lowest
// claimed rank (0) coordinates:
//
//	shocktrack -config shocktrack.yaml -mode nats -nats nats://127.0.0.1:4222
//
// Datasets given as arguments replace the configured list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/shocktrack"
	"github.com/arloliu/shocktrack/internal/collective"
	"github.com/arloliu/shocktrack/internal/kvutil"
	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/internal/metrics"
	"github.com/arloliu/shocktrack/internal/natsutil"
	"github.com/arloliu/shocktrack/internal/progress"
	"github.com/arloliu/shocktrack/internal/stableid"
	"github.com/arloliu/shocktrack/source"
	"github.com/arloliu/shocktrack/types"
)

// shutdownTimeout bounds lease release and progress flushing on exit.
const shutdownTimeout = 5 * time.Second

type options struct {
	configPath string
	mode       string
	natsURL    string
	embedded   bool
	port       int
	storeDir   string
	runID      string
	debug      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "shocktrack.yaml", "Path to configuration file")
	flag.StringVar(&opts.mode, "mode", "local", "Pool mode: local or nats")
	flag.StringVar(&opts.natsURL, "nats", nats.DefaultURL, "NATS server URL (nats mode)")
	flag.BoolVar(&opts.embedded, "embedded", false, "Host an embedded NATS server in this process (nats mode)")
	flag.IntVar(&opts.port, "port", 4222, "Client port of the embedded NATS server")
	flag.StringVar(&opts.storeDir, "store", "", "JetStream store directory of the embedded server")
	flag.StringVar(&opts.runID, "run", "", "Run id override; every rank of a run must agree")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := shocktrack.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if opts.runID != "" {
		cfg.RunID = opts.runID
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid run id: %v", err)
		}
	}
	if flag.NArg() > 0 {
		cfg.Datasets = flag.Args()
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := logging.NewText(os.Stderr, level).With("run_id", cfg.RunID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}

	logger.Info("run completed", "datasets", len(cfg.Datasets))
}

func run(ctx context.Context, opts options, cfg shocktrack.Config, logger *logging.SlogLogger) error {
	if len(cfg.Datasets) == 0 {
		return errors.New("no datasets configured")
	}

	mc := metrics.NewPrometheus(nil, cfg.Metrics.Namespace)
	if cfg.Metrics.Addr != "" {
		srv := newMetricsServer(cfg.Metrics.Addr, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	}

	reader := source.NewDirectory(cfg.Source.BasePath, cfg.Source.BaseFile, logger)

	switch opts.mode {
	case "local":
		return runLocal(ctx, cfg, reader, logger, mc)
	case "nats":
		return runNATS(ctx, opts, cfg, reader, logger, mc)
	default:
		return fmt.Errorf("unknown mode: %s", opts.mode)
	}
}

// runLocal drives every rank of the pool from goroutines of this process.
func runLocal(
	ctx context.Context,
	cfg shocktrack.Config,
	reader shocktrack.SnapshotReader,
	logger types.Logger,
	mc types.MetricsCollector,
) error {
	comms, err := shocktrack.NewLocalPool(cfg.PoolSize)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	errs := make([]error, len(comms))
	var wg sync.WaitGroup
	for i, comm := range comms {
		wg.Go(func() {
			runner, err := shocktrack.NewRunner(&cfg, comm, reader,
				shocktrack.WithLogger(logger),
				shocktrack.WithMetrics(mc),
			)
			if err == nil {
				err = runner.Run(ctx, cfg.Datasets)
			}
			if err != nil {
				errs[i] = fmt.Errorf("rank %d: %w", i, err)
				cancel(errs[i])
			}
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}

// runNATS drives one rank coordinated through JetStream KV buckets.
func runNATS(
	ctx context.Context,
	opts options,
	cfg shocktrack.Config,
	reader shocktrack.SnapshotReader,
	logger *logging.SlogLogger,
	mc types.MetricsCollector,
) error {
	url := opts.natsURL
	if opts.embedded {
		ns, err := natsutil.StartEmbedded(opts.storeDir, opts.port)
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		url = ns.ClientURL()
		logger.Info("embedded NATS server started", "url", url)
	}

	nc, err := natsutil.Connect(url, "shocktrack-"+cfg.RunID, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	rankKV, err := kvutil.OpenBucket(ctx, js, kvutil.MemoryBucket(cfg.Ranks.Bucket, cfg.Ranks.TTL), 5)
	if err != nil {
		return natsutil.Wrap("open rank bucket", err)
	}

	claimer := stableid.NewClaimer(rankKV, cfg.RunID, cfg.PoolSize, cfg.Ranks.TTL, logger)
	rank, err := claimer.Claim(ctx)
	if err != nil {
		return err
	}
	logger = logger.With("rank", rank)
	logger.Info("rank claimed", "size", cfg.PoolSize)
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := claimer.Release(releaseCtx); err != nil {
			logger.Warn("failed to release rank", "error", err)
		}
	}()
	if err := claimer.StartRenewal(); err != nil {
		return err
	}

	comm, err := collective.NewNATS(ctx, js, cfg.Collective, rank, cfg.PoolSize, logger, mc)
	if err != nil {
		return err
	}
	defer comm.Close()

	progressKV, err := kvutil.OpenBucket(ctx, js, kvutil.MemoryBucket(cfg.Progress.Bucket, cfg.Collective.TTL), 5)
	if err != nil {
		return natsutil.Wrap("open progress bucket", err)
	}

	publisher := progress.NewPublisher(progressKV, cfg.Progress.Prefix, cfg.Progress.Interval, logger, mc)
	if err := publisher.Start(); err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := publisher.Stop(flushCtx); err != nil {
			logger.Warn("failed to flush progress", "error", err)
		}
	}()

	if comm.IsCoordinator() {
		monitor := progress.NewMonitor(progressKV, cfg.Progress.Prefix, cfg.Progress.SummaryInterval, logger)
		if err := monitor.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = monitor.Stop() }()
	}

	runner, err := shocktrack.NewRunner(&cfg, comm, reader,
		shocktrack.WithLogger(logger),
		shocktrack.WithMetrics(mc),
		shocktrack.WithProgress(publisher),
	)
	if err != nil {
		return err
	}

	return runner.Run(ctx, cfg.Datasets)
}
