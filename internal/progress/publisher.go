package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/internal/metrics"
	"github.com/arloliu/shocktrack/types"
)

// Common errors for publisher operations.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
)

// Publisher publishes the latest progress of one worker to NATS KV.
//
// Report only records the position; a background loop writes it to
// "<prefix>.<rank>" at the configured interval when it changed, and Stop
// flushes the final position. Before Start, Report writes synchronously.
type Publisher struct {
	kv       jetstream.KeyValue
	prefix   string
	interval time.Duration
	logger   types.Logger
	metrics  types.MetricsCollector

	mu      sync.Mutex
	started bool
	pending *types.Progress
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ types.ProgressReporter = (*Publisher)(nil)

// NewPublisher creates a progress publisher.
//
// Parameters:
//   - kv: KV bucket for progress keys
//   - prefix: Key prefix (e.g., "progress")
//   - interval: Flush interval (typically 1s)
//   - logger: Logger (nil for no-op)
//   - mc: Metrics collector (nil for no-op)
//
// Returns:
//   - *Publisher: Publisher ready to Start
func NewPublisher(kv jetstream.KeyValue, prefix string, interval time.Duration, logger types.Logger, mc types.MetricsCollector) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if mc == nil {
		mc = metrics.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &Publisher{
		kv:       kv,
		prefix:   prefix,
		interval: interval,
		logger:   logger,
		metrics:  mc,
	}
}

// Start begins flushing reports in the background.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.flushLoop(p.stopCh, p.doneCh)

	return nil
}

// Stop ends the flush loop and publishes the last pending report.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	return p.flush(ctx)
}

// Report implements types.ProgressReporter.
func (p *Publisher) Report(ctx context.Context, progress types.Progress) error {
	p.metrics.RecordProgress(progress.Rank, progress.Done, progress.Total)

	p.mu.Lock()
	p.pending = &progress
	started := p.started
	p.mu.Unlock()

	if started {
		return nil
	}

	return p.flush(ctx)
}

func (p *Publisher) flushLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			if err := p.flush(ctx); err != nil {
				p.logger.Warn("failed to publish progress", "error", err)
			}
			cancel()
		}
	}
}

func (p *Publisher) flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending == nil {
		return nil
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	start := time.Now()
	_, err = p.kv.Put(ctx, Key(p.prefix, pending.Rank), data)
	p.metrics.RecordKVOperationDuration("put", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to publish progress for rank %d: %w", pending.Rank, err)
	}

	return nil
}

// Key returns the progress key of rank.
func Key(prefix string, rank int) string {
	return fmt.Sprintf("%s.%d", prefix, rank)
}
