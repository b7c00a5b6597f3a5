package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// Monitor follows the progress keys of every rank on the coordinator.
//
// The latest report per rank is kept in memory; a summary of all ranks is
// logged at the configured interval while anything changed.
type Monitor struct {
	kv       jetstream.KeyValue
	pattern  string
	interval time.Duration
	logger   types.Logger

	latest *xsync.Map[int, types.Progress]

	mu      sync.Mutex
	watcher jetstream.KeyWatcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a monitor for keys "<prefix>.*".
func NewMonitor(kv jetstream.KeyValue, prefix string, interval time.Duration, logger types.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Monitor{
		kv:       kv,
		pattern:  prefix + ".*",
		interval: interval,
		logger:   logger,
		latest:   xsync.NewMap[int, types.Progress](),
	}
}

// Start begins watching progress keys.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		return ErrAlreadyStarted
	}

	watcher, err := m.kv.Watch(ctx, m.pattern)
	if err != nil {
		return fmt.Errorf("failed to watch progress: %w", err)
	}

	m.watcher = watcher
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(watcher, m.stopCh, m.doneCh)

	return nil
}

// Stop ends the watch and logs a final summary.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.watcher == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	watcher := m.watcher
	m.watcher = nil
	close(m.stopCh)
	doneCh := m.doneCh
	m.mu.Unlock()

	<-doneCh
	m.logSummary()

	return watcher.Stop()
}

// Snapshot returns the latest report of every rank, ordered by rank.
func (m *Monitor) Snapshot() []types.Progress {
	out := make([]types.Progress, 0, m.latest.Size())
	m.latest.Range(func(_ int, p types.Progress) bool {
		out = append(out, p)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })

	return out
}

// Summary returns the done and total snapshot counts over all ranks.
func (m *Monitor) Summary() (done, total int) {
	m.latest.Range(func(_ int, p types.Progress) bool {
		done += p.Done
		total += p.Total
		return true
	})

	return done, total
}

func (m *Monitor) run(watcher jetstream.KeyWatcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	changed := false
	for {
		select {
		case <-stopCh:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			if entry == nil {
				continue
			}
			changed = m.apply(entry) || changed
		case <-ticker.C:
			if changed {
				changed = false
				m.logSummary()
			}
		}
	}
}

func (m *Monitor) apply(entry jetstream.KeyValueEntry) bool {
	if entry.Operation() != jetstream.KeyValuePut {
		return false
	}

	var p types.Progress
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		m.logger.Warn("ignoring malformed progress entry", "key", entry.Key(), "error", err)
		return false
	}

	m.latest.Store(p.Rank, p)

	return true
}

func (m *Monitor) logSummary() {
	done, total := m.Summary()
	if total == 0 {
		return
	}

	m.logger.Info("pool progress",
		"ranks", m.latest.Size(),
		"done", done,
		"total", total,
		"percent", percent(done, total),
	)
}
