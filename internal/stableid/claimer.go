// Package stableid assigns pool ranks to independently started processes.
//
// Each process claims the lowest free rank in [0, size) with an atomic KV
// Create and keeps the lease alive by renewing it. Rank 0 becomes the
// coordinator of the run.
package stableid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// Common errors returned by the claimer.
var (
	ErrNoAvailableRank = errors.New("no available rank in pool")
	ErrNotClaimed      = errors.New("rank not claimed")
	ErrAlreadyClaimed  = errors.New("rank already claimed")
)

// Claimer claims and renews one rank of a fixed-size pool.
//
// The KV bucket should carry a TTL of about three renewal intervals so the
// rank of a crashed process becomes claimable again.
type Claimer struct {
	kv     jetstream.KeyValue
	prefix string
	size   int
	ttl    time.Duration
	logger types.Logger

	mu       sync.Mutex
	rank     int
	renewing bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewClaimer creates a rank claimer.
//
// Parameters:
//   - kv: KV bucket holding rank leases
//   - prefix: Key prefix, usually the run id (keys are "<prefix>.<rank>")
//   - size: Pool size
//   - ttl: Lease TTL; renewals happen every ttl/3
//   - logger: Logger (nil for no-op)
//
// Returns:
//   - *Claimer: Claimer with no rank claimed
//
// Example:
//
//	claimer := stableid.NewClaimer(kv, "run-42", 4, 30*time.Second, logger)
//	rank, err := claimer.Claim(ctx)
func NewClaimer(kv jetstream.KeyValue, prefix string, size int, ttl time.Duration, logger types.Logger) *Claimer {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Claimer{
		kv:     kv,
		prefix: prefix,
		size:   size,
		ttl:    ttl,
		logger: logger,
		rank:   -1,
	}
}

// Claim takes the lowest free rank.
//
// Ranks are tried in order with KV Create, so two processes never hold the
// same rank while its lease is alive.
//
// Returns:
//   - int: Claimed rank in [0, size)
//   - error: ErrNoAvailableRank, ErrAlreadyClaimed, context or KV error
func (c *Claimer) Claim(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank >= 0 {
		return c.rank, ErrAlreadyClaimed
	}

	for rank := range c.size {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		key := c.key(rank)
		revision, err := c.kv.Create(ctx, key, c.leaseValue())
		if err == nil {
			c.rank = rank
			c.logger.Info("rank claimed", "rank", rank, "key", key, "revision", revision)

			return rank, nil
		}

		if !errors.Is(err, jetstream.ErrKeyExists) {
			return -1, fmt.Errorf("failed to claim rank %d: %w", rank, err)
		}

		c.logger.Debug("rank taken, trying next", "rank", rank)
	}

	c.logger.Error("no available rank", "prefix", c.prefix, "size", c.size)

	return -1, ErrNoAvailableRank
}

// Rank returns the claimed rank, or -1.
func (c *Claimer) Rank() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rank
}

// StartRenewal renews the lease every ttl/3 until Release.
//
// Renewal failures are logged and retried on the next tick.
func (c *Claimer) StartRenewal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank < 0 {
		return ErrNotClaimed
	}
	if c.renewing {
		return nil
	}

	c.renewing = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.renewalLoop(c.rank, c.stopCh, c.doneCh)

	return nil
}

func (c *Claimer) renewalLoop(rank int, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	interval := c.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_, err := c.kv.Put(ctx, c.key(rank), c.leaseValue())
			cancel()
			if err != nil {
				c.logger.Warn("failed to renew rank lease", "rank", rank, "error", err)
			}
		}
	}
}

// Release stops renewal and deletes the lease so the rank can be reused.
func (c *Claimer) Release(ctx context.Context) error {
	c.mu.Lock()
	rank := c.rank
	renewing := c.renewing
	stopCh, doneCh := c.stopCh, c.doneCh
	c.rank = -1
	c.renewing = false
	c.mu.Unlock()

	if rank < 0 {
		return ErrNotClaimed
	}

	if renewing {
		close(stopCh)
		select {
		case <-doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.kv.Delete(ctx, c.key(rank)); err != nil {
		return fmt.Errorf("failed to release rank %d: %w", rank, err)
	}

	c.logger.Info("rank released", "rank", rank)

	return nil
}

func (c *Claimer) key(rank int) string {
	return fmt.Sprintf("%s.%d", c.prefix, rank)
}

func (c *Claimer) leaseValue() []byte {
	host, _ := os.Hostname()
	return fmt.Appendf(nil, "%s/%d@%s", host, os.Getpid(), time.Now().Format(time.RFC3339))
}
