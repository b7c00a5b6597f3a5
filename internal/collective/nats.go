package collective

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/shocktrack/internal/kvutil"
	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/internal/metrics"
	"github.com/arloliu/shocktrack/internal/natsutil"
	"github.com/arloliu/shocktrack/types"
)

// Config names the KV buckets used by the NATS communicator.
type Config struct {
	// AssignmentBucket stores rank announcements ("join.<round>.<rank>") and
	// broadcast assignments ("assign.<round>.<rank>").
	AssignmentBucket string `yaml:"assignmentBucket"`

	// BarrierBucket stores barrier tokens ("barrier.<round>.<epoch>.<stage>.<rank>").
	BarrierBucket string `yaml:"barrierBucket"`

	// ResultBucket stores gathered parts ("result.<round>.<epoch>.<rank>").
	ResultBucket string `yaml:"resultBucket"`

	// TTL expires keys of finished rounds. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the default bucket layout.
func DefaultConfig() Config {
	return Config{
		AssignmentBucket: "shocktrack-assignment",
		BarrierBucket:    "shocktrack-barrier",
		ResultBucket:     "shocktrack-result",
		TTL:              time.Hour,
	}
}

// SetDefaults fills empty fields from DefaultConfig.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.AssignmentBucket == "" {
		c.AssignmentBucket = d.AssignmentBucket
	}
	if c.BarrierBucket == "" {
		c.BarrierBucket = d.BarrierBucket
	}
	if c.ResultBucket == "" {
		c.ResultBucket = d.ResultBucket
	}
}

// joinInterval is how often a waiting rank re-announces itself.
const joinInterval = 250 * time.Millisecond

// NATS is a communicator for one process of a pool, coordinated through
// JetStream KV.
//
// Every process must use the same bucket configuration and pool size.
//
// Each Broadcast starts a new epoch of its round. Non-coordinators announce
// themselves with a fresh nonce and accept only the assignment carrying it;
// barrier tokens and results are keyed by the epoch. Keys left behind by an
// earlier launch with the same round are therefore never counted.
type NATS struct {
	rank int
	size int

	assignKV  jetstream.KeyValue
	barrierKV jetstream.KeyValue
	resultKV  jetstream.KeyValue

	// round -> epoch of the broadcast this rank took part in
	epochs *xsync.Map[string, string]

	codec   *codec
	logger  types.Logger
	metrics types.MetricsCollector
}

var _ types.Communicator = (*NATS)(nil)

// NewNATS opens (or creates) the collective buckets and returns the
// communicator for rank.
//
// Parameters:
//   - ctx: Context for bucket setup
//   - js: JetStream context
//   - cfg: Bucket configuration
//   - rank: This process's rank in [0, size)
//   - size: Pool size
//   - logger: Logger (nil for no-op)
//   - mc: Metrics collector (nil for no-op)
//
// Returns:
//   - *NATS: Communicator ready for use; Close releases its codec
//   - error: ErrInvalidRank or bucket setup failure
func NewNATS(
	ctx context.Context,
	js jetstream.JetStream,
	cfg Config,
	rank, size int,
	logger types.Logger,
	mc types.MetricsCollector,
) (*NATS, error) {
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, rank, size)
	}

	cfg.SetDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	if mc == nil {
		mc = metrics.NewNop()
	}

	n := &NATS{
		rank:    rank,
		size:    size,
		epochs:  xsync.NewMap[string, string](),
		logger:  logger,
		metrics: mc,
	}

	buckets := []struct {
		name string
		dst  *jetstream.KeyValue
	}{
		{cfg.AssignmentBucket, &n.assignKV},
		{cfg.BarrierBucket, &n.barrierKV},
		{cfg.ResultBucket, &n.resultKV},
	}
	for _, b := range buckets {
		kv, err := kvutil.OpenBucket(ctx, js, kvutil.MemoryBucket(b.name, cfg.TTL), 5)
		if err != nil {
			return nil, natsutil.Wrap("open bucket "+b.name, err)
		}
		*b.dst = kv
	}

	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	n.codec = c

	return n, nil
}

// Close releases the payload codec.
func (n *NATS) Close() {
	n.codec.close()
}

// Rank returns this process's rank.
func (n *NATS) Rank() int { return n.rank }

// Size returns the pool size.
func (n *NATS) Size() int { return n.size }

// IsCoordinator reports whether this is rank 0.
func (n *NATS) IsCoordinator() bool { return n.rank == 0 }

// envelope is the stored form of one rank's assignment.
type envelope struct {
	Epoch      string           `json:"epoch"`
	Nonce      string           `json:"nonce"`
	Assignment types.Assignment `json:"assignment"`
}

// Broadcast publishes one assignment per rank (coordinator) or waits for
// this rank's assignment (other ranks).
//
// The coordinator first removes the round's announcements and assignments,
// then waits until every other rank announced a nonce and answers each with
// its own assignment. A non-coordinator keeps announcing until an assignment
// with its nonce arrives.
func (n *NATS) Broadcast(ctx context.Context, round string, assignments []types.Assignment) (types.Assignment, error) {
	if n.IsCoordinator() {
		return n.publish(ctx, round, assignments)
	}

	nonce := newToken()
	key := assignKey(round, n.rank)

	joinCtx, stopJoin := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() { n.join(joinCtx, round, nonce) })

	got, err := n.waitMatching(ctx, n.assignKV, key, 1, func(_ string, value []byte) bool {
		var env envelope
		return json.Unmarshal(value, &env) == nil && env.Nonce == nonce
	})
	stopJoin()
	wg.Wait()
	if err != nil {
		return types.Assignment{}, err
	}

	var env envelope
	if err := json.Unmarshal(got[key], &env); err != nil {
		return types.Assignment{}, fmt.Errorf("failed to unmarshal assignment: %w", err)
	}
	n.epochs.Store(round, env.Epoch)

	n.logger.Debug("assignment received", "round", round, "rank", n.rank,
		"epoch", env.Epoch, "interval", env.Assignment.Interval.String())

	return env.Assignment, nil
}

func (n *NATS) publish(ctx context.Context, round string, assignments []types.Assignment) (types.Assignment, error) {
	if len(assignments) != n.size {
		return types.Assignment{}, fmt.Errorf("%w: got %d, pool size %d",
			types.ErrAssignmentCount, len(assignments), n.size)
	}

	epoch := newToken()
	if n.size == 1 {
		n.epochs.Store(round, epoch)
		return assignments[0], nil
	}

	stale := make([]string, 0, 2*(n.size-1))
	for rank := 1; rank < n.size; rank++ {
		stale = append(stale, joinKey(round, rank), assignKey(round, rank))
	}
	if err := kvutil.DeleteKeys(ctx, n.assignKV, stale...); err != nil {
		return types.Assignment{}, natsutil.Wrap("purge round "+round, err)
	}

	joins, err := n.waitMatching(ctx, n.assignKV, joinPattern(round), n.size-1, func(key string, _ []byte) bool {
		rank, ok := rankOf(key)
		return ok && rank > 0 && rank < n.size
	})
	if err != nil {
		return types.Assignment{}, err
	}

	n.epochs.Store(round, epoch)
	for key, nonce := range joins {
		rank, _ := rankOf(key)
		data, err := json.Marshal(envelope{Epoch: epoch, Nonce: string(nonce), Assignment: assignments[rank]})
		if err != nil {
			return types.Assignment{}, fmt.Errorf("failed to marshal assignment: %w", err)
		}
		if err := n.put(ctx, n.assignKV, assignKey(round, rank), data); err != nil {
			return types.Assignment{}, err
		}
	}

	n.logger.Debug("assignments published", "round", round, "epoch", epoch, "ranks", n.size)

	return assignments[0], nil
}

// join announces this rank until ctx is done.
func (n *NATS) join(ctx context.Context, round, nonce string) {
	ticker := time.NewTicker(joinInterval)
	defer ticker.Stop()

	for {
		if err := n.put(ctx, n.assignKV, joinKey(round, n.rank), []byte(nonce)); err != nil && ctx.Err() == nil {
			n.logger.Warn("failed to announce rank", "round", round, "rank", n.rank, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Barrier publishes this rank's token and waits for all size tokens of the
// current epoch. Passing StageDone ends the round on this rank.
func (n *NATS) Barrier(ctx context.Context, round, stage string) error {
	epoch, ok := n.epochs.Load(round)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrRoundNotStarted, round)
	}

	if err := n.put(ctx, n.barrierKV, barrierKey(round, epoch, stage, n.rank), []byte(strconv.Itoa(n.rank))); err != nil {
		return err
	}

	if _, err := n.wait(ctx, n.barrierKV, barrierPattern(round, epoch, stage), n.size); err != nil {
		return err
	}

	if stage == StageDone {
		n.epochs.Delete(round)
	}

	return nil
}

// Gather publishes part (non-coordinators) or collects all parts ordered by
// rank (coordinator). The coordinator removes the round's announcements,
// assignments, detect barrier and result keys once every part arrived.
func (n *NATS) Gather(ctx context.Context, round string, part types.SeriesPart) ([]types.SeriesPart, error) {
	epoch, ok := n.epochs.Load(round)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRoundNotStarted, round)
	}
	part.Rank = n.rank

	if !n.IsCoordinator() {
		payload, err := n.codec.encode(part)
		if err != nil {
			return nil, err
		}

		return nil, n.put(ctx, n.resultKV, resultKey(round, epoch, n.rank), payload)
	}

	got, err := n.wait(ctx, n.resultKV, resultPattern(round, epoch), n.size-1)
	if err != nil {
		return nil, err
	}

	parts := make([]types.SeriesPart, 0, n.size)
	parts = append(parts, part)
	for key, payload := range got {
		p, err := n.codec.decode(payload)
		if err != nil {
			return nil, fmt.Errorf("result %s: %w", key, err)
		}
		parts = append(parts, p)
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Rank < parts[j].Rank })

	n.cleanup(ctx, round, epoch)

	return parts, nil
}

// cleanup deletes the finished keys of round. Failures are logged only; the
// bucket TTL removes leftovers.
func (n *NATS) cleanup(ctx context.Context, round, epoch string) {
	start := time.Now()
	defer func() { n.metrics.RecordKVOperationDuration("delete", time.Since(start).Seconds()) }()

	var assign, barrier, result []string
	for rank := range n.size {
		assign = append(assign, joinKey(round, rank), assignKey(round, rank))
		barrier = append(barrier, barrierKey(round, epoch, StageDetect, rank))
		result = append(result, resultKey(round, epoch, rank))
	}

	for _, step := range []struct {
		kv   jetstream.KeyValue
		keys []string
	}{
		{n.assignKV, assign},
		{n.barrierKV, barrier},
		{n.resultKV, result},
	} {
		if err := kvutil.DeleteKeys(ctx, step.kv, step.keys...); err != nil {
			n.logger.Warn("failed to clean up round keys", "round", round, "error", err)
		}
	}
}

func (n *NATS) put(ctx context.Context, kv jetstream.KeyValue, key string, value []byte) error {
	start := time.Now()
	_, err := kv.Put(ctx, key, value)
	n.metrics.RecordKVOperationDuration("put", time.Since(start).Seconds())
	if err != nil {
		return natsutil.Wrap("put "+key, err)
	}

	return nil
}

func (n *NATS) wait(ctx context.Context, kv jetstream.KeyValue, pattern string, want int) (map[string][]byte, error) {
	start := time.Now()
	got, err := kvutil.WaitForKeys(ctx, kv, pattern, want)
	n.metrics.RecordKVOperationDuration("watch", time.Since(start).Seconds())
	if err != nil {
		return nil, natsutil.Wrap("wait "+pattern, err)
	}

	return got, nil
}

func (n *NATS) waitMatching(
	ctx context.Context,
	kv jetstream.KeyValue,
	pattern string,
	want int,
	accept func(key string, value []byte) bool,
) (map[string][]byte, error) {
	start := time.Now()
	got, err := kvutil.WaitForMatching(ctx, kv, pattern, want, accept)
	n.metrics.RecordKVOperationDuration("watch", time.Since(start).Seconds())
	if err != nil {
		return nil, natsutil.Wrap("wait "+pattern, err)
	}

	return got, nil
}

// StageDetect is the barrier stage entered after every rank processed its
// interval. Its tokens are removed when the round is gathered.
const StageDetect = "detect"

// StageDone is the barrier stage closing a round.
const StageDone = "done"

// newToken returns a random key-safe token. Tokens only tell launches
// apart; they are not secrets.
func newToken() string {
	return strconv.FormatUint(rand.Uint64(), 36)
}

// rankOf parses the rank from the last token of key.
func rankOf(key string) (int, bool) {
	rank, err := strconv.Atoi(key[strings.LastIndexByte(key, '.')+1:])
	return rank, err == nil
}

func joinKey(round string, rank int) string {
	return fmt.Sprintf("join.%s.%d", round, rank)
}

func joinPattern(round string) string {
	return fmt.Sprintf("join.%s.*", round)
}

func assignKey(round string, rank int) string {
	return fmt.Sprintf("assign.%s.%d", round, rank)
}

func barrierKey(round, epoch, stage string, rank int) string {
	return fmt.Sprintf("barrier.%s.%s.%s.%d", round, epoch, stage, rank)
}

func barrierPattern(round, epoch, stage string) string {
	return fmt.Sprintf("barrier.%s.%s.%s.*", round, epoch, stage)
}

func resultKey(round, epoch string, rank int) string {
	return fmt.Sprintf("result.%s.%s.%d", round, epoch, rank)
}

func resultPattern(round, epoch string) string {
	return fmt.Sprintf("result.%s.%s.*", round, epoch)
}
