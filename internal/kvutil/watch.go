package kvutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrWatcherClosed is returned when a KV watcher stops delivering updates
// before the awaited keys appeared.
var ErrWatcherClosed = errors.New("kv watcher closed")

// WaitForKeys blocks until at least want distinct keys matching pattern hold
// a value, then returns their latest values keyed by full key.
//
// The watcher replays existing entries first, so keys written before the
// call are counted. Deleted or purged keys are forgotten again.
//
// Parameters:
//   - ctx: Context for cancellation; the only timeout applied
//   - kv: Bucket to watch
//   - pattern: Key pattern, e.g. "barrier.<round>.detect.*"
//   - want: Number of distinct keys to wait for
//
// Returns:
//   - map[string][]byte: Latest value per key (at least want entries)
//   - error: Context error, ErrWatcherClosed, or watch setup failure
func WaitForKeys(ctx context.Context, kv jetstream.KeyValue, pattern string, want int) (map[string][]byte, error) {
	return WaitForMatching(ctx, kv, pattern, want, nil)
}

// WaitForMatching is WaitForKeys counting only values accepted by accept.
//
// A key whose latest value is rejected is not counted, even if an earlier
// value was accepted. A nil accept counts every value.
func WaitForMatching(
	ctx context.Context,
	kv jetstream.KeyValue,
	pattern string,
	want int,
	accept func(key string, value []byte) bool,
) (map[string][]byte, error) {
	seen := make(map[string][]byte, max(want, 0))
	if want <= 0 {
		return seen, nil
	}

	watcher, err := kv.Watch(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", pattern, err)
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case entry, ok := <-watcher.Updates():
			if !ok {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}

				return nil, fmt.Errorf("%w: pattern %s", ErrWatcherClosed, pattern)
			}

			if entry == nil {
				// initial replay done
				continue
			}

			if entry.Operation() == jetstream.KeyValuePut && (accept == nil || accept(entry.Key(), entry.Value())) {
				seen[entry.Key()] = entry.Value()
			} else {
				delete(seen, entry.Key())
			}

			if len(seen) >= want {
				return seen, nil
			}
		}
	}
}

// DeleteKeys removes every listed key, ignoring keys that are already gone.
//
// All keys are attempted; failures are joined into the returned error.
func DeleteKeys(ctx context.Context, kv jetstream.KeyValue, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
