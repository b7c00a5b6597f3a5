// Package kvutil provides the JetStream KeyValue helpers shared by the
// collective communicator, the rank claimer and the progress publisher.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// defaultAttempts is used when OpenBucket is called with attempts <= 0.
const defaultAttempts = 3

// MemoryBucket returns the configuration of a single-revision in-memory
// bucket whose entries expire after ttl (0 keeps them).
func MemoryBucket(name string, ttl time.Duration) jetstream.KeyValueConfig {
	return jetstream.KeyValueConfig{
		Bucket:  name,
		History: 1,
		TTL:     ttl,
		Storage: jetstream.MemoryStorage,
	}
}

// OpenBucket creates the bucket described by cfg or opens it if another
// process created it first.
//
// Every rank of a run opens the same buckets at startup, so creation races
// are the common case. ErrBucketExists falls back to opening the bucket,
// other failures are retried with a doubling backoff starting at 10ms.
//
// Parameters:
//   - ctx: Context bounding all attempts
//   - js: JetStream context
//   - cfg: Bucket configuration
//   - attempts: Maximum attempts (3 if <= 0)
//
// Returns:
//   - jetstream.KeyValue: The bucket
//   - error: Last failure after all attempts, or the context error
//
// Example:
//
//	kv, err := kvutil.OpenBucket(ctx, js, kvutil.MemoryBucket("shocktrack-barrier", time.Hour), 5)
func OpenBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, attempts int) (jetstream.KeyValue, error) {
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	backoff := 10 * time.Millisecond
	var lastErr error
	for attempt := range attempts {
		kv, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			return kv, nil
		}
		lastErr = err

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, cfg.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("open existing bucket: %w", err)
		}

		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("bucket %s unavailable after %d attempts: %w", cfg.Bucket, attempts, lastErr)
}
