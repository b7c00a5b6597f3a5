package kvutil

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	sttest "github.com/arloliu/shocktrack/testing"
)

func TestMemoryBucket(t *testing.T) {
	cfg := MemoryBucket("shocktrack-result", time.Minute)

	require.Equal(t, "shocktrack-result", cfg.Bucket)
	require.Equal(t, uint8(1), cfg.History)
	require.Equal(t, time.Minute, cfg.TTL)
	require.Equal(t, jetstream.MemoryStorage, cfg.Storage)
}

func TestOpenBucket(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)

	t.Run("creates missing bucket", func(t *testing.T) {
		kv, err := OpenBucket(t.Context(), js, MemoryBucket("open-create", 0), 3)
		require.NoError(t, err)
		require.Equal(t, "open-create", kv.Bucket())
	})

	t.Run("opens existing bucket with other settings", func(t *testing.T) {
		first, err := OpenBucket(t.Context(), js, MemoryBucket("open-existing", 0), 3)
		require.NoError(t, err)
		_, err = first.Put(t.Context(), "assign.r1.0", []byte("x"))
		require.NoError(t, err)

		second, err := OpenBucket(t.Context(), js, MemoryBucket("open-existing", time.Hour), 3)
		require.NoError(t, err)

		entry, err := second.Get(t.Context(), "assign.r1.0")
		require.NoError(t, err)
		require.Equal(t, []byte("x"), entry.Value())
	})

	t.Run("every rank opens the same bucket concurrently", func(t *testing.T) {
		const ranks = 8

		var wg sync.WaitGroup
		errs := make([]error, ranks)
		for rank := range ranks {
			wg.Go(func() {
				kv, err := OpenBucket(t.Context(), js, MemoryBucket("open-race", time.Hour), 5)
				if err == nil {
					_, err = kv.Put(t.Context(), "barrier.r1.detect."+strconv.Itoa(rank), []byte("ok"))
				}
				errs[rank] = err
			})
		}
		wg.Wait()

		for rank, err := range errs {
			require.NoError(t, err, "rank %d", rank)
		}

		kv, err := js.KeyValue(t.Context(), "open-race")
		require.NoError(t, err)
		keys, err := kv.Keys(t.Context())
		require.NoError(t, err)
		require.Len(t, keys, ranks)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := OpenBucket(ctx, js, MemoryBucket("open-cancelled", 0), 3)
		require.Error(t, err)
	})
}
