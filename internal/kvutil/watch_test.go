package kvutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	sttest "github.com/arloliu/shocktrack/testing"
)

func TestWaitForKeys(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)

	t.Run("counts keys written before and after the call", func(t *testing.T) {
		kv := sttest.CreateJetStreamKV(t, nc, "wait-mixed")
		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		_, err := kv.Put(ctx, "barrier.r1.detect.0", []byte("0"))
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			for rank := 1; rank < 3; rank++ {
				_, _ = kv.Put(context.Background(), fmt.Sprintf("barrier.r1.detect.%d", rank), []byte("ok"))
			}
		}()

		got, err := WaitForKeys(ctx, kv, "barrier.r1.detect.*", 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, []byte("0"), got["barrier.r1.detect.0"])
	})

	t.Run("ignores other rounds", func(t *testing.T) {
		kv := sttest.CreateJetStreamKV(t, nc, "wait-rounds")
		ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
		defer cancel()

		_, err := kv.Put(ctx, "barrier.other.detect.0", []byte("x"))
		require.NoError(t, err)
		_, err = kv.Put(ctx, "barrier.mine.detect.0", []byte("x"))
		require.NoError(t, err)

		_, err = WaitForKeys(ctx, kv, "barrier.mine.detect.*", 2)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("deleted keys are not counted", func(t *testing.T) {
		kv := sttest.CreateJetStreamKV(t, nc, "wait-deleted")
		ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
		defer cancel()

		_, err := kv.Put(ctx, "result.r.0", []byte("a"))
		require.NoError(t, err)
		_, err = kv.Put(ctx, "result.r.1", []byte("b"))
		require.NoError(t, err)
		require.NoError(t, kv.Delete(ctx, "result.r.1"))

		_, err = WaitForKeys(ctx, kv, "result.r.*", 2)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("zero want returns immediately", func(t *testing.T) {
		kv := sttest.CreateJetStreamKV(t, nc, "wait-zero")

		got, err := WaitForKeys(t.Context(), kv, "none.*", 0)
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestWaitForMatching(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)

	t.Run("skips rejected values until an accepted one arrives", func(t *testing.T) {
		kv := sttest.CreateJetStreamKV(t, nc, "match-accept")
		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		_, err := kv.Put(ctx, "assign.r.1", []byte("old"))
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_, _ = kv.Put(context.Background(), "assign.r.1", []byte("new"))
		}()

		got, err := WaitForMatching(ctx, kv, "assign.r.1", 1, func(_ string, value []byte) bool {
			return string(value) == "new"
		})
		require.NoError(t, err)
		require.Equal(t, []byte("new"), got["assign.r.1"])
	})

	t.Run("a rejected overwrite forgets the key", func(t *testing.T) {
		kv := sttest.CreateJetStreamKV(t, nc, "match-overwrite")
		ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
		defer cancel()

		_, err := kv.Put(ctx, "join.r.1", []byte("ok"))
		require.NoError(t, err)
		_, err = kv.Put(ctx, "join.r.2", []byte("ok"))
		require.NoError(t, err)
		_, err = kv.Put(ctx, "join.r.2", []byte("bad"))
		require.NoError(t, err)

		_, err = WaitForMatching(ctx, kv, "join.r.*", 2, func(_ string, value []byte) bool {
			return string(value) == "ok"
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestDeleteKeys(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	kv := sttest.CreateJetStreamKV(t, nc, "delete-keys")
	ctx := t.Context()

	_, err := kv.Put(ctx, "assign.r.0", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, DeleteKeys(ctx, kv, "assign.r.0", "assign.r.missing"))

	_, err = kv.Get(ctx, "assign.r.0")
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)
}
