package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sttest "github.com/arloliu/shocktrack/testing"
	"github.com/arloliu/shocktrack/types"
)

func readProgress(t *testing.T, ctx context.Context, p *Publisher, rank int) types.Progress {
	t.Helper()

	entry, err := p.kv.Get(ctx, Key(p.prefix, rank))
	require.NoError(t, err)

	var got types.Progress
	require.NoError(t, json.Unmarshal(entry.Value(), &got))

	return got
}

func TestPublisher_ReportBeforeStartWritesImmediately(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	kv := sttest.CreateJetStreamKV(t, nc, "progress-sync")
	ctx := t.Context()

	p := NewPublisher(kv, "progress", time.Second, nil, nil)
	require.NoError(t, p.Report(ctx, types.Progress{Dataset: "s20", Rank: 2, Done: 1, Total: 4}))

	got := readProgress(t, ctx, p, 2)
	require.Equal(t, 1, got.Done)
	require.Equal(t, "s20", got.Dataset)
}

func TestPublisher_FlushesLatestAndOnStop(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	kv := sttest.CreateJetStreamKV(t, nc, "progress-async")
	ctx := t.Context()

	p := NewPublisher(kv, "progress", 50*time.Millisecond, sttest.NewTestLogger(t), nil)
	require.NoError(t, p.Start())
	require.ErrorIs(t, p.Start(), ErrAlreadyStarted)

	for done := 1; done <= 3; done++ {
		require.NoError(t, p.Report(ctx, types.Progress{Rank: 0, Done: done, Total: 10}))
	}

	require.Eventually(t, func() bool {
		entry, err := kv.Get(ctx, Key("progress", 0))
		if err != nil {
			return false
		}
		var got types.Progress
		return json.Unmarshal(entry.Value(), &got) == nil && got.Done == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Report(ctx, types.Progress{Rank: 0, Done: 10, Total: 10}))
	require.NoError(t, p.Stop(ctx))
	require.ErrorIs(t, p.Stop(ctx), ErrNotStarted)

	require.Equal(t, 10, readProgress(t, ctx, p, 0).Done)
}
