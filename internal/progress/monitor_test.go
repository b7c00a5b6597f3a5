package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sttest "github.com/arloliu/shocktrack/testing"
	"github.com/arloliu/shocktrack/types"
)

func TestMonitor_TracksLatestPerRank(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	kv := sttest.CreateJetStreamKV(t, nc, "progress-monitor")
	ctx := t.Context()

	m := NewMonitor(kv, "progress", 20*time.Millisecond, sttest.NewTestLogger(t))
	require.NoError(t, m.Start(ctx))
	require.ErrorIs(t, m.Start(ctx), ErrAlreadyStarted)

	pubs := []*Publisher{
		NewPublisher(kv, "progress", time.Second, nil, nil),
		NewPublisher(kv, "progress", time.Second, nil, nil),
	}
	require.NoError(t, pubs[0].Report(ctx, types.Progress{Rank: 0, Done: 1, Total: 5}))
	require.NoError(t, pubs[1].Report(ctx, types.Progress{Rank: 1, Done: 2, Total: 5}))
	require.NoError(t, pubs[0].Report(ctx, types.Progress{Rank: 0, Done: 4, Total: 5}))

	_, err := kv.Put(ctx, Key("progress", 9), []byte("{broken"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		done, total := m.Summary()
		return done == 6 && total == 10
	}, 2*time.Second, 10*time.Millisecond)

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, 0, snapshot[0].Rank)
	require.Equal(t, 4, snapshot[0].Done)

	require.NoError(t, m.Stop())
	require.ErrorIs(t, m.Stop(), ErrNotStarted)
}
