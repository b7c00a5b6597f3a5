package collective

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	sttest "github.com/arloliu/shocktrack/testing"
	"github.com/arloliu/shocktrack/types"
)

func natsPool(t *testing.T, js jetstream.JetStream, prefix string, size int) []types.Communicator {
	t.Helper()

	cfg := Config{
		AssignmentBucket: prefix + "-assign",
		BarrierBucket:    prefix + "-barrier",
		ResultBucket:     prefix + "-result",
		TTL:              time.Minute,
	}

	comms := make([]types.Communicator, size)
	for rank := range comms {
		n, err := NewNATS(t.Context(), js, cfg, rank, size, sttest.NewTestLogger(t), nil)
		require.NoError(t, err)
		t.Cleanup(n.Close)
		comms[rank] = n
	}

	return comms
}

func TestNewNATS_InvalidRank(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)

	_, err := NewNATS(t.Context(), js, DefaultConfig(), 3, 3, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidRank)

	_, err = NewNATS(t.Context(), js, DefaultConfig(), -1, 3, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidRank)
}

func TestNATS_RoundTrip(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)

	const size = 3
	comms := natsPool(t, js, "roundtrip", size)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	plan := make([]types.Assignment, size)
	for rank := range plan {
		plan[rank] = types.Assignment{
			Version:  1,
			Dataset:  "s11.2.gamma",
			Rank:     rank,
			NumFiles: 9,
			Cover:    types.WorkInterval{Start: 0, End: 9},
			Interval: types.WorkInterval{Start: rank * 3, End: rank*3 + 3},
		}
	}

	round := types.RoundID("run", "s11.2.gamma")
	assigned := make([]types.Assignment, size)
	gathered := make([][]types.SeriesPart, size)
	var epoch string

	errs := runPool(comms, func(comm types.Communicator) error {
		var in []types.Assignment
		if comm.IsCoordinator() {
			in = plan
		}

		asg, err := comm.Broadcast(ctx, round, in)
		if err != nil {
			return err
		}
		assigned[comm.Rank()] = asg
		if comm.IsCoordinator() {
			epoch, _ = comm.(*NATS).epochs.Load(round)
		}

		if err := comm.Barrier(ctx, round, StageDetect); err != nil {
			return err
		}

		values := make([]float64, asg.Interval.Len())
		for j := range values {
			values[j] = float64(asg.Interval.Start + j)
		}
		parts, err := comm.Gather(ctx, round, types.SeriesPart{
			Interval: asg.Interval,
			Columns:  map[string][]float64{"time": values},
		})
		if err != nil {
			return err
		}
		gathered[comm.Rank()] = parts

		return comm.Barrier(ctx, round, StageDone)
	})

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, plan, assigned)
	require.Nil(t, gathered[1])
	require.Nil(t, gathered[2])
	require.Len(t, gathered[0], size)
	for rank, part := range gathered[0] {
		require.Equal(t, rank, part.Rank)
		require.Equal(t, plan[rank].Interval, part.Interval)
		require.Equal(t, float64(rank*3), part.Columns["time"][0])
	}

	// coordinator removed the round's result and announcement keys
	require.NotEmpty(t, epoch)
	resultKV, err := js.KeyValue(t.Context(), "roundtrip-result")
	require.NoError(t, err)
	_, err = resultKV.Get(t.Context(), resultKey(round, epoch, 1))
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)

	assignKV, err := js.KeyValue(t.Context(), "roundtrip-assign")
	require.NoError(t, err)
	_, err = assignKV.Get(t.Context(), joinKey(round, 1))
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)

	// every rank passed the done barrier and forgot the round
	for _, comm := range comms {
		_, ok := comm.(*NATS).epochs.Load(round)
		require.False(t, ok)
	}
}

func TestNATS_SingleRank(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)
	comm := natsPool(t, js, "single", 1)[0]

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	asg, err := comm.Broadcast(ctx, "r", []types.Assignment{{Dataset: "d", NumFiles: 2}})
	require.NoError(t, err)
	require.Equal(t, "d", asg.Dataset)

	require.NoError(t, comm.Barrier(ctx, "r", StageDetect))

	parts, err := comm.Gather(ctx, "r", types.SeriesPart{Interval: types.WorkInterval{Start: 0, End: 2}})
	require.NoError(t, err)
	require.Len(t, parts, 1)
}

// broadcastPool runs Broadcast of round on every rank of comms.
func broadcastPool(t *testing.T, comms []types.Communicator, round string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	plan := make([]types.Assignment, len(comms))
	for rank := range plan {
		plan[rank] = types.Assignment{Dataset: "d", Rank: rank, NumFiles: len(comms)}
	}

	errs := runPool(comms, func(comm types.Communicator) error {
		var in []types.Assignment
		if comm.IsCoordinator() {
			in = plan
		}
		_, err := comm.Broadcast(ctx, round, in)

		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestNATS_RoundNotStarted(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)
	comms := natsPool(t, js, "unstarted", 2)

	for _, comm := range comms {
		require.ErrorIs(t, comm.Barrier(t.Context(), "r", StageDetect), types.ErrRoundNotStarted)

		_, err := comm.Gather(t.Context(), "r", types.SeriesPart{})
		require.ErrorIs(t, err, types.ErrRoundNotStarted)
	}
}

func TestNATS_BarrierWaitsForAllRanks(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)
	comms := natsPool(t, js, "stall", 2)

	broadcastPool(t, comms, "r")

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	err := comms[0].Barrier(ctx, "r", StageDetect)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNATS_GatherRejectsCorruptPayload(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)
	comms := natsPool(t, js, "corrupt", 2)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	broadcastPool(t, comms, "r")
	epoch, ok := comms[0].(*NATS).epochs.Load("r")
	require.True(t, ok)

	resultKV, err := js.KeyValue(ctx, "corrupt-result")
	require.NoError(t, err)
	_, err = resultKV.Put(ctx, resultKey("r", epoch, 1), []byte("not a payload"))
	require.NoError(t, err)

	_, err = comms[0].Gather(ctx, "r", types.SeriesPart{})
	require.ErrorIs(t, err, types.ErrPayloadChecksum)
}

func TestNATS_IgnoresKeysOfEarlierLaunch(t *testing.T) {
	_, nc := sttest.StartEmbeddedNATS(t)
	js := sttest.JetStream(t, nc)

	const size = 3
	comms := natsPool(t, js, "relaunch", size)
	round := types.RoundID("run", "s12.0")

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	assignKV, err := js.KeyValue(ctx, "relaunch-assign")
	require.NoError(t, err)
	barrierKV, err := js.KeyValue(ctx, "relaunch-barrier")
	require.NoError(t, err)
	resultKV, err := js.KeyValue(ctx, "relaunch-result")
	require.NoError(t, err)

	// a crashed launch of the same round left its keys behind
	const oldEpoch = "old"
	stale, err := json.Marshal(envelope{
		Epoch: oldEpoch,
		Nonce: "old",
		Assignment: types.Assignment{
			Version:  1,
			Rank:     1,
			NumFiles: 10,
			Interval: types.WorkInterval{Start: 5, End: 10},
		},
	})
	require.NoError(t, err)
	_, err = assignKV.Put(ctx, assignKey(round, 1), stale)
	require.NoError(t, err)
	for rank := 1; rank < size; rank++ {
		_, err = assignKV.Put(ctx, joinKey(round, rank), []byte("old"))
		require.NoError(t, err)
	}
	for rank := range size {
		for _, stage := range []string{StageDetect, StageDone} {
			_, err = barrierKV.Put(ctx, barrierKey(round, oldEpoch, stage, rank), []byte("x"))
			require.NoError(t, err)
		}
	}
	for rank := 1; rank < size; rank++ {
		payload, err := comms[rank].(*NATS).codec.encode(types.SeriesPart{
			Rank:     rank,
			Interval: types.WorkInterval{Start: 5, End: 10},
			Columns:  map[string][]float64{"time": {-1, -1, -1, -1, -1}},
		})
		require.NoError(t, err)
		_, err = resultKV.Put(ctx, resultKey(round, oldEpoch, rank), payload)
		require.NoError(t, err)
	}

	plan := make([]types.Assignment, size)
	for rank := range plan {
		plan[rank] = types.Assignment{
			Version:  1,
			Dataset:  "s12.0",
			Rank:     rank,
			NumFiles: 6,
			Cover:    types.WorkInterval{Start: 0, End: 6},
			Interval: types.WorkInterval{Start: rank * 2, End: rank*2 + 2},
		}
	}

	assigned := make([]types.Assignment, size)
	var gathered []types.SeriesPart

	errs := runPool(comms, func(comm types.Communicator) error {
		var in []types.Assignment
		if comm.IsCoordinator() {
			// workers replay the stale assignment before the coordinator starts
			time.Sleep(300 * time.Millisecond)
			in = plan
		}

		asg, err := comm.Broadcast(ctx, round, in)
		if err != nil {
			return err
		}
		assigned[comm.Rank()] = asg

		if err := comm.Barrier(ctx, round, StageDetect); err != nil {
			return err
		}

		if comm.Rank() == 1 {
			// the coordinator must not settle for the stale part meanwhile
			time.Sleep(200 * time.Millisecond)
		}
		values := []float64{float64(asg.Interval.Start), float64(asg.Interval.Start + 1)}
		parts, err := comm.Gather(ctx, round, types.SeriesPart{
			Interval: asg.Interval,
			Columns:  map[string][]float64{"time": values},
		})
		if err != nil {
			return err
		}
		if comm.IsCoordinator() {
			gathered = parts
		}

		return comm.Barrier(ctx, round, StageDone)
	})

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, plan, assigned)
	require.Len(t, gathered, size)
	for rank, part := range gathered {
		require.Equal(t, rank, part.Rank)
		require.Equal(t, plan[rank].Interval, part.Interval)
		require.Equal(t, []float64{float64(rank * 2), float64(rank*2 + 1)}, part.Columns["time"])
	}
}
