package collective

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/shocktrack/types"
)

// runPool runs fn once per communicator, each on its own goroutine, and
// returns the per-rank errors.
func runPool(comms []types.Communicator, fn func(comm types.Communicator) error) []error {
	errs := make([]error, len(comms))

	var wg sync.WaitGroup
	for i, comm := range comms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn(comm)
		}()
	}
	wg.Wait()

	return errs
}

func localPool(t *testing.T, size int) []types.Communicator {
	t.Helper()

	locals, err := NewLocal(size)
	require.NoError(t, err)

	comms := make([]types.Communicator, len(locals))
	for i, l := range locals {
		comms[i] = l
	}

	return comms
}

func TestNewLocal(t *testing.T) {
	t.Parallel()

	comms, err := NewLocal(3)
	require.NoError(t, err)
	require.Len(t, comms, 3)

	for rank, comm := range comms {
		require.Equal(t, rank, comm.Rank())
		require.Equal(t, 3, comm.Size())
		require.Equal(t, rank == 0, comm.IsCoordinator())
	}

	_, err = NewLocal(0)
	require.ErrorIs(t, err, types.ErrInvalidRank)
}

func TestLocal_Broadcast(t *testing.T) {
	t.Parallel()

	const size = 4
	comms := localPool(t, size)

	plan := make([]types.Assignment, size)
	for rank := range plan {
		plan[rank] = types.Assignment{
			Dataset:  "s20.0",
			Rank:     rank,
			NumFiles: 40,
			Interval: types.WorkInterval{Start: rank * 10, End: rank*10 + 10},
		}
	}

	got := make([]types.Assignment, size)
	errs := runPool(comms, func(comm types.Communicator) error {
		var in []types.Assignment
		if comm.IsCoordinator() {
			in = plan
		}
		asg, err := comm.Broadcast(t.Context(), "round-1", in)
		got[comm.Rank()] = asg

		return err
	})

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, plan, got)
}

func TestLocal_BroadcastWrongCount(t *testing.T) {
	t.Parallel()

	comms := localPool(t, 2)

	_, err := comms[0].Broadcast(t.Context(), "r", []types.Assignment{{}})
	require.ErrorIs(t, err, types.ErrAssignmentCount)
}

func TestLocal_Barrier(t *testing.T) {
	t.Parallel()

	const size = 5
	comms := localPool(t, size)

	var arrived atomic.Int32
	errs := runPool(comms, func(comm types.Communicator) error {
		time.Sleep(time.Duration(comm.Rank()) * 5 * time.Millisecond)
		arrived.Add(1)

		if err := comm.Barrier(t.Context(), "r", "detect"); err != nil {
			return err
		}
		if got := arrived.Load(); got != size {
			return fmt.Errorf("rank %d left barrier with %d arrivals", comm.Rank(), got)
		}

		return comm.Barrier(t.Context(), "r", "done")
	})

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestLocal_BarrierHonoursContext(t *testing.T) {
	t.Parallel()

	comms := localPool(t, 2)
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := comms[0].Barrier(ctx, "r", "detect")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocal_Gather(t *testing.T) {
	t.Parallel()

	const size = 3
	comms := localPool(t, size)

	results := make([][]types.SeriesPart, size)
	errs := runPool(comms, func(comm types.Communicator) error {
		part := types.SeriesPart{
			Interval: types.WorkInterval{Start: comm.Rank() * 2, End: comm.Rank()*2 + 2},
			Columns:  map[string][]float64{"time": {float64(comm.Rank()), float64(comm.Rank())}},
		}
		parts, err := comm.Gather(t.Context(), "r", part)
		results[comm.Rank()] = parts

		return err
	})

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Nil(t, results[1])
	require.Nil(t, results[2])
	require.Len(t, results[0], size)
	for rank, part := range results[0] {
		require.Equal(t, rank, part.Rank)
		require.Equal(t, rank*2, part.Interval.Start)
	}
}

func TestLocal_IndependentRounds(t *testing.T) {
	t.Parallel()

	comms := localPool(t, 2)

	errs := runPool(comms, func(comm types.Communicator) error {
		for _, round := range []string{"a", "b", "c"} {
			if err := comm.Barrier(t.Context(), round, "done"); err != nil {
				return err
			}
		}

		return nil
	})

	for _, err := range errs {
		require.NoError(t, err)
	}
}
