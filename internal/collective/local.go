package collective

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/shocktrack/types"
)

// Local is an in-process communicator for one rank of a goroutine pool.
//
// All communicators returned by one NewLocal call share a round table;
// each must be driven by its own goroutine.
type Local struct {
	rank int
	hub  *localHub
}

var _ types.Communicator = (*Local)(nil)

type localHub struct {
	size   int
	rounds *xsync.Map[string, *localRound]
}

// localRound holds the rendezvous state of one round.
//
// Rounds are kept for the lifetime of the pool: a rank may still be leaving
// the last barrier of a round while the coordinator moves on.
type localRound struct {
	assignments []chan types.Assignment
	parts       chan types.SeriesPart

	mu     sync.Mutex
	stages map[string]*localStage
}

type localStage struct {
	arrived int
	done    chan struct{}
}

// NewLocal creates a pool of size communicators sharing one round table.
//
// Parameters:
//   - size: Pool size, at least 1
//
// Returns:
//   - []*Local: One communicator per rank, index = rank
//   - error: ErrInvalidRank wrapped if size < 1
//
// Example:
//
//	comms, _ := collective.NewLocal(4)
//	for _, comm := range comms {
//	    go runWorker(ctx, comm)
//	}
func NewLocal(size int) ([]*Local, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: pool size %d", types.ErrInvalidRank, size)
	}

	hub := &localHub{
		size:   size,
		rounds: xsync.NewMap[string, *localRound](),
	}

	comms := make([]*Local, size)
	for rank := range comms {
		comms[rank] = &Local{rank: rank, hub: hub}
	}

	return comms, nil
}

// Rank returns this communicator's rank.
func (l *Local) Rank() int { return l.rank }

// Size returns the pool size.
func (l *Local) Size() int { return l.hub.size }

// IsCoordinator reports whether this is rank 0.
func (l *Local) IsCoordinator() bool { return l.rank == 0 }

// Broadcast hands each rank its assignment for the round.
func (l *Local) Broadcast(ctx context.Context, round string, assignments []types.Assignment) (types.Assignment, error) {
	r := l.hub.round(round)

	if !l.IsCoordinator() {
		select {
		case asg := <-r.assignments[l.rank]:
			return asg, nil
		case <-ctx.Done():
			return types.Assignment{}, ctx.Err()
		}
	}

	if len(assignments) != l.hub.size {
		return types.Assignment{}, fmt.Errorf("%w: got %d, pool size %d",
			types.ErrAssignmentCount, len(assignments), l.hub.size)
	}

	for rank := 1; rank < l.hub.size; rank++ {
		select {
		case r.assignments[rank] <- assignments[rank]:
		case <-ctx.Done():
			return types.Assignment{}, ctx.Err()
		}
	}

	return assignments[0], nil
}

// Barrier blocks until every rank entered stage of round.
func (l *Local) Barrier(ctx context.Context, round, stage string) error {
	r := l.hub.round(round)

	r.mu.Lock()
	s, ok := r.stages[stage]
	if !ok {
		s = &localStage{done: make(chan struct{})}
		r.stages[stage] = s
	}
	s.arrived++
	if s.arrived == l.hub.size {
		close(s.done)
	}
	r.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Gather delivers part to the coordinator, which returns every part by rank.
func (l *Local) Gather(ctx context.Context, round string, part types.SeriesPart) ([]types.SeriesPart, error) {
	r := l.hub.round(round)
	part.Rank = l.rank

	if !l.IsCoordinator() {
		select {
		case r.parts <- part:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	parts := make([]types.SeriesPart, 0, l.hub.size)
	parts = append(parts, part)
	for len(parts) < l.hub.size {
		select {
		case p := <-r.parts:
			parts = append(parts, p)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Rank < parts[j].Rank })

	return parts, nil
}

func (h *localHub) round(name string) *localRound {
	if r, ok := h.rounds.Load(name); ok {
		return r
	}

	r, _ := h.rounds.LoadOrStore(name, newLocalRound(h.size))

	return r
}

func newLocalRound(size int) *localRound {
	r := &localRound{
		assignments: make([]chan types.Assignment, size),
		parts:       make(chan types.SeriesPart, size),
		stages:      make(map[string]*localStage),
	}
	for rank := range r.assignments {
		r.assignments[rank] = make(chan types.Assignment, 1)
	}

	return r
}
