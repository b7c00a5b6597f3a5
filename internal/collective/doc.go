// Package collective implements types.Communicator, the broadcast, barrier
// and gather operations that connect a fixed pool of workers.
//
// Two implementations are provided:
//   - Local: an in-process pool, one communicator per goroutine, backed by
//     channels. Used by the CLI local mode and by tests.
//   - NATS: one communicator per process, coordinated through JetStream KV
//     buckets. Assignments, barrier tokens and gathered results are KV keys
//     scoped by round; waiting is done with KV watchers.
//
// Rank 0 is always the coordinator. Neither implementation applies a timeout
// of its own: the caller's context bounds every wait.
package collective
