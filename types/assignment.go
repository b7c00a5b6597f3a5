package types

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Assignment is the per-rank processing plan broadcast by the coordinator.
//
// Every rank of a round receives the same dataset-level fields and its own
// Interval. Workers never compute their own partition.
type Assignment struct {
	// Version is a monotonically increasing assignment version within a run.
	Version int64 `json:"version"`

	// Dataset identifies the snapshot series being processed.
	Dataset string `json:"dataset"`

	// Rank is the receiving worker rank.
	Rank int `json:"rank"`

	// NumFiles is the full series length (one slot per snapshot index).
	NumFiles int `json:"numFiles"`

	// Bounce is the reference bounce index for the dataset.
	Bounce int `json:"bounce"`

	// Cover is the range of snapshot indices partitioned across the pool.
	Cover WorkInterval `json:"cover"`

	// Interval is the range of snapshot indices owned by Rank.
	Interval WorkInterval `json:"interval"`

	// Abort carries the coordinator's fatal planning error. When set, every
	// rank stops the run instead of processing Interval.
	Abort string `json:"abort,omitempty"`
}

// RoundID derives a stable, key-safe identifier for one dataset round.
//
// Dataset names contain dots and other characters that are not usable as a
// single KV key token, so the pair is hashed with xxh3.
//
// Parameters:
//   - runID: Identifier shared by every process of one run
//   - dataset: Dataset name
//
// Returns:
//   - string: 16-digit hex identifier
func RoundID(runID, dataset string) string {
	h := xxh3.New()
	_, _ = h.WriteString(runID)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(dataset)

	return fmt.Sprintf("%016x", h.Sum64())
}
