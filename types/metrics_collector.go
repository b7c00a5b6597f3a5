package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods may be called from several worker goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	RunnerMetrics
	DetectionMetrics
	CollectiveMetrics
	ProgressMetrics
}

// RunnerMetrics defines metrics for runner-level operations.
type RunnerMetrics interface {
	// RecordStateTransition records a runner state transition event.
	RecordStateTransition(from, to State, duration float64)

	// RecordIntervalSize sets the number of snapshots assigned to this rank (gauge metric).
	//
	// Parameters:
	//   - dataset: Dataset name
	//   - size: Interval length, 0 for idle workers
	RecordIntervalSize(dataset string, size int)

	// RecordReduction records a coordinator reduction.
	//
	// Parameters:
	//   - dataset: Dataset name
	//   - duration: Time taken in seconds
	//   - success: false when the partition check rejected the parts
	RecordReduction(dataset string, duration float64, success bool)
}

// DetectionMetrics defines metrics for per-snapshot processing.
type DetectionMetrics interface {
	// RecordSnapshot records the outcome of one snapshot.
	//
	// Parameters:
	//   - outcome: "detected", "missing", "unreadable", "pre_bounce"
	RecordSnapshot(outcome string)

	// RecordDetectionDuration records the time spent loading and scanning one snapshot.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordDetectionDuration(duration float64)
}

// CollectiveMetrics defines metrics for collective operations.
type CollectiveMetrics interface {
	// RecordCollectiveDuration records collective operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("broadcast", "barrier", "gather")
	//   - duration: Time taken in seconds
	RecordCollectiveDuration(operation string, duration float64)

	// RecordKVOperationDuration records NATS KV operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("get", "put", "create", "delete", "watch")
	//   - duration: Time taken in seconds
	RecordKVOperationDuration(operation string, duration float64)
}

// ProgressMetrics defines metrics for worker progress publishing.
type ProgressMetrics interface {
	// RecordProgress records a progress report of an individual worker.
	//
	// Parameters:
	//   - rank: The rank of the reporting worker
	//   - done: Snapshots processed so far
	//   - total: Snapshots assigned
	RecordProgress(rank, done, total int)
}
