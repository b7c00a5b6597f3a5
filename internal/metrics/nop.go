package metrics

import "github.com/arloliu/shocktrack/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	runner, err := shocktrack.NewRunner(&cfg, comm, reader, shocktrack.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RunnerMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State, _ /* duration */ float64) {
	// No-op
}

// RecordIntervalSize discards the interval size metric.
func (n *NopMetrics) RecordIntervalSize(_ /* dataset */ string, _ /* size */ int) {
	// No-op
}

// RecordReduction discards the reduction metric.
func (n *NopMetrics) RecordReduction(_ /* dataset */ string, _ /* duration */ float64, _ /* success */ bool) {
	// No-op
}

// DetectionMetrics implementation

// RecordSnapshot discards the snapshot outcome metric.
func (n *NopMetrics) RecordSnapshot(_ /* outcome */ string) {
	// No-op
}

// RecordDetectionDuration discards the detection latency metric.
func (n *NopMetrics) RecordDetectionDuration(_ /* duration */ float64) {
	// No-op
}

// CollectiveMetrics implementation

// RecordCollectiveDuration discards the collective latency metric.
func (n *NopMetrics) RecordCollectiveDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}

// RecordKVOperationDuration discards the KV operation duration metric.
func (n *NopMetrics) RecordKVOperationDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}

// ProgressMetrics implementation

// RecordProgress discards the progress metric.
func (n *NopMetrics) RecordProgress(_ /* rank */, _ /* done */, _ /* total */ int) {
	// No-op
}
