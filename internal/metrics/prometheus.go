package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/shocktrack/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metrics are registered lazily on first use, so constructing a collector
// that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	*NopMetrics

	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions   *prometheus.CounterVec
	stateDuration      *prometheus.HistogramVec
	intervalSize       *prometheus.GaugeVec
	reductions         *prometheus.CounterVec
	reductionDuration  prometheus.Histogram
	snapshots          *prometheus.CounterVec
	detectionDuration  prometheus.Histogram
	collectiveDuration *prometheus.HistogramVec
	kvDuration         *prometheus.HistogramVec
	progressDone       *prometheus.GaugeVec
	progressTotal      *prometheus.GaugeVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "shocktrack" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "shocktrack"
	}

	return &PrometheusCollector{NopMetrics: NewNop(), reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "state_transitions_total",
			Help:      "Total runner state transitions by source and target state.",
		}, []string{"from", "to"})

		p.stateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a runner state before leaving it.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~4.4min
		}, []string{"state"})

		p.intervalSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "interval_snapshots",
			Help:      "Snapshots assigned to this rank for the dataset.",
		}, []string{"dataset"})

		p.reductions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "reductions_total",
			Help:      "Coordinator reductions by result (success,failure).",
		}, []string{"result"})

		p.reductionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "reduction_duration_seconds",
			Help:      "Latency of merging worker parts on the coordinator.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		})

		p.snapshots = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "detect",
			Name:      "snapshots_total",
			Help:      "Processed snapshots by outcome (detected,missing,unreadable,pre_bounce).",
		}, []string{"outcome"})

		p.detectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "detect",
			Name:      "snapshot_duration_seconds",
			Help:      "Time spent loading and scanning one snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		})

		p.collectiveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "collective",
			Name:      "operation_duration_seconds",
			Help:      "Latency of collective operations (broadcast,barrier,gather).",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"op"})

		p.kvDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "collective",
			Name:      "kv_operation_duration_seconds",
			Help:      "Latency of NATS KV operations by type.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		}, []string{"op"})

		p.progressDone = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "snapshots_done",
			Help:      "Snapshots processed by rank within the current interval.",
		}, []string{"rank"})

		p.progressTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "snapshots_assigned",
			Help:      "Snapshots assigned to rank within the current dataset.",
		}, []string{"rank"})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.stateDuration)
		p.reg.MustRegister(p.intervalSize)
		p.reg.MustRegister(p.reductions)
		p.reg.MustRegister(p.reductionDuration)
		p.reg.MustRegister(p.snapshots)
		p.reg.MustRegister(p.detectionDuration)
		p.reg.MustRegister(p.collectiveDuration)
		p.reg.MustRegister(p.kvDuration)
		p.reg.MustRegister(p.progressDone)
		p.reg.MustRegister(p.progressTotal)
	})
}

// RunnerMetrics implementation

// RecordStateTransition counts the transition and observes time spent in from.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State, duration float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.stateDuration.WithLabelValues(from.String()).Observe(duration)
}

// RecordIntervalSize sets the assigned interval gauge for dataset.
func (p *PrometheusCollector) RecordIntervalSize(dataset string, size int) {
	p.ensureRegistered()
	p.intervalSize.WithLabelValues(dataset).Set(float64(size))
}

// RecordReduction records a reduction outcome and its latency.
func (p *PrometheusCollector) RecordReduction(_ string, duration float64, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.reductions.WithLabelValues(result).Inc()
	p.reductionDuration.Observe(duration)
}

// DetectionMetrics implementation

// RecordSnapshot increments the snapshot counter for outcome.
func (p *PrometheusCollector) RecordSnapshot(outcome string) {
	p.ensureRegistered()
	p.snapshots.WithLabelValues(outcome).Inc()
}

// RecordDetectionDuration observes per-snapshot latency.
func (p *PrometheusCollector) RecordDetectionDuration(duration float64) {
	p.ensureRegistered()
	p.detectionDuration.Observe(duration)
}

// CollectiveMetrics implementation

// RecordCollectiveDuration observes collective operation latency.
func (p *PrometheusCollector) RecordCollectiveDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.collectiveDuration.WithLabelValues(operation).Observe(duration)
}

// RecordKVOperationDuration observes KV operation latency.
func (p *PrometheusCollector) RecordKVOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.kvDuration.WithLabelValues(operation).Observe(duration)
}

// ProgressMetrics implementation

// RecordProgress sets the progress gauges of rank.
func (p *PrometheusCollector) RecordProgress(rank, done, total int) {
	p.ensureRegistered()
	label := strconv.Itoa(rank)
	p.progressDone.WithLabelValues(label).Set(float64(done))
	p.progressTotal.WithLabelValues(label).Set(float64(total))
}
