// Package obsmetrics exposes Prometheus collectors for the ranking
// pipeline, following observability.Payoutd's lazy sync.Once registry
// pattern.
package obsmetrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics bundles the collectors tracking a single run of the
// ranking pipeline end to end.
type PipelineMetrics struct {
	runDuration    *prometheus.HistogramVec
	runErrors      *prometheus.CounterVec
	validatorCount prometheus.Gauge
	rpcErrors      *prometheus.CounterVec
	writeLatency   prometheus.Histogram
}

var (
	pipelineMetricsOnce sync.Once
	pipelineRegistry    *PipelineMetrics
)

// Pipeline returns the lazily-initialised metrics registry for the ranking
// pipeline.
func Pipeline() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineRegistry = &PipelineMetrics{
			runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vranker",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of a ranking run segmented by stage.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stage"}),
			runErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vranker",
				Subsystem: "run",
				Name:      "errors_total",
				Help:      "Count of ranking runs that failed, segmented by reason.",
			}, []string{"reason"}),
			validatorCount: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "vranker",
				Subsystem: "run",
				Name:      "validators_ranked",
				Help:      "Number of validators ranked in the most recent completed run.",
			}),
			rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vranker",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Count of chain RPC call failures segmented by method.",
			}, []string{"method"}),
			writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "vranker",
				Subsystem: "store",
				Name:      "write_duration_seconds",
				Help:      "Latency distribution for persisting a completed ranking generation.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			pipelineRegistry.runDuration,
			pipelineRegistry.runErrors,
			pipelineRegistry.validatorCount,
			pipelineRegistry.rpcErrors,
			pipelineRegistry.writeLatency,
		)
	})
	return pipelineRegistry
}

// ObserveStage records the duration of a named pipeline stage (snapshot,
// age_resolution, scoring, cluster_analysis, dominance_analysis, write).
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	if stage = strings.TrimSpace(stage); stage == "" {
		stage = "unknown"
	}
	m.runDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRunError increments the run failure counter for the supplied
// reason.
func (m *PipelineMetrics) RecordRunError(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.runErrors.WithLabelValues(reason).Inc()
}

// SetValidatorCount records how many validators were ranked in the most
// recent completed run.
func (m *PipelineMetrics) SetValidatorCount(n int) {
	if m == nil {
		return
	}
	m.validatorCount.Set(float64(n))
}

// RecordRPCError increments the RPC error counter for the supplied method
// name.
func (m *PipelineMetrics) RecordRPCError(method string) {
	if m == nil {
		return
	}
	if method = strings.TrimSpace(method); method == "" {
		method = "unknown"
	}
	m.rpcErrors.WithLabelValues(method).Inc()
}

// ObserveWrite records the latency of a single ranking store write.
func (m *PipelineMetrics) ObserveWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.writeLatency.Observe(d.Seconds())
}
