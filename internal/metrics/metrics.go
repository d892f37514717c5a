// Package metrics holds the prometheus instrumentation surface for a
// sync engine instance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// holds all prometheus metrics for a sync engine
type Metrics struct {
	// operation latency
	SetLatency    prometheus.Histogram
	DeleteLatency prometheus.Histogram
	ApplyLatency  prometheus.Histogram

	// operation counters
	OpsAppliedTotal  *prometheus.CounterVec // result=accepted|rejected_stale|rejected_tie
	OpsLocalTotal    prometheus.Counter
	OpsRemoteTotal   prometheus.Counter
	CASAttemptsTotal *prometheus.CounterVec // result=matched|mismatched

	// offline queue and causal buffer
	QueueSize          prometheus.Gauge
	CausalBufferSize   prometheus.Gauge
	ResyncRequestsTotal prometheus.Counter
	DrainedOpsTotal    prometheus.Counter

	// tombstone compaction
	CompactionRunsTotal     prometheus.Counter
	TombstonesCollectedTotal prometheus.Counter

	// hlc
	ClockDriftRejectedTotal prometheus.Counter
	ClockOffsetMs           prometheus.Gauge

	// storage and crypto
	StorageErrorsTotal *prometheus.CounterVec // op=set|delete|scan|clear, plus decode for undecodable remote values
	CryptoErrorsTotal  *prometheus.CounterVec // op=encrypt|decrypt

	// data age
	DataAge prometheus.Histogram
}

// create and register all prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SetLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "set_latency_seconds",
			Help:      "Latency of Set operations",
			Buckets:   prometheus.DefBuckets,
		}),

		DeleteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delete_latency_seconds",
			Help:      "Latency of Delete operations",
			Buckets:   prometheus.DefBuckets,
		}),

		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_remote_latency_seconds",
			Help:      "Latency of ApplyRemote operations",
			Buckets:   prometheus.DefBuckets,
		}),

		OpsAppliedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_applied_total",
			Help:      "Total operations applied to the local store, by outcome",
		}, []string{"result"}),

		OpsLocalTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_local_total",
			Help:      "Total operations originated locally",
		}),

		OpsRemoteTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_remote_total",
			Help:      "Total operations received from remote peers",
		}),

		CASAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_attempts_total",
			Help:      "Total compare-and-swap attempts, by outcome",
		}, []string{"result"}),

		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_queue_size",
			Help:      "Current number of operations buffered for offline delivery",
		}),

		CausalBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "causal_buffer_size",
			Help:      "Current number of remote operations held back awaiting dependencies",
		}),

		ResyncRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resync_requests_total",
			Help:      "Total resync requests triggered by causal buffer overflow",
		}),

		DrainedOpsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drained_ops_total",
			Help:      "Total pending operations successfully drained to peers",
		}),

		CompactionRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_runs_total",
			Help:      "Total tombstone compaction passes executed",
		}),

		TombstonesCollectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tombstones_collected_total",
			Help:      "Total tombstones removed past their stability window",
		}),

		ClockDriftRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clock_drift_rejected_total",
			Help:      "Total remote timestamps rejected for exceeding the drift bound",
		}),

		ClockOffsetMs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clock_offset_milliseconds",
			Help:      "Current configured clock offset relative to server time",
		}),

		StorageErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Total storage adapter errors, by operation",
		}, []string{"op"}),

		CryptoErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crypto_errors_total",
			Help:      "Total encryption adapter errors, by operation",
		}, []string{"op"}),

		DataAge: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "data_age_seconds",
			Help:      "Distribution of entry age observed on read",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0, 30.0},
		}),
	}
}

func (m *Metrics) RecordOpAccepted(local bool) {
	m.OpsAppliedTotal.WithLabelValues("accepted").Inc()
	if local {
		m.OpsLocalTotal.Inc()
	} else {
		m.OpsRemoteTotal.Inc()
	}
}

func (m *Metrics) RecordOpRejected(reason string) {
	m.OpsAppliedTotal.WithLabelValues(reason).Inc()
	m.OpsRemoteTotal.Inc()
}

func (m *Metrics) RecordCAS(matched bool) {
	if matched {
		m.CASAttemptsTotal.WithLabelValues("matched").Inc()
	} else {
		m.CASAttemptsTotal.WithLabelValues("mismatched").Inc()
	}
}
