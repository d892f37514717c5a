package metrics

import (
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

// metricsreader provides real-time access to prometheus metric values
// by reading directly from the registry without network calls
type MetricsReader struct {
	metrics *Metrics
}

// histogramstats contains extracted statistics from a histogram
type HistogramStats struct {
	Count uint64  // total number of observations
	Sum   float64 // sum of all observations
	Avg   float64 // average value
	P95   float64 // estimated 95th percentile
}

// newmetricsreader creates a new metrics reader
func NewMetricsReader(m *Metrics) *MetricsReader {
	return &MetricsReader{metrics: m}
}

// getcountervalue reads the current value of a counter
func (r *MetricsReader) GetCounterValue(counter prometheus.Counter) (float64, error) {
	var metricDto dto.Metric
	if err := counter.(prometheus.Metric).Write(&metricDto); err != nil {
		return 0, err
	}
	return metricDto.GetCounter().GetValue(), nil
}

// getgaugevalue reads the current value of a gauge
func (r *MetricsReader) GetGaugeValue(gauge prometheus.Gauge) (float64, error) {
	var metricDto dto.Metric
	if err := gauge.(prometheus.Metric).Write(&metricDto); err != nil {
		return 0, err
	}
	return metricDto.GetGauge().GetValue(), nil
}

// gethistogramstats extracts statistics from a histogram observer
func (r *MetricsReader) GetHistogramStats(hist prometheus.Observer) (*HistogramStats, error) {
	var metricDto dto.Metric
	if err := hist.(prometheus.Metric).Write(&metricDto); err != nil {
		return nil, err
	}

	h := metricDto.GetHistogram()
	stats := &HistogramStats{
		Count: h.GetSampleCount(),
		Sum:   h.GetSampleSum(),
	}

	if stats.Count > 0 {
		stats.Avg = stats.Sum / float64(stats.Count)
	}

	stats.P95 = r.estimatePercentile(h, 0.95)

	return stats, nil
}

// estimatepercentile estimates a percentile from histogram buckets
func (r *MetricsReader) estimatePercentile(hist *dto.Histogram, percentile float64) float64 {
	totalCount := hist.GetSampleCount()
	if totalCount == 0 {
		return 0
	}

	target := float64(totalCount) * percentile
	cumulativeCount := uint64(0)

	for _, bucket := range hist.GetBucket() {
		cumulativeCount = bucket.GetCumulativeCount()
		if float64(cumulativeCount) >= target {
			return bucket.GetUpperBound()
		}
	}

	return 0
}

// getqueuesize reads the current pending-queue gauge value
func (r *MetricsReader) GetQueueSize() (float64, error) {
	return r.GetGaugeValue(r.metrics.QueueSize)
}

// getcausalbuffersize reads the current causal-buffer gauge value
func (r *MetricsReader) GetCausalBufferSize() (float64, error) {
	return r.GetGaugeValue(r.metrics.CausalBufferSize)
}

// getopsacceptedrate calculates the share of applied operations that
// were accepted rather than rejected
func (r *MetricsReader) GetOpsAcceptedRate() float64 {
	accepted, err := r.GetCounterValue(r.metrics.OpsAppliedTotal.WithLabelValues("accepted"))
	if err != nil {
		return 1.0
	}

	total := accepted
	for _, reason := range []string{"rejected_stale", "rejected_tie"} {
		if v, err := r.GetCounterValue(r.metrics.OpsAppliedTotal.WithLabelValues(reason)); err == nil {
			total += v
		}
	}

	if total == 0 {
		return 1.0
	}
	return accepted / total
}
