// Package staleness surfaces how old a stored entry is, as a read-time
// enrichment metric rather than a read-rejection gate: the sync engine
// always serves its local state, but operators can watch entry age to
// notice a peer that has stopped syncing.
package staleness

import (
	"time"

	"acp-sync/internal/hlc"
	"acp-sync/internal/metrics"
)

// Detector tracks how old observed timestamps are relative to a
// configured threshold and reports the distribution via metrics.
type Detector struct {
	maxAge  time.Duration
	metrics *metrics.Metrics
}

// NewDetector creates a staleness detector that reports entry ages to m.
func NewDetector(maxAge time.Duration, m *metrics.Metrics) *Detector {
	return &Detector{maxAge: maxAge, metrics: m}
}

// IsStale reports whether timestamp is older than the configured bound
// as of nowMs.
func (d *Detector) IsStale(timestamp hlc.HLC, nowMs int64) bool {
	return timestamp.Age(nowMs) > d.maxAge
}

// Age returns how old timestamp is relative to nowMs.
func (d *Detector) Age(timestamp hlc.HLC, nowMs int64) time.Duration {
	return timestamp.Age(nowMs)
}

// Observe records timestamp's age into the data-age histogram, the
// enrichment a caller performs on every read rather than rejecting
// stale reads outright.
func (d *Detector) Observe(timestamp hlc.HLC, nowMs int64) {
	age := timestamp.Age(nowMs)
	if d.metrics != nil {
		d.metrics.DataAge.Observe(age.Seconds())
	}
}

// CheckMultiple partitions timestamps into fresh and stale groups
// relative to nowMs, for callers that want to flag stale entries
// without rejecting them.
func (d *Detector) CheckMultiple(timestamps []hlc.HLC, nowMs int64) (fresh, stale []hlc.HLC) {
	for _, ts := range timestamps {
		if d.IsStale(ts, nowMs) {
			stale = append(stale, ts)
		} else {
			fresh = append(fresh, ts)
		}
	}
	return fresh, stale
}
