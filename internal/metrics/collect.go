package metrics

import (
	"time"

	"github.com/hardscan/hardscan/internal/baseline"
	"github.com/hardscan/hardscan/internal/scan"
)

// severities every scan writes, so a cleared finding drops its gauge
// back to zero instead of going stale
var failedSeverities = []string{"critical", "high", "medium", "low"}

// RecordScan stores the outcome of a single scan in the registry
func (r *Registry) RecordScan(res *scan.Result) {
	profileLabel := map[string]string{"profile": res.Profile}

	r.Counter("hardscan_scans_total", profileLabel).Inc()
	r.Gauge("hardscan_scan_score", profileLabel).Set(res.Summary.Score)
	r.Histogram("hardscan_scan_duration_seconds", nil).Observe(float64(res.DurationMS) / 1000)

	statuses := map[string]int{
		"pass":     res.Summary.Passed,
		"fail":     res.Summary.Failed,
		"skip":     res.Summary.Skipped,
		"na":       res.Summary.NotApplicable,
		"excepted": res.Summary.Excepted,
	}
	for status, n := range statuses {
		labels := map[string]string{"profile": res.Profile, "status": status}
		r.Gauge("hardscan_controls", labels).Set(float64(n))
	}

	bySeverity := make(map[string]int)
	for _, fc := range res.Failed {
		bySeverity[fc.Severity]++
	}
	for _, severity := range failedSeverities {
		labels := map[string]string{"severity": severity}
		r.Gauge("hardscan_failed_controls", labels).Set(float64(bySeverity[severity]))
	}

	if ts, err := time.Parse(time.RFC3339, res.Timestamp); err == nil {
		r.Gauge("hardscan_last_scan_timestamp_seconds", nil).Set(float64(ts.Unix()))
	}
}

// RecordDrift stores baseline comparison figures in the registry
func (r *Registry) RecordDrift(d *baseline.DiffResult) {
	r.Gauge("hardscan_drift_changes", nil).Set(float64(d.DriftCount))
	r.Gauge("hardscan_drift_regressions", nil).Set(float64(d.Regressions))
	if d.HasDrift() {
		r.Counter("hardscan_drift_events_total", nil).Inc()
	}
}
