package baseline

import (
	"fmt"
	"sort"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/scan"
)

// DriftKind classifies how a control moved relative to the baseline
type DriftKind string

const (
	DriftRegressed       DriftKind = "regressed"        // any status to fail
	DriftRecovered       DriftKind = "recovered"        // fail back to pass
	DriftStatusChanged   DriftKind = "status-changed"   // other status moves
	DriftEvidenceChanged DriftKind = "evidence-changed" // same status, new evidence
	DriftAppeared        DriftKind = "appeared"         // control new to the profile
	DriftDisappeared     DriftKind = "disappeared"      // control gone from the scan
)

// Drift is one control-level change since the baseline
type Drift struct {
	Code      string    `json:"code" yaml:"code"`
	Kind      DriftKind `json:"kind" yaml:"kind"`
	ControlID string    `json:"control_id" yaml:"control_id"`
	Severity  string    `json:"severity" yaml:"severity"`
	Before    string    `json:"before,omitempty" yaml:"before,omitempty"`
	After     string    `json:"after,omitempty" yaml:"after,omitempty"`
	Message   string    `json:"message" yaml:"message"`
}

// DiffResult lists all drifts between a baseline and a scan
type DiffResult struct {
	BaselineTimestamp string  `json:"baseline_timestamp" yaml:"baseline_timestamp"`
	CurrentTimestamp  string  `json:"current_timestamp" yaml:"current_timestamp"`
	DriftCount        int     `json:"drift_count" yaml:"drift_count"`
	Regressions       int     `json:"regressions" yaml:"regressions"`
	Drifts            []Drift `json:"drifts" yaml:"drifts"`
}

// Compare diffs a scan result against the baseline. Drift codes are
// stable for a given pair of inputs: controls are walked in ID order,
// disappeared controls last.
func Compare(b *Baseline, r *scan.Result) *DiffResult {
	result := &DiffResult{
		BaselineTimestamp: b.Metadata.Timestamp,
		CurrentTimestamp:  r.Timestamp,
		Drifts:            []Drift{},
	}

	current := make(map[string]scan.ControlResult, len(r.Controls))
	ids := make([]string, 0, len(r.Controls))
	for _, c := range r.Controls {
		current[c.ID] = c
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := current[id]
		old, known := b.Controls[id]
		if !known {
			result.Drifts = append(result.Drifts, Drift{
				Kind:      DriftAppeared,
				ControlID: id,
				Severity:  c.Severity,
				After:     string(c.Status),
				Message:   fmt.Sprintf("new control %s (status %s)", id, c.Status),
			})
			continue
		}

		if drift, changed := classifyTransition(id, old, c); changed {
			result.Drifts = append(result.Drifts, drift)
		}
	}

	gone := make([]string, 0)
	for id := range b.Controls {
		if _, still := current[id]; !still {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		old := b.Controls[id]
		result.Drifts = append(result.Drifts, Drift{
			Kind:      DriftDisappeared,
			ControlID: id,
			Severity:  old.Severity,
			Before:    string(old.Status),
			Message:   fmt.Sprintf("control %s no longer evaluated", id),
		})
	}

	for i := range result.Drifts {
		result.Drifts[i].Code = fmt.Sprintf("HS-%03d", i+1)
		if result.Drifts[i].Kind == DriftRegressed {
			result.Regressions++
		}
	}
	result.DriftCount = len(result.Drifts)

	return result
}

func classifyTransition(id string, old ControlState, c scan.ControlResult) (Drift, bool) {
	drift := Drift{
		ControlID: id,
		Severity:  c.Severity,
		Before:    string(old.Status),
		After:     string(c.Status),
	}

	switch {
	case old.Status == c.Status:
		if old.Evidence == c.Evidence {
			return Drift{}, false
		}
		drift.Kind = DriftEvidenceChanged
		drift.Before = old.Evidence
		drift.After = c.Evidence
		drift.Message = fmt.Sprintf("%s evidence changed", id)
	case c.Status == check.StatusFail:
		drift.Kind = DriftRegressed
		drift.Message = fmt.Sprintf("%s regressed from %s to fail", id, old.Status)
	case old.Status == check.StatusFail && c.Status == check.StatusPass:
		drift.Kind = DriftRecovered
		drift.Message = fmt.Sprintf("%s recovered", id)
	default:
		drift.Kind = DriftStatusChanged
		drift.Message = fmt.Sprintf("%s moved from %s to %s", id, old.Status, c.Status)
	}

	return drift, true
}

// Waive drops drifts carrying a waived alert code or a control ID
// matching a service allowlist pattern, then recounts what remains.
// The second return value is how many were dropped.
func Waive(d *DiffResult, exc *config.Exceptions) (*DiffResult, int) {
	if exc == nil || len(d.Drifts) == 0 {
		return d, 0
	}

	kept := make([]Drift, 0, len(d.Drifts))
	regressions := 0
	for _, drift := range d.Drifts {
		if exc.IsAlertWaived(drift.Code) || exc.IsServiceExcepted(drift.ControlID) {
			continue
		}
		kept = append(kept, drift)
		if drift.Kind == DriftRegressed {
			regressions++
		}
	}
	if len(kept) == len(d.Drifts) {
		return d, 0
	}

	filtered := *d
	filtered.Drifts = kept
	filtered.DriftCount = len(kept)
	filtered.Regressions = regressions
	return &filtered, len(d.Drifts) - len(kept)
}

// HasDrift reports whether anything changed since the baseline
func (d *DiffResult) HasDrift() bool {
	return d.DriftCount > 0
}

// ExitCode is 1 when drift was detected, matching diff conventions
func (d *DiffResult) ExitCode() int {
	if d.HasDrift() {
		return 1
	}
	return 0
}
