// Package scan runs a resolved profile set against the local host and
// aggregates per-control outcomes into a scored compliance result.
package scan

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/system"
)

// StatusExcepted marks a control that matched an active exception and was
// not evaluated
const StatusExcepted check.Status = "excepted"

// Severity classes derived from a control's impact weight
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// SeverityFromImpact maps an impact weight to its severity class
func SeverityFromImpact(impact float64) string {
	switch {
	case impact >= 0.9:
		return SeverityCritical
	case impact >= 0.7:
		return SeverityHigh
	case impact >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityRank orders severities for sorting and thresholds, critical
// highest
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ControlResult is the evaluated outcome of one control
type ControlResult struct {
	ID              string              `json:"id" yaml:"id"`
	Title           string              `json:"title" yaml:"title"`
	Section         string              `json:"section" yaml:"section"`
	Level           int                 `json:"level" yaml:"level"`
	Impact          float64             `json:"impact" yaml:"impact"`
	Severity        string              `json:"severity" yaml:"severity"`
	Status          check.Status        `json:"status" yaml:"status"`
	Evidence        string              `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Remediation     profile.Remediation `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	Tags            []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	DurationMS      int64               `json:"duration_ms" yaml:"duration_ms"`
	ExceptionReason string              `json:"exception_reason,omitempty" yaml:"exception_reason,omitempty"`
}

// FailedControl is the compact view of a failing control
type FailedControl struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Severity    string `json:"severity" yaml:"severity"`
	Evidence    string `json:"evidence" yaml:"evidence"`
	Remediation string `json:"fix" yaml:"fix"`
}

// SectionSummary aggregates pass counts per control section
type SectionSummary struct {
	Passed int     `json:"pass" yaml:"pass"`
	Total  int     `json:"total" yaml:"total"`
	Pct    float64 `json:"pct" yaml:"pct"`
}

// Summary holds the scan-wide compliance metrics. Score excludes
// not-applicable and excepted controls from its denominator; skipped
// checks still count, so unverifiable controls never inflate the score.
type Summary struct {
	Total         int     `json:"total" yaml:"total"`
	Passed        int     `json:"pass" yaml:"pass"`
	Failed        int     `json:"fail" yaml:"fail"`
	Skipped       int     `json:"skip" yaml:"skip"`
	NotApplicable int     `json:"na" yaml:"na"`
	Excepted      int     `json:"excepted" yaml:"excepted"`
	Score         float64 `json:"score" yaml:"score"`
	Grade         string  `json:"grade" yaml:"grade"`
}

// Result is a complete scan outcome
type Result struct {
	RunID          string                    `json:"run_id" yaml:"run_id"`
	Profile        string                    `json:"profile" yaml:"profile"`
	ProfileVersion string                    `json:"profile_version,omitempty" yaml:"profile_version,omitempty"`
	Level          int                       `json:"level" yaml:"level"`
	Timestamp      string                    `json:"ts" yaml:"ts"`
	Host           *system.OSInfo            `json:"host" yaml:"host"`
	Summary        *Summary                  `json:"summary" yaml:"summary"`
	Sections       map[string]SectionSummary `json:"sections" yaml:"sections"`
	Failed         []FailedControl           `json:"failed" yaml:"failed"`
	Controls       []ControlResult           `json:"controls,omitempty" yaml:"controls,omitempty"`
	DurationMS     int64                     `json:"duration_ms" yaml:"duration_ms"`
}

// NewResult creates an empty result stamped with a fresh run ID
func NewResult(profileName, version string, level int) *Result {
	return &Result{
		RunID:          uuid.New().String(),
		Profile:        profileName,
		ProfileVersion: version,
		Level:          level,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Summary:        &Summary{},
		Sections:       make(map[string]SectionSummary),
		Failed:         []FailedControl{},
	}
}

// Grade letters follow school grading on the compliance score
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// TrafficLight condenses the result to green, yellow or red. Red means a
// critical or high control failed, or the score fell below 50.
func (r *Result) TrafficLight() string {
	if r.Summary.Failed == 0 {
		return "green"
	}
	if r.Summary.Score < 50 {
		return "red"
	}
	for _, f := range r.Failed {
		if f.Severity == SeverityCritical || f.Severity == SeverityHigh {
			return "red"
		}
	}
	return "yellow"
}

// ExitCode maps the traffic light to the process exit status
func (r *Result) ExitCode() int {
	switch r.TrafficLight() {
	case "red":
		return 2
	case "yellow":
		return 1
	default:
		return 0
	}
}

// roundPct rounds percentages to one decimal place
func roundPct(pct float64) float64 {
	return math.Round(pct*10) / 10
}
