// Package report renders scan results for humans, pipelines and code
// scanning tools.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/scan"
)

// Output formats
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatSARIF   = "sarif"
	FormatSummary = "summary"
	FormatCompact = "compact"
)

const (
	headerRule  = "═══════════════════════════════════════════════════════════════"
	sectionRule = "───────────────────────────────────────────────────────────────"
)

// Formats lists the supported output formats
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatSARIF, FormatSummary, FormatCompact}
}

// Formatter renders a scan result in one output format
type Formatter struct {
	format  string
	verbose bool
}

// NewFormatter creates a formatter, rejecting unknown formats
func NewFormatter(format string, verbose bool) (*Formatter, error) {
	for _, f := range Formats() {
		if format == f {
			return &Formatter{format: format, verbose: verbose}, nil
		}
	}
	return nil, errors.Wrap(errors.ErrInvalidInput, "unknown format %q (supported: %s)",
		format, strings.Join(Formats(), ", "))
}

// Render produces the formatted report
func (f *Formatter) Render(r *scan.Result) (string, error) {
	switch f.format {
	case FormatJSON:
		return f.toJSON(r)
	case FormatYAML:
		return f.toYAML(r)
	case FormatSARIF:
		return toSARIF(r)
	case FormatSummary:
		return toSummary(r), nil
	case FormatCompact:
		return toCompact(r)
	default:
		return f.toText(r), nil
	}
}

// Save renders the report and writes it to path
func (f *Formatter) Save(r *scan.Result, path string) error {
	output, err := f.Render(r)
	if err != nil {
		return err
	}
	// Write-then-rename keeps a half-written report from ever being
	// visible at the target path.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(output), 0600); err != nil {
		return errors.Wrap(errors.ErrFileOperation, "writing report to %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrFileOperation, "replacing report at %s: %v", path, err)
	}
	return nil
}

func (f *Formatter) toJSON(r *scan.Result) (string, error) {
	out := r
	if !f.verbose {
		// per-control detail only in verbose mode
		trimmed := *r
		trimmed.Controls = nil
		out = &trimmed
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrParseFailure, "encoding report: %v", err)
	}
	return string(data), nil
}

func (f *Formatter) toYAML(r *scan.Result) (string, error) {
	out := r
	if !f.verbose {
		trimmed := *r
		trimmed.Controls = nil
		out = &trimmed
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return "", errors.Wrap(errors.ErrParseFailure, "encoding report: %v", err)
	}
	return string(data), nil
}

// toText writes the operator-facing report with a traffic light header
func (f *Formatter) toText(r *scan.Result) string {
	var sb strings.Builder
	light := r.TrafficLight()

	sb.WriteString("\n")
	sb.WriteString(headerRule + "\n")
	sb.WriteString(fmt.Sprintf("  %s  COMPLIANCE REPORT  -  %s\n", lightEmoji(light), hostname(r)))
	sb.WriteString(headerRule + "\n\n")

	sb.WriteString(fmt.Sprintf("  Status:  %s %s\n", lightEmoji(light), lightLabel(light)))
	sb.WriteString(fmt.Sprintf("  Score:   %s/100 (Grade: %s)\n", formatScore(r.Summary.Score), r.Summary.Grade))
	sb.WriteString(fmt.Sprintf("  Profile: %s%s (level %d)\n", r.Profile, versionSuffix(r), r.Level))
	if r.Host != nil {
		sb.WriteString(fmt.Sprintf("  Host:    %s/%s kernel %s\n", r.Host.Distro, r.Host.Family, r.Host.Kernel))
	}
	sb.WriteString(fmt.Sprintf("  Time:    %s\n", r.Timestamp))
	sb.WriteString(fmt.Sprintf("  Checks:  %d total, %d passed, %d failed, %d skipped, %d not applicable, %d excepted\n\n",
		r.Summary.Total, r.Summary.Passed, r.Summary.Failed,
		r.Summary.Skipped, r.Summary.NotApplicable, r.Summary.Excepted))

	if len(r.Sections) > 0 {
		sb.WriteString(sectionRule + "\n")
		sb.WriteString("  SECTION BREAKDOWN\n")
		sb.WriteString(sectionRule + "\n")
		for _, name := range sortedSections(r) {
			s := r.Sections[name]
			sb.WriteString(fmt.Sprintf("  %-24s %d/%d (%s%%)\n", name, s.Passed, s.Total, formatScore(s.Pct)))
		}
		sb.WriteString("\n")
	}

	if len(r.Failed) > 0 {
		sb.WriteString(sectionRule + "\n")
		sb.WriteString("  ⚠️  FAILED CONTROLS\n")
		sb.WriteString(sectionRule + "\n")
		for _, fc := range r.Failed {
			sb.WriteString(fmt.Sprintf("  %s [%s] %s - %s\n", severityIcon(fc.Severity), strings.ToUpper(fc.Severity), fc.ID, fc.Title))
			if fc.Evidence != "" {
				sb.WriteString(fmt.Sprintf("      %s\n", fc.Evidence))
			}
			if fc.Remediation != "" {
				sb.WriteString(fmt.Sprintf("      fix: %s\n", fc.Remediation))
			}
		}
		sb.WriteString("\n")
	}

	if excepted := exceptedControls(r); len(excepted) > 0 {
		sb.WriteString(sectionRule + "\n")
		sb.WriteString("  EXCEPTED CONTROLS\n")
		sb.WriteString(sectionRule + "\n")
		for _, c := range excepted {
			sb.WriteString(fmt.Sprintf("  • %s - %s (%s)\n", c.ID, c.Title, c.ExceptionReason))
		}
		sb.WriteString("\n")
	}

	if f.verbose && len(r.Controls) > 0 {
		sb.WriteString(sectionRule + "\n")
		sb.WriteString("  ALL CONTROLS\n")
		sb.WriteString(sectionRule + "\n")
		for _, c := range r.Controls {
			line := fmt.Sprintf("  %-14s %s - %s", "["+string(c.Status)+"]", c.ID, c.Title)
			if c.Evidence != "" {
				line += " (" + c.Evidence + ")"
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(headerRule + "\n")
	return sb.String()
}

// toSummary produces the one-line pipeline summary
func toSummary(r *scan.Result) string {
	light := r.TrafficLight()
	return fmt.Sprintf("%s %s | %s | Score: %s/100 (%s) | %d failed | %s",
		lightEmoji(light),
		hostname(r),
		r.Profile,
		formatScore(r.Summary.Score),
		r.Summary.Grade,
		r.Summary.Failed,
		lightLabel(light),
	)
}

// compactReport is the machine-first single-object format, small enough
// to feed to chat tooling without the full control list
type compactReport struct {
	SchemaVersion string         `json:"schema_version"`
	RunID         string         `json:"run_id"`
	Timestamp     string         `json:"ts"`
	Hostname      string         `json:"hostname"`
	Profile       string         `json:"profile"`
	Status        compactStatus  `json:"status"`
	Checks        compactChecks  `json:"checks"`
	Issues        []compactIssue `json:"issues"`
}

type compactStatus struct {
	Level string  `json:"level"`
	Score float64 `json:"score"`
	Grade string  `json:"grade"`
}

type compactChecks struct {
	Total    int `json:"total"`
	Passed   int `json:"pass"`
	Failed   int `json:"fail"`
	Skipped  int `json:"skip"`
	NA       int `json:"na"`
	Excepted int `json:"excepted"`
}

type compactIssue struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Msg      string `json:"msg"`
	Fix      string `json:"fix,omitempty"`
}

func toCompact(r *scan.Result) (string, error) {
	c := compactReport{
		SchemaVersion: "1.0",
		RunID:         r.RunID,
		Timestamp:     r.Timestamp,
		Hostname:      hostname(r),
		Profile:       r.Profile,
		Status: compactStatus{
			Level: r.TrafficLight(),
			Score: r.Summary.Score,
			Grade: r.Summary.Grade,
		},
		Checks: compactChecks{
			Total:    r.Summary.Total,
			Passed:   r.Summary.Passed,
			Failed:   r.Summary.Failed,
			Skipped:  r.Summary.Skipped,
			NA:       r.Summary.NotApplicable,
			Excepted: r.Summary.Excepted,
		},
		Issues: make([]compactIssue, 0, len(r.Failed)),
	}

	for _, fc := range r.Failed {
		c.Issues = append(c.Issues, compactIssue{
			ID:       fc.ID,
			Severity: fc.Severity,
			Msg:      shortenMessage(fc.Evidence),
			Fix:      fc.Remediation,
		})
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(errors.ErrParseFailure, "encoding report: %v", err)
	}
	return string(data), nil
}

// shortenMessage truncates long evidence so compact output stays compact
func shortenMessage(msg string) string {
	if len(msg) > 80 {
		return msg[:77] + "..."
	}
	return msg
}

func hostname(r *scan.Result) string {
	if r.Host == nil || r.Host.Hostname == "" {
		return "unknown"
	}
	return r.Host.Hostname
}

func versionSuffix(r *scan.Result) string {
	if r.ProfileVersion == "" {
		return ""
	}
	return " " + r.ProfileVersion
}

func formatScore(score float64) string {
	return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", score), "0"), ".")
}

func sortedSections(r *scan.Result) []string {
	names := make([]string, 0, len(r.Sections))
	for name := range r.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func exceptedControls(r *scan.Result) []scan.ControlResult {
	var out []scan.ControlResult
	for _, c := range r.Controls {
		if c.Status == scan.StatusExcepted {
			out = append(out, c)
		}
	}
	return out
}

func lightEmoji(light string) string {
	switch light {
	case "red":
		return "\U0001F534"
	case "yellow":
		return "\U0001F7E1"
	default:
		return "\U0001F7E2"
	}
}

func lightLabel(light string) string {
	switch light {
	case "red":
		return "CRITICAL - Immediate hardening required"
	case "yellow":
		return "WARNING - Findings need attention"
	default:
		return "GOOD - Host meets the profile"
	}
}

func severityIcon(severity string) string {
	switch severity {
	case scan.SeverityCritical:
		return "\U0001F6A8"
	case scan.SeverityHigh:
		return "\U0001F534"
	default:
		return "⚠️"
	}
}
