// Package harden turns failed controls into an ordered remediation
// plan. Plans are advisory output; nothing here executes commands on
// the host.
package harden

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/scan"
)

// Step is one remediation action, ranked by urgency
type Step struct {
	Rank      int      `json:"rank" yaml:"rank"`
	ControlID string   `json:"control_id" yaml:"control_id"`
	Severity  string   `json:"severity" yaml:"severity"`
	Title     string   `json:"title" yaml:"title"`
	Evidence  string   `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Commands  []string `json:"commands,omitempty" yaml:"commands,omitempty"`
	Manual    bool     `json:"manual" yaml:"manual"`
	Note      string   `json:"note,omitempty" yaml:"note,omitempty"`
}

// Plan is the ordered set of remediation steps for one scan result
type Plan struct {
	GeneratedAt string `json:"generated_at" yaml:"generated_at"`
	Hostname    string `json:"hostname" yaml:"hostname"`
	Profile     string `json:"profile" yaml:"profile"`
	RunID       string `json:"run_id" yaml:"run_id"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Only keeps steps whose severity class is in the given set and re-ranks
// the remainder. An empty set keeps the plan untouched.
func (p *Plan) Only(severities []string) (*Plan, error) {
	if len(severities) == 0 {
		return p, nil
	}
	keep := make(map[string]bool, len(severities))
	for _, s := range severities {
		s = strings.ToLower(strings.TrimSpace(s))
		if scan.SeverityRank(s) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidInput, "unknown severity %q", s)
		}
		keep[s] = true
	}

	filtered := *p
	filtered.Steps = make([]Step, 0, len(p.Steps))
	for _, step := range p.Steps {
		if !keep[step.Severity] {
			continue
		}
		step.Rank = len(filtered.Steps) + 1
		filtered.Steps = append(filtered.Steps, step)
	}
	return &filtered, nil
}

// Build derives a plan from a scan result. minSeverity drops steps
// below that class; empty keeps everything. Steps order by severity,
// then impact, then control ID.
func Build(r *scan.Result, minSeverity string) (*Plan, error) {
	minRank := 0
	if minSeverity != "" {
		minRank = scan.SeverityRank(minSeverity)
		if minRank == 0 {
			return nil, errors.Wrap(errors.ErrInvalidInput, "unknown severity %q", minSeverity)
		}
	}

	var failed []scan.ControlResult
	for _, c := range r.Controls {
		if c.Status != check.StatusFail {
			continue
		}
		if scan.SeverityRank(c.Severity) < minRank {
			continue
		}
		failed = append(failed, c)
	}

	// Summary-only results still make a plan from the failed list,
	// though without command detail every step ends up manual.
	if len(r.Controls) == 0 {
		for _, f := range r.Failed {
			if scan.SeverityRank(f.Severity) < minRank {
				continue
			}
			failed = append(failed, scan.ControlResult{
				ID:          f.ID,
				Title:       f.Title,
				Severity:    f.Severity,
				Evidence:    f.Evidence,
				Remediation: profile.Remediation{Text: f.Remediation},
			})
		}
	}

	sort.Slice(failed, func(i, j int) bool {
		ri, rj := scan.SeverityRank(failed[i].Severity), scan.SeverityRank(failed[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if failed[i].Impact != failed[j].Impact {
			return failed[i].Impact > failed[j].Impact
		}
		return failed[i].ID < failed[j].ID
	})

	plan := &Plan{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:    hostnameOf(r),
		Profile:     r.Profile,
		RunID:       r.RunID,
		Steps:       make([]Step, 0, len(failed)),
	}

	for i, c := range failed {
		step := Step{
			Rank:      i + 1,
			ControlID: c.ID,
			Severity:  c.Severity,
			Title:     c.Title,
			Evidence:  c.Evidence,
			Commands:  c.Remediation.Commands,
			Note:      c.Remediation.Text,
		}
		// controls without commands need a human
		if len(step.Commands) == 0 {
			step.Manual = true
			if step.Note == "" {
				step.Note = "no automated remediation, review control manually"
			}
		}
		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

func hostnameOf(r *scan.Result) string {
	if r.Host == nil || r.Host.Hostname == "" {
		return "unknown"
	}
	return r.Host.Hostname
}

// Render writes the operator-facing plan
func (p *Plan) Render() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("  HARDENING PLAN  -  %s\n", p.Hostname))
	sb.WriteString("═══════════════════════════════════════════════════════════════\n\n")
	sb.WriteString(fmt.Sprintf("  Profile:   %s\n", p.Profile))
	sb.WriteString(fmt.Sprintf("  Generated: %s\n", p.GeneratedAt))
	sb.WriteString(fmt.Sprintf("  Steps:     %d\n\n", len(p.Steps)))

	if len(p.Steps) == 0 {
		sb.WriteString("  Nothing to do. All evaluated controls passed.\n")
		return sb.String()
	}

	for _, s := range p.Steps {
		sb.WriteString(fmt.Sprintf("  %d. [%s] %s - %s\n", s.Rank, strings.ToUpper(s.Severity), s.ControlID, s.Title))
		if s.Evidence != "" {
			sb.WriteString(fmt.Sprintf("     finding: %s\n", s.Evidence))
		}
		if s.Note != "" {
			sb.WriteString(fmt.Sprintf("     %s\n", s.Note))
		}
		for _, cmd := range s.Commands {
			sb.WriteString(fmt.Sprintf("     $ %s\n", cmd))
		}
		if s.Manual {
			sb.WriteString("     (manual step)\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("  Review every command before running. Re-scan afterwards to\n")
	sb.WriteString("  confirm the fixes took effect.\n")
	return sb.String()
}

// Script renders the plan as a POSIX shell script. Manual steps appear
// as comments so the script stays runnable top to bottom.
func (p *Plan) Script() string {
	var sb strings.Builder

	sb.WriteString("#!/bin/sh\n")
	sb.WriteString(fmt.Sprintf("# hardening plan for %s (profile %s)\n", p.Hostname, p.Profile))
	sb.WriteString(fmt.Sprintf("# generated %s from scan %s\n", p.GeneratedAt, p.RunID))
	sb.WriteString("# review before running, commands change system configuration\n")
	sb.WriteString("set -eu\n")

	for _, s := range p.Steps {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("# %d. [%s] %s - %s\n", s.Rank, s.Severity, s.ControlID, s.Title))
		if s.Manual {
			sb.WriteString(fmt.Sprintf("# MANUAL: %s\n", s.Note))
			continue
		}
		for _, cmd := range s.Commands {
			sb.WriteString(cmd + "\n")
		}
	}

	return sb.String()
}

// SaveScript writes the script executable for root only
func (p *Plan) SaveScript(path string) error {
	if err := os.WriteFile(path, []byte(p.Script()), 0700); err != nil {
		return errors.Wrap(errors.ErrFileOperation, "writing script to %s: %v", path, err)
	}
	return nil
}
