package report

import (
	"fmt"
	"strings"

	"github.com/hardscan/hardscan/internal/baseline"
)

// FormatDrift renders a baseline diff for terminal reading. Waived says
// how many drifts exceptions removed before rendering.
func FormatDrift(d *baseline.DiffResult, waived int) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(headerRule + "\n")
	sb.WriteString(fmt.Sprintf("  BASELINE DRIFT  -  %d change(s)\n", d.DriftCount))
	sb.WriteString(headerRule + "\n\n")

	sb.WriteString(fmt.Sprintf("  Baseline: %s\n", d.BaselineTimestamp))
	sb.WriteString(fmt.Sprintf("  Current:  %s\n", d.CurrentTimestamp))
	if waived > 0 {
		sb.WriteString(fmt.Sprintf("  Waived:   %d drift(s) suppressed by exceptions\n", waived))
	}
	sb.WriteString("\n")

	if d.DriftCount == 0 {
		sb.WriteString("  No drift. The system matches its baseline.\n\n")
		sb.WriteString(headerRule + "\n")
		return sb.String()
	}

	sb.WriteString(sectionRule + "\n")
	sb.WriteString("  CHANGES\n")
	sb.WriteString(sectionRule + "\n")
	for _, drift := range d.Drifts {
		sb.WriteString(fmt.Sprintf("  %s [%s] %s (%s)\n",
			driftIcon(drift.Kind), drift.Code, drift.ControlID, drift.Severity))
		if drift.Before != "" || drift.After != "" {
			sb.WriteString(fmt.Sprintf("      %s -> %s\n", valueOrNone(drift.Before), valueOrNone(drift.After)))
		}
		sb.WriteString(fmt.Sprintf("      %s\n", drift.Message))
	}
	sb.WriteString("\n")

	if d.Regressions > 0 {
		sb.WriteString(fmt.Sprintf("  %d regression(s) need attention. Run 'hardscan harden' for a fix plan.\n", d.Regressions))
	} else {
		sb.WriteString("  No regressions. Review the changes and update the baseline if they\n")
		sb.WriteString("  were intentional, or waive single codes via 'hardscan exceptions add'.\n")
	}
	sb.WriteString(headerRule + "\n")
	return sb.String()
}

func driftIcon(kind baseline.DriftKind) string {
	switch kind {
	case baseline.DriftRegressed:
		return "🔴"
	case baseline.DriftRecovered:
		return "🟢"
	case baseline.DriftAppeared:
		return "➕"
	case baseline.DriftDisappeared:
		return "➖"
	default:
		return "🟡"
	}
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
