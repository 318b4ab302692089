package harden

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/scan"
	"github.com/hardscan/hardscan/internal/system"
)

func failedResult() *scan.Result {
	return &scan.Result{
		RunID:     "run-1",
		Profile:   "linux-baseline",
		Timestamp: "2026-08-24T10:00:00Z",
		Host:      &system.OSInfo{Hostname: "web-01"},
		Summary:   &scan.Summary{Total: 5, Passed: 1, Failed: 4},
		Controls: []scan.ControlResult{
			{
				ID: "sysctl.rp-filter", Title: "Reverse path filtering", Severity: scan.SeverityMedium,
				Impact: 0.5, Status: check.StatusFail, Evidence: "got 0 (expected 1)",
				Remediation: profile.Remediation{
					Text:     "Enable strict reverse path filtering",
					Commands: []string{"sysctl -w net.ipv4.conf.all.rp_filter=1"},
				},
			},
			{
				ID: "ssh.root-login", Title: "Root SSH login disabled", Severity: scan.SeverityCritical,
				Impact: 0.95, Status: check.StatusFail, Evidence: "permitrootlogin is yes",
				Remediation: profile.Remediation{
					Commands: []string{
						"sed -i 's/^PermitRootLogin.*/PermitRootLogin no/' /etc/ssh/sshd_config",
						"systemctl reload sshd",
					},
				},
			},
			{
				ID: "accounts.root-only-uid0", Title: "Only root has UID 0", Severity: scan.SeverityCritical,
				Impact: 0.9, Status: check.StatusFail, Evidence: "toor has uid 0",
			},
			{
				ID: "login.umask", Title: "Default umask restrictive", Severity: scan.SeverityLow,
				Impact: 0.2, Status: check.StatusFail,
				Remediation: profile.Remediation{Text: "Set UMASK 027 in /etc/login.defs"},
			},
			{
				ID: "ssh.max-auth", Title: "Auth tries capped", Severity: scan.SeverityMedium,
				Impact: 0.5, Status: check.StatusPass,
			},
		},
	}
}

func TestBuildOrdersSteps(t *testing.T) {
	plan, err := Build(failedResult(), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if plan.Hostname != "web-01" || plan.Profile != "linux-baseline" {
		t.Errorf("plan header = %s/%s", plan.Hostname, plan.Profile)
	}

	// severity first, impact breaks ties, passing controls excluded
	wantOrder := []string{"ssh.root-login", "accounts.root-only-uid0", "sysctl.rp-filter", "login.umask"}
	if len(plan.Steps) != len(wantOrder) {
		t.Fatalf("len(Steps) = %d, want %d", len(plan.Steps), len(wantOrder))
	}
	for i, id := range wantOrder {
		if plan.Steps[i].ControlID != id {
			t.Errorf("Steps[%d] = %s, want %s", i, plan.Steps[i].ControlID, id)
		}
		if plan.Steps[i].Rank != i+1 {
			t.Errorf("Steps[%d].Rank = %d, want %d", i, plan.Steps[i].Rank, i+1)
		}
	}
}

func TestBuildMinSeverity(t *testing.T) {
	plan, err := Build(failedResult(), "high")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2 critical steps", len(plan.Steps))
	}
	for _, s := range plan.Steps {
		if s.Severity != scan.SeverityCritical {
			t.Errorf("step %s severity = %s", s.ControlID, s.Severity)
		}
	}

	if _, err := Build(failedResult(), "catastrophic"); err == nil {
		t.Fatal("Build() expected error for unknown severity")
	}
}

func TestOnly(t *testing.T) {
	plan, err := Build(failedResult(), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	same, err := plan.Only(nil)
	if err != nil {
		t.Fatalf("Only(nil) error = %v", err)
	}
	if len(same.Steps) != len(plan.Steps) {
		t.Errorf("Only(nil) changed step count: %d != %d", len(same.Steps), len(plan.Steps))
	}

	crit, err := plan.Only([]string{"critical"})
	if err != nil {
		t.Fatalf("Only(critical) error = %v", err)
	}
	if len(crit.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(crit.Steps))
	}
	for i, s := range crit.Steps {
		if s.Severity != scan.SeverityCritical {
			t.Errorf("step %s severity = %s", s.ControlID, s.Severity)
		}
		if s.Rank != i+1 {
			t.Errorf("step %s rank = %d, want %d", s.ControlID, s.Rank, i+1)
		}
	}

	// matching is case and whitespace insensitive
	med, err := plan.Only([]string{" Medium "})
	if err != nil {
		t.Fatalf("Only(Medium) error = %v", err)
	}
	if len(med.Steps) != 1 || med.Steps[0].ControlID != "sysctl.rp-filter" {
		t.Errorf("Only(Medium) steps = %+v", med.Steps)
	}
	if med.Steps[0].Rank != 1 {
		t.Errorf("surviving step rank = %d, want 1", med.Steps[0].Rank)
	}

	if _, err := plan.Only([]string{"catastrophic"}); err == nil {
		t.Fatal("Only() expected error for unknown severity")
	}
}

func TestBuildFromSummaryOnly(t *testing.T) {
	r := &scan.Result{
		RunID:     "run-2",
		Profile:   "linux-baseline",
		Timestamp: "2026-08-24T10:00:00Z",
		Summary:   &scan.Summary{Total: 3, Passed: 1, Failed: 2},
		Failed: []scan.FailedControl{
			{ID: "login.umask", Title: "Default umask restrictive", Severity: scan.SeverityLow},
			{
				ID: "ssh.root-login", Title: "Root SSH login disabled", Severity: scan.SeverityCritical,
				Evidence: "permitrootlogin is yes", Remediation: "Set PermitRootLogin no",
			},
		},
	}

	plan, err := Build(r, "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].ControlID != "ssh.root-login" {
		t.Errorf("Steps[0] = %s, want ssh.root-login", plan.Steps[0].ControlID)
	}
	for _, s := range plan.Steps {
		if !s.Manual {
			t.Errorf("step %s not manual, summary results carry no commands", s.ControlID)
		}
	}
	if plan.Steps[0].Note != "Set PermitRootLogin no" {
		t.Errorf("Steps[0].Note = %q", plan.Steps[0].Note)
	}

	filtered, err := Build(r, "high")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(filtered.Steps) != 1 {
		t.Errorf("len(Steps) = %d after severity filter, want 1", len(filtered.Steps))
	}
}

func TestBuildManualSteps(t *testing.T) {
	plan, err := Build(failedResult(), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	byID := map[string]Step{}
	for _, s := range plan.Steps {
		byID[s.ControlID] = s
	}

	uid0 := byID["accounts.root-only-uid0"]
	if !uid0.Manual {
		t.Error("step without commands not marked manual")
	}
	if uid0.Note != "no automated remediation, review control manually" {
		t.Errorf("note = %q", uid0.Note)
	}

	umask := byID["login.umask"]
	if !umask.Manual || umask.Note != "Set UMASK 027 in /etc/login.defs" {
		t.Errorf("umask step = %+v", umask)
	}

	if byID["ssh.root-login"].Manual {
		t.Error("step with commands marked manual")
	}
}

func TestRender(t *testing.T) {
	plan, err := Build(failedResult(), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	out := plan.Render()

	for _, want := range []string{
		"HARDENING PLAN  -  web-01",
		"1. [CRITICAL] ssh.root-login",
		"finding: permitrootlogin is yes",
		"$ systemctl reload sshd",
		"(manual step)",
		"Re-scan afterwards",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q", want)
		}
	}
}

func TestRenderEmptyPlan(t *testing.T) {
	r := failedResult()
	r.Controls = nil
	plan, err := Build(r, "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(plan.Render(), "Nothing to do") {
		t.Error("empty plan missing all-clear message")
	}
}

func TestScript(t *testing.T) {
	plan, err := Build(failedResult(), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	script := plan.Script()

	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Error("script missing shebang")
	}
	if !strings.Contains(script, "set -eu\n") {
		t.Error("script missing set -eu")
	}
	if !strings.Contains(script, "systemctl reload sshd\n") {
		t.Error("script missing remediation command")
	}
	if !strings.Contains(script, "# MANUAL: no automated remediation") {
		t.Error("manual step not commented out")
	}
	// manual steps must never contribute executable lines
	for _, line := range strings.Split(script, "\n") {
		if strings.Contains(line, "review control manually") && !strings.HasPrefix(line, "#") {
			t.Errorf("manual note emitted as executable line: %q", line)
		}
	}
}

func TestSaveScript(t *testing.T) {
	plan, err := Build(failedResult(), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "harden.sh")
	if err := plan.SaveScript(path); err != nil {
		t.Fatalf("SaveScript() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("script mode = %o, want 0700", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "#!/bin/sh") {
		t.Error("saved script missing shebang")
	}
}
