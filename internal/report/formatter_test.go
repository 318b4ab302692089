package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/scan"
	"github.com/hardscan/hardscan/internal/system"
)

func sampleResult() *scan.Result {
	return &scan.Result{
		RunID:          "11111111-2222-3333-4444-555555555555",
		Profile:        "linux-baseline",
		ProfileVersion: "1.2.0",
		Level:          1,
		Timestamp:      "2026-08-24T10:00:00Z",
		Host: &system.OSInfo{
			System:   "linux",
			Distro:   "ubuntu",
			Family:   "debian",
			Kernel:   "6.8.0-40-generic",
			Hostname: "web-01",
		},
		Summary: &scan.Summary{
			Total:    4,
			Passed:   2,
			Failed:   1,
			Excepted: 1,
			Score:    66.7,
			Grade:    "D",
		},
		Sections: map[string]scan.SectionSummary{
			"ssh":    {Passed: 1, Total: 2, Pct: 50},
			"sysctl": {Passed: 1, Total: 1, Pct: 100},
		},
		Failed: []scan.FailedControl{
			{
				ID:          "ssh.root-login",
				Title:       "Root SSH login disabled",
				Severity:    scan.SeverityCritical,
				Evidence:    "permitrootlogin is yes (expected no)",
				Remediation: "Set PermitRootLogin no in sshd_config",
			},
		},
		Controls: []scan.ControlResult{
			{ID: "ssh.max-auth", Title: "Auth tries capped", Section: "ssh", Status: check.StatusPass},
			{ID: "ssh.root-login", Title: "Root SSH login disabled", Section: "ssh", Status: check.StatusFail},
			{ID: "sysctl.ip-forward", Title: "IP forwarding off", Section: "sysctl", Status: check.StatusPass},
			{
				ID: "legacy.telnet", Title: "Telnet removed", Section: "legacy",
				Status: scan.StatusExcepted, ExceptionReason: "migration scheduled for Q4",
			},
		},
		DurationMS: 1234,
	}
}

func TestNewFormatterUnknownFormat(t *testing.T) {
	if _, err := NewFormatter("xml", false); err == nil {
		t.Fatal("NewFormatter() expected error for unknown format")
	}
	for _, f := range Formats() {
		if _, err := NewFormatter(f, false); err != nil {
			t.Errorf("NewFormatter(%q) error = %v", f, err)
		}
	}
}

func TestRenderText(t *testing.T) {
	f, _ := NewFormatter(FormatText, false)
	out, err := f.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"COMPLIANCE REPORT  -  web-01",
		"66.7/100 (Grade: D)",
		"CRITICAL - Immediate hardening required",
		"linux-baseline 1.2.0 (level 1)",
		"4 total, 2 passed, 1 failed",
		"SECTION BREAKDOWN",
		"1/2 (50%)",
		"FAILED CONTROLS",
		"[CRITICAL] ssh.root-login",
		"permitrootlogin is yes (expected no)",
		"fix: Set PermitRootLogin no in sshd_config",
		"EXCEPTED CONTROLS",
		"migration scheduled for Q4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}
	if strings.Contains(out, "ALL CONTROLS") {
		t.Error("non-verbose output lists all controls")
	}
}

func TestRenderTextVerbose(t *testing.T) {
	f, _ := NewFormatter(FormatText, true)
	out, err := f.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "ALL CONTROLS") {
		t.Error("verbose output missing control listing")
	}
	if !strings.Contains(out, "[pass]") {
		t.Error("verbose output missing pass statuses")
	}
}

func TestRenderJSON(t *testing.T) {
	f, _ := NewFormatter(FormatJSON, false)
	out, err := f.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("run_id = %v", decoded["run_id"])
	}
	summary := decoded["summary"].(map[string]interface{})
	if summary["score"] != 66.7 {
		t.Errorf("score = %v, want 66.7", summary["score"])
	}
	if _, present := decoded["controls"]; present {
		t.Error("non-verbose JSON includes per-control detail")
	}

	verbose, _ := NewFormatter(FormatJSON, true)
	out, err = verbose.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("verbose output is not valid JSON: %v", err)
	}
	if _, present := decoded["controls"]; !present {
		t.Error("verbose JSON missing per-control detail")
	}
}

func TestRenderYAML(t *testing.T) {
	f, _ := NewFormatter(FormatYAML, false)
	out, err := f.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded["profile"] != "linux-baseline" {
		t.Errorf("profile = %v", decoded["profile"])
	}
}

func TestRenderSummary(t *testing.T) {
	f, _ := NewFormatter(FormatSummary, false)
	out, err := f.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "\U0001F534 web-01 | linux-baseline | Score: 66.7/100 (D) | 1 failed | CRITICAL - Immediate hardening required"
	if out != want {
		t.Errorf("summary = %q, want %q", out, want)
	}
}

func TestRenderCompact(t *testing.T) {
	f, _ := NewFormatter(FormatCompact, false)
	out, err := f.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "\n") {
		t.Error("compact output spans multiple lines")
	}

	var decoded compactReport
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q", decoded.SchemaVersion)
	}
	if decoded.Status.Level != "red" || decoded.Status.Grade != "D" {
		t.Errorf("status = %+v", decoded.Status)
	}
	if decoded.Checks.Total != 4 || decoded.Checks.Excepted != 1 {
		t.Errorf("checks = %+v", decoded.Checks)
	}
	if len(decoded.Issues) != 1 || decoded.Issues[0].ID != "ssh.root-login" {
		t.Fatalf("issues = %+v", decoded.Issues)
	}
	if decoded.Issues[0].Fix != "Set PermitRootLogin no in sshd_config" {
		t.Errorf("fix = %q", decoded.Issues[0].Fix)
	}
}

func TestSave(t *testing.T) {
	f, _ := NewFormatter(FormatJSON, false)
	path := filepath.Join(t.TempDir(), "report.json")
	if err := f.Save(sampleResult(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved report: %v", err)
	}
	if !strings.Contains(string(data), "linux-baseline") {
		t.Error("saved report missing profile name")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("report mode = %o, want 0600", info.Mode().Perm())
	}
}

func TestFormatScore(t *testing.T) {
	cases := map[float64]string{
		100:  "100",
		87.5: "87.5",
		66.7: "66.7",
		0:    "0",
		50:   "50",
	}
	for score, want := range cases {
		if got := formatScore(score); got != want {
			t.Errorf("formatScore(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestShortenMessage(t *testing.T) {
	long := strings.Repeat("a", 100)
	if got := shortenMessage(long); len(got) != 80 || !strings.HasSuffix(got, "...") {
		t.Errorf("shortenMessage long = %q (len %d)", got, len(got))
	}
	if got := shortenMessage("short"); got != "short" {
		t.Errorf("shortenMessage short = %q", got)
	}
}
