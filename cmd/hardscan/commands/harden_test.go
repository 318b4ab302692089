package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.json")

	data := `{
		"run_id": "11f0c0de-0000-4000-8000-000000000001",
		"profile": "linux-baseline",
		"summary": {"total": 3, "pass": 2, "fail": 1, "score": 66.7, "grade": "D"}
	}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	result, err := loadReportFile(path)
	if err != nil {
		t.Fatalf("loadReportFile() error = %v", err)
	}
	if result.RunID != "11f0c0de-0000-4000-8000-000000000001" {
		t.Errorf("RunID = %q, want fixture id", result.RunID)
	}
	if result.Summary == nil || result.Summary.Failed != 1 {
		t.Errorf("Summary not carried through: %+v", result.Summary)
	}
}

func TestLoadReportFileErrors(t *testing.T) {
	if _, err := loadReportFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("not json at all"), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := loadReportFile(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
