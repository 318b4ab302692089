package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/scan"
	"github.com/hardscan/hardscan/internal/system"
)

func snapshotResult() *scan.Result {
	return &scan.Result{
		RunID:          "run-1",
		Profile:        "linux-baseline",
		ProfileVersion: "1.2.0",
		Timestamp:      "2026-08-24T10:00:00Z",
		Host: &system.OSInfo{
			Hostname: "web-01",
			Distro:   "ubuntu",
			Family:   "debian",
			Kernel:   "6.8.0-40-generic",
		},
		Summary: &scan.Summary{Total: 3, Passed: 2, Failed: 1},
		Controls: []scan.ControlResult{
			{ID: "ssh.root-login", Severity: scan.SeverityCritical, Status: check.StatusFail, Evidence: "permitrootlogin is yes"},
			{ID: "ssh.max-auth", Severity: scan.SeverityMedium, Status: check.StatusPass},
			{ID: "sysctl.ip-forward", Severity: scan.SeverityHigh, Status: check.StatusPass},
		},
	}
}

func TestFromResult(t *testing.T) {
	b := FromResult(snapshotResult())

	if b.Metadata.Hostname != "web-01" {
		t.Errorf("hostname = %q", b.Metadata.Hostname)
	}
	if b.Metadata.Profile != "linux-baseline" || b.Metadata.Version != "1.2.0" {
		t.Errorf("profile = %s/%s", b.Metadata.Profile, b.Metadata.Version)
	}
	if b.Metadata.OS != "ubuntu/debian" {
		t.Errorf("os = %q", b.Metadata.OS)
	}
	if len(b.Controls) != 3 {
		t.Fatalf("len(Controls) = %d, want 3", len(b.Controls))
	}
	if b.Controls["ssh.root-login"].Status != check.StatusFail {
		t.Errorf("ssh.root-login status = %s", b.Controls["ssh.root-login"].Status)
	}
	if !strings.HasPrefix(b.Signature, "sha256:") {
		t.Errorf("signature = %q, want sha256 prefix", b.Signature)
	}
	if err := Verify(b); err != nil {
		t.Errorf("Verify() on fresh baseline: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "baseline.yaml")

	b := FromResult(snapshotResult())
	if err := Save(b, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("baseline mode = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Metadata.Hostname != b.Metadata.Hostname {
		t.Errorf("hostname = %q, want %q", loaded.Metadata.Hostname, b.Metadata.Hostname)
	}
	if len(loaded.Controls) != len(b.Controls) {
		t.Errorf("len(Controls) = %d, want %d", len(loaded.Controls), len(b.Controls))
	}
	if loaded.Signature != b.Signature {
		t.Errorf("signature changed across save/load")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestVerifyTamperedMetadata(t *testing.T) {
	b := FromResult(snapshotResult())
	b.Metadata.Hostname = "impostor"

	if err := Verify(b); !errors.Is(err, errors.ErrSignatureMismatch) {
		t.Errorf("Verify() error = %v, want ErrSignatureMismatch", err)
	}
}

func TestLoadRejectsTamperedControls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	if err := Save(FromResult(snapshotResult()), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// flip a recorded outcome directly in the file
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tampered := strings.Replace(string(data), "status: fail", "status: pass", 1)
	if tampered == string(data) {
		t.Fatal("fixture did not contain a failing control")
	}
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); !errors.Is(err, errors.ErrSignatureMismatch) {
		t.Errorf("Load() error = %v, want ErrSignatureMismatch", err)
	}
}

func TestBackupPathFormat(t *testing.T) {
	ts, _ := time.Parse(time.RFC3339, "2026-08-24T10:30:45Z")
	path := BackupPath(ts)
	if !strings.HasSuffix(path, filepath.Join("baselines", "baseline-2026-08-24-103045.yaml")) {
		t.Errorf("BackupPath() = %q", path)
	}
}
