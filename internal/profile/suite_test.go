package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hardscan/hardscan/internal/errors"
)

const sampleSuite = `name: nightly-hardening
description: Baseline plus SSH deep checks for the web fleet
level: 2
tags: [network]
format: json
min_score: 85
attributes:
  ssh_port: 22
profiles:
  - path: profiles/linux-baseline.yaml
  - path: profiles/ssh-hardening.yaml
    attributes:
      ssh_port: 2222
`

func TestLoadSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(sampleSuite), 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}

	if s.Name != "nightly-hardening" {
		t.Errorf("Name = %q, want nightly-hardening", s.Name)
	}
	if s.Level != 2 {
		t.Errorf("Level = %d, want 2", s.Level)
	}
	if s.Format != "json" {
		t.Errorf("Format = %q, want json", s.Format)
	}
	if s.MinScore != 85 {
		t.Errorf("MinScore = %v, want 85", s.MinScore)
	}
	if len(s.Profiles) != 2 {
		t.Fatalf("len(Profiles) = %d, want 2", len(s.Profiles))
	}
}

func TestLoadSuiteDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	minimal := "name: minimal\nprofiles:\n  - path: p.yaml\n"
	if err := os.WriteFile(path, []byte(minimal), 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}
	if s.Level != 1 {
		t.Errorf("Level = %d, want default 1", s.Level)
	}
	if s.Format != "text" {
		t.Errorf("Format = %q, want default text", s.Format)
	}
	if s.MinScore != 0 {
		t.Errorf("MinScore = %v, want 0 (no gate)", s.MinScore)
	}
}

func TestLoadSuitesMultiDoc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suites.yaml")
	content := sampleSuite + "---\nname: workstations\nprofiles:\n  - path: p.yaml\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}

	suites, err := LoadSuites(path)
	if err != nil {
		t.Fatalf("LoadSuites() error = %v", err)
	}
	if len(suites) != 2 {
		t.Fatalf("len(suites) = %d, want 2", len(suites))
	}
	if suites[0].Name != "nightly-hardening" || suites[1].Name != "workstations" {
		t.Errorf("suite names = %q, %q", suites[0].Name, suites[1].Name)
	}
	// defaults apply per document
	if suites[1].Level != 1 || suites[1].Format != "text" {
		t.Errorf("second suite defaults = level %d format %q", suites[1].Level, suites[1].Format)
	}

	// a bad document anywhere rejects the whole file
	bad := sampleSuite + "---\nprofiles:\n  - path: p.yaml\n"
	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(badPath, []byte(bad), 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}
	if _, err := LoadSuites(badPath); !errors.Is(err, errors.ErrInvalidProfile) {
		t.Errorf("LoadSuites() error = %v, want ErrInvalidProfile", err)
	}
}

func TestLoadSuitesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}
	if _, err := LoadSuites(path); !errors.Is(err, errors.ErrInvalidProfile) {
		t.Errorf("LoadSuites() error = %v, want ErrInvalidProfile", err)
	}
}

func TestLoadSuiteValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "profiles:\n  - path: p.yaml\n"},
		{"no profiles", "name: s\n"},
		{"profile without path", "name: s\nprofiles:\n  - attributes: {a: 1}\n"},
		{"min_score above 100", "name: s\nmin_score: 150\nprofiles:\n  - path: p.yaml\n"},
		{"unknown format", "name: s\nformat: pdf\nprofiles:\n  - path: p.yaml\n"},
		{"level out of range", "name: s\nlevel: 3\nprofiles:\n  - path: p.yaml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "suite.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("writing suite fixture: %v", err)
			}
			if _, err := LoadSuite(path); !errors.Is(err, errors.ErrInvalidProfile) {
				t.Errorf("LoadSuite() error = %v, want ErrInvalidProfile", err)
			}
		})
	}
}

func TestSuiteProfilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	content := "name: s\nprofiles:\n  - path: rel/p.yaml\n  - path: /abs/p.yaml\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}

	if got, want := s.ProfilePath(0), filepath.Join(dir, "rel", "p.yaml"); got != want {
		t.Errorf("ProfilePath(0) = %q, want %q", got, want)
	}
	if got := s.ProfilePath(1); got != "/abs/p.yaml" {
		t.Errorf("ProfilePath(1) = %q, want /abs/p.yaml", got)
	}
}

func TestSuiteMergedAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(sampleSuite), 0644); err != nil {
		t.Fatalf("writing suite fixture: %v", err)
	}

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}

	// suite-wide value flows to profiles without overrides
	if got := s.MergedAttributes(0)["ssh_port"]; got != 22 {
		t.Errorf("profile 0 ssh_port = %v, want suite-wide 22", got)
	}
	// per-profile override wins
	if got := s.MergedAttributes(1)["ssh_port"]; got != 2222 {
		t.Errorf("profile 1 ssh_port = %v, want override 2222", got)
	}
}
