// Package baseline persists a signed snapshot of control outcomes so
// later scans can be diffed against a known-good state.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/scan"
	"github.com/hardscan/hardscan/internal/util"
)

// ControlState is the recorded outcome of one control
type ControlState struct {
	Status   check.Status `yaml:"status"`
	Severity string       `yaml:"severity"`
	Evidence string       `yaml:"evidence,omitempty"`
}

// Metadata identifies the scan a baseline was taken from
type Metadata struct {
	Timestamp string `yaml:"timestamp"`
	Hostname  string `yaml:"hostname"`
	Profile   string `yaml:"profile"`
	Version   string `yaml:"version"`
	OS        string `yaml:"os"`
	Kernel    string `yaml:"kernel"`
}

// Baseline is a signed snapshot of per-control outcomes
type Baseline struct {
	Metadata  Metadata                `yaml:"metadata"`
	Signature string                  `yaml:"signature"`
	Controls  map[string]ControlState `yaml:"controls"`
}

// FromResult snapshots a scan result's control outcomes
func FromResult(r *scan.Result) *Baseline {
	b := &Baseline{
		Metadata: Metadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Profile:   r.Profile,
			Version:   r.ProfileVersion,
		},
		Controls: make(map[string]ControlState, len(r.Controls)),
	}

	if r.Host != nil {
		b.Metadata.Hostname = r.Host.Hostname
		b.Metadata.OS = r.Host.Distro + "/" + r.Host.Family
		b.Metadata.Kernel = r.Host.Kernel
	}

	for _, c := range r.Controls {
		b.Controls[c.ID] = ControlState{
			Status:   c.Status,
			Severity: c.Severity,
			Evidence: c.Evidence,
		}
	}

	b.Signature = calculateSignature(b)
	return b
}

// calculateSignature hashes the metadata and every control outcome in
// sorted order, so editing either invalidates the baseline
func calculateSignature(b *Baseline) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		b.Metadata.Timestamp,
		b.Metadata.Hostname,
		b.Metadata.Profile,
		b.Metadata.Version,
		b.Metadata.OS,
		b.Metadata.Kernel,
	))

	ids := make([]string, 0, len(b.Controls))
	for id := range b.Controls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := b.Controls[id]
		sb.WriteString(fmt.Sprintf("\n%s=%s|%s|%s", id, s.Status, s.Severity, s.Evidence))
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Save writes the baseline, re-signing it first
func Save(b *Baseline, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrFileOperation, "creating baseline directory: %v", err)
	}

	b.Signature = calculateSignature(b)

	data, err := yaml.Marshal(b)
	if err != nil {
		return errors.Wrap(errors.ErrParseFailure, "encoding baseline: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(errors.ErrFileOperation, "writing baseline to %s: %v", path, err)
	}
	return nil
}

// Load reads a baseline and rejects it when the signature does not
// match its content
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrNotFound, "no baseline at %s", path)
		}
		return nil, errors.Wrap(errors.ErrFileOperation, "reading baseline: %v", err)
	}

	var b Baseline
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(errors.ErrParseFailure, "decoding baseline: %v", err)
	}

	if err := Verify(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Verify recomputes the signature and compares it to the stored one
func Verify(b *Baseline) error {
	computed := calculateSignature(b)
	if computed != b.Signature {
		return errors.Wrap(errors.ErrSignatureMismatch, "baseline has been modified since it was saved")
	}
	return nil
}

// DefaultPath is where scans store and look up the host baseline
func DefaultPath() string {
	return filepath.Join(util.GetStateDir(), "baseline.yaml")
}

// BackupPath names a timestamped copy kept before overwriting
func BackupPath(ts time.Time) string {
	filename := fmt.Sprintf("baseline-%s.yaml", ts.Format("2006-01-02-150405"))
	return filepath.Join(util.GetStateDir(), "baselines", filename)
}
