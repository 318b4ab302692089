package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/scan"
	"github.com/hardscan/hardscan/internal/system"
	"github.com/hardscan/hardscan/internal/util"
)

// Status is the daemon heartbeat, rewritten after every run
type Status struct {
	PID          int           `json:"pid"`
	StartedAt    string        `json:"started_at"`
	LastRun      string        `json:"last_run"`
	NextRun      string        `json:"next_run"`
	Checks       int           `json:"checks"`
	LastScore    float64       `json:"last_score"`
	LastGrade    string        `json:"last_grade,omitempty"`
	LastRunID    string        `json:"last_run_id,omitempty"`
	DriftCount   int           `json:"drift_count"`
	LastError    string        `json:"last_error,omitempty"`
	ExecStrategy string        `json:"exec_strategy,omitempty"`
	Probes       ProbeCounters `json:"probes"`
}

// ProbeCounters mirrors the host executor's lifetime counters
type ProbeCounters struct {
	Total    int64 `json:"total"`
	Failed   int64 `json:"failed"`
	TimedOut int64 `json:"timed_out"`
}

// StatusPath returns where the daemon writes its heartbeat
func StatusPath() string {
	return filepath.Join(util.GetStateDir(), "daemon-status.json")
}

// WriteStatus persists a status snapshot
func WriteStatus(path string, s *Status) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating status directory")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding daemon status")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "writing daemon status")
	}
	return nil
}

// ReadStatus loads the last written status snapshot
func ReadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrNotFound, "no daemon status at %s", path)
		}
		return nil, errors.Wrap(err, "reading daemon status")
	}

	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrParseFailure, "daemon status: %v", err)
	}
	return &s, nil
}

func (m *Monitor) writeStatus(result *scan.Result, runErr error) {
	now := time.Now().UTC()
	executor := system.GetHostExecutor()
	probes := executor.Stats()
	s := &Status{
		PID:          os.Getpid(),
		StartedAt:    m.startedAt.Format(time.RFC3339),
		LastRun:      now.Format(time.RFC3339),
		NextRun:      now.Add(m.interval).Format(time.RFC3339),
		Checks:       m.checkCount,
		DriftCount:   m.lastDrift,
		ExecStrategy: executor.GetStrategy().String(),
		Probes: ProbeCounters{
			Total:    probes.Total,
			Failed:   probes.Failed,
			TimedOut: probes.TimedOut,
		},
	}
	if result != nil && result.Summary != nil {
		s.LastScore = result.Summary.Score
		s.LastGrade = result.Summary.Grade
		s.LastRunID = result.RunID
	}
	if runErr != nil {
		s.LastError = runErr.Error()
	}

	if err := WriteStatus(m.statusPath, s); err != nil {
		m.logger.Warn("status write failed", zap.Error(err))
	}
}
