package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hardscan/hardscan/internal/check"
	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/system"
	"github.com/hardscan/hardscan/internal/util"
)

// Options select which controls of a resolved set a run covers
type Options struct {
	// Level 1 runs baseline controls only, level 2 adds the deeper set.
	// Zero falls back to the configured level.
	Level int
	// Tags, when set, restrict the run to controls carrying at least one
	Tags []string
}

// Engine evaluates profile sets against the local host
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a scan engine
func New(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg, logger: util.GetLogger()}
}

// compiled pairs a selected control with its executable checks
type compiled struct {
	control profile.ResolvedControl
	funcs   []check.Func
}

// Run executes all selected controls of the set and aggregates the
// outcome. Check params are compiled before any probe runs, so an invalid
// profile aborts the scan instead of producing a half-evaluated result.
func (e *Engine) Run(ctx context.Context, set *profile.Set, opts Options) (*Result, error) {
	start := time.Now()

	level := opts.Level
	if level == 0 {
		level = e.cfg.Level
	}

	osInfo := system.GetOSInfo(ctx)
	host := check.NewHost(osInfo)

	selected := selectControls(set.Controls, level, opts.Tags)

	jobs := make([]compiled, 0, len(selected))
	for _, rc := range selected {
		funcs, err := check.CompileControl(host, rc.Checks)
		if err != nil {
			return nil, errors.Wrap(err, "control %s", rc.ID)
		}
		jobs = append(jobs, compiled{control: rc, funcs: funcs})
	}

	result := NewResult(set.Name, set.Version, level)
	result.Host = osInfo
	if e.cfg.MaskData {
		masked := *osInfo
		masked.Hostname = util.MaskHostname(osInfo.Hostname)
		result.Host = &masked
	}

	e.logger.Info("Scan started",
		zap.String("run_id", result.RunID),
		zap.String("profile", set.Name),
		zap.Int("level", level),
		zap.Int("controls", len(jobs)))

	outcomes := make([]ControlResult, len(jobs))
	now := time.Now()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.cfg.GetMaxConcurrency())

	for i, job := range jobs {
		// Exceptions and host support resolve without probing
		if reason, excepted := e.exceptionFor(job.control.ID, now); excepted {
			outcomes[i] = e.staticOutcome(job.control, StatusExcepted, "not evaluated, active exception", reason)
			continue
		}
		if family, distro := osInfo.Family, osInfo.Distro; !job.control.Origin.SupportsHost(family, distro) {
			evidence := fmt.Sprintf("profile %s does not support %s/%s", job.control.Origin.Name, family, distro)
			outcomes[i] = e.staticOutcome(job.control, check.StatusNA, evidence, "")
			continue
		}

		wg.Add(1)
		go func(idx int, job compiled) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			controlCtx, cancel := context.WithTimeout(ctx, e.cfg.GetControlTimeout())
			defer cancel()

			outcomes[idx] = e.evaluate(controlCtx, job)
		}(i, job)
	}

	wg.Wait()

	e.markExpiredExceptions(outcomes, now)

	for _, outcome := range outcomes {
		e.aggregate(result, outcome)
	}
	finalize(result)
	result.DurationMS = time.Since(start).Milliseconds()

	e.logger.Info("Scan completed",
		zap.String("run_id", result.RunID),
		zap.Float64("score", result.Summary.Score),
		zap.String("grade", result.Summary.Grade),
		zap.Int("failed", result.Summary.Failed),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// exceptionFor returns the active exception reason for a control, if any
func (e *Engine) exceptionFor(id string, now time.Time) (string, bool) {
	exc := e.cfg.Exceptions
	if exc == nil {
		return "", false
	}
	excepted, entry := exc.IsExcepted(id, now)
	if !excepted {
		return "", false
	}
	if entry != nil {
		return entry.Reason, true
	}
	return "", true
}

// markExpiredExceptions annotates failing controls whose waiver has lapsed.
// The failure surfaces with the lapse noted instead of silently unwaiving.
func (e *Engine) markExpiredExceptions(outcomes []ControlResult, now time.Time) {
	exc := e.cfg.Exceptions
	if exc == nil {
		return
	}
	for i := range outcomes {
		if outcomes[i].Status != check.StatusFail {
			continue
		}
		entry := exc.Find(outcomes[i].ID)
		if entry == nil || !entry.ExpiredAt(now) {
			continue
		}
		note := fmt.Sprintf("exception expired %s", entry.Expires)
		if outcomes[i].Evidence == "" {
			outcomes[i].Evidence = note
		} else {
			outcomes[i].Evidence += "; " + note
		}
	}
}

// staticOutcome records a control that was classified without running
func (e *Engine) staticOutcome(rc profile.ResolvedControl, status check.Status, evidence, reason string) ControlResult {
	return ControlResult{
		ID:              rc.ID,
		Title:           rc.Title,
		Section:         rc.Section(),
		Level:           rc.Level,
		Impact:          rc.Impact,
		Severity:        SeverityFromImpact(rc.Impact),
		Status:          status,
		Evidence:        evidence,
		Remediation:     rc.Remediation,
		Tags:            rc.Tags,
		ExceptionReason: reason,
	}
}

// evaluate runs every check of one control. All checks must pass; a
// failing check decides the control, then not-applicable, then skip.
func (e *Engine) evaluate(ctx context.Context, job compiled) (outcome ControlResult) {
	rc := job.control
	started := time.Now()

	outcome = e.staticOutcome(rc, check.StatusPass, "", "")

	defer func() {
		outcome.DurationMS = time.Since(started).Milliseconds()
		if r := recover(); r != nil {
			e.logger.Error("Control panicked",
				zap.String("control", rc.ID),
				zap.Any("panic", r))
			outcome.Status = check.StatusFail
			outcome.Evidence = fmt.Sprintf("check panicked: %v", r)
		}
	}()

	var passed, failed, skipped, na []string
	for _, fn := range job.funcs {
		status, evidence := fn(ctx)
		switch status {
		case check.StatusFail:
			failed = append(failed, evidence)
		case check.StatusSkip:
			skipped = append(skipped, evidence)
		case check.StatusNA:
			na = append(na, evidence)
		default:
			passed = append(passed, evidence)
		}
	}

	switch {
	case len(failed) > 0:
		outcome.Status = check.StatusFail
		outcome.Evidence = strings.Join(failed, "; ")
	case len(na) > 0:
		outcome.Status = check.StatusNA
		outcome.Evidence = strings.Join(na, "; ")
	case len(skipped) > 0:
		outcome.Status = check.StatusSkip
		outcome.Evidence = strings.Join(skipped, "; ")
	default:
		outcome.Status = check.StatusPass
		outcome.Evidence = strings.Join(passed, "; ")
	}

	e.logger.Debug("Control evaluated",
		zap.String("control", rc.ID),
		zap.String("status", string(outcome.Status)),
		zap.Duration("duration", time.Since(started)))

	return outcome
}

// aggregate folds one outcome into the result counters
func (e *Engine) aggregate(result *Result, outcome ControlResult) {
	result.Controls = append(result.Controls, outcome)
	result.Summary.Total++

	switch outcome.Status {
	case check.StatusPass:
		result.Summary.Passed++
	case check.StatusFail:
		result.Summary.Failed++
		result.Failed = append(result.Failed, FailedControl{
			ID:          outcome.ID,
			Title:       outcome.Title,
			Severity:    outcome.Severity,
			Evidence:    outcome.Evidence,
			Remediation: outcome.Remediation.Text,
		})
	case check.StatusSkip:
		result.Summary.Skipped++
	case check.StatusNA:
		result.Summary.NotApplicable++
	case StatusExcepted:
		result.Summary.Excepted++
	}

	// Section stats track evaluated controls only
	if outcome.Status == check.StatusPass || outcome.Status == check.StatusFail || outcome.Status == check.StatusSkip {
		section := result.Sections[outcome.Section]
		section.Total++
		if outcome.Status == check.StatusPass {
			section.Passed++
		}
		result.Sections[outcome.Section] = section
	}
}

// finalize computes score, grade and deterministic ordering
func finalize(result *Result) {
	scored := result.Summary.Total - result.Summary.NotApplicable - result.Summary.Excepted
	if scored > 0 {
		result.Summary.Score = roundPct(float64(result.Summary.Passed) / float64(scored) * 100)
	} else {
		// nothing applicable to this host counts as compliant
		result.Summary.Score = 100
	}
	result.Summary.Grade = Grade(result.Summary.Score)

	for name, section := range result.Sections {
		if section.Total > 0 {
			section.Pct = roundPct(float64(section.Passed) / float64(section.Total) * 100)
		}
		result.Sections[name] = section
	}

	sort.Slice(result.Controls, func(i, j int) bool { return result.Controls[i].ID < result.Controls[j].ID })
	sort.Slice(result.Failed, func(i, j int) bool {
		ri, rj := SeverityRank(result.Failed[i].Severity), SeverityRank(result.Failed[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return result.Failed[i].ID < result.Failed[j].ID
	})
}

// selectControls applies level and tag filters. Level 2 includes the
// level 1 baseline.
func selectControls(controls []profile.ResolvedControl, level int, tags []string) []profile.ResolvedControl {
	var selected []profile.ResolvedControl
	for _, rc := range controls {
		if rc.Level > level {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(rc.Control, tags) {
			continue
		}
		selected = append(selected, rc)
	}
	return selected
}

func hasAnyTag(c profile.Control, tags []string) bool {
	for _, tag := range tags {
		if c.HasTag(tag) {
			return true
		}
	}
	return false
}
