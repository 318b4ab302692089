// Package monitor runs the scan loop as a long-lived daemon: rescan on
// an interval, diff against the baseline, refresh metrics and push
// notifications until stopped.
package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hardscan/hardscan/internal/baseline"
	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/metrics"
	"github.com/hardscan/hardscan/internal/notify"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/report"
	"github.com/hardscan/hardscan/internal/scan"
	"github.com/hardscan/hardscan/internal/util"
)

const (
	reportPrefix   = "report_"
	maxKeptReports = 50
)

// Monitor is the periodic compliance daemon
type Monitor struct {
	cfg          *config.Config
	logDir       string
	interval     time.Duration
	baselinePath string
	statusPath   string
	logger       *zap.Logger
	registry     *metrics.Registry
	notifier     *notify.Notifier

	set        *profile.Set
	stopChan   chan struct{}
	stopOnce   sync.Once
	reloadFlag atomic.Bool
	checkCount int
	lastDrift  int
	startedAt  time.Time
}

// New creates a monitor from the loaded configuration
func New(cfg *config.Config) *Monitor {
	logDir := cfg.Daemon.LogDir
	if logDir == "" {
		logDir = util.GetLogDir()
	}
	_ = os.MkdirAll(logDir, 0700)

	return &Monitor{
		cfg:          cfg,
		logDir:       logDir,
		interval:     cfg.GetDaemonInterval(),
		baselinePath: baseline.DefaultPath(),
		statusPath:   StatusPath(),
		logger:       util.GetLogger(),
		registry:     metrics.GetRegistry(),
		notifier:     notify.NewNotifier(&cfg.Notifications),
		stopChan:     make(chan struct{}),
		startedAt:    time.Now().UTC(),
	}
}

// Run scans on the configured interval until Stop or a termination
// signal. The first scan starts immediately.
func (m *Monitor) Run() error {
	m.logger.Info("daemon starting",
		zap.Duration("interval", m.interval),
		zap.String("log_dir", m.logDir),
		zap.String("baseline", m.baselinePath))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			m.Stop()
		case <-m.stopChan:
		}
	}()

	if m.cfg.Daemon.WatchReload {
		if watcher, err := m.watch(); err != nil {
			m.logger.Warn("live reload unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	if m.cfg.Metrics.Enabled && m.cfg.Metrics.ListenAddr != "" {
		srv := metrics.StartServer(m.cfg.Metrics.ListenAddr, m.registry)
		m.logger.Info("metrics endpoint up", zap.String("addr", m.cfg.Metrics.ListenAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	for {
		result, err := m.RunOnce(context.Background())
		if err != nil {
			m.logger.Error("run failed", zap.Int("check", m.checkCount), zap.Error(err))
		} else {
			m.logger.Info("run complete",
				zap.Int("check", m.checkCount),
				zap.Float64("score", result.Summary.Score),
				zap.String("grade", result.Summary.Grade),
				zap.Int("failed", result.Summary.Failed))
		}

		if m.checkCount%10 == 0 {
			if removed := CleanupReports(m.logDir, maxKeptReports); removed > 0 {
				m.logger.Info("old reports pruned", zap.Int("removed", removed))
			}
		}

		select {
		case <-time.After(m.interval):
		case <-m.stopChan:
			m.logger.Info("daemon stopped", zap.Int("checks", m.checkCount))
			return nil
		}
	}
}

// Stop ends the loop after the run in progress, if any, completes
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// RunOnce loads profiles, scans, diffs against the baseline and feeds
// every configured sink. The daemon status file is refreshed on every
// call, failed runs included.
func (m *Monitor) RunOnce(ctx context.Context) (result *scan.Result, err error) {
	m.checkCount++
	defer func() { m.writeStatus(result, err) }()

	if m.cfg.Daemon.WatchReload && m.reloadFlag.Swap(false) {
		m.reload()
	}

	// Without a watcher, pick up profile edits by reloading every run
	if m.set == nil || !m.cfg.Daemon.WatchReload {
		set, loadErr := m.loadSet()
		if loadErr != nil {
			return nil, loadErr
		}
		m.set = set
	}

	engine := scan.New(m.cfg)
	result, err = engine.Run(ctx, m.set, scan.Options{})
	if err != nil {
		return nil, err
	}

	m.registry.RecordScan(result)
	m.writeReport(result)
	m.checkDrift(ctx, result)
	m.notifyScan(ctx, result)

	if m.cfg.Metrics.Enabled && m.cfg.Metrics.TextfilePath != "" {
		if terr := m.registry.WriteTextfile(m.cfg.Metrics.TextfilePath); terr != nil {
			m.logger.Warn("metrics textfile write failed", zap.Error(terr))
		}
	}

	return result, nil
}

// loadSet reads every profile under the configured directory and
// resolves them, with the attributes file applied when set
func (m *Monitor) loadSet() (*profile.Set, error) {
	roots, err := profile.LoadDir(m.cfg.ProfileDir)
	if err != nil {
		return nil, err
	}

	var overrides map[string]interface{}
	if m.cfg.AttributesFile != "" {
		overrides, err = profile.LoadAttributesFile(m.cfg.AttributesFile)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range roots {
		attrs, err := profile.ResolveAttributes(p, overrides, nil)
		if err != nil {
			return nil, err
		}
		if err := profile.ApplyAttributes(p, attrs); err != nil {
			return nil, err
		}
	}

	set, err := profile.ResolveAll(roots)
	if err != nil {
		return nil, err
	}
	m.logger.Info("profiles loaded",
		zap.Int("profiles", len(set.Profiles)),
		zap.Int("controls", len(set.Controls)))
	return set, nil
}

// reload re-reads configuration after the watcher flagged a change.
// A broken new config keeps the previous one running.
func (m *Monitor) reload() {
	m.set = nil

	fresh, err := config.Load()
	if err != nil {
		m.logger.Warn("config reload failed, keeping previous", zap.Error(err))
		return
	}
	m.cfg = fresh
	m.interval = fresh.GetDaemonInterval()
	m.notifier = notify.NewNotifier(&fresh.Notifications)
	m.logger.Info("configuration reloaded")
}

// checkDrift compares the run against the stored baseline. The first
// ever run becomes the baseline instead.
func (m *Monitor) checkDrift(ctx context.Context, result *scan.Result) {
	m.lastDrift = 0

	base, err := baseline.Load(m.baselinePath)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			m.logger.Info("no baseline yet, storing this run", zap.String("path", m.baselinePath))
			if saveErr := baseline.Save(baseline.FromResult(result), m.baselinePath); saveErr != nil {
				m.logger.Warn("baseline save failed", zap.Error(saveErr))
			}
			return
		}
		m.logger.Warn("baseline unusable", zap.Error(err))
		return
	}

	diff := m.waive(baseline.Compare(base, result))
	m.registry.RecordDrift(diff)
	m.lastDrift = diff.DriftCount
	if !diff.HasDrift() {
		return
	}

	m.logger.Warn("baseline drift",
		zap.Int("changes", diff.DriftCount),
		zap.Int("regressions", diff.Regressions))

	if m.notifier.ShouldNotify(true) {
		hostname := "unknown"
		if result.Host != nil {
			hostname = result.Host.Hostname
		}
		m.delivery("drift", m.notifier.Send(ctx, notify.FromDiff(diff, hostname)))
	}
}

// waive drops drifts whose alert codes the operator has waived
func (m *Monitor) waive(d *baseline.DiffResult) *baseline.DiffResult {
	filtered, waived := baseline.Waive(d, m.cfg.Exceptions)
	if waived > 0 {
		m.logger.Debug("drift waived by exceptions", zap.Int("waived", waived))
	}
	return filtered
}

func (m *Monitor) notifyScan(ctx context.Context, result *scan.Result) {
	if !m.notifier.ShouldNotify(len(result.Failed) > 0) {
		return
	}
	m.delivery("scan", m.notifier.Send(ctx, notify.FromResult(result)))
}

func (m *Monitor) delivery(kind string, res *notify.NotifyResult) {
	if res.Skipped != "" {
		m.logger.Debug("notification skipped", zap.String("kind", kind), zap.String("reason", res.Skipped))
		return
	}
	if len(res.Sent) > 0 {
		m.logger.Info("notification sent", zap.String("kind", kind), zap.Strings("providers", res.Sent))
	}
	for _, f := range res.Failed {
		m.logger.Warn("notification failed",
			zap.String("kind", kind),
			zap.String("provider", f.Provider),
			zap.String("error", f.Error))
	}
}

func (m *Monitor) writeReport(result *scan.Result) {
	formatter, err := report.NewFormatter(report.FormatJSON, false)
	if err != nil {
		return
	}

	name := fmt.Sprintf("%s%s.json", reportPrefix, time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(m.logDir, name)
	if err := formatter.Save(result, path); err != nil {
		m.logger.Warn("report write failed", zap.Error(err))
		return
	}
	m.logger.Debug("report written", zap.String("path", path))
}

// CleanupReports trims the daemon report directory down to the newest
// keep files and returns how many it removed
func CleanupReports(dir string, keep int) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	type reportFile struct {
		path    string
		modTime time.Time
	}
	var reports []reportFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), reportPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reports = append(reports, reportFile{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(reports) <= keep {
		return 0
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].modTime.Before(reports[j].modTime)
	})

	removed := 0
	for _, f := range reports[:len(reports)-keep] {
		if os.Remove(f.path) == nil {
			removed++
		}
	}
	return removed
}
