package monitor

import (
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hardscan/hardscan/internal/errors"
)

// watch registers fsnotify watches on the profile directory and, when
// set, the config directory. YAML changes mark the monitor for a reload
// before its next run; a run in progress is never interrupted.
func (m *Monitor) watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := []string{m.cfg.ProfileDir}
	if dir := os.Getenv("HARDSCAN_CONFIG_DIR"); dir != "" {
		dirs = append(dirs, dir)
	}

	watched := 0
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			m.logger.Warn("watch failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
		m.logger.Info("watching", zap.String("dir", dir))
	}
	if watched == 0 {
		watcher.Close()
		return nil, errors.Wrap(errors.ErrNotFound, "no watchable directories")
	}

	go m.watchLoop(watcher)
	return watcher, nil
}

func (m *Monitor) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			m.logger.Info("change detected, reload scheduled", zap.String("path", event.Name))
			m.reloadFlag.Store(true)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watch error", zap.Error(err))
		case <-m.stopChan:
			return
		}
	}
}

// relevantEvent keeps YAML edits and drops chmod noise
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := strings.ToLower(event.Name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
