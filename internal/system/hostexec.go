package system

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/log"
)

// HostExecStrategy defines how to execute probes on the audited host
type HostExecStrategy int

const (
	// StrategyAuto automatically selects the best strategy
	StrategyAuto HostExecStrategy = iota
	// StrategyDirectMount uses mounted host binaries from /host/usr/bin
	StrategyDirectMount
	// StrategyNsenter uses nsenter to enter host namespaces
	StrategyNsenter
	// StrategyFileRead fallback - only file reading, no command execution
	StrategyFileRead
)

// String returns the string representation of the strategy
func (s HostExecStrategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyDirectMount:
		return "direct_mount"
	case StrategyNsenter:
		return "nsenter"
	case StrategyFileRead:
		return "file_read"
	default:
		return "unknown"
	}
}

// ProbeStats tracks probe execution counts for observability
type ProbeStats struct {
	Total    int64
	Success  int64
	Failed   int64
	TimedOut int64
}

// HostExecutor routes read-only probes to the audited host. Containerized
// deployments reach the host through mounted binaries or nsenter; native
// runs execute directly.
type HostExecutor struct {
	strategy     HostExecStrategy
	hostBinPaths []string
	allowed      map[string]bool
	stats        ProbeStats
	mu           sync.RWMutex
}

var (
	globalExecutor *HostExecutor
	executorOnce   sync.Once
)

// GetHostExecutor returns the global HostExecutor singleton
func GetHostExecutor() *HostExecutor {
	executorOnce.Do(func() {
		globalExecutor = NewHostExecutor()
	})
	return globalExecutor
}

// NewHostExecutor creates a host executor restricted to the probe tools
// the check primitives use
func NewHostExecutor() *HostExecutor {
	e := &HostExecutor{
		strategy: StrategyAuto,
		hostBinPaths: []string{
			"/host/usr/bin",
			"/host/usr/sbin",
			"/host/bin",
			"/host/sbin",
		},
		allowed: map[string]bool{
			// kernel and filesystem probes
			"sysctl":   true,
			"lsmod":    true,
			"modprobe": true,
			"findmnt":  true,
			"mount":    true,
			"stat":     true,
			"cat":      true,

			// service and package state
			"systemctl":  true,
			"dpkg":       true,
			"dpkg-query": true,
			"rpm":        true,

			// ssh and firewall configuration
			"sshd":         true,
			"ufw":          true,
			"firewall-cmd": true,
			"iptables":     true,
			"ss":           true,

			// host identity
			"uname":       true,
			"hostname":    true,
			"lsb_release": true,
			"getent":      true,
		},
	}

	e.detectStrategy()
	return e
}

// detectStrategy determines the best execution strategy for the current environment
func (e *HostExecutor) detectStrategy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Native execution needs no indirection
	if !IsInContainer() {
		e.strategy = StrategyDirectMount
		log.Debug("host executor: native execution")
		return
	}

	for _, binPath := range e.hostBinPaths {
		if FileExists(filepath.Join(binPath, "systemctl")) {
			e.strategy = StrategyDirectMount
			log.Debugf("host executor: mounted host binaries at %s", binPath)
			return
		}
	}

	if _, err := exec.LookPath("nsenter"); err == nil {
		e.strategy = StrategyNsenter
		log.Debug("host executor: nsenter strategy")
		return
	}

	e.strategy = StrategyFileRead
	log.Warn("host executor: no command execution available, file reads only")
}

// Probe executes a read-only probe against the audited host, routing through
// the container-escape strategy when needed. Check primitives call this
// instead of RunCommand directly. Native runs skip the allowed-set gate so
// command checks can name any tool.
func Probe(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	if !IsInContainer() {
		result, err := RunCommandSudo(ctx, timeout, cmdParts...)
		GetHostExecutor().count(func(s *ProbeStats) {
			s.Total++
			if err != nil || (result != nil && !result.Success) {
				s.Failed++
			} else {
				s.Success++
			}
			if result != nil && result.TimedOut {
				s.TimedOut++
			}
		})
		return result, err
	}
	return GetHostExecutor().Run(ctx, timeout, cmdParts...)
}

// Run executes an allowed probe on the host with the detected strategy
func (e *HostExecutor) Run(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	if len(cmdParts) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no command specified")
	}

	cmdName := cmdParts[0]
	if !e.isAllowed(cmdName) {
		e.count(func(s *ProbeStats) { s.Total++; s.Failed++ })
		return nil, errors.Wrap(errors.ErrInvalidInput, "probe '%s' not in allowed set", cmdName)
	}

	e.mu.RLock()
	strategy := e.strategy
	e.mu.RUnlock()

	start := time.Now()

	var result *CommandResult
	var err error

	switch strategy {
	case StrategyDirectMount:
		result, err = e.runViaMountedBinary(ctx, timeout, cmdParts...)
	case StrategyNsenter:
		result, err = e.runViaNsenter(ctx, timeout, cmdParts...)
	case StrategyFileRead:
		e.count(func(s *ProbeStats) { s.Total++; s.Failed++ })
		return nil, errors.Wrap(errors.ErrCommandNotFound, "command execution not available in file-read mode")
	default:
		e.count(func(s *ProbeStats) { s.Total++; s.Failed++ })
		return nil, errors.Wrap(errors.ErrInvalidInput, "unknown execution strategy")
	}

	e.count(func(s *ProbeStats) {
		s.Total++
		if err != nil || (result != nil && !result.Success) {
			s.Failed++
		} else {
			s.Success++
		}
		if result != nil && result.TimedOut {
			s.TimedOut++
		}
	})

	e.logProbe(cmdParts, strategy, result, err, time.Since(start))
	return result, err
}

// runViaMountedBinary executes the probe using mounted host binaries
func (e *HostExecutor) runViaMountedBinary(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	cmdName := cmdParts[0]
	var hostBinary string

	for _, binPath := range e.hostBinPaths {
		candidate := filepath.Join(binPath, cmdName)
		if FileExists(candidate) {
			hostBinary = candidate
			break
		}
	}

	if hostBinary == "" {
		if !IsInContainer() {
			hostBinary = cmdName
		} else {
			return nil, fmt.Errorf("host binary not found: %s", cmdName)
		}
	}

	fullCmd := append([]string{hostBinary}, cmdParts[1:]...)
	return RunCommand(ctx, timeout, fullCmd...)
}

// runViaNsenter executes the probe inside the host namespaces.
// Targets PID 1 and enters mount, UTS, network and IPC namespaces
// so probes see the host's view of the system.
func (e *HostExecutor) runViaNsenter(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	nsenterCmd := []string{"nsenter", "-t", "1", "-m", "-u", "-n", "-i", "--"}
	fullCmd := append(nsenterCmd, cmdParts...)
	return RunCommand(ctx, timeout, fullCmd...)
}

func (e *HostExecutor) isAllowed(cmdName string) bool {
	base := filepath.Base(cmdName)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allowed[base]
}

// GetStrategy returns the current execution strategy
func (e *HostExecutor) GetStrategy() HostExecStrategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy
}

// Stats returns a copy of the probe counters
func (e *HostExecutor) Stats() ProbeStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

func (e *HostExecutor) count(update func(*ProbeStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	update(&e.stats)
}

func (e *HostExecutor) logProbe(cmdParts []string, strategy HostExecStrategy, result *CommandResult, err error, duration time.Duration) {
	cmdStr := strings.Join(cmdParts, " ")

	if err != nil {
		log.Errorf("host probe failed: command=%s strategy=%s error=%v duration=%s",
			cmdStr, strategy.String(), err, duration.String())
		return
	}

	if result == nil {
		return
	}

	switch {
	case result.TimedOut:
		log.Warnf("host probe timed out: command=%s strategy=%s duration=%s",
			cmdStr, strategy.String(), duration.String())
	case !result.Success:
		log.Debugf("host probe non-zero exit: command=%s strategy=%s exitCode=%d",
			cmdStr, strategy.String(), result.ExitCode)
	default:
		log.Debugf("host probe ok: command=%s strategy=%s duration=%s",
			cmdStr, strategy.String(), duration.String())
	}
}
