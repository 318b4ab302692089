package system

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/log"
)

// CommandResult represents the result of a command execution
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Success  bool
	TimedOut bool
}

const (
	TimeoutShort    = 5 * time.Second
	TimeoutMedium   = 10 * time.Second
	TimeoutLong     = 30 * time.Second
	TimeoutVeryLong = 120 * time.Second
)

// RunCommand executes a command with timeout
func RunCommand(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("no command specified")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Success:  err == nil,
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if err == nil {
		result.ExitCode = 0
	}

	if result.TimedOut {
		log.Debugf("command timed out: %s", strings.Join(cmdParts, " "))
	}

	return result, nil
}

// RunCommandSudo tries without sudo first, falls back to sudo if permission denied
func RunCommandSudo(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	// Try without sudo first
	result, err := RunCommand(ctx, timeout, cmdParts...)
	if err != nil {
		return result, err
	}

	// Check if permission denied
	stderrLower := strings.ToLower(result.Stderr)
	needsSudo := strings.Contains(stderrLower, "permission denied") ||
		strings.Contains(stderrLower, "you must be root") ||
		strings.Contains(stderrLower, "you need to be root") ||
		strings.Contains(stderrLower, "operation not permitted")

	// Special case: commands in /sbin or /usr/sbin often need sudo
	if len(cmdParts) > 0 {
		cmdPath := cmdParts[0]
		if strings.HasPrefix(cmdPath, "/sbin/") || strings.HasPrefix(cmdPath, "/usr/sbin/") {
			needsSudo = true
		}
	}

	if !needsSudo && result.Success {
		return result, nil
	}

	// Retry with sudo -n (no password prompt)
	log.Debugf("retrying with sudo: %s", cmdParts[0])
	sudoCmd := append([]string{"sudo", "-n"}, cmdParts...)
	return RunCommand(ctx, timeout, sudoCmd...)
}

// CommandExists checks if a command is available
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// FileExists checks if a path exists on the audited system
func FileExists(path string) bool {
	_, err := os.Stat(HostPath(path))
	return err == nil
}

// ReadHostFile reads a file from the audited system, applying the /host
// prefix when running containerized. Falls back to sudo cat when direct
// reading is denied, so privileged files like /etc/shadow stay reachable.
func ReadHostFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(HostPath(path))
	if err == nil {
		return data, nil
	}
	if !os.IsPermission(err) {
		return nil, err
	}

	result, runErr := RunCommandSudo(ctx, TimeoutShort, "cat", HostPath(path))
	if runErr != nil || result == nil || !result.Success {
		return nil, errors.Wrap(errors.ErrPermissionDenied, "reading %s even with sudo", path)
	}
	return []byte(result.Stdout), nil
}

// IsServiceActive checks if a systemd service is active
func IsServiceActive(ctx context.Context, service string) bool {
	result, err := RunCommand(ctx, TimeoutShort, "systemctl", "is-active", service)
	if err != nil || result == nil {
		return false
	}
	return result.Success && strings.TrimSpace(result.Stdout) == "active"
}
