package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/monitor"
)

// RunDaemon handles the daemon command and returns the process exit code
func RunDaemon() int {
	interval := 0
	logDir := ""
	once := false
	status := false

	for i := 2; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch arg {
		case "--interval", "-i":
			if i+1 < len(os.Args) {
				interval = parseInterval(os.Args[i+1])
				i++
			}
		case "--log-dir", "-d":
			if i+1 < len(os.Args) {
				logDir = os.Args[i+1]
				i++
			}
		case "--once":
			once = true
		case "--status":
			status = true
		case "--help", "-h":
			PrintDaemonHelp()
			return 0
		}
	}

	if status {
		return printDaemonStatus()
	}

	if interval != 0 {
		if interval < 10 {
			fmt.Fprintf(os.Stderr, "Error: Minimum interval is 10 seconds\n")
			return 1
		}
		if interval > 86400 {
			fmt.Fprintf(os.Stderr, "Error: Maximum interval is 86400 seconds (24 hours)\n")
			return 1
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if interval != 0 {
		cfg.Daemon.IntervalSeconds = interval
	}
	if logDir != "" {
		cfg.Daemon.LogDir = logDir
	}

	m := monitor.New(cfg)

	if once {
		result, err := m.RunOnce(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan cycle failed: %v\n", err)
			return 1
		}
		fmt.Printf("Cycle complete: score %.1f (%s), %d of %d controls failed\n",
			result.Summary.Score, result.Summary.Grade,
			result.Summary.Failed, result.Summary.Total)
		fmt.Printf("Status file: %s\n", monitor.StatusPath())
		return 0
	}

	if err := m.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon stopped: %v\n", err)
		return 1
	}
	return 0
}

// parseInterval accepts plain seconds ("900") or a duration string ("15m").
// Unparseable values return 0 so the config default applies.
func parseInterval(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if d, err := time.ParseDuration(s); err == nil {
		return int(d.Seconds())
	}
	return 0
}

func printDaemonStatus() int {
	st, err := monitor.ReadStatus(monitor.StatusPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "No daemon status found: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nHint: the status file appears after the first cycle of 'hardscan daemon'\n")
		return 1
	}

	fmt.Println("Daemon status")
	fmt.Println("──────────────────────────────")
	fmt.Printf("  PID:        %d\n", st.PID)
	fmt.Printf("  Started:    %s\n", st.StartedAt)
	fmt.Printf("  Last run:   %s\n", st.LastRun)
	fmt.Printf("  Next run:   %s\n", st.NextRun)
	fmt.Printf("  Checks:     %d\n", st.Checks)
	fmt.Printf("  Last score: %.1f", st.LastScore)
	if st.LastGrade != "" {
		fmt.Printf(" (%s)", st.LastGrade)
	}
	fmt.Println()
	fmt.Printf("  Drift:      %d\n", st.DriftCount)
	if st.ExecStrategy != "" {
		fmt.Printf("  Probes:     %d total, %d failed, %d timed out (%s)\n",
			st.Probes.Total, st.Probes.Failed, st.Probes.TimedOut, st.ExecStrategy)
	}
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return 0
}

// PrintDaemonHelp displays help for the daemon command
func PrintDaemonHelp() {
	help := `hardscan daemon - Continuous scanning

USAGE:
    hardscan daemon [OPTIONS]

DESCRIPTION:
    Rescans the host on a fixed interval, writes timestamped reports,
    compares each run against the baseline and sends notifications when
    findings or drift appear. A heartbeat status file is rewritten after
    every cycle.

OPTIONS:
    --interval, -i VALUE     Scan interval in seconds or as a duration
                             like 15m or 6h (10s to 24h, default from config)
    --log-dir, -d PATH       Directory for timestamped reports
    --once                   Run a single cycle and exit
    --status                 Show the daemon heartbeat and exit
    --help, -h               This help

EXAMPLES:
    sudo hardscan daemon
    sudo hardscan daemon --interval 900
    sudo hardscan daemon --interval 6h
    sudo hardscan daemon --once
    hardscan daemon --status`

	fmt.Println(help)
}
