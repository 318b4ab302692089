package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/metrics"
	"github.com/hardscan/hardscan/internal/notify"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/report"
	"github.com/hardscan/hardscan/internal/scan"
)

// RunScan executes the scan command and returns the process exit code
func RunScan() int {
	profileDir := ""
	attributesFile := ""
	formatType := ""
	outputFile := ""
	level := 0
	var tags []string
	var suiteFiles []string
	attrPairs := map[string]string{}
	verbose := false
	quiet := false
	webhookOnly := false
	onIssuesOnly := false
	noFail := false

	for i := 2; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case strings.HasPrefix(arg, "--profile-dir="):
			profileDir = strings.TrimPrefix(arg, "--profile-dir=")
		case arg == "--profile-dir" && i+1 < len(os.Args):
			profileDir = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--attributes="):
			attributesFile = strings.TrimPrefix(arg, "--attributes=")
		case arg == "--attributes" && i+1 < len(os.Args):
			attributesFile = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--level="):
			if v, err := strconv.Atoi(strings.TrimPrefix(arg, "--level=")); err == nil {
				level = v
			}
		case arg == "--level" && i+1 < len(os.Args):
			if v, err := strconv.Atoi(os.Args[i+1]); err == nil {
				level = v
			}
			i++
		case strings.HasPrefix(arg, "--tags="):
			tags = splitList(strings.TrimPrefix(arg, "--tags="))
		case arg == "--tags" && i+1 < len(os.Args):
			tags = splitList(os.Args[i+1])
			i++
		case strings.HasPrefix(arg, "--attr="):
			if !addAttrPair(attrPairs, strings.TrimPrefix(arg, "--attr=")) {
				return 2
			}
		case arg == "--attr" && i+1 < len(os.Args):
			if !addAttrPair(attrPairs, os.Args[i+1]) {
				return 2
			}
			i++
		case strings.HasPrefix(arg, "--format="):
			formatType = strings.TrimPrefix(arg, "--format=")
		case arg == "--format" && i+1 < len(os.Args):
			formatType = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--output="):
			outputFile = strings.TrimPrefix(arg, "--output=")
		case arg == "--output" && i+1 < len(os.Args):
			outputFile = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--suite="):
			suiteFiles = append(suiteFiles, strings.TrimPrefix(arg, "--suite="))
		case arg == "--suite" && i+1 < len(os.Args):
			suiteFiles = append(suiteFiles, os.Args[i+1])
			i++
		case arg == "--verbose":
			verbose = true
		case arg == "--quiet" || arg == "-q":
			quiet = true
		case arg == "--webhook":
			webhookOnly = true
		case arg == "--on-issues":
			onIssuesOnly = true
		case arg == "--no-fail":
			noFail = true
		case arg == "--help" || arg == "-h":
			PrintScanHelp()
			return 0
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 2
	}
	if profileDir != "" {
		cfg.ProfileDir = profileDir
	}
	if attributesFile != "" {
		cfg.AttributesFile = attributesFile
	}
	if formatType == "" {
		formatType = cfg.Format
	}

	if len(suiteFiles) > 0 {
		return runSuiteFiles(cfg, suiteFiles, quiet)
	}

	set, err := loadProfileSet(cfg, attrPairs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profiles: %v\n", err)
		return 2
	}

	engine := scan.New(cfg)
	result, err := engine.Run(context.Background(), set, scan.Options{Level: level, Tags: tags})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return 2
	}

	recordScanMetrics(cfg, result)
	sendScanNotification(cfg, result, webhookOnly, onIssuesOnly)

	exitCode := result.ExitCode()
	finalCode := exitCode
	if noFail {
		finalCode = 0
	}
	if quiet || (onIssuesOnly && exitCode == 0) {
		return finalCode
	}

	formatter, err := report.NewFormatter(formatType, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	if outputFile != "" {
		if err := formatter.Save(result, outputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			return 2
		}
		fmt.Printf("Report written to %s\n", outputFile)
		return finalCode
	}
	rendered, err := formatter.Render(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
		return 2
	}
	fmt.Println(rendered)

	return finalCode
}

// runSuiteFiles runs every suite in the given descriptor files and
// returns the worst exit code across them
func runSuiteFiles(cfg *config.Config, paths []string, quiet bool) int {
	engine := scan.New(cfg)
	runs, err := engine.RunSuites(context.Background(), paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suite run failed: %v\n", err)
		return 2
	}

	worst := 0
	for _, run := range runs {
		recordScanMetrics(cfg, run.Result)

		code := run.Result.ExitCode()
		if !run.Passed && code == 0 {
			// Score gate failed even though no control went red
			code = 1
		}
		if code > worst {
			worst = code
		}

		formatter, err := report.NewFormatter(run.Suite.Format, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Suite %s: %v\n", run.Suite.Name, err)
			return 2
		}
		if run.Suite.Output != "" {
			if err := formatter.Save(run.Result, run.Suite.Output); err != nil {
				fmt.Fprintf(os.Stderr, "Suite %s: failed to write report: %v\n", run.Suite.Name, err)
				return 2
			}
			if !quiet {
				fmt.Printf("Suite %s: report written to %s\n", run.Suite.Name, run.Suite.Output)
			}
		} else if !quiet {
			rendered, err := formatter.Render(run.Result)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Suite %s: failed to render report: %v\n", run.Suite.Name, err)
				return 2
			}
			fmt.Println(rendered)
		}
		if !run.Passed && !quiet {
			fmt.Printf("Suite %s: score %.1f is below the required minimum %.1f\n",
				run.Suite.Name, run.Result.Summary.Score, run.Suite.MinScore)
		}
	}
	return worst
}

// loadProfileSet loads the configured profile directory and applies
// attribute overrides from the attributes file and the command line
func loadProfileSet(cfg *config.Config, attrPairs map[string]string) (*profile.Set, error) {
	roots, err := profile.LoadDir(cfg.ProfileDir)
	if err != nil {
		return nil, err
	}

	var fileOverrides map[string]interface{}
	if cfg.AttributesFile != "" {
		fileOverrides, err = profile.LoadAttributesFile(cfg.AttributesFile)
		if err != nil {
			return nil, err
		}
	}

	for _, p := range roots {
		attrs, err := profile.ResolveAttributes(p, fileOverrides, attrPairs)
		if err != nil {
			return nil, err
		}
		if err := profile.ApplyAttributes(p, attrs); err != nil {
			return nil, err
		}
	}

	return profile.ResolveAll(roots)
}

// recordScanMetrics refreshes the textfile export so cron-driven scans
// feed node_exporter without the daemon running
func recordScanMetrics(cfg *config.Config, result *scan.Result) {
	if !cfg.Metrics.Enabled || cfg.Metrics.TextfilePath == "" {
		return
	}
	registry := metrics.GetRegistry()
	registry.RecordScan(result)
	if err := registry.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write metrics textfile: %v\n", err)
	}
}

func sendScanNotification(cfg *config.Config, result *scan.Result, force, onIssuesOnly bool) {
	if !cfg.Notifications.Enabled && !force {
		return
	}
	hasIssues := result.Summary != nil && result.Summary.Failed > 0
	if onIssuesOnly && !hasIssues {
		return
	}
	if force {
		// --webhook overrides the config switch for this run
		cfg.Notifications.Enabled = true
	}

	notifier := notify.NewNotifier(&cfg.Notifications)
	if !force && !notifier.ShouldNotify(hasIssues) {
		return
	}

	res := notifier.Send(context.Background(), notify.FromResult(result))
	for _, failure := range res.Failed {
		fmt.Fprintf(os.Stderr, "Notification via %s failed: %s\n", failure.Provider, failure.Error)
	}
}

func addAttrPair(pairs map[string]string, raw string) bool {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		fmt.Fprintf(os.Stderr, "Invalid --attr %q, expected KEY=VALUE\n", raw)
		return false
	}
	pairs[key] = value
	return true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// PrintScanHelp displays help for the scan command
func PrintScanHelp() {
	help := `hardscan scan - Run a compliance scan

USAGE:
    hardscan scan [OPTIONS]

OPTIONS:
    --profile-dir DIR     Profile directory (default from config)
    --attributes FILE     Attributes override file
    --level N             Hardening level: 1 (baseline) or 2 (strict)
    --tags a,b            Only run controls carrying one of these tags
    --attr KEY=VALUE      Override a single attribute (repeatable)
    --format FORMAT       text, json, yaml, sarif, summary, compact
    --output FILE         Write the report to a file instead of stdout
    --suite FILE          Run suites from a descriptor file (repeatable)
    --verbose             Include per-control detail in json/yaml output
    --quiet, -q           No output, exit code only
    --webhook             Send a webhook notification for this scan
    --on-issues           Only output/notify when issues are found
    --no-fail             Always exit 0, whatever the traffic light
    --help, -h            This help

EXIT CODES:
    0   All controls passed (green)
    1   Failures at medium severity or below (yellow)
    2   High or critical failures, or score below 50 (red)

EXAMPLES:
    sudo hardscan scan
    sudo hardscan scan --level 2 --format json --verbose --output /tmp/scan.json
    sudo hardscan scan --tags ssh,sysctl
    sudo hardscan scan --attr ssh_port=2222
    sudo hardscan scan --suite /etc/hardscan/suites.yaml
    sudo hardscan scan --quiet --webhook --on-issues`

	fmt.Println(help)
}
