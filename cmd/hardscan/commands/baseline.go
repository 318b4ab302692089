package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/baseline"
	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/report"
	"github.com/hardscan/hardscan/internal/scan"
)

// RunBaseline handles the baseline command and returns the process exit code
func RunBaseline() int {
	if len(os.Args) < 3 {
		PrintBaselineHelp()
		return 1
	}

	subcommand := os.Args[2]
	switch subcommand {
	case "create":
		return RunBaselineCreate()
	case "diff":
		return RunBaselineDiff()
	case "verify":
		return RunBaselineVerify()
	case "update":
		return RunBaselineUpdate()
	case "help", "--help", "-h":
		PrintBaselineHelp()
		return 0
	default:
		fmt.Printf("Unknown baseline subcommand: %s\n", subcommand)
		PrintBaselineHelp()
		return 1
	}
}

// RunBaselineCreate scans the host and freezes the outcome as the baseline
func RunBaselineCreate() int {
	fmt.Println("Creating baseline snapshot...")

	result, err := scanForBaseline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to collect system state: %v\n", err)
		return 1
	}

	bl := baseline.FromResult(result)
	baselinePath := baseline.DefaultPath()

	if err := baseline.Save(bl, baselinePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save baseline: %v\n", err)
		return 1
	}

	fmt.Printf("✓ Baseline created successfully\n")
	fmt.Printf("  Path: %s\n", baselinePath)
	fmt.Printf("  Timestamp: %s\n", bl.Metadata.Timestamp)
	fmt.Printf("  Hostname: %s\n", bl.Metadata.Hostname)
	fmt.Printf("  Controls: %d\n", len(bl.Controls))
	fmt.Printf("  Signature: %s\n", bl.Signature[:20]+"...")
	fmt.Println("\nThe baseline represents the current known-good state of this host.")
	fmt.Println("Use 'hardscan baseline diff' to detect configuration drift.")
	return 0
}

// RunBaselineDiff compares the current state against the baseline
func RunBaselineDiff() int {
	formatType := "text"
	outputFile := ""
	baselinePath := baseline.DefaultPath()

	for i := 3; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
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
		case strings.HasPrefix(arg, "--baseline="):
			baselinePath = strings.TrimPrefix(arg, "--baseline=")
		case arg == "--baseline" && i+1 < len(os.Args):
			baselinePath = os.Args[i+1]
			i++
		}
	}

	fmt.Println("Comparing current state against baseline...")

	bl, err := baseline.Load(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load baseline: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nHint: Create a baseline first with 'hardscan baseline create'\n")
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	set, err := loadProfileSet(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profiles: %v\n", err)
		return 1
	}

	result, err := scan.New(cfg).Run(context.Background(), set, scan.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to collect current state: %v\n", err)
		return 1
	}

	diff := baseline.Compare(bl, result)
	diff, waived := baseline.Waive(diff, cfg.Exceptions)

	var outputStr string
	switch formatType {
	case "json":
		data, _ := json.MarshalIndent(diff, "", "  ")
		outputStr = string(data)
	case "yaml":
		data, _ := yaml.Marshal(diff)
		outputStr = string(data)
	default:
		outputStr = report.FormatDrift(diff, waived)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(outputStr), 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		fmt.Printf("Drift report written to %s\n", outputFile)
	} else {
		fmt.Print(outputStr)
	}

	return diff.ExitCode()
}

// RunBaselineVerify checks the baseline signature
func RunBaselineVerify() int {
	baselinePath := baseline.DefaultPath()

	fmt.Printf("Verifying baseline signature: %s\n", baselinePath)

	bl, err := baseline.Load(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Verification failed: %v\n", err)
		return 1
	}

	fmt.Printf("✓ Baseline signature is valid\n")
	fmt.Printf("  Timestamp: %s\n", bl.Metadata.Timestamp)
	fmt.Printf("  Hostname: %s\n", bl.Metadata.Hostname)
	fmt.Printf("  Profile: %s\n", bl.Metadata.Profile)
	fmt.Printf("  Version: %s\n", bl.Metadata.Version)
	fmt.Printf("  Signature: %s\n", bl.Signature)
	return 0
}

// RunBaselineUpdate rescans and replaces the baseline, keeping a backup
func RunBaselineUpdate() int {
	baselinePath := baseline.DefaultPath()

	if _, err := os.Stat(baselinePath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "✗ No existing baseline found at %s\n", baselinePath)
		fmt.Fprintf(os.Stderr, "  Run 'hardscan baseline create' to create the initial baseline\n")
		return 1
	}

	backupPath := baseline.BackupPath(time.Now())

	fmt.Printf("Updating baseline: %s\n", baselinePath)
	fmt.Printf("Creating backup: %s\n", backupPath)

	input, err := os.ReadFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to read existing baseline: %v\n", err)
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to create backup directory: %v\n", err)
		return 1
	}
	if err := os.WriteFile(backupPath, input, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to create backup: %v\n", err)
		return 1
	}
	fmt.Printf("✓ Backup created\n")

	fmt.Println("\nScanning to build the new baseline...")

	result, err := scanForBaseline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to collect system state: %v\n", err)
		return 1
	}

	bl := baseline.FromResult(result)
	if err := baseline.Save(bl, baselinePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save baseline: %v\n", err)
		return 1
	}

	fmt.Printf("✓ Baseline updated\n")
	fmt.Printf("  Timestamp: %s\n", bl.Metadata.Timestamp)
	fmt.Printf("  Controls: %d\n", len(bl.Controls))
	fmt.Printf("  Signature: %s\n", bl.Signature[:20]+"...")
	return 0
}

func scanForBaseline() (*scan.Result, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	set, err := loadProfileSet(cfg, nil)
	if err != nil {
		return nil, err
	}
	return scan.New(cfg).Run(context.Background(), set, scan.Options{})
}

// PrintBaselineHelp displays help for the baseline command
func PrintBaselineHelp() {
	help := `hardscan baseline - Manage known-good baselines

USAGE:
    hardscan baseline <SUBCOMMAND> [OPTIONS]

SUBCOMMANDS:
    create      Scan the host and freeze the outcome as the baseline
    diff        Compare the current state against the baseline
    verify      Check the baseline file signature
    update      Rescan and replace the baseline (keeps a backup)

DIFF OPTIONS:
    --format FORMAT    text, json or yaml (default: text)
    --output FILE      Write the drift report to a file
    --baseline FILE    Compare against a specific baseline file

    Exit codes: 0=no drift, 1=drift detected

DESCRIPTION:
    A baseline is a signed snapshot of every control outcome. Diffing
    against it turns "is the host still configured the way we left it"
    into a yes/no answer: regressions, recoveries and new or removed
    controls each show up as a coded drift entry. Drift codes can be
    waived with 'hardscan exceptions add <CODE>'.

EXAMPLES:
    sudo hardscan baseline create
    sudo hardscan baseline diff
    sudo hardscan baseline diff --format json --output /tmp/drift.json
    sudo hardscan baseline update`

	fmt.Println(help)
}
