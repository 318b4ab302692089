package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/harden"
	"github.com/hardscan/hardscan/internal/scan"
)

// RunHarden executes the harden command and returns the process exit code
func RunHarden() int {
	fromFile := ""
	minSeverity := ""
	outputFile := ""
	script := false
	attrPairs := map[string]string{}
	var only []string

	for i := 2; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case strings.HasPrefix(arg, "--from="):
			fromFile = strings.TrimPrefix(arg, "--from=")
		case arg == "--from" && i+1 < len(os.Args):
			fromFile = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--min-severity="):
			minSeverity = strings.TrimPrefix(arg, "--min-severity=")
		case arg == "--min-severity" && i+1 < len(os.Args):
			minSeverity = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--only="):
			only = splitList(strings.TrimPrefix(arg, "--only="))
		case arg == "--only" && i+1 < len(os.Args):
			only = splitList(os.Args[i+1])
			i++
		case strings.HasPrefix(arg, "--output="):
			outputFile = strings.TrimPrefix(arg, "--output=")
		case arg == "--output" && i+1 < len(os.Args):
			outputFile = os.Args[i+1]
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
		case arg == "--script":
			script = true
		case arg == "--help" || arg == "-h":
			PrintHardenHelp()
			return 0
		}
	}

	var result *scan.Result

	if fromFile != "" {
		loaded, err := loadReportFile(fromFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load report: %v\n", err)
			return 2
		}
		result = loaded
	} else {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 2
		}
		set, err := loadProfileSet(cfg, attrPairs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load profiles: %v\n", err)
			return 2
		}
		result, err = scan.New(cfg).Run(context.Background(), set, scan.Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			return 2
		}
	}

	plan, err := harden.Build(result, minSeverity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build plan: %v\n", err)
		return 2
	}
	plan, err = plan.Only(only)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build plan: %v\n", err)
		return 2
	}

	if script {
		if outputFile != "" {
			if err := plan.SaveScript(outputFile); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write script: %v\n", err)
				return 2
			}
			fmt.Printf("Script written to %s\n", outputFile)
			fmt.Println("Review every command before running it.")
			return 0
		}
		fmt.Print(plan.Script())
		return 0
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(plan.Render()), 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write plan: %v\n", err)
			return 2
		}
		fmt.Printf("Plan written to %s\n", outputFile)
		return 0
	}

	fmt.Print(plan.Render())
	return 0
}

// loadReportFile reads a JSON scan report produced by 'scan --format json'
func loadReportFile(path string) (*scan.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result scan.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%s is not a JSON scan report: %v", path, err)
	}
	return &result, nil
}

// PrintHardenHelp displays help for the harden command
func PrintHardenHelp() {
	help := `hardscan harden - Build a remediation plan from failed controls

USAGE:
    hardscan harden [OPTIONS]

DESCRIPTION:
    Runs a scan (or reads a saved JSON report) and turns every failed
    control into an ordered remediation plan, most severe first. With
    --script the plan becomes a commented shell script that is written
    for review, never executed by hardscan itself.

OPTIONS:
    --from FILE           Build from a saved JSON report instead of scanning
    --min-severity SEV    Only include findings at SEV or above
                          (critical, high, medium, low)
    --only LIST           Keep only these severity classes (e.g. critical,high)
    --script              Emit a shell script instead of the readable plan
    --output FILE         Write the plan or script to a file
    --attr KEY=VALUE      Override a profile attribute for the fresh scan
    --help, -h            This help

EXAMPLES:
    sudo hardscan harden
    sudo hardscan harden --min-severity high
    sudo hardscan harden --from /tmp/scan.json --script --output fix.sh
    sh -n fix.sh   # syntax-check, then read it before running anything`

	fmt.Println(help)
}
