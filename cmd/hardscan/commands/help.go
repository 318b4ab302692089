package commands

import (
	"fmt"
)

// Version is the hardscan release version
const Version = "1.0.0"

// PrintVersion displays the version string
func PrintVersion() {
	fmt.Printf("hardscan version %s\n", Version)
}

// PrintHelp displays the main help message
func PrintHelp() {
	help := `hardscan - Declarative Linux Hardening Scanner

USAGE:
    hardscan [COMMAND]

COMMANDS:
    (none)      Start MCP server (default)
    scan        Run a compliance scan against the loaded profiles
    harden      Build a remediation plan from failed controls
    baseline    Manage known-good baselines and check for drift
    exceptions  Manage accepted-risk exceptions
    profile     Lint, list and inspect scan profiles
    daemon      Continuous scanning (use --once for a single cycle)
    notify      Test webhook notification channels
    serve       Start MCP server with a pre-generated report
    version     Show version
    help        This help

SCAN OPTIONS (hardscan scan):
    --profile-dir DIR     Profile directory (default from config)
    --level N             Hardening level: 1 or 2
    --tags a,b            Only run controls carrying one of these tags
    --attr KEY=VALUE      Override a profile attribute (repeatable)
    --format FORMAT       Output format: text, json, yaml, sarif, summary, compact
    --output FILE         Write the report to a file
    --suite FILE          Run suites from a descriptor file (repeatable)
    --verbose             Include per-control detail in json/yaml output
    --quiet, -q           Suppress output (return exit code only)
    --webhook             Send a webhook notification for this scan
    --on-issues           Only output/notify when issues are found

    Exit codes: 0=OK (green), 1=WARNING (yellow), 2=CRITICAL (red)

DAEMON OPTIONS (hardscan daemon):
    --interval, -i VALUE     Scan interval in seconds or duration (default: 6h)
    --log-dir, -d PATH       Report directory
    --once                   Run a single cycle and exit
    --status                 Show daemon status and exit

EXAMPLES:
    # Run as MCP server (default, requires root for most checks)
    hardscan

    # Scan and show the report
    sudo hardscan scan

    # Create a baseline (known-good state)
    sudo hardscan baseline create

    # Check for configuration drift
    sudo hardscan baseline diff

    # Build a remediation plan for everything high and up
    sudo hardscan harden --min-severity high

    # PRIVILEGE SEPARATION (RECOMMENDED)
    sudo hardscan scan --format=json --verbose --output /tmp/scan.json
    hardscan serve --input /tmp/scan.json  # No sudo!

    # Cron job: notify via webhook only when issues are found
    sudo hardscan scan --quiet --webhook --on-issues

WORKFLOW:
    scan -> harden -> scan      tighten the host until the report is green
    baseline create             freeze the green state
    daemon / baseline diff      watch for drift from that state
    exceptions add              waive findings that are accepted risk

Run 'hardscan <command> --help' for command details.`

	fmt.Println(help)
}
