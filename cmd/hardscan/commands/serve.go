package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hardscan/hardscan/internal/mcp"
)

// RunServe starts the MCP server, either live or on a pre-generated report
func RunServe() {
	readOnly := false
	inputFile := ""

	for i := 2; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case arg == "--no-sudo":
			readOnly = true
		case strings.HasPrefix(arg, "--input="):
			inputFile = strings.TrimPrefix(arg, "--input=")
			readOnly = true
		case arg == "--input":
			if i+1 < len(os.Args) {
				inputFile = os.Args[i+1]
				readOnly = true
				i++
			}
		case arg == "--help" || arg == "-h":
			PrintServeHelp()
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	var server *mcp.Server
	var err error

	if readOnly {
		var reportData []byte

		if inputFile != "" && inputFile != "-" {
			reportData, err = os.ReadFile(inputFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read input file: %v\n", err)
				os.Exit(1)
			}
		} else {
			reportData, err = io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read from stdin: %v\n", err)
				os.Exit(1)
			}
		}

		var rawReport map[string]interface{}
		if err := json.Unmarshal(reportData, &rawReport); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse JSON: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "Starting MCP server with pre-loaded scan data (no root required)...\n")

		server, err = mcp.NewServerWithData(rawReport)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create MCP server: %v\n", err)
			os.Exit(1)
		}
	} else {
		server, err = mcp.NewServer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create MCP server: %v\n", err)
			os.Exit(1)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve()
	}()

	select {
	case sig := <-sigChan:
		fmt.Fprintf(os.Stderr, "\nReceived %s signal, shutting down gracefully...\n", sig)
		_ = ctx
		cancel()
		os.Exit(0)

	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			_ = ctx
			cancel()
			os.Exit(1)
		}
		cancel()
	}
}

// PrintServeHelp displays help for the serve command
func PrintServeHelp() {
	help := `hardscan serve - Start MCP server

USAGE:
    hardscan serve [OPTIONS]

DESCRIPTION:
    Starts the MCP server on stdio. With --input the server answers from
    a pre-generated JSON report and never scans, so it needs no root:
    scan once with sudo, then let the assistant read the result as an
    unprivileged process.

OPTIONS:
    --input FILE    Serve a saved JSON report ('-' reads stdin)
    --no-sudo       Read the report from stdin (same as --input -)
    --help, -h      This help

TOOLS EXPOSED:
    run_scan           Run a live scan (disabled in --input mode)
    get_report         Render the current report in any output format
    generate_plan      Build a remediation plan from the current report
    baseline_diff      Compare the current report against the baseline
    list_exceptions    Show active waivers

EXAMPLES:
    # Live mode (scans on request, requires root for most checks)
    sudo hardscan serve

    # Privilege separation: scan with sudo, serve without
    sudo hardscan scan --format=json --verbose --output /tmp/scan.json
    hardscan serve --input /tmp/scan.json

    # Pipe mode
    sudo hardscan scan --format=json --verbose | hardscan serve --input -`

	fmt.Println(help)
}
