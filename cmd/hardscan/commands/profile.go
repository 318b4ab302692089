package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/system"
)

// RunProfile handles the profile command and returns the process exit code
func RunProfile() int {
	if len(os.Args) < 3 {
		PrintProfileHelp()
		return 1
	}

	subcommand := os.Args[2]
	switch subcommand {
	case "lint":
		return RunProfileLint()
	case "list":
		return RunProfileList()
	case "schema":
		return RunProfileSchema()
	case "help", "--help", "-h":
		PrintProfileHelp()
		return 0
	default:
		fmt.Printf("Unknown profile subcommand: %s\n", subcommand)
		PrintProfileHelp()
		return 1
	}
}

// RunProfileLint validates profile files and reports author warnings
func RunProfileLint() int {
	var paths []string
	for i := 3; i < len(os.Args); i++ {
		arg := os.Args[i]
		if arg == "--help" || arg == "-h" {
			PrintProfileHelp()
			return 0
		}
		if !strings.HasPrefix(arg, "-") {
			paths = append(paths, arg)
		}
	}

	if len(paths) == 0 {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		paths = profileFilesIn(cfg.ProfileDir)
		if len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "No profile files found in %s\n", cfg.ProfileDir)
			return 1
		}
	}

	failures := 0
	for _, path := range paths {
		p, err := profile.Load(path)
		if err != nil {
			fmt.Printf("✗ %s\n", path)
			fmt.Printf("      %v\n", err)
			failures++
			continue
		}
		fmt.Printf("✓ %s (%s, %d controls)\n", path, p.Name, len(p.Controls))
		for _, warning := range p.Lint() {
			fmt.Printf("      warning: %s\n", warning)
		}
	}

	if failures > 0 {
		fmt.Printf("\n%d of %d file(s) failed validation\n", failures, len(paths))
		return 1
	}
	return 0
}

// RunProfileList shows the loadable profiles and their host applicability
func RunProfileList() int {
	dir := ""
	for i := 3; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case strings.HasPrefix(arg, "--dir="):
			dir = strings.TrimPrefix(arg, "--dir=")
		case arg == "--dir" && i+1 < len(os.Args):
			dir = os.Args[i+1]
			i++
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if dir == "" {
		dir = cfg.ProfileDir
	}

	roots, err := profile.LoadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profiles: %v\n", err)
		return 1
	}

	host := system.GetOSInfo(context.Background())

	fmt.Printf("Profiles in %s:\n", dir)
	for _, p := range roots {
		marker := ""
		if !p.SupportsHost(host.Family, host.Distro) {
			marker = "  (not applicable to this host)"
		}
		version := p.Version
		if version == "" {
			version = "-"
		}
		fmt.Printf("  %-28s %-10s %3d controls%s\n", p.Name, version, len(p.Controls), marker)
	}
	fmt.Printf("\nHost: %s %s (%s family)\n", host.Distro, host.Kernel, host.Family)
	return 0
}

// RunProfileSchema prints the JSON schema for profile documents
func RunProfileSchema() int {
	schema, err := profile.Schema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build schema: %v\n", err)
		return 1
	}
	fmt.Println(string(schema))
	return 0
}

// profileFilesIn lists the YAML files directly under dir, sorted
func profileFilesIn(dir string) []string {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths
}

// PrintProfileHelp displays help for the profile command
func PrintProfileHelp() {
	help := `hardscan profile - Lint, list and inspect scan profiles

USAGE:
    hardscan profile <SUBCOMMAND> [ARGS]

SUBCOMMANDS:
    lint [FILE...]    Validate profile files (defaults to the profile dir)
    list [--dir DIR]  Show loadable profiles and host applicability
    schema            Print the JSON schema for profile documents

EXAMPLES:
    hardscan profile lint profiles/linux-baseline.yaml
    hardscan profile list
    hardscan profile schema > hardscan-profile.schema.json`

	fmt.Println(help)
}
