package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/hardscan/hardscan/internal/config"
)

// RunExceptions handles the exceptions command and returns the process exit code
func RunExceptions() int {
	if len(os.Args) < 3 {
		PrintExceptionsHelp()
		return 1
	}

	subcommand := os.Args[2]
	switch subcommand {
	case "add":
		return RunExceptionsAdd()
	case "remove":
		return RunExceptionsRemove()
	case "list":
		return RunExceptionsList()
	case "help", "--help", "-h":
		PrintExceptionsHelp()
		return 0
	default:
		fmt.Printf("Unknown exceptions subcommand: %s\n", subcommand)
		PrintExceptionsHelp()
		return 1
	}
}

// RunExceptionsAdd waives a control ID or a drift alert code
func RunExceptionsAdd() int {
	if len(os.Args) < 4 {
		fmt.Println("Error: control ID or alert code required")
		fmt.Println("Usage: hardscan exceptions add <CONTROL_ID|ALERT_CODE> [--reason TEXT]")
		return 1
	}

	target := os.Args[3]
	reason := ""
	expires := ""
	addedBy := ""

	for i := 4; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case strings.HasPrefix(arg, "--reason="):
			reason = strings.TrimPrefix(arg, "--reason=")
		case arg == "--reason" && i+1 < len(os.Args):
			reason = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--expires="):
			expires = strings.TrimPrefix(arg, "--expires=")
		case arg == "--expires" && i+1 < len(os.Args):
			expires = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--added-by="):
			addedBy = strings.TrimPrefix(arg, "--added-by=")
		case arg == "--added-by" && i+1 < len(os.Args):
			addedBy = os.Args[i+1]
			i++
		}
	}

	exc, path := loadExceptionsForEdit()

	if isAlertCode(target) {
		code := strings.ToUpper(target)
		if exc.IsAlertWaived(code) {
			fmt.Printf("Alert code %s is already waived\n", code)
			return 0
		}
		exc.AddAlertCode(code)
		if err := config.SaveExceptions(exc, path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save exceptions: %v\n", err)
			return 1
		}
		fmt.Printf("✓ Alert code %s waived\n", code)
		fmt.Printf("  File: %s\n", path)
		return 0
	}

	if reason == "" {
		fmt.Println("Error: --reason is required when waiving a control")
		fmt.Println("Every waived control carries a recorded justification.")
		return 1
	}

	if err := exc.Add(config.ControlException{
		ID:      target,
		Reason:  reason,
		Expires: expires,
		AddedBy: addedBy,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to add exception: %v\n", err)
		return 1
	}
	if err := config.SaveExceptions(exc, path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save exceptions: %v\n", err)
		return 1
	}

	fmt.Printf("✓ Control %s excepted\n", target)
	fmt.Printf("  Reason: %s\n", reason)
	if expires != "" {
		fmt.Printf("  Expires: %s\n", expires)
	}
	fmt.Printf("  File: %s\n", path)
	return 0
}

// RunExceptionsRemove drops a control ID or alert code from the exceptions
func RunExceptionsRemove() int {
	if len(os.Args) < 4 {
		fmt.Println("Error: control ID or alert code required")
		fmt.Println("Usage: hardscan exceptions remove <CONTROL_ID|ALERT_CODE>")
		return 1
	}

	target := os.Args[3]
	exc, path := loadExceptionsForEdit()

	removed := false
	if isAlertCode(target) {
		removed = exc.RemoveAlertCode(strings.ToUpper(target))
	} else {
		removed = exc.Remove(target)
	}
	if !removed {
		fmt.Printf("%s not found in exceptions\n", target)
		return 1
	}

	if err := config.SaveExceptions(exc, path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save exceptions: %v\n", err)
		return 1
	}
	fmt.Printf("✓ %s removed from exceptions\n", target)
	return 0
}

// RunExceptionsList shows every active waiver
func RunExceptionsList() int {
	exc, path := loadExceptionsForEdit()

	if len(exc.Controls) == 0 && len(exc.Services) == 0 && len(exc.AlertCodes) == 0 {
		fmt.Println("No exceptions configured")
		fmt.Printf("  File: %s\n", path)
		return 0
	}

	if len(exc.Controls) > 0 {
		fmt.Printf("Excepted Controls (%d):\n", len(exc.Controls))
		fmt.Println("──────────────────────────────")
		for _, c := range exc.Controls {
			fmt.Printf("  %s\n", c.ID)
			fmt.Printf("      reason: %s\n", c.Reason)
			if c.Expires != "" {
				fmt.Printf("      expires: %s\n", c.Expires)
			}
			if c.AddedBy != "" {
				fmt.Printf("      added by: %s\n", c.AddedBy)
			}
		}
	}

	if len(exc.Services) > 0 {
		fmt.Printf("\nExcepted Services (%d):\n", len(exc.Services))
		fmt.Println("──────────────────────────────")
		for _, s := range exc.Services {
			fmt.Printf("  %-24s %s\n", s.Name, s.Reason)
		}
	}

	if len(exc.AlertCodes) > 0 {
		fmt.Printf("\nWaived Alert Codes (%d):\n", len(exc.AlertCodes))
		fmt.Println("──────────────────────────────")
		for _, code := range exc.AlertCodes {
			fmt.Printf("  %s\n", code)
		}
	}

	fmt.Printf("\nExceptions file: %s\n", path)
	return 0
}

// loadExceptionsForEdit returns the current exceptions and the path edits
// are saved to. A missing or unreadable set starts empty.
func loadExceptionsForEdit() (*config.Exceptions, string) {
	cfg, err := config.Load()
	if err != nil || cfg.Exceptions == nil {
		return &config.Exceptions{Version: "1.0"}, config.ExceptionsSavePath()
	}
	if cfg.ExceptionsFile != "" {
		return cfg.Exceptions, cfg.ExceptionsFile
	}
	return cfg.Exceptions, config.ExceptionsSavePath()
}

// isAlertCode reports whether the target names a drift alert code
// rather than a control ID
func isAlertCode(target string) bool {
	return strings.HasPrefix(strings.ToUpper(target), "HS-")
}

// PrintExceptionsHelp displays help for the exceptions command
func PrintExceptionsHelp() {
	help := `hardscan exceptions - Manage accepted-risk waivers

USAGE:
    hardscan exceptions <SUBCOMMAND> [ARGS]

SUBCOMMANDS:
    list                      Show every active waiver
    add <CONTROL_ID>          Waive a control (requires --reason)
    add <ALERT_CODE>          Waive a drift alert code (HS-...)
    remove <ID|CODE>          Drop a waiver

ADD OPTIONS:
    --reason TEXT     Why the finding is accepted risk (required for controls)
    --expires DATE    Waiver stops matching after this date (YYYY-MM-DD)
    --added-by NAME   Who approved the waiver

DESCRIPTION:
    Excepted controls still run and still appear in reports, marked as
    excepted, so waived findings never silently disappear. Waived alert
    codes suppress matching baseline drift entries.

EXAMPLES:
    hardscan exceptions add sysctl.ip-forward --reason "NAT gateway" --expires 2027-01-01
    hardscan exceptions add HS-003
    hardscan exceptions remove sysctl.ip-forward
    hardscan exceptions list`

	fmt.Println(help)
}
