package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/notify"
)

// RunNotify handles the notify command and returns the process exit code
func RunNotify() int {
	if len(os.Args) < 3 {
		PrintNotifyHelp()
		return 1
	}

	subcommand := os.Args[2]
	switch subcommand {
	case "test":
		return RunNotifyTest()
	case "help", "--help", "-h":
		PrintNotifyHelp()
		return 0
	default:
		fmt.Printf("Unknown notify subcommand: %s\n", subcommand)
		PrintNotifyHelp()
		return 1
	}
}

// RunNotifyTest sends a synthetic alert through the configured channels
func RunNotifyTest() int {
	provider := ""
	for i := 3; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case strings.HasPrefix(arg, "--provider="):
			provider = strings.TrimPrefix(arg, "--provider=")
		case arg == "--provider" && i+1 < len(os.Args):
			provider = os.Args[i+1]
			i++
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	var providers []string
	if provider != "" {
		providers = []string{provider}
	} else {
		if cfg.Notifications.Discord.Enabled {
			providers = append(providers, "discord")
		}
		if cfg.Notifications.Slack.Enabled {
			providers = append(providers, "slack")
		}
		if cfg.Notifications.GenericWebhook.Enabled {
			providers = append(providers, "webhook")
		}
	}
	if len(providers) == 0 {
		fmt.Fprintf(os.Stderr, "No notification providers enabled in config\n")
		fmt.Fprintf(os.Stderr, "Enable discord, slack or webhook under 'notifications:', or pass --provider\n")
		return 1
	}

	notifier := notify.NewNotifier(&cfg.Notifications)
	ctx := context.Background()

	failures := 0
	for _, p := range providers {
		if err := notifier.TestWebhook(ctx, p); err != nil {
			fmt.Printf("✗ %s: %v\n", p, err)
			failures++
			continue
		}
		fmt.Printf("✓ %s: test notification delivered\n", p)
	}

	if failures > 0 {
		return 1
	}
	return 0
}

// PrintNotifyHelp displays help for the notify command
func PrintNotifyHelp() {
	help := `hardscan notify - Test webhook notification channels

USAGE:
    hardscan notify test [--provider NAME]

DESCRIPTION:
    Sends a synthetic alert through every enabled provider (or only the
    one named with --provider) so webhook configuration can be verified
    without waiting for a real finding.

PROVIDERS:
    discord     Discord webhook
    slack       Slack incoming webhook
    webhook     Generic JSON webhook (POST or PUT)

EXAMPLES:
    hardscan notify test
    hardscan notify test --provider discord`

	fmt.Println(help)
}
