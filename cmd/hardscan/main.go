package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hardscan/hardscan/cmd/hardscan/commands"
	"github.com/hardscan/hardscan/internal/mcp"
)

func main() {
	if len(os.Args) > 1 {
		command := os.Args[1]

		switch command {
		case "version", "--version", "-v":
			commands.PrintVersion()
			os.Exit(0)

		case "scan":
			exitCode := commands.RunScan()
			os.Exit(exitCode)

		case "harden":
			exitCode := commands.RunHarden()
			os.Exit(exitCode)

		case "baseline":
			exitCode := commands.RunBaseline()
			os.Exit(exitCode)

		case "exceptions":
			exitCode := commands.RunExceptions()
			os.Exit(exitCode)

		case "profile":
			exitCode := commands.RunProfile()
			os.Exit(exitCode)

		case "daemon":
			exitCode := commands.RunDaemon()
			os.Exit(exitCode)

		case "notify":
			exitCode := commands.RunNotify()
			os.Exit(exitCode)

		case "serve":
			commands.RunServe()
			os.Exit(0)

		case "help", "--help", "-h":
			commands.PrintHelp()
			os.Exit(0)

		default:
			fmt.Printf("Unknown command: %s\n", command)
			commands.PrintHelp()
			os.Exit(1)
		}
	}

	// Default: run as MCP server
	runServer()
}

func runServer() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	server, err := mcp.NewServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create MCP server: %v\n", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve()
	}()

	select {
	case sig := <-sigChan:
		fmt.Fprintf(os.Stderr, "\nReceived %s signal, shutting down gracefully...\n", sig)
		_ = ctx // Context reserved for future cleanup
		cancel()
		os.Exit(0)

	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			_ = ctx // Context reserved for future cleanup
			cancel()
			os.Exit(1)
		}
		cancel()
	}
}
