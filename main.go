// Package main is the entry point for the bidhouse auction service.
package main

import (
	"context"
	"fmt"
	"os"

	"bidhouse/bootstrap"
	"bidhouse/cmd"
	_ "bidhouse/docs"

	"github.com/spf13/cobra"
)

// run initializes and starts the bidhouse server.
func run() error {
	ctx := context.Background()

	// Create and initialize application
	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Start all services
	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	app.WaitForShutdown()

	// Graceful shutdown
	app.Shutdown()

	return nil
}

// cliCommand returns the CLI root for os.Args[1], or nil when the process
// should run as the server.
func cliCommand(name string) *cobra.Command {
	switch name {
	case "auctions":
		return cmd.NewAuctionsCmd()
	case "chaintime":
		return cmd.NewChainTimeCmd()
	default:
		return nil
	}
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 {
		if cliCmd := cliCommand(os.Args[1]); cliCmd != nil {
			// Strip the command name since the root already knows it
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

			if err := cliCmd.Execute(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	// Otherwise run as normal server
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
