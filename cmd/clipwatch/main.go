// Package main is the entry point for the clipwatch CLI.
//
// clipwatch can be used as a library (SDK) or run as a standalone companion
// server in front of the clip application. This CLI provides the standalone
// binary approach plus a few tools for scripts and CI.
//
// Usage:
//
//	clipwatch serve -c config.yaml          # Start the progress page server
//	clipwatch watch <session-id> -u URL     # Follow one job in the terminal
//	clipwatch check-url <url>...            # Validate video URLs
//	clipwatch validate -c config.yaml       # Validate configuration
//	clipwatch version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "clipwatch",
	Short: "Live progress for clip processing jobs",
	Long: `clipwatch follows long-running clip processing jobs.

It polls the clip application's status endpoint for each page session,
pushes progress to the browser with Server-Sent Events, and rejects
submissions whose video URL is not a YouTube link before they reach
the application.

Quick start:
  1. Create a config file (clipwatch.yaml)
  2. Run: clipwatch serve -c clipwatch.yaml
  3. Open http://localhost:8080/?session=<id> in your browser

Example config:
  port: 8080
  upstream: http://localhost:5000
  poll_interval: 2s`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this clipwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "clipwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
