// Package main is the entry point for the snapview CLI.
//
// SnapView can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	snapview serve -c snapview.yaml    # Start the viewer
//	snapview serve --url http://cam/x  # Start without a config file
//	snapview validate -c snapview.yaml # Validate configuration
//	snapview version                   # Show version info
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
	Use:   "snapview",
	Short: "A pseudo-live viewer for IP camera snapshots",
	Long: `SnapView turns an IP camera's snapshot URL into a pseudo-live stream.

It re-fetches the still image on a fixed period with a cache-busting token
and shows it in a web UI with Server-Sent Events for live state updates,
plus diagnostics for mixed content, private network blocks and auth walls.

Quick start:
  1. Run: snapview serve --url http://192.168.0.166/image/jpeg.cgi
  2. Open http://localhost:8080 in your browser
  3. Press start

Example config:
  port: 8080
  stream:
    url: http://192.168.0.166/image/jpeg.cgi
    interval: 1
    password: ${CAMERA_PASSWORD}`,
	SilenceUsage: true,
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
	Long:  `Print the version, commit hash, and build date of this snapview binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "snapview %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
