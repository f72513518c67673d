// Package main is the entry point for the fetchwave CLI.
//
// fetchwave drives the request engine from a YAML run file: it registers
// endpoints, fires a request batch, follows handler-spawned requests to
// completion, and writes the collected results as a JSON document.
//
// Usage:
//
//	fetchwave run -f run.yaml    # Execute a batch
//	fetchwave version            # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set by the build via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fetchwave",
	Short: "A concurrent HTTP request engine",
	Long: `fetchwave fans a batch of HTTP requests out against registered
endpoints while honoring per-endpoint rate limits, credential rotation,
and concurrency caps. Responses are decoded by content type; handlers
may spawn follow-up requests that run as breadth-first generations.

Quick start:
  1. Describe endpoints and requests in a run file (run.yaml)
  2. Run: fetchwave run -f run.yaml
  3. Read the exported JSON document

Example run file:
  export_path: results.json
  endpoints:
    - base_url: https://api.example.com
      limits: [20]
      intervals: [1s]
      max_concurrent: 4
  requests:
    - url: https://api.example.com/items
      payload:
        page: 1`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fetchwave %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
