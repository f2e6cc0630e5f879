package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "witness",
	Short: "Witness - cross-unit span registry and tracing runtime",
	Long: `Witness tracks the active span of every execution unit in a process
and keeps finished spans resolvable across unit boundaries.

It provides:
  - A concurrent span registry with tombstoned lookup after unit exit
  - Span lifecycle events on an in-process bus
  - Span recording to memory or SQLite storage with scheduled retention
  - Prometheus metrics and OTLP trace export`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "witness.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
